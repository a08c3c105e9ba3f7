package depthsensor

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MapCorrespondence fills out with, for every depth pixel, the normalized position in the
// color image that sees the same surface point: ((cx+0.5)/W, (cy+0.5)/H) for color pixel
// (cx, cy). Positions outside the color image and non-finite positions are kept as they come
// so the sampler decides how to treat them. scratch is only used by batched mappers and must
// be at least as long as out.
func MapCorrespondence(
	mapper CoordinateMapper,
	depth []uint16,
	depthRes, colorRes Resolution,
	scratch []ColorSpacePoint,
	out []mgl32.Vec2,
) error {
	n := depthRes.Pixels()
	if len(depth) < n || len(out) < n {
		return errors.Errorf("correspondence needs %d samples, got depth=%d out=%d", n, len(depth), len(out))
	}
	if colorRes.Width <= 0 || colorRes.Height <= 0 {
		return errors.Errorf("invalid color resolution %v", colorRes)
	}
	invW := 1 / float32(colorRes.Width)
	invH := 1 / float32(colorRes.Height)

	switch m := mapper.(type) {
	case BatchColorMapper:
		if len(scratch) < n {
			return errors.Errorf("color space scratch too short: %d < %d", len(scratch), n)
		}
		if err := m.MapDepthFrameToColorSpace(depth[:n], scratch[:n]); err != nil {
			return errors.Wrap(err, "batched color mapping failed")
		}
		for i, p := range scratch[:n] {
			out[i] = mgl32.Vec2{(p.X + 0.5) * invW, (p.Y + 0.5) * invH}
		}
	case PixelColorMapper:
		for y := 0; y < depthRes.Height; y++ {
			row := y * depthRes.Width
			for x := 0; x < depthRes.Width; x++ {
				cx, cy, err := m.MapDepthPixelToColorPixel(x, y, depth[row+x])
				if err != nil {
					return errors.Wrapf(err, "color mapping failed at (%d, %d)", x, y)
				}
				out[row+x] = mgl32.Vec2{(float32(cx) + 0.5) * invW, (float32(cy) + 0.5) * invH}
			}
		}
	default:
		return errors.Errorf("coordinate mapper %T cannot map depth to color", mapper)
	}
	return nil
}
