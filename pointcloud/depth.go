package pointcloud

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/rimage"
)

// FromDepthFrame builds a cloud from the camera-space points derived from millimeter depth
// samples. depthScale is the factor the points were scaled by from one sample unit, so
// dividing by it puts positions back in millimeters. Pixels without a depth sample are
// skipped. When colorFrame is set, every point takes the
// color found at its normalized correspondence; points that fall outside the color image stay
// uncolored.
func FromDepthFrame(
	depth *rimage.DepthMap,
	points []mgl32.Vec3,
	coords []mgl32.Vec2,
	colorFrame *rimage.ColorFrame,
	depthScale float64,
) (PointCloud, error) {
	if depthScale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", depthScale)
	}
	samples := depth.Data()
	if len(points) < len(samples) {
		return nil, errors.Errorf("have %d points for %d depth samples", len(points), len(samples))
	}
	if colorFrame != nil && len(coords) < len(samples) {
		return nil, errors.Errorf("have %d correspondences for %d depth samples", len(coords), len(samples))
	}

	pc := NewWithPrealloc(len(samples))
	for i, d := range samples {
		if d == 0 {
			continue
		}
		p := points[i]
		pos := r3.Vector{X: float64(p.X()), Y: float64(p.Y()), Z: float64(p.Z())}.Mul(1 / depthScale)
		var data Data
		if colorFrame != nil {
			if c, ok := colorFrame.SampleNormalized(coords[i].X(), coords[i].Y()); ok {
				data = Colored(c)
			}
		}
		if err := pc.Set(pos, data); err != nil {
			return nil, errors.Wrapf(err, "depth pixel %d", i)
		}
	}
	return pc, nil
}
