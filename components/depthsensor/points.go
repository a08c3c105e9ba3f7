package depthsensor

import "github.com/go-gl/mathgl/mgl32"

const (
	// DefaultDepthScale converts millimeter samples to meters.
	DefaultDepthScale = 0.001
	// DefaultInvalidDepth is the z given to pixels without a reading.
	DefaultInvalidDepth = -10.0
)

// PointTransformer back-projects raw depth samples into camera space. The camera looks down
// -z and y points up, so table factors are applied with y flipped.
type PointTransformer struct {
	// DepthScale converts one sample unit into output length units.
	DepthScale float32
	// InvalidDepth is the z of points whose sample is zero.
	InvalidDepth float32
}

// NewPointTransformer returns a transformer with the default scale and sentinel.
func NewPointTransformer() PointTransformer {
	return PointTransformer{DepthScale: DefaultDepthScale, InvalidDepth: DefaultInvalidDepth}
}

// Transform writes one point per table entry into out and returns the number written.
// Entries beyond the end of depth are treated as having no reading; out must be at least as
// long as table.
func (pt PointTransformer) Transform(depth []uint16, table []mgl32.Vec2, out []mgl32.Vec3) int {
	n := len(table)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		var d uint16
		if i < len(depth) {
			d = depth[i]
		}
		out[i] = pt.Point(d, table[i])
	}
	return n
}

// Point back-projects a single sample.
func (pt PointTransformer) Point(d uint16, ray mgl32.Vec2) mgl32.Vec3 {
	z := pt.InvalidDepth
	if d != 0 {
		z = -pt.DepthScale * float32(d)
	}
	return mgl32.Vec3{ray[0] * z, -ray[1] * z, z}
}
