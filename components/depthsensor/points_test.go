package depthsensor_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.viam.com/test"

	"go.viam.com/depthmesh/components/depthsensor"
)

func TestTransformWorkedRow(t *testing.T) {
	pt := depthsensor.NewPointTransformer()
	depth := []uint16{0, 1000, 2000}
	table := []mgl32.Vec2{{0, 0}, {0.1, 0.1}, {0.2, -0.1}}
	out := make([]mgl32.Vec3, 3)

	test.That(t, pt.Transform(depth, table, out), test.ShouldEqual, 3)

	expected := []mgl32.Vec3{{0, 0, -10}, {-0.1, 0.1, -1}, {-0.4, -0.2, -2}}
	for i, p := range out {
		for c := 0; c < 3; c++ {
			test.That(t, p[c], test.ShouldAlmostEqual, expected[i][c], 1e-6)
		}
	}
}

func TestTransformMissingSampleIsSentinel(t *testing.T) {
	pt := depthsensor.PointTransformer{DepthScale: 0.001, InvalidDepth: -10}
	for _, ray := range []mgl32.Vec2{{0, 0}, {0.5, -0.25}, {-3, 7}} {
		p := pt.Point(0, ray)
		test.That(t, p.Z(), test.ShouldEqual, float32(-10))
		test.That(t, p.X(), test.ShouldAlmostEqual, ray.X()*-10, 1e-6)
		test.That(t, p.Y(), test.ShouldAlmostEqual, -ray.Y()*-10, 1e-6)
	}
}

func TestTransformDepthIsMonotonic(t *testing.T) {
	pt := depthsensor.NewPointTransformer()
	ray := mgl32.Vec2{0.3, 0.2}
	prev := pt.Point(1, ray).Z()
	for d := 2; d <= 65535; d += 97 {
		z := pt.Point(uint16(d), ray).Z()
		test.That(t, z, test.ShouldBeLessThan, prev)
		prev = z
	}
}

func TestTransformPaddedTable(t *testing.T) {
	pt := depthsensor.NewPointTransformer()
	depth := []uint16{500, 500, 500, 500}
	table := make([]mgl32.Vec2, 7)
	for i := range table {
		table[i] = mgl32.Vec2{1, 1}
	}
	out := make([]mgl32.Vec3, len(table))

	test.That(t, pt.Transform(depth, table, out), test.ShouldEqual, 7)
	test.That(t, out[3].Z(), test.ShouldAlmostEqual, -0.5, 1e-6)
	// entries past the depth raster have no sample
	for _, p := range out[4:] {
		test.That(t, p, test.ShouldResemble, mgl32.Vec3{-10, 10, -10})
	}

	short := make([]mgl32.Vec3, 2)
	test.That(t, pt.Transform(depth, table, short), test.ShouldEqual, 2)
}
