package depthsensor_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/testutils/inject"
)

func TestMapCorrespondenceBatched(t *testing.T) {
	depthRes := depthsensor.Resolution{Width: 2, Height: 2}
	colorRes := depthsensor.Resolution{Width: 10, Height: 4}
	inf := float32(math.Inf(-1))

	mapper := &inject.BatchMapper{
		MapFunc: func(depth []uint16, out []depthsensor.ColorSpacePoint) error {
			test.That(t, depth, test.ShouldResemble, []uint16{0, 10, 20, 30})
			out[0] = depthsensor.ColorSpacePoint{X: inf, Y: inf}
			out[1] = depthsensor.ColorSpacePoint{X: 0, Y: 0}
			out[2] = depthsensor.ColorSpacePoint{X: 9, Y: 3}
			out[3] = depthsensor.ColorSpacePoint{X: 24.5, Y: -6.5}
			return nil
		},
	}
	scratch := make([]depthsensor.ColorSpacePoint, 4)
	out := make([]mgl32.Vec2, 4)
	err := depthsensor.MapCorrespondence(mapper, []uint16{0, 10, 20, 30}, depthRes, colorRes, scratch, out)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, math.IsInf(float64(out[0].X()), -1), test.ShouldBeTrue)
	test.That(t, math.IsInf(float64(out[0].Y()), -1), test.ShouldBeTrue)
	test.That(t, out[1].X(), test.ShouldAlmostEqual, 0.05, 1e-6)
	test.That(t, out[1].Y(), test.ShouldAlmostEqual, 0.125, 1e-6)
	test.That(t, out[2].X(), test.ShouldAlmostEqual, 0.95, 1e-6)
	test.That(t, out[2].Y(), test.ShouldAlmostEqual, 0.875, 1e-6)
	// outside the color image, not clamped
	test.That(t, out[3].X(), test.ShouldAlmostEqual, 2.5, 1e-6)
	test.That(t, out[3].Y(), test.ShouldAlmostEqual, -1.5, 1e-6)

	err = depthsensor.MapCorrespondence(mapper, []uint16{0, 10, 20, 30}, depthRes, colorRes, scratch[:2], out)
	test.That(t, err, test.ShouldNotBeNil)

	mapper.MapFunc = func(depth []uint16, out []depthsensor.ColorSpacePoint) error {
		return errors.New("mapper lost")
	}
	err = depthsensor.MapCorrespondence(mapper, []uint16{0, 10, 20, 30}, depthRes, colorRes, scratch, out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mapper lost")
}

func TestMapCorrespondencePerPixel(t *testing.T) {
	depthRes := depthsensor.Resolution{Width: 3, Height: 2}
	colorRes := depthsensor.Resolution{Width: 6, Height: 4}

	var calls int
	mapper := &inject.PixelMapper{
		MapFunc: func(x, y int, d uint16) (int, int, error) {
			calls++
			test.That(t, d, test.ShouldEqual, uint16(y*3+x))
			return 2 * x, 2 * y, nil
		},
	}
	out := make([]mgl32.Vec2, 6)
	err := depthsensor.MapCorrespondence(mapper, []uint16{0, 1, 2, 3, 4, 5}, depthRes, colorRes, nil, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, calls, test.ShouldEqual, 6)
	test.That(t, out[0], test.ShouldResemble, mgl32.Vec2{0.5 / 6, 0.5 / 4})
	test.That(t, out[5].X(), test.ShouldAlmostEqual, 4.5/6, 1e-6)
	test.That(t, out[5].Y(), test.ShouldAlmostEqual, 2.5/4, 1e-6)

	mapper.MapFunc = func(x, y int, d uint16) (int, int, error) {
		return 0, 0, errors.New("no calibration")
	}
	err = depthsensor.MapCorrespondence(mapper, []uint16{0, 1, 2, 3, 4, 5}, depthRes, colorRes, nil, out)
	test.That(t, err, test.ShouldNotBeNil)
}

type tableOnlyMapper struct{}

func (tableOnlyMapper) DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error) { return nil, nil }

func TestMapCorrespondenceRejects(t *testing.T) {
	res := depthsensor.Resolution{Width: 1, Height: 1}
	out := make([]mgl32.Vec2, 1)

	err := depthsensor.MapCorrespondence(tableOnlyMapper{}, []uint16{1}, res, res, nil, out)
	test.That(t, err, test.ShouldNotBeNil)

	err = depthsensor.MapCorrespondence(tableOnlyMapper{}, nil, res, res, nil, out)
	test.That(t, err, test.ShouldNotBeNil)

	err = depthsensor.MapCorrespondence(tableOnlyMapper{}, []uint16{1}, res, depthsensor.Resolution{}, nil, out)
	test.That(t, err, test.ShouldNotBeNil)
}
