package simdevice

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage"
	"go.viam.com/depthmesh/testutils/inject"
)

// counterSource fills every sample with the frame number.
type counterSource struct {
	openErr  error
	closed   bool
	rendered []uint64
}

func (s *counterSource) Open(ctx context.Context) error { return s.openErr }

func (s *counterSource) RenderDepth(seq uint64, dst *rimage.DepthMap) error {
	s.rendered = append(s.rendered, seq)
	data := dst.Data()
	for i := range data {
		data[i] = uint16(seq)
	}
	return nil
}

func (s *counterSource) RenderColor(seq uint64, dst *rimage.ColorFrame) error {
	pix := dst.Pix()
	for i := range pix {
		pix[i] = byte(seq)
	}
	return nil
}

func (s *counterSource) Close() error {
	s.closed = true
	return nil
}

func newTestDevice(t *testing.T, serial string, src Source, clk clock.Clock) *Device {
	t.Helper()
	dev, err := New(Config{
		Model:           "sim",
		Serial:          serial,
		ColorResolution: depthsensor.Resolution{Width: 2, Height: 2},
		DepthResolution: depthsensor.Resolution{Width: 3, Height: 1},
		FPS:             10,
		Mapper: &inject.BatchMapper{
			TableFunc: func() ([]mgl32.Vec2, error) { return make([]mgl32.Vec2, 3), nil },
		},
		Frames: src,
		Clock:  clk,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return dev
}

func TestFrameArrival(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	src := &counterSource{}
	dev := newTestDevice(t, "arrival", src, clk)

	_, err := dev.TryAcquireDepthFrame()
	test.That(t, errors.Is(err, depthsensor.ErrNotOpen), test.ShouldBeTrue)

	test.That(t, dev.Open(ctx), test.ShouldBeNil)
	defer func() {
		test.That(t, dev.Close(ctx), test.ShouldBeNil)
		test.That(t, src.closed, test.ShouldBeTrue)
	}()

	_, err = dev.TryAcquireDepthFrame()
	test.That(t, errors.Is(err, depthsensor.ErrFrameNotReady), test.ShouldBeTrue)

	clk.Add(100 * time.Millisecond)
	frame, err := dev.TryAcquireDepthFrame()
	test.That(t, err, test.ShouldBeNil)
	dst := make([]uint16, 3)
	test.That(t, frame.CopyDepth(dst), test.ShouldBeNil)
	test.That(t, dst, test.ShouldResemble, []uint16{1, 1, 1})
	test.That(t, frame.CopyDepth(make([]uint16, 2)), test.ShouldNotBeNil)
	frame.Release()
	frame.Release()
	test.That(t, frame.CopyDepth(dst), test.ShouldNotBeNil)

	_, err = dev.TryAcquireDepthFrame()
	test.That(t, errors.Is(err, depthsensor.ErrFrameNotReady), test.ShouldBeTrue)

	// three frames arrive while nobody polls; only the newest is delivered
	clk.Add(300 * time.Millisecond)
	frame, err = dev.TryAcquireDepthFrame()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.CopyDepth(dst), test.ShouldBeNil)
	test.That(t, dst, test.ShouldResemble, []uint16{4, 4, 4})
	frame.Release()

	test.That(t, src.rendered, test.ShouldResemble, []uint64{1, 4})
	stats := dev.Stats()
	test.That(t, stats.DepthDelivered, test.ShouldEqual, uint64(4))
	test.That(t, stats.DepthDropped, test.ShouldEqual, uint64(2))

	// the color stream is independent
	color, err := dev.TryAcquireColorFrame()
	test.That(t, err, test.ShouldBeNil)
	pix := make([]byte, 16)
	test.That(t, color.CopyBGRA(pix), test.ShouldBeNil)
	test.That(t, pix[0], test.ShouldEqual, byte(4))
	color.Release()
	test.That(t, dev.Stats().ColorDropped, test.ShouldEqual, uint64(3))
}

func TestFramePoolExhaustion(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	dev := newTestDevice(t, "pool", &counterSource{}, clk)
	test.That(t, dev.Open(ctx), test.ShouldBeNil)
	defer func() {
		test.That(t, dev.Close(ctx), test.ShouldBeNil)
	}()

	held := make([]depthsensor.DepthFrame, 0, PoolSize)
	for i := 0; i < PoolSize; i++ {
		clk.Add(100 * time.Millisecond)
		frame, err := dev.TryAcquireDepthFrame()
		test.That(t, err, test.ShouldBeNil)
		held = append(held, frame)
	}

	clk.Add(100 * time.Millisecond)
	_, err := dev.TryAcquireDepthFrame()
	test.That(t, errors.Is(err, depthsensor.ErrFramePoolExhausted), test.ShouldBeTrue)

	held[0].Release()
	frame, err := dev.TryAcquireDepthFrame()
	test.That(t, err, test.ShouldBeNil)
	frame.Release()
	held[1].Release()

	// released frames never run the pool dry
	for i := 0; i < 20; i++ {
		clk.Add(100 * time.Millisecond)
		frame, err := dev.TryAcquireDepthFrame()
		test.That(t, err, test.ShouldBeNil)
		frame.Release()
	}
}

func TestExclusiveOpen(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	first := newTestDevice(t, "exclusive", &counterSource{}, clk)
	second := newTestDevice(t, "exclusive", &counterSource{}, clk)

	test.That(t, first.Open(ctx), test.ShouldBeNil)
	test.That(t, errors.Is(first.Open(ctx), depthsensor.ErrDeviceClaimed), test.ShouldBeTrue)
	test.That(t, errors.Is(second.Open(ctx), depthsensor.ErrDeviceClaimed), test.ShouldBeTrue)

	res, err := second.DepthFrameDescription()
	test.That(t, errors.Is(err, depthsensor.ErrNotOpen), test.ShouldBeTrue)
	test.That(t, res.Pixels(), test.ShouldEqual, 0)

	test.That(t, first.Close(ctx), test.ShouldBeNil)
	test.That(t, second.Open(ctx), test.ShouldBeNil)
	res, err = second.DepthFrameDescription()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldResemble, depthsensor.Resolution{Width: 3, Height: 1})
	test.That(t, second.Close(ctx), test.ShouldBeNil)
	test.That(t, second.Close(ctx), test.ShouldBeNil)
}

func TestNotFound(t *testing.T) {
	dev := newTestDevice(t, "missing", &counterSource{openErr: depthsensor.ErrDeviceNotFound}, clock.NewMock())
	err := dev.Open(context.Background())
	test.That(t, errors.Is(err, depthsensor.ErrDeviceNotFound), test.ShouldBeTrue)
	test.That(t, dev.IsOpen(), test.ShouldBeFalse)

	_, err = dev.CoordinateMapper()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewValidates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := New(Config{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(Config{Frames: &counterSource{}, Mapper: &inject.BatchMapper{}}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
