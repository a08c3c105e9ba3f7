package depthsensor_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/testutils/inject"
)

func TestDeviceHandleRefCounting(t *testing.T) {
	ctx := context.Background()
	var opens, closes int
	backend := &inject.Backend{
		OpenFunc:  func(ctx context.Context) error { opens++; return nil },
		CloseFunc: func(ctx context.Context) error { closes++; return nil },
	}
	handle := depthsensor.NewDeviceHandle(backend, logging.NewTestLogger(t))
	test.That(t, handle.IsOpen(), test.ShouldBeFalse)

	test.That(t, handle.Retain(ctx), test.ShouldBeNil)
	test.That(t, handle.Retain(ctx), test.ShouldBeNil)
	test.That(t, opens, test.ShouldEqual, 1)
	test.That(t, handle.References(), test.ShouldEqual, 2)
	test.That(t, handle.IsOpen(), test.ShouldBeTrue)

	test.That(t, handle.Release(ctx), test.ShouldBeNil)
	test.That(t, closes, test.ShouldEqual, 0)
	test.That(t, handle.IsOpen(), test.ShouldBeTrue)

	test.That(t, handle.Release(ctx), test.ShouldBeNil)
	test.That(t, closes, test.ShouldEqual, 1)
	test.That(t, handle.IsOpen(), test.ShouldBeFalse)

	test.That(t, handle.Release(ctx), test.ShouldNotBeNil)

	// reopening after the last release is a fresh session
	test.That(t, handle.Retain(ctx), test.ShouldBeNil)
	test.That(t, opens, test.ShouldEqual, 2)
	test.That(t, handle.Release(ctx), test.ShouldBeNil)
}

func TestDeviceHandleClaim(t *testing.T) {
	ctx := context.Background()
	backend := &inject.Backend{
		OpenFunc:  func(ctx context.Context) error { return nil },
		CloseFunc: func(ctx context.Context) error { return nil },
	}
	handle := depthsensor.NewDeviceHandle(backend, logging.NewTestLogger(t))
	first, second := &depthsensor.Sensor{}, &depthsensor.Sensor{}

	test.That(t, handle.Claim(first), test.ShouldBeFalse)

	test.That(t, handle.Retain(ctx), test.ShouldBeNil)
	test.That(t, handle.Claim(first), test.ShouldBeTrue)
	test.That(t, handle.Claim(first), test.ShouldBeTrue)
	test.That(t, handle.Claim(second), test.ShouldBeFalse)
	test.That(t, handle.Owns(first), test.ShouldBeTrue)
	test.That(t, handle.Owns(second), test.ShouldBeFalse)

	handle.Unclaim(second)
	test.That(t, handle.Owns(first), test.ShouldBeTrue)
	handle.Unclaim(first)
	test.That(t, handle.Claim(second), test.ShouldBeTrue)

	test.That(t, handle.Release(ctx), test.ShouldBeNil)
	test.That(t, handle.Owns(second), test.ShouldBeFalse)
}

func TestDeviceHandleUnavailable(t *testing.T) {
	ctx := context.Background()
	for _, cause := range []error{
		depthsensor.ErrDeviceNotFound,
		depthsensor.ErrDeviceClaimed,
		errors.New("usb init failed"),
	} {
		backend := &inject.Backend{OpenFunc: func(ctx context.Context) error { return cause }}
		handle := depthsensor.NewDeviceHandle(backend, logging.NewTestLogger(t))

		err := handle.Retain(ctx)
		test.That(t, errors.Is(err, depthsensor.ErrDeviceUnavailable), test.ShouldBeTrue)
		test.That(t, errors.Is(err, cause), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, cause.Error())
		if cause != depthsensor.ErrDeviceClaimed {
			test.That(t, errors.Is(err, depthsensor.ErrDeviceClaimed), test.ShouldBeFalse)
		}
		test.That(t, handle.References(), test.ShouldEqual, 0)
		test.That(t, handle.IsOpen(), test.ShouldBeFalse)
	}
}
