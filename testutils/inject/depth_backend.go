package inject

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"go.viam.com/depthmesh/components/depthsensor"
)

// Backend is an injected depth sensor backend.
type Backend struct {
	depthsensor.Backend
	ModelFunc                 func() string
	OpenFunc                  func(ctx context.Context) error
	CloseFunc                 func(ctx context.Context) error
	ColorFrameDescriptionFunc func() (depthsensor.Resolution, error)
	DepthFrameDescriptionFunc func() (depthsensor.Resolution, error)
	TryAcquireColorFrameFunc  func() (depthsensor.ColorFrame, error)
	TryAcquireDepthFrameFunc  func() (depthsensor.DepthFrame, error)
	CoordinateMapperFunc      func() (depthsensor.CoordinateMapper, error)
}

// Model calls the injected Model or the real version.
func (b *Backend) Model() string {
	if b.ModelFunc == nil {
		if b.Backend == nil {
			return "injected"
		}
		return b.Backend.Model()
	}
	return b.ModelFunc()
}

// Open calls the injected Open or the real version.
func (b *Backend) Open(ctx context.Context) error {
	if b.OpenFunc == nil {
		return b.Backend.Open(ctx)
	}
	return b.OpenFunc(ctx)
}

// Close calls the injected Close or the real version.
func (b *Backend) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		return b.Backend.Close(ctx)
	}
	return b.CloseFunc(ctx)
}

// ColorFrameDescription calls the injected ColorFrameDescription or the real version.
func (b *Backend) ColorFrameDescription() (depthsensor.Resolution, error) {
	if b.ColorFrameDescriptionFunc == nil {
		return b.Backend.ColorFrameDescription()
	}
	return b.ColorFrameDescriptionFunc()
}

// DepthFrameDescription calls the injected DepthFrameDescription or the real version.
func (b *Backend) DepthFrameDescription() (depthsensor.Resolution, error) {
	if b.DepthFrameDescriptionFunc == nil {
		return b.Backend.DepthFrameDescription()
	}
	return b.DepthFrameDescriptionFunc()
}

// TryAcquireColorFrame calls the injected TryAcquireColorFrame or the real version.
func (b *Backend) TryAcquireColorFrame() (depthsensor.ColorFrame, error) {
	if b.TryAcquireColorFrameFunc == nil {
		return b.Backend.TryAcquireColorFrame()
	}
	return b.TryAcquireColorFrameFunc()
}

// TryAcquireDepthFrame calls the injected TryAcquireDepthFrame or the real version.
func (b *Backend) TryAcquireDepthFrame() (depthsensor.DepthFrame, error) {
	if b.TryAcquireDepthFrameFunc == nil {
		return b.Backend.TryAcquireDepthFrame()
	}
	return b.TryAcquireDepthFrameFunc()
}

// CoordinateMapper calls the injected CoordinateMapper or the real version.
func (b *Backend) CoordinateMapper() (depthsensor.CoordinateMapper, error) {
	if b.CoordinateMapperFunc == nil {
		return b.Backend.CoordinateMapper()
	}
	return b.CoordinateMapperFunc()
}

// ColorFrame is an injected color frame.
type ColorFrame struct {
	CopyBGRAFunc func(dst []byte) error
	ReleaseFunc  func()
}

// CopyBGRA calls the injected CopyBGRA.
func (f *ColorFrame) CopyBGRA(dst []byte) error {
	return f.CopyBGRAFunc(dst)
}

// Release calls the injected Release, if any.
func (f *ColorFrame) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}

// DepthFrame is an injected depth frame.
type DepthFrame struct {
	CopyDepthFunc func(dst []uint16) error
	ReleaseFunc   func()
}

// CopyDepth calls the injected CopyDepth.
func (f *DepthFrame) CopyDepth(dst []uint16) error {
	return f.CopyDepthFunc(dst)
}

// Release calls the injected Release, if any.
func (f *DepthFrame) Release() {
	if f.ReleaseFunc != nil {
		f.ReleaseFunc()
	}
}

// BatchMapper is an injected batched coordinate mapper.
type BatchMapper struct {
	TableFunc func() ([]mgl32.Vec2, error)
	MapFunc   func(depth []uint16, out []depthsensor.ColorSpacePoint) error
}

// DepthFrameToCameraSpaceTable calls the injected TableFunc.
func (m *BatchMapper) DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error) {
	return m.TableFunc()
}

// MapDepthFrameToColorSpace calls the injected MapFunc.
func (m *BatchMapper) MapDepthFrameToColorSpace(depth []uint16, out []depthsensor.ColorSpacePoint) error {
	return m.MapFunc(depth, out)
}

// PixelMapper is an injected per-pixel coordinate mapper.
type PixelMapper struct {
	TableFunc func() ([]mgl32.Vec2, error)
	MapFunc   func(x, y int, depth uint16) (int, int, error)
}

// DepthFrameToCameraSpaceTable calls the injected TableFunc.
func (m *PixelMapper) DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error) {
	return m.TableFunc()
}

// MapDepthPixelToColorPixel calls the injected MapFunc.
func (m *PixelMapper) MapDepthPixelToColorPixel(x, y int, depth uint16) (int, int, error) {
	return m.MapFunc(x, y, depth)
}
