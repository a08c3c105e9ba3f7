// Package depthsensor turns a Kinect-class depth sensor into GPU-resident geometry. A Sensor
// polls a Backend for color and depth frames, back-projects depth into camera-space points,
// maps every depth pixel to a color texture coordinate and uploads the results to a gpu.Sink.
package depthsensor

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrDeviceNotFound is returned by Backend.Open when no device is attached.
	ErrDeviceNotFound = errors.New("depth sensor not found")
	// ErrDeviceClaimed is returned by Backend.Open when the device is held by another session.
	ErrDeviceClaimed = errors.New("depth sensor already claimed")
	// ErrDeviceUnavailable marks every failure to obtain a live session. A sensor that hits
	// it stays inactive.
	ErrDeviceUnavailable = errors.New("depth sensor unavailable")
	// ErrFrameNotReady means no new frame arrived since the last acquisition.
	ErrFrameNotReady = errors.New("no new frame")
	// ErrFramePoolExhausted means every frame buffer of a stream is still held by the caller.
	ErrFramePoolExhausted = errors.New("frame pool exhausted")
	// ErrNotOpen is returned by backend operations that need an open session.
	ErrNotOpen = errors.New("depth sensor is not open")
)

// NewDeviceUnavailableError marks cause as a device-unavailable failure. Both
// ErrDeviceUnavailable and cause stay visible to errors.Is.
func NewDeviceUnavailableError(cause error) error {
	return multierr.Combine(ErrDeviceUnavailable, cause)
}

// Resolution is the fixed size of a stream.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns Width*Height.
func (r Resolution) Pixels() int {
	return r.Width * r.Height
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// A ColorFrame is one color image owned by the backend until Release is called.
type ColorFrame interface {
	// CopyBGRA copies the image into dst as B, G, R, A bytes. dst must hold exactly
	// width*height*4 bytes; dst is untouched on error.
	CopyBGRA(dst []byte) error
	Release()
}

// A DepthFrame is one depth raster owned by the backend until Release is called.
type DepthFrame interface {
	// CopyDepth copies row-major samples into dst, which must hold exactly width*height
	// values; dst is untouched on error.
	CopyDepth(dst []uint16) error
	Release()
}

// A Backend is one generation of depth sensor hardware. Acquisition never blocks: it returns
// ErrFrameNotReady when nothing new has arrived.
type Backend interface {
	Model() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	ColorFrameDescription() (Resolution, error)
	DepthFrameDescription() (Resolution, error)

	TryAcquireColorFrame() (ColorFrame, error)
	TryAcquireDepthFrame() (DepthFrame, error)

	// CoordinateMapper returns the calibration of the open session. The returned value also
	// implements BatchColorMapper or PixelColorMapper.
	CoordinateMapper() (CoordinateMapper, error)
}

// A CoordinateMapper exposes a device's calibration.
type CoordinateMapper interface {
	// DepthFrameToCameraSpaceTable returns, per depth pixel in row-major order, the (x, y)
	// factors that turn a depth into a camera-space position. The table may hold more
	// entries than there are pixels.
	DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error)
}

// ColorSpacePoint is a sub-pixel position in the color image.
type ColorSpacePoint struct {
	X, Y float32
}

// BatchColorMapper maps a whole depth frame to color space in one call. Samples without a
// reading map to negative infinity.
type BatchColorMapper interface {
	CoordinateMapper
	MapDepthFrameToColorSpace(depth []uint16, out []ColorSpacePoint) error
}

// PixelColorMapper maps one depth pixel at a time to an integer color pixel.
type PixelColorMapper interface {
	CoordinateMapper
	MapDepthPixelToColorPixel(x, y int, depth uint16) (int, int, error)
}
