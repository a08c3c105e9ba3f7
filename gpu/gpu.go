// Package gpu defines the resource sink that receives per-frame rasters. The sink owns
// textures and buffers on a graphics device; callers only ever create, fully overwrite and
// delete them.
package gpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// TextureID names a 2D texture created by a Sink.
type TextureID uint32

// BufferID names a buffer object created by a Sink.
type BufferID uint32

// Format is the layout of a texture's client data.
type Format int

const (
	// FormatR16 is one uint16 per texel, sampled as a single float channel.
	FormatR16 Format = iota
	// FormatRGB32F is three float32 per texel.
	FormatRGB32F
	// FormatBGRA8 is four bytes per texel in B, G, R, A order, sampled as RGBA.
	FormatBGRA8
)

// BytesPerPixel is the client-side size of one texel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR16:
		return 2
	case FormatRGB32F:
		return 12
	case FormatBGRA8:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatR16:
		return "r16"
	case FormatRGB32F:
		return "rgb32f"
	case FormatBGRA8:
		return "bgra8"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// BufferTarget is the binding point a buffer is created for.
type BufferTarget int

const (
	// ArrayBuffer holds per-vertex attributes.
	ArrayBuffer BufferTarget = iota
	// ElementArrayBuffer holds triangle indices.
	ElementArrayBuffer
)

func (t BufferTarget) String() string {
	switch t {
	case ArrayBuffer:
		return "array"
	case ElementArrayBuffer:
		return "element_array"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// A Sink creates and updates GPU resources. Updates always overwrite the whole resource.
// Sinks are used from a single goroutine.
type Sink interface {
	CreateTexture(width, height int, format Format) (TextureID, error)
	UpdateTexture(id TextureID, data []byte) error
	DeleteTexture(id TextureID) error

	CreateBuffer(target BufferTarget, size int) (BufferID, error)
	UpdateBuffer(id BufferID, data []byte) error
	DeleteBuffer(id BufferID) error
}

// ErrSizeMismatch is returned when an update does not cover the resource exactly.
var ErrSizeMismatch = errors.New("upload size does not match resource size")

// NewSizeMismatchError reports an update of got bytes to a resource of want bytes.
func NewSizeMismatchError(got, want int) error {
	return errors.Wrapf(ErrSizeMismatch, "got %d bytes, want %d", got, want)
}

// Uint16Bytes views s as bytes without copying.
func Uint16Bytes(s []uint16) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*2)
}

// Uint32Bytes views s as bytes without copying.
func Uint32Bytes(s []uint32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

// Float32Bytes views s as bytes without copying.
func Float32Bytes(s []float32) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}

// Vec2Bytes views s as tightly packed float32 pairs.
func Vec2Bytes(s []mgl32.Vec2) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
}

// Vec3Bytes views s as tightly packed float32 triples.
func Vec3Bytes(s []mgl32.Vec3) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*12)
}
