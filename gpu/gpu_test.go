package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestByteViews(t *testing.T) {
	test.That(t, Uint16Bytes(nil), test.ShouldBeNil)
	test.That(t, Vec3Bytes(nil), test.ShouldBeNil)

	b := Uint16Bytes([]uint16{0x0102, 0x0304})
	test.That(t, len(b), test.ShouldEqual, 4)
	test.That(t, binary.NativeEndian.Uint16(b[2:]), test.ShouldEqual, uint16(0x0304))

	b = Uint32Bytes([]uint32{7, 9})
	test.That(t, len(b), test.ShouldEqual, 8)
	test.That(t, binary.NativeEndian.Uint32(b[4:]), test.ShouldEqual, uint32(9))

	b = Vec3Bytes([]mgl32.Vec3{{1, 2, 3}, {4, 5, -6}})
	test.That(t, len(b), test.ShouldEqual, 24)
	test.That(t, math.Float32frombits(binary.NativeEndian.Uint32(b[20:])), test.ShouldEqual, float32(-6))

	b = Vec2Bytes([]mgl32.Vec2{{0.5, 0.25}})
	test.That(t, b, test.ShouldResemble, Float32Bytes([]float32{0.5, 0.25}))
}

func TestFormat(t *testing.T) {
	test.That(t, FormatR16.BytesPerPixel(), test.ShouldEqual, 2)
	test.That(t, FormatRGB32F.BytesPerPixel(), test.ShouldEqual, 12)
	test.That(t, FormatBGRA8.BytesPerPixel(), test.ShouldEqual, 4)
	test.That(t, Format(9).BytesPerPixel(), test.ShouldEqual, 0)
	test.That(t, FormatBGRA8.String(), test.ShouldEqual, "bgra8")
	test.That(t, ElementArrayBuffer.String(), test.ShouldEqual, "element_array")

	err := NewSizeMismatchError(3, 4)
	test.That(t, errors.Is(err, ErrSizeMismatch), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "got 3 bytes, want 4")
}
