package memsink

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthmesh/gpu"
	"go.viam.com/depthmesh/logging"
)

func TestTextureLifecycle(t *testing.T) {
	sink := New(logging.NewTestLogger(t))

	id, err := sink.CreateTexture(3, 2, gpu.FormatR16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldNotEqual, gpu.TextureID(0))

	tex, ok := sink.Texture(id)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, len(tex.Data), test.ShouldEqual, 12)
	test.That(t, tex.Uploads, test.ShouldEqual, 0)

	depth := []uint16{1, 2, 3, 4, 5, 0xffff}
	test.That(t, sink.UpdateTexture(id, gpu.Uint16Bytes(depth)), test.ShouldBeNil)
	tex, _ = sink.Texture(id)
	test.That(t, tex.Uploads, test.ShouldEqual, 1)
	test.That(t, tex.Data, test.ShouldResemble, gpu.Uint16Bytes(depth))

	err = sink.UpdateTexture(id, gpu.Uint16Bytes(depth[:5]))
	test.That(t, errors.Is(err, gpu.ErrSizeMismatch), test.ShouldBeTrue)
	tex, _ = sink.Texture(id)
	test.That(t, tex.Uploads, test.ShouldEqual, 1)

	test.That(t, sink.DeleteTexture(id), test.ShouldBeNil)
	test.That(t, sink.DeleteTexture(id), test.ShouldNotBeNil)
	test.That(t, sink.UpdateTexture(id, gpu.Uint16Bytes(depth)), test.ShouldNotBeNil)

	_, err = sink.CreateTexture(0, 2, gpu.FormatBGRA8)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = sink.CreateTexture(1, 1, gpu.Format(42))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBufferLifecycle(t *testing.T) {
	sink := New(logging.NewTestLogger(t))

	id, err := sink.CreateBuffer(gpu.ArrayBuffer, 16)
	test.That(t, err, test.ShouldBeNil)

	coords := []mgl32.Vec2{{0.25, 0.5}, {1, -1}}
	test.That(t, sink.UpdateBuffer(id, gpu.Vec2Bytes(coords)), test.ShouldBeNil)
	test.That(t, sink.UpdateBuffer(id, gpu.Vec2Bytes(coords)), test.ShouldBeNil)

	buf, ok := sink.Buffer(id)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, buf.Target, test.ShouldEqual, gpu.ArrayBuffer)
	test.That(t, buf.Uploads, test.ShouldEqual, 2)
	test.That(t, buf.Data, test.ShouldResemble, gpu.Float32Bytes([]float32{0.25, 0.5, 1, -1}))
	test.That(t, sink.Uploads(), test.ShouldEqual, 2)

	err = sink.UpdateBuffer(id, make([]byte, 8))
	test.That(t, errors.Is(err, gpu.ErrSizeMismatch), test.ShouldBeTrue)

	textures, buffers := sink.Live()
	test.That(t, textures, test.ShouldEqual, 0)
	test.That(t, buffers, test.ShouldEqual, 1)

	test.That(t, sink.DeleteBuffer(id), test.ShouldBeNil)
	_, ok = sink.Buffer(id)
	test.That(t, ok, test.ShouldBeFalse)

	_, err = sink.CreateBuffer(gpu.ElementArrayBuffer, 0)
	test.That(t, err, test.ShouldNotBeNil)
}
