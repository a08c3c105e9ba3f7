// Package glsink implements a gpu.Sink on an OpenGL 4.1 core context. All methods must be
// called on the goroutine (locked OS thread) that owns the current context.
package glsink

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/gpu"
	"go.viam.com/depthmesh/logging"
)

type texture struct {
	width, height int
	format        gpu.Format
	size          int
}

type buffer struct {
	target uint32
	size   int
}

// Sink issues GL calls against the current context.
type Sink struct {
	logger   logging.Logger
	textures map[gpu.TextureID]texture
	buffers  map[gpu.BufferID]buffer
}

// New loads GL entry points for the current context.
func New(logger logging.Logger) (*Sink, error) {
	if err := gl.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize OpenGL")
	}
	logger.Infow("OpenGL ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))
	// depth rows are not 4-byte aligned for every width
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	return &Sink{
		logger:   logger,
		textures: map[gpu.TextureID]texture{},
		buffers:  map[gpu.BufferID]buffer{},
	}, nil
}

// texImageFormat returns the internal format, client format and client type for f.
func texImageFormat(f gpu.Format) (int32, uint32, uint32, error) {
	switch f {
	case gpu.FormatR16:
		return gl.R32F, gl.RED, gl.UNSIGNED_SHORT, nil
	case gpu.FormatRGB32F:
		return gl.RGB32F, gl.RGB, gl.FLOAT, nil
	case gpu.FormatBGRA8:
		return gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE, nil
	default:
		return 0, 0, 0, errors.Errorf("unsupported texture format %v", f)
	}
}

func bufferTarget(t gpu.BufferTarget) (uint32, uint32, error) {
	switch t {
	case gpu.ArrayBuffer:
		return gl.ARRAY_BUFFER, gl.DYNAMIC_DRAW, nil
	case gpu.ElementArrayBuffer:
		return gl.ELEMENT_ARRAY_BUFFER, gl.STATIC_DRAW, nil
	default:
		return 0, 0, errors.Errorf("unsupported buffer target %v", t)
	}
}

func checkError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return errors.Errorf("%s: gl error 0x%x", op, code)
	}
	return nil
}

// CreateTexture allocates storage for a clamped, linearly filtered 2D texture.
func (s *Sink) CreateTexture(width, height int, format gpu.Format) (gpu.TextureID, error) {
	internal, clientFormat, clientType, err := texImageFormat(format)
	if err != nil {
		return 0, err
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(width), int32(height), 0, clientFormat, clientType, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := checkError("create texture"); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	s.textures[gpu.TextureID(id)] = texture{
		width:  width,
		height: height,
		format: format,
		size:   width * height * format.BytesPerPixel(),
	}
	return gpu.TextureID(id), nil
}

// UpdateTexture replaces the full image of a texture.
func (s *Sink) UpdateTexture(id gpu.TextureID, data []byte) error {
	tex, ok := s.textures[id]
	if !ok {
		return errors.Errorf("no texture with id %d", id)
	}
	if len(data) != tex.size {
		return gpu.NewSizeMismatchError(len(data), tex.size)
	}
	_, clientFormat, clientType, err := texImageFormat(tex.format)
	if err != nil {
		return err
	}
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(tex.width), int32(tex.height), clientFormat, clientType, gl.Ptr(&data[0]))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return checkError("update texture")
}

// DeleteTexture frees a texture.
func (s *Sink) DeleteTexture(id gpu.TextureID) error {
	if _, ok := s.textures[id]; !ok {
		return errors.Errorf("no texture with id %d", id)
	}
	raw := uint32(id)
	gl.DeleteTextures(1, &raw)
	delete(s.textures, id)
	return checkError("delete texture")
}

// CreateBuffer allocates an uninitialized buffer of size bytes.
func (s *Sink) CreateBuffer(target gpu.BufferTarget, size int) (gpu.BufferID, error) {
	glTarget, usage, err := bufferTarget(target)
	if err != nil {
		return 0, err
	}
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(glTarget, id)
	gl.BufferData(glTarget, size, nil, usage)
	gl.BindBuffer(glTarget, 0)
	if err := checkError("create buffer"); err != nil {
		gl.DeleteBuffers(1, &id)
		return 0, err
	}
	s.buffers[gpu.BufferID(id)] = buffer{target: glTarget, size: size}
	return gpu.BufferID(id), nil
}

// UpdateBuffer replaces the full contents of a buffer.
func (s *Sink) UpdateBuffer(id gpu.BufferID, data []byte) error {
	buf, ok := s.buffers[id]
	if !ok {
		return errors.Errorf("no buffer with id %d", id)
	}
	if len(data) != buf.size {
		return gpu.NewSizeMismatchError(len(data), buf.size)
	}
	gl.BindBuffer(buf.target, uint32(id))
	gl.BufferSubData(buf.target, 0, len(data), gl.Ptr(&data[0]))
	gl.BindBuffer(buf.target, 0)
	return checkError("update buffer")
}

// DeleteBuffer frees a buffer.
func (s *Sink) DeleteBuffer(id gpu.BufferID) error {
	if _, ok := s.buffers[id]; !ok {
		return errors.Errorf("no buffer with id %d", id)
	}
	raw := uint32(id)
	gl.DeleteBuffers(1, &raw)
	delete(s.buffers, id)
	return checkError("delete buffer")
}
