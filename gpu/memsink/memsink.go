// Package memsink implements a gpu.Sink in main memory. It backs headless capture and
// records every upload so tests can inspect what a device would have received.
package memsink

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/depthmesh/gpu"
	"go.viam.com/depthmesh/logging"
)

// Texture is the stored state of one texture.
type Texture struct {
	Width   int
	Height  int
	Format  gpu.Format
	Data    []byte
	Uploads int
}

// Buffer is the stored state of one buffer.
type Buffer struct {
	Target  gpu.BufferTarget
	Data    []byte
	Uploads int
}

// Sink keeps resources in maps keyed by id. Ids start at 1 so zero is never valid.
type Sink struct {
	logger logging.Logger

	mu       sync.Mutex
	nextID   uint32
	textures map[gpu.TextureID]*Texture
	buffers  map[gpu.BufferID]*Buffer
}

// New returns an empty sink.
func New(logger logging.Logger) *Sink {
	return &Sink{
		logger:   logger,
		textures: map[gpu.TextureID]*Texture{},
		buffers:  map[gpu.BufferID]*Buffer{},
	}
}

// CreateTexture allocates a zeroed texture.
func (s *Sink) CreateTexture(width, height int, format gpu.Format) (gpu.TextureID, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("invalid texture size %dx%d", width, height)
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return 0, errors.Errorf("unsupported texture format %v", format)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := gpu.TextureID(s.nextID)
	s.textures[id] = &Texture{Width: width, Height: height, Format: format, Data: make([]byte, width*height*bpp)}
	s.logger.Debugw("created texture", "id", id, "width", width, "height", height, "format", format)
	return id, nil
}

// UpdateTexture overwrites the texture's contents.
func (s *Sink) UpdateTexture(id gpu.TextureID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tex, ok := s.textures[id]
	if !ok {
		return errors.Errorf("no texture with id %d", id)
	}
	if len(data) != len(tex.Data) {
		return gpu.NewSizeMismatchError(len(data), len(tex.Data))
	}
	copy(tex.Data, data)
	tex.Uploads++
	return nil
}

// DeleteTexture frees a texture.
func (s *Sink) DeleteTexture(id gpu.TextureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.textures[id]; !ok {
		return errors.Errorf("no texture with id %d", id)
	}
	delete(s.textures, id)
	return nil
}

// CreateBuffer allocates a zeroed buffer of size bytes.
func (s *Sink) CreateBuffer(target gpu.BufferTarget, size int) (gpu.BufferID, error) {
	if size <= 0 {
		return 0, errors.Errorf("invalid buffer size %d", size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := gpu.BufferID(s.nextID)
	s.buffers[id] = &Buffer{Target: target, Data: make([]byte, size)}
	s.logger.Debugw("created buffer", "id", id, "target", target, "size", size)
	return id, nil
}

// UpdateBuffer overwrites the buffer's contents.
func (s *Sink) UpdateBuffer(id gpu.BufferID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[id]
	if !ok {
		return errors.Errorf("no buffer with id %d", id)
	}
	if len(data) != len(buf.Data) {
		return gpu.NewSizeMismatchError(len(data), len(buf.Data))
	}
	copy(buf.Data, data)
	buf.Uploads++
	return nil
}

// DeleteBuffer frees a buffer.
func (s *Sink) DeleteBuffer(id gpu.BufferID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buffers[id]; !ok {
		return errors.Errorf("no buffer with id %d", id)
	}
	delete(s.buffers, id)
	return nil
}

// Texture returns a copy of the texture's state.
func (s *Sink) Texture(id gpu.TextureID) (Texture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tex, ok := s.textures[id]
	if !ok {
		return Texture{}, false
	}
	out := *tex
	out.Data = append([]byte(nil), tex.Data...)
	return out, true
}

// Buffer returns a copy of the buffer's state.
func (s *Sink) Buffer(id gpu.BufferID) (Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[id]
	if !ok {
		return Buffer{}, false
	}
	out := *buf
	out.Data = append([]byte(nil), buf.Data...)
	return out, true
}

// Uploads is the total number of updates applied to live resources.
func (s *Sink) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, tex := range s.textures {
		n += tex.Uploads
	}
	for _, buf := range s.buffers {
		n += buf.Uploads
	}
	return n
}

// Live returns the number of textures and buffers not yet deleted.
func (s *Sink) Live() (textures, buffers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.textures), len(s.buffers)
}
