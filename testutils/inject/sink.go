package inject

import (
	"go.viam.com/depthmesh/gpu"
)

// Sink is an injected GPU resource sink.
type Sink struct {
	gpu.Sink
	CreateTextureFunc func(width, height int, format gpu.Format) (gpu.TextureID, error)
	UpdateTextureFunc func(id gpu.TextureID, data []byte) error
	DeleteTextureFunc func(id gpu.TextureID) error
	CreateBufferFunc  func(target gpu.BufferTarget, size int) (gpu.BufferID, error)
	UpdateBufferFunc  func(id gpu.BufferID, data []byte) error
	DeleteBufferFunc  func(id gpu.BufferID) error
}

// CreateTexture calls the injected CreateTexture or the real version.
func (s *Sink) CreateTexture(width, height int, format gpu.Format) (gpu.TextureID, error) {
	if s.CreateTextureFunc == nil {
		return s.Sink.CreateTexture(width, height, format)
	}
	return s.CreateTextureFunc(width, height, format)
}

// UpdateTexture calls the injected UpdateTexture or the real version.
func (s *Sink) UpdateTexture(id gpu.TextureID, data []byte) error {
	if s.UpdateTextureFunc == nil {
		return s.Sink.UpdateTexture(id, data)
	}
	return s.UpdateTextureFunc(id, data)
}

// DeleteTexture calls the injected DeleteTexture or the real version.
func (s *Sink) DeleteTexture(id gpu.TextureID) error {
	if s.DeleteTextureFunc == nil {
		return s.Sink.DeleteTexture(id)
	}
	return s.DeleteTextureFunc(id)
}

// CreateBuffer calls the injected CreateBuffer or the real version.
func (s *Sink) CreateBuffer(target gpu.BufferTarget, size int) (gpu.BufferID, error) {
	if s.CreateBufferFunc == nil {
		return s.Sink.CreateBuffer(target, size)
	}
	return s.CreateBufferFunc(target, size)
}

// UpdateBuffer calls the injected UpdateBuffer or the real version.
func (s *Sink) UpdateBuffer(id gpu.BufferID, data []byte) error {
	if s.UpdateBufferFunc == nil {
		return s.Sink.UpdateBuffer(id, data)
	}
	return s.UpdateBufferFunc(id, data)
}

// DeleteBuffer calls the injected DeleteBuffer or the real version.
func (s *Sink) DeleteBuffer(id gpu.BufferID) error {
	if s.DeleteBufferFunc == nil {
		return s.Sink.DeleteBuffer(id)
	}
	return s.DeleteBufferFunc(id)
}
