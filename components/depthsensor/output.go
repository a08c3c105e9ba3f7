package depthsensor

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/depthmesh/gpu"
)

// GridIndices triangulates a width x height grid of depth pixels, two triangles per cell,
// in row-major cell order.
func GridIndices(width, height int) []uint32 {
	if width < 2 || height < 2 {
		return nil
	}
	indices := make([]uint32, 0, (width-1)*(height-1)*6)
	for j := 0; j < height-1; j++ {
		for i := 0; i < width-1; i++ {
			i0 := uint32(width*j + i)
			i1 := i0 + 1
			i2 := i0 + uint32(width)
			i3 := i2 + 1
			indices = append(indices, i0, i1, i2, i3, i2, i1)
		}
	}
	return indices
}

// outputStage owns the GPU resources of one sensor.
type outputStage struct {
	sink gpu.Sink

	colorTex   gpu.TextureID
	depthTex   gpu.TextureID
	pointTex   gpu.TextureID
	coordBuf   gpu.BufferID
	indexBuf   gpu.BufferID
	indexCount int

	depthPixels int
	deleters    []func() error
}

// newOutputStage creates every texture and buffer and uploads the grid indices. On failure
// whatever was created is deleted again.
func newOutputStage(sink gpu.Sink, colorRes, depthRes Resolution) (_ *outputStage, err error) {
	o := &outputStage{sink: sink, depthPixels: depthRes.Pixels()}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, o.close())
		}
	}()

	if o.colorTex, err = o.texture(colorRes, gpu.FormatBGRA8); err != nil {
		return nil, errors.Wrap(err, "cannot create color texture")
	}
	if o.depthTex, err = o.texture(depthRes, gpu.FormatR16); err != nil {
		return nil, errors.Wrap(err, "cannot create depth texture")
	}
	if o.pointTex, err = o.texture(depthRes, gpu.FormatRGB32F); err != nil {
		return nil, errors.Wrap(err, "cannot create point texture")
	}
	if o.coordBuf, err = o.buffer(gpu.ArrayBuffer, depthRes.Pixels()*8); err != nil {
		return nil, errors.Wrap(err, "cannot create correspondence buffer")
	}

	indices := GridIndices(depthRes.Width, depthRes.Height)
	if len(indices) == 0 {
		return nil, errors.Errorf("depth resolution %v is too small to triangulate", depthRes)
	}
	if o.indexBuf, err = o.buffer(gpu.ElementArrayBuffer, len(indices)*4); err != nil {
		return nil, errors.Wrap(err, "cannot create index buffer")
	}
	if err = sink.UpdateBuffer(o.indexBuf, gpu.Uint32Bytes(indices)); err != nil {
		return nil, errors.Wrap(err, "cannot upload index buffer")
	}
	o.indexCount = len(indices)
	return o, nil
}

func (o *outputStage) texture(res Resolution, format gpu.Format) (gpu.TextureID, error) {
	id, err := o.sink.CreateTexture(res.Width, res.Height, format)
	if err != nil {
		return 0, err
	}
	o.deleters = append(o.deleters, func() error { return o.sink.DeleteTexture(id) })
	return id, nil
}

func (o *outputStage) buffer(target gpu.BufferTarget, size int) (gpu.BufferID, error) {
	id, err := o.sink.CreateBuffer(target, size)
	if err != nil {
		return 0, err
	}
	o.deleters = append(o.deleters, func() error { return o.sink.DeleteBuffer(id) })
	return id, nil
}

func (o *outputStage) uploadColor(bgra []byte) error {
	return errors.Wrap(o.sink.UpdateTexture(o.colorTex, bgra), "color upload failed")
}

// uploadDepth uploads the three rasters derived from one depth snapshot. Only the first
// width*height points are uploaded when the table is padded.
func (o *outputStage) uploadDepth(depth []uint16, points []mgl32.Vec3, coords []mgl32.Vec2) error {
	if err := o.sink.UpdateTexture(o.depthTex, gpu.Uint16Bytes(depth[:o.depthPixels])); err != nil {
		return errors.Wrap(err, "depth upload failed")
	}
	if err := o.sink.UpdateTexture(o.pointTex, gpu.Vec3Bytes(points[:o.depthPixels])); err != nil {
		return errors.Wrap(err, "point upload failed")
	}
	if err := o.sink.UpdateBuffer(o.coordBuf, gpu.Vec2Bytes(coords[:o.depthPixels])); err != nil {
		return errors.Wrap(err, "correspondence upload failed")
	}
	return nil
}

// close deletes resources in reverse creation order.
func (o *outputStage) close() error {
	var err error
	for i := len(o.deleters) - 1; i >= 0; i-- {
		err = multierr.Combine(err, o.deleters[i]())
	}
	o.deleters = nil
	return err
}
