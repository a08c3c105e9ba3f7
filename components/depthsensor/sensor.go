package depthsensor

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/depthmesh/gpu"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage"
)

// Stats counts what a sensor has uploaded.
type Stats struct {
	ColorFrames       uint64
	DepthFrames       uint64
	AcquisitionErrors uint64
}

// A Sensor is one logical owner of a depth device. Only the sensor that claimed the device's
// session is active; an inactive sensor never touches the sink. A Sensor and its sink are
// used from a single goroutine.
type Sensor struct {
	name        string
	handle      *DeviceHandle
	sink        gpu.Sink
	logger      logging.Logger
	transformer PointTransformer

	retained    bool
	claimed     bool
	inactiveErr error
	closed      bool

	colorRes Resolution
	depthRes Resolution
	mapper   CoordinateMapper
	table    []mgl32.Vec2

	color        *rimage.ColorFrame
	colorPending *rimage.ColorFrame
	depth        *rimage.DepthMap
	depthPending *rimage.DepthMap
	points        []mgl32.Vec3
	pointsPending []mgl32.Vec3
	coords        []mgl32.Vec2
	coordsPending []mgl32.Vec2
	colorSpace    []ColorSpacePoint

	output *outputStage

	colorFrames atomic.Uint64
	depthFrames atomic.Uint64
	acqErrors   atomic.Uint64
}

// NewSensor attaches a sensor to handle. If the device cannot be opened or is already claimed
// by another sensor, the returned sensor is inactive and err is nil. Failures after the
// session is claimed (stream description, calibration, GPU resources) are fatal: everything
// acquired so far is released and an error is returned.
func NewSensor(
	ctx context.Context,
	name string,
	handle *DeviceHandle,
	sink gpu.Sink,
	transformer PointTransformer,
	logger logging.Logger,
) (_ *Sensor, err error) {
	s := &Sensor{
		name:        name,
		handle:      handle,
		sink:        sink,
		logger:      logger,
		transformer: transformer,
	}

	if err := handle.Retain(ctx); err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		s.inactiveErr = err
		logger.CDebugw(ctx, "sensor inactive", "name", name, "reason", err)
		return s, nil
	}
	s.retained = true

	if !handle.Claim(s) {
		s.inactiveErr = errors.Wrap(ErrDeviceUnavailable, "session claimed by another sensor")
		logger.CDebugw(ctx, "sensor inactive", "name", name, "reason", s.inactiveErr)
		return s, nil
	}
	s.claimed = true

	defer func() {
		if err != nil {
			err = multierr.Combine(err, s.Close(ctx))
		}
	}()

	backend := handle.Backend()
	if s.colorRes, err = backend.ColorFrameDescription(); err != nil {
		return nil, errors.Wrap(err, "cannot open color stream")
	}
	if s.depthRes, err = backend.DepthFrameDescription(); err != nil {
		return nil, errors.Wrap(err, "cannot open depth stream")
	}
	if s.colorRes.Pixels() <= 0 || s.depthRes.Pixels() <= 0 {
		return nil, errors.Errorf("invalid stream resolutions color=%v depth=%v", s.colorRes, s.depthRes)
	}
	if s.mapper, err = backend.CoordinateMapper(); err != nil {
		return nil, errors.Wrap(err, "cannot get coordinate mapper")
	}
	if s.table, err = s.mapper.DepthFrameToCameraSpaceTable(); err != nil {
		return nil, errors.Wrap(err, "cannot get depth to camera space table")
	}
	if len(s.table) < s.depthRes.Pixels() {
		logger.Warnw("depth table shorter than depth frame, trailing pixels stay at the origin",
			"entries", len(s.table), "pixels", s.depthRes.Pixels())
	}

	s.allocate()
	if s.output, err = newOutputStage(sink, s.colorRes, s.depthRes); err != nil {
		return nil, err
	}

	logger.CDebugw(ctx, "sensor active",
		"name", name,
		"model", backend.Model(),
		"color", s.colorRes.String(),
		"depth", s.depthRes.String(),
		"table_entries", len(s.table))
	return s, nil
}

// allocate creates every raster and scratch buffer once for the life of the sensor.
func (s *Sensor) allocate() {
	n := s.depthRes.Pixels()
	s.color = rimage.NewColorFrame(s.colorRes.Width, s.colorRes.Height)
	s.colorPending = rimage.NewColorFrame(s.colorRes.Width, s.colorRes.Height)
	s.depth = rimage.NewEmptyDepthMap(s.depthRes.Width, s.depthRes.Height)
	s.depthPending = rimage.NewEmptyDepthMap(s.depthRes.Width, s.depthRes.Height)
	pointCount := len(s.table)
	if pointCount < n {
		pointCount = n
	}
	s.points = make([]mgl32.Vec3, pointCount)
	s.pointsPending = make([]mgl32.Vec3, pointCount)
	s.coords = make([]mgl32.Vec2, n)
	s.coordsPending = make([]mgl32.Vec2, n)
	if _, ok := s.mapper.(BatchColorMapper); ok {
		s.colorSpace = make([]ColorSpacePoint, n)
	}
}

// PointTransformer returns the transformer that produces Points.
func (s *Sensor) PointTransformer() PointTransformer {
	return s.transformer
}

// Name returns the name the sensor was created with.
func (s *Sensor) Name() string {
	return s.name
}

// IsActive reports whether the sensor holds the live device session.
func (s *Sensor) IsActive() bool {
	return s.claimed && !s.closed && s.output != nil && s.handle.Owns(s)
}

// InactiveReason explains why a sensor is inactive, or returns nil.
func (s *Sensor) InactiveReason() error {
	if s.closed {
		return errors.New("sensor closed")
	}
	return s.inactiveErr
}

// ColorResolution returns the color stream size, or zero if inactive.
func (s *Sensor) ColorResolution() Resolution {
	return s.colorRes
}

// DepthResolution returns the depth stream size, or zero if inactive.
func (s *Sensor) DepthResolution() Resolution {
	return s.depthRes
}

// AcquireColor uploads the newest color frame if one arrived. It returns false when there is
// nothing new or the frame could not be read; the previous texture contents stay in place.
func (s *Sensor) AcquireColor(ctx context.Context) bool {
	if !s.IsActive() {
		return false
	}
	frame, err := s.handle.Backend().TryAcquireColorFrame()
	if err != nil {
		s.acquisitionFailed(ctx, "color", err)
		return false
	}
	defer frame.Release()

	if err := frame.CopyBGRA(s.colorPending.Pix()); err != nil {
		s.acquisitionFailed(ctx, "color", err)
		return false
	}
	if err := s.output.uploadColor(s.colorPending.Pix()); err != nil {
		s.acquisitionFailed(ctx, "color", err)
		return false
	}
	s.color, s.colorPending = s.colorPending, s.color
	s.colorFrames.Add(1)
	return true
}

// AcquireDepth takes the newest depth frame if one arrived, derives points and color
// correspondence from it and uploads all three rasters. It returns false when there is
// nothing new or any step failed; the previous rasters stay in place on both the CPU and the
// GPU side. Everything is derived into pending buffers that only become current once all
// three uploads succeeded.
func (s *Sensor) AcquireDepth(ctx context.Context) bool {
	if !s.IsActive() {
		return false
	}
	frame, err := s.handle.Backend().TryAcquireDepthFrame()
	if err != nil {
		s.acquisitionFailed(ctx, "depth", err)
		return false
	}
	defer frame.Release()

	snapshot := s.depthPending.Data()
	if err := frame.CopyDepth(snapshot); err != nil {
		s.acquisitionFailed(ctx, "depth", err)
		return false
	}
	if err := MapCorrespondence(s.mapper, snapshot, s.depthRes, s.colorRes, s.colorSpace, s.coordsPending); err != nil {
		s.acquisitionFailed(ctx, "depth", err)
		return false
	}
	s.transformer.Transform(snapshot, s.table, s.pointsPending)
	if err := s.output.uploadDepth(snapshot, s.pointsPending, s.coordsPending); err != nil {
		// an upload after the first may have failed; put the last good snapshot back
		if restoreErr := s.output.uploadDepth(s.depth.Data(), s.points, s.coords); restoreErr != nil {
			err = multierr.Combine(err, errors.Wrap(restoreErr, "cannot restore previous depth rasters"))
		}
		s.acquisitionFailed(ctx, "depth", err)
		return false
	}
	s.depth, s.depthPending = s.depthPending, s.depth
	s.points, s.pointsPending = s.pointsPending, s.points
	s.coords, s.coordsPending = s.coordsPending, s.coords
	s.depthFrames.Add(1)
	return true
}

func (s *Sensor) acquisitionFailed(ctx context.Context, stream string, err error) {
	if errors.Is(err, ErrFrameNotReady) {
		return
	}
	s.acqErrors.Add(1)
	s.logger.CDebugw(ctx, "frame acquisition failed", "stream", stream, "error", err)
}

// Stats returns upload counters.
func (s *Sensor) Stats() Stats {
	return Stats{
		ColorFrames:       s.colorFrames.Load(),
		DepthFrames:       s.depthFrames.Load(),
		AcquisitionErrors: s.acqErrors.Load(),
	}
}

// Color returns the last uploaded color frame. It is overwritten by later acquisitions.
func (s *Sensor) Color() *rimage.ColorFrame {
	return s.color
}

// Depth returns the depth snapshot behind the last uploaded rasters.
func (s *Sensor) Depth() *rimage.DepthMap {
	return s.depth
}

// Points returns the camera-space points of the last depth snapshot, one per table entry.
func (s *Sensor) Points() []mgl32.Vec3 {
	return s.points
}

// Correspondence returns the normalized color coordinates of the last depth snapshot.
func (s *Sensor) Correspondence() []mgl32.Vec2 {
	return s.coords
}

// ColorTexture returns the BGRA color texture.
func (s *Sensor) ColorTexture() gpu.TextureID {
	if s.output == nil {
		return 0
	}
	return s.output.colorTex
}

// DepthTexture returns the raw depth texture.
func (s *Sensor) DepthTexture() gpu.TextureID {
	if s.output == nil {
		return 0
	}
	return s.output.depthTex
}

// PointTexture returns the camera-space point texture.
func (s *Sensor) PointTexture() gpu.TextureID {
	if s.output == nil {
		return 0
	}
	return s.output.pointTex
}

// CoordBuffer returns the per-pixel color coordinate buffer.
func (s *Sensor) CoordBuffer() gpu.BufferID {
	if s.output == nil {
		return 0
	}
	return s.output.coordBuf
}

// IndexBuffer returns the grid triangle index buffer.
func (s *Sensor) IndexBuffer() gpu.BufferID {
	if s.output == nil {
		return 0
	}
	return s.output.indexBuf
}

// IndexCount returns the number of indices in IndexBuffer.
func (s *Sensor) IndexCount() int {
	if s.output == nil {
		return 0
	}
	return s.output.indexCount
}

// Close deletes the sensor's GPU resources, gives up its claim and releases its reference on
// the device, in that order. It is safe to call more than once.
func (s *Sensor) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.output != nil {
		err = multierr.Combine(err, s.output.close())
		s.output = nil
	}
	if s.claimed {
		s.handle.Unclaim(s)
	}
	if s.retained {
		err = multierr.Combine(err, s.handle.Release(ctx))
	}
	return err
}
