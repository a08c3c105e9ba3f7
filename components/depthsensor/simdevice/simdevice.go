// Package simdevice simulates the hardware side of a depth sensor: an exclusive device,
// color and depth streams that produce frames on a clock, a two-deep frame queue that keeps
// only the newest frame and a fixed pool of frame buffers that runs dry when frames are not
// released. Generation specific backends wrap it with their resolutions and calibration.
package simdevice

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage"
)

// PoolSize is the number of frame buffers per stream.
const PoolSize = 2

// DefaultFPS is the frame rate used when none is configured.
const DefaultFPS = 30.0

// A Source renders the frames of a simulated device.
type Source interface {
	// Open fails with depthsensor.ErrDeviceNotFound when there is nothing to play.
	Open(ctx context.Context) error
	RenderDepth(seq uint64, dst *rimage.DepthMap) error
	RenderColor(seq uint64, dst *rimage.ColorFrame) error
	Close() error
}

// Config describes a simulated device.
type Config struct {
	Model  string
	Serial string

	ColorResolution depthsensor.Resolution
	DepthResolution depthsensor.Resolution
	FPS             float64

	Mapper depthsensor.CoordinateMapper
	Frames Source
	Clock  clock.Clock
}

// claimed stands in for the operating system's exclusive hold on a physical device: a serial
// can only be opened by one Device in the process at a time.
var (
	claimedMu sync.Mutex
	claimed   = map[string]bool{}
)

// Stats counts delivered and dropped frames per stream.
type Stats struct {
	ColorDelivered uint64
	ColorDropped   uint64
	DepthDelivered uint64
	DepthDropped   uint64
}

// Device is a simulated depth sensor. It implements depthsensor.Backend.
type Device struct {
	cfg    Config
	clock  clock.Clock
	period time.Duration
	logger logging.Logger

	mu    sync.Mutex
	open  bool
	color stream
	depth stream

	colorBufs [PoolSize]*rimage.ColorFrame
	depthBufs [PoolSize]*rimage.DepthMap
}

// New returns a closed device.
func New(cfg Config, logger logging.Logger) (*Device, error) {
	if cfg.Frames == nil {
		return nil, errors.New("simulated device needs a frame source")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("simulated device needs a coordinate mapper")
	}
	if cfg.ColorResolution.Pixels() <= 0 || cfg.DepthResolution.Pixels() <= 0 {
		return nil, errors.Errorf("invalid resolutions color=%v depth=%v", cfg.ColorResolution, cfg.DepthResolution)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Serial == "" {
		cfg.Serial = cfg.Model
	}
	d := &Device{
		cfg:    cfg,
		clock:  cfg.Clock,
		period: time.Duration(float64(time.Second) / cfg.FPS),
		logger: logger,
	}
	for i := 0; i < PoolSize; i++ {
		d.colorBufs[i] = rimage.NewColorFrame(cfg.ColorResolution.Width, cfg.ColorResolution.Height)
		d.depthBufs[i] = rimage.NewEmptyDepthMap(cfg.DepthResolution.Width, cfg.DepthResolution.Height)
	}
	return d, nil
}

// Model returns the configured model name.
func (d *Device) Model() string {
	return d.cfg.Model
}

// Open claims the device and starts both streams. A device can only be open once per
// serial number in a process.
func (d *Device) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	claimedMu.Lock()
	defer claimedMu.Unlock()
	if d.open || claimed[d.cfg.Serial] {
		return errors.Wrapf(depthsensor.ErrDeviceClaimed, "serial %q", d.cfg.Serial)
	}
	if err := d.cfg.Frames.Open(ctx); err != nil {
		return err
	}
	claimed[d.cfg.Serial] = true
	d.open = true

	now := d.clock.Now()
	d.color = stream{name: "color", start: now, period: d.period}
	d.depth = stream{name: "depth", start: now, period: d.period}
	d.logger.CDebugw(ctx, "simulated device opened", "serial", d.cfg.Serial, "period", d.period)
	return nil
}

// Close stops the streams and frees the device.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil
	}
	d.open = false
	claimedMu.Lock()
	delete(claimed, d.cfg.Serial)
	claimedMu.Unlock()
	d.logger.CDebugw(ctx, "simulated device closed",
		"serial", d.cfg.Serial,
		"color_dropped", d.color.dropped,
		"depth_dropped", d.depth.dropped)
	return d.cfg.Frames.Close()
}

// ColorFrameDescription returns the color stream resolution.
func (d *Device) ColorFrameDescription() (depthsensor.Resolution, error) {
	if !d.IsOpen() {
		return depthsensor.Resolution{}, depthsensor.ErrNotOpen
	}
	return d.cfg.ColorResolution, nil
}

// DepthFrameDescription returns the depth stream resolution.
func (d *Device) DepthFrameDescription() (depthsensor.Resolution, error) {
	if !d.IsOpen() {
		return depthsensor.Resolution{}, depthsensor.ErrNotOpen
	}
	return d.cfg.DepthResolution, nil
}

// CoordinateMapper returns the device calibration.
func (d *Device) CoordinateMapper() (depthsensor.CoordinateMapper, error) {
	if !d.IsOpen() {
		return nil, depthsensor.ErrNotOpen
	}
	return d.cfg.Mapper, nil
}

// IsOpen reports whether the device is open.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Stats returns the frame counters of the current session.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		ColorDelivered: d.color.delivered,
		ColorDropped:   d.color.dropped,
		DepthDelivered: d.depth.delivered,
		DepthDropped:   d.depth.dropped,
	}
}

// TryAcquireColorFrame returns the newest color frame, if one arrived since the last call.
func (d *Device) TryAcquireColorFrame() (depthsensor.ColorFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq, slot, err := d.next(&d.color)
	if err != nil {
		return nil, err
	}
	buf := d.colorBufs[slot]
	if err := d.cfg.Frames.RenderColor(seq, buf); err != nil {
		d.color.busy[slot] = false
		return nil, errors.Wrapf(err, "cannot produce color frame %d", seq)
	}
	return &colorFrame{frame{dev: d, stream: &d.color, slot: slot, seq: seq}, buf}, nil
}

// TryAcquireDepthFrame returns the newest depth frame, if one arrived since the last call.
func (d *Device) TryAcquireDepthFrame() (depthsensor.DepthFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seq, slot, err := d.next(&d.depth)
	if err != nil {
		return nil, err
	}
	buf := d.depthBufs[slot]
	if err := d.cfg.Frames.RenderDepth(seq, buf); err != nil {
		d.depth.busy[slot] = false
		return nil, errors.Wrapf(err, "cannot produce depth frame %d", seq)
	}
	return &depthFrame{frame{dev: d, stream: &d.depth, slot: slot, seq: seq}, buf}, nil
}

// next picks the newest arrived frame and a free buffer for it. Callers hold d.mu.
func (d *Device) next(s *stream) (uint64, int, error) {
	if !d.open {
		return 0, 0, depthsensor.ErrNotOpen
	}
	arrived := s.arrived(d.clock.Now())
	if arrived <= s.delivered {
		return 0, 0, depthsensor.ErrFrameNotReady
	}
	slot := s.freeSlot()
	if slot < 0 {
		return 0, 0, errors.Wrapf(depthsensor.ErrFramePoolExhausted, "%s stream", s.name)
	}
	s.dropped += arrived - s.delivered - 1
	s.delivered = arrived
	s.busy[slot] = true
	return arrived, slot, nil
}

// stream tracks frame arrival and buffer ownership for one sensor stream.
type stream struct {
	name      string
	start     time.Time
	period    time.Duration
	delivered uint64
	dropped   uint64
	busy      [PoolSize]bool
}

// arrived is the sequence number of the newest frame that has arrived by now. Frame n
// arrives at start + n*period.
func (s *stream) arrived(now time.Time) uint64 {
	elapsed := now.Sub(s.start)
	if elapsed < 0 || s.period <= 0 {
		return 0
	}
	return uint64(elapsed / s.period)
}

func (s *stream) freeSlot() int {
	for i, busy := range s.busy {
		if !busy {
			return i
		}
	}
	return -1
}

type frame struct {
	dev      *Device
	stream   *stream
	slot     int
	seq      uint64
	released bool
}

// Sequence returns the frame number within its stream.
func (f *frame) Sequence() uint64 {
	return f.seq
}

// Release returns the frame buffer to the pool. Extra calls are ignored.
func (f *frame) Release() {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	if f.released {
		return
	}
	f.released = true
	f.stream.busy[f.slot] = false
}

type colorFrame struct {
	frame
	data *rimage.ColorFrame
}

func (f *colorFrame) CopyBGRA(dst []byte) error {
	if f.released {
		return errors.New("color frame used after release")
	}
	return f.data.CopyTo(dst)
}

type depthFrame struct {
	frame
	data *rimage.DepthMap
}

func (f *depthFrame) CopyDepth(dst []uint16) error {
	if f.released {
		return errors.New("depth frame used after release")
	}
	src := f.data.Data()
	if len(dst) != len(src) {
		return errors.Errorf("depth destination holds %d samples, frame has %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
