// Package kinectv1 implements the first generation Kinect: 640x480 depth and color streams
// and a calibration that maps one depth pixel at a time onto an integer color pixel.
package kinectv1

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/components/depthsensor/framesource"
	"go.viam.com/depthmesh/components/depthsensor/simdevice"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage/transform"
)

// Model is the registered model name.
const Model = "kinect_v1"

func init() {
	depthsensor.RegisterBackend(Model, NewBackend)
}

// Calibration returns the factory calibration of the sensor. Depth is in millimeters and the
// color camera sits 25mm to the right of the IR camera.
func Calibration() *transform.DepthColorIntrinsicsExtrinsics {
	return &transform.DepthColorIntrinsicsExtrinsics{
		DepthCamera: transform.PinholeCameraIntrinsics{
			Width:  640,
			Height: 480,
			Fx:     571.26,
			Fy:     571.26,
			Ppx:    320,
			Ppy:    240,
		},
		ColorCamera: transform.PinholeCameraIntrinsics{
			Width:  640,
			Height: 480,
			Fx:     531.15,
			Fy:     531.15,
			Ppx:    320,
			Ppy:    240,
		},
		ExtrinsicD2C: transform.Extrinsics{
			RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
			TranslationVector: []float64{-25, 0, 0},
		},
	}
}

// NewBackend builds a simulated first generation sensor.
func NewBackend(ctx context.Context, conf *depthsensor.Config, logger logging.Logger) (depthsensor.Backend, error) {
	calib, err := conf.Calibration(Calibration())
	if err != nil {
		return nil, err
	}
	mapper, err := NewMapper(calib, conf.TablePadding)
	if err != nil {
		return nil, err
	}
	frames, err := framesource.New(conf.Source, calib, logger)
	if err != nil {
		return nil, err
	}
	return simdevice.New(simdevice.Config{
		Model:           Model,
		Serial:          Model + "/" + conf.Name,
		ColorResolution: depthsensor.Resolution{Width: calib.ColorCamera.Width, Height: calib.ColorCamera.Height},
		DepthResolution: depthsensor.Resolution{Width: calib.DepthCamera.Width, Height: calib.DepthCamera.Height},
		FPS:             conf.Source.FPS,
		Mapper:          mapper,
		Frames:          frames,
	}, logger)
}

// Mapper maps depth pixels to color pixels one at a time.
type Mapper struct {
	calib   *transform.DepthColorIntrinsicsExtrinsics
	table   []mgl32.Vec2
	padding int
}

// NewMapper precomputes the depth-to-camera table of calib.
func NewMapper(calib *transform.DepthColorIntrinsicsExtrinsics, padding int) (*Mapper, error) {
	if padding < 0 {
		return nil, errors.Errorf("table padding cannot be negative, got %d", padding)
	}
	table, err := calib.DepthTable()
	if err != nil {
		return nil, err
	}
	return &Mapper{calib: calib, table: table, padding: padding}, nil
}

// DepthFrameToCameraSpaceTable returns a copy of the table, followed by the configured
// padding.
func (m *Mapper) DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error) {
	out := make([]mgl32.Vec2, len(m.table)+m.padding)
	copy(out, m.table)
	return out, nil
}

// MapDepthPixelToColorPixel returns the color pixel that sees depth pixel (x, y). A zero
// sample is projected at infinity.
func (m *Mapper) MapDepthPixelToColorPixel(x, y int, depth uint16) (int, int, error) {
	w, h := m.calib.DepthCamera.Width, m.calib.DepthCamera.Height
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0, 0, errors.Errorf("depth pixel (%d, %d) outside %dx%d", x, y, w, h)
	}
	ray := m.table[y*w+x]
	u, v := m.calib.RayToColorPixel(float64(ray[0]), float64(ray[1]), float64(depth))
	if math.IsNaN(u) || math.IsInf(u, 0) || math.IsNaN(v) || math.IsInf(v, 0) {
		return -1, -1, nil
	}
	return int(math.Floor(u)), int(math.Floor(v)), nil
}
