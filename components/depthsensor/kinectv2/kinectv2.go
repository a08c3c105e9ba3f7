// Package kinectv2 implements the second generation Kinect: a 512x424 time-of-flight depth
// stream behind a distorting IR lens, a 1920x1080 color stream and a calibration that maps a
// whole depth frame to color space in one call.
package kinectv2

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
const Model = "kinect_v2"

func init() {
	depthsensor.RegisterBackend(Model, NewBackend)
}

// Calibration returns the factory calibration of the sensor. Depth is in millimeters and the
// color camera sits 52mm to the left of the IR camera.
func Calibration() *transform.DepthColorIntrinsicsExtrinsics {
	return &transform.DepthColorIntrinsicsExtrinsics{
		DepthCamera: transform.PinholeCameraIntrinsics{
			Width:  512,
			Height: 424,
			Fx:     365.456,
			Fy:     365.456,
			Ppx:    254.878,
			Ppy:    205.395,
		},
		DepthLens: &transform.BrownConrady{
			RadialK1: 0.0905474,
			RadialK2: -0.26819,
			RadialK3: 0.0950862,
		},
		ColorCamera: transform.PinholeCameraIntrinsics{
			Width:  1920,
			Height: 1080,
			Fx:     1081.37,
			Fy:     1081.37,
			Ppx:    959.5,
			Ppy:    539.5,
		},
		ExtrinsicD2C: transform.Extrinsics{
			RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
			TranslationVector: []float64{52, 0, 0},
		},
	}
}

// NewBackend builds a simulated second generation sensor.
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

// Mapper maps whole depth frames to color space.
type Mapper struct {
	calib   *transform.DepthColorIntrinsicsExtrinsics
	table   []mgl32.Vec2
	padding int
}

// NewMapper precomputes the undistorted depth-to-camera table of calib.
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

// DepthFrameToCameraSpaceTable returns a copy of the table followed by padding entries, the
// way some firmware reports a longer table than the frame.
func (m *Mapper) DepthFrameToCameraSpaceTable() ([]mgl32.Vec2, error) {
	out := make([]mgl32.Vec2, len(m.table)+m.padding)
	copy(out, m.table)
	return out, nil
}

// MapDepthFrameToColorSpace writes the sub-pixel color position of every depth pixel.
// Pixels without a reading map to negative infinity.
func (m *Mapper) MapDepthFrameToColorSpace(depth []uint16, out []depthsensor.ColorSpacePoint) error {
	if len(depth) != len(m.table) || len(out) < len(depth) {
		return errors.Errorf("expected %d depth samples and as many outputs, got %d and %d",
			len(m.table), len(depth), len(out))
	}
	negInf := float32(math.Inf(-1))
	for i, d := range depth {
		if d == 0 {
			out[i] = depthsensor.ColorSpacePoint{X: negInf, Y: negInf}
			continue
		}
		ray := m.table[i]
		u, v := m.calib.RayToColorPixel(float64(ray[0]), float64(ray[1]), float64(d))
		out[i] = depthsensor.ColorSpacePoint{X: float32(u), Y: float32(v)}
	}
	return nil
}
