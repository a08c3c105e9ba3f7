package transform

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Extrinsics is the rigid transform from the depth camera frame to the color camera frame.
// Translation is in the same unit as depth samples (millimeters).
type Extrinsics struct {
	RotationMatrix    []float64 `json:"rotation"`
	TranslationVector []float64 `json:"translation"`
}

// DepthColorIntrinsicsExtrinsics is the calibration of a depth/color camera pair.
type DepthColorIntrinsicsExtrinsics struct {
	ColorCamera  PinholeCameraIntrinsics `json:"color_intrinsic_parameters"`
	DepthCamera  PinholeCameraIntrinsics `json:"depth_intrinsic_parameters"`
	ColorLens    *BrownConrady           `json:"color_distortion,omitempty"`
	DepthLens    *BrownConrady           `json:"depth_distortion,omitempty"`
	ExtrinsicD2C Extrinsics              `json:"extrinsics_depth_to_color"`

	valid       bool
	rotation    [9]float64
	translation [3]float64
}

// ReadDepthColorIntrinsicsExtrinsics loads a JSON calibration file.
func ReadDepthColorIntrinsicsExtrinsics(path string) (*DepthColorIntrinsicsExtrinsics, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read calibration")
	}
	return NewDepthColorIntrinsicsExtrinsicsFromBytes(b)
}

// NewDepthColorIntrinsicsExtrinsicsFromBytes decodes and validates a JSON calibration.
func NewDepthColorIntrinsicsExtrinsicsFromBytes(b []byte) (*DepthColorIntrinsicsExtrinsics, error) {
	dcie := &DepthColorIntrinsicsExtrinsics{}
	if err := json.Unmarshal(b, dcie); err != nil {
		return nil, errors.Wrap(err, "error parsing camera system JSON")
	}
	if err := dcie.CheckValid(); err != nil {
		return nil, err
	}
	return dcie, nil
}

// CheckValid verifies both intrinsics and the shape of the extrinsics, and caches the
// extrinsics as matrices.
func (dcie *DepthColorIntrinsicsExtrinsics) CheckValid() error {
	if dcie == nil {
		return errors.New("pointer to DepthColorIntrinsicsExtrinsics is nil")
	}
	if err := dcie.ColorCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "color camera")
	}
	if err := dcie.DepthCamera.CheckValid(); err != nil {
		return errors.Wrap(err, "depth camera")
	}
	if len(dcie.ExtrinsicD2C.RotationMatrix) != 9 {
		return errors.Errorf("rotation matrix must have 9 entries, got %d", len(dcie.ExtrinsicD2C.RotationMatrix))
	}
	if len(dcie.ExtrinsicD2C.TranslationVector) != 3 {
		return errors.Errorf("translation vector must have 3 entries, got %d", len(dcie.ExtrinsicD2C.TranslationVector))
	}
	rot := mat.NewDense(3, 3, append([]float64(nil), dcie.ExtrinsicD2C.RotationMatrix...))
	if det := mat.Det(rot); math.Abs(det-1) > 1e-3 {
		return errors.Errorf("rotation matrix is not a proper rotation, determinant %v", det)
	}
	copy(dcie.rotation[:], dcie.ExtrinsicD2C.RotationMatrix)
	copy(dcie.translation[:], dcie.ExtrinsicD2C.TranslationVector)
	dcie.valid = true
	return nil
}

// DepthPixelToCameraPoint back-projects a depth pixel into the depth camera frame, removing
// lens distortion. Units follow the depth sample.
func (dcie *DepthColorIntrinsicsExtrinsics) DepthPixelToCameraPoint(u, v, depth float64) (float64, float64, float64) {
	x, y := dcie.DepthCamera.Normalize(u, v)
	if dcie.DepthLens != nil {
		x, y = dcie.DepthLens.Undistort(x, y)
	}
	return x * depth, y * depth, depth
}

// DepthToColorPoint moves a depth-frame point into the color camera frame.
func (dcie *DepthColorIntrinsicsExtrinsics) DepthToColorPoint(x, y, z float64) (float64, float64, float64) {
	if !dcie.valid {
		if err := dcie.CheckValid(); err != nil {
			return math.NaN(), math.NaN(), math.NaN()
		}
	}
	r, t := &dcie.rotation, &dcie.translation
	return r[0]*x + r[1]*y + r[2]*z + t[0],
		r[3]*x + r[4]*y + r[5]*z + t[1],
		r[6]*x + r[7]*y + r[8]*z + t[2]
}

// ColorPixelFromPoint projects a color-frame point onto the color sensor, applying the color
// lens model.
func (dcie *DepthColorIntrinsicsExtrinsics) ColorPixelFromPoint(x, y, z float64) (float64, float64) {
	if z == 0 {
		return math.Inf(-1), math.Inf(-1)
	}
	xn, yn := x/z, y/z
	if dcie.ColorLens != nil {
		xn, yn = dcie.ColorLens.Transform(xn, yn)
	}
	return dcie.ColorCamera.Project(xn, yn)
}

// DepthPixelToColorPixel maps a depth pixel with a sample to the sub-pixel location in the
// color image that sees the same surface point.
func (dcie *DepthColorIntrinsicsExtrinsics) DepthPixelToColorPixel(u, v, depth float64) (float64, float64) {
	x, y, _ := dcie.DepthPixelToCameraPoint(u, v, 1)
	return dcie.RayToColorPixel(x, y, depth)
}

// RayToColorPixel projects the point at depth along the undistorted depth ray (x, y, 1) onto
// the color image. A zero depth has no position, so the ray is projected at infinity
// (rotation only).
func (dcie *DepthColorIntrinsicsExtrinsics) RayToColorPixel(x, y, depth float64) (float64, float64) {
	if depth == 0 {
		cx, cy, cz := dcie.DepthToColorPoint(x, y, 1)
		t := &dcie.translation
		return dcie.ColorPixelFromPoint(cx-t[0], cy-t[1], cz-t[2])
	}
	cx, cy, cz := dcie.DepthToColorPoint(x*depth, y*depth, depth)
	return dcie.ColorPixelFromPoint(cx, cy, cz)
}
