// Package transform holds the camera models used to relate depth pixels, camera space and
// color pixels: pinhole intrinsics, lens distortion and depth-to-color extrinsics.
package transform

import "github.com/pkg/errors"

// ErrInvalidIntrinsics is returned for missing or unusable camera intrinsics.
var ErrInvalidIntrinsics = errors.New("invalid camera intrinsics")

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid requires a positive raster size and focal lengths, and a principal point on
// the sensor.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	switch {
	case params == nil:
		return errors.Wrap(ErrInvalidIntrinsics, "intrinsics do not exist")
	case params.Width <= 0 || params.Height <= 0:
		return errors.Wrapf(ErrInvalidIntrinsics, "size %dx%d", params.Width, params.Height)
	case params.Fx <= 0:
		return errors.Wrapf(ErrInvalidIntrinsics, "focal length Fx = %v", params.Fx)
	case params.Fy <= 0:
		return errors.Wrapf(ErrInvalidIntrinsics, "focal length Fy = %v", params.Fy)
	case params.Ppx < 0 || params.Ppx > float64(params.Width):
		return errors.Wrapf(ErrInvalidIntrinsics, "principal point Ppx = %v", params.Ppx)
	case params.Ppy < 0 || params.Ppy > float64(params.Height):
		return errors.Wrapf(ErrInvalidIntrinsics, "principal point Ppy = %v", params.Ppy)
	}
	return nil
}

// Pixels is the number of pixels on the sensor.
func (params *PinholeCameraIntrinsics) Pixels() int {
	return params.Width * params.Height
}

// Normalize converts a pixel position to the normalized image plane at unit depth.
func (params *PinholeCameraIntrinsics) Normalize(u, v float64) (float64, float64) {
	return (u - params.Ppx) / params.Fx, (v - params.Ppy) / params.Fy
}

// Project maps a point on the normalized image plane to a sub-pixel position.
func (params *PinholeCameraIntrinsics) Project(x, y float64) (float64, float64) {
	return x*params.Fx + params.Ppx, y*params.Fy + params.Ppy
}
