package transform

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DepthToCameraTable returns one normalized (x, y) entry per depth pixel in row-major order,
// with lens distortion removed. Multiplying an entry by a metric depth gives the camera-space
// position of that pixel.
func DepthToCameraTable(intrinsics *PinholeCameraIntrinsics, lens Distorter) ([]mgl32.Vec2, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if lens == nil {
		lens = NoDistortion{}
	}

	w, h := intrinsics.Width, intrinsics.Height
	table := make([]mgl32.Vec2, intrinsics.Pixels())
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			x, y := intrinsics.Normalize(float64(u), float64(v))
			x, y = lens.Undistort(x, y)
			table[v*w+u] = mgl32.Vec2{float32(x), float32(y)}
		}
	}
	return table, nil
}

// DepthTable is DepthToCameraTable for the depth camera of a calibrated pair.
func (dcie *DepthColorIntrinsicsExtrinsics) DepthTable() ([]mgl32.Vec2, error) {
	var lens Distorter = NoDistortion{}
	if dcie.DepthLens != nil {
		lens = dcie.DepthLens
	}
	return DepthToCameraTable(&dcie.DepthCamera, lens)
}
