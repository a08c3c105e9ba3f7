package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// NoDistortionType is an ideal lens.
	NoDistortionType = DistortionType("none")
)

// Distorter models a lens. Transform maps undistorted normalized coordinates to distorted
// ones and Undistort inverts it.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
	Undistort(x, y float64) (float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case NoDistortionType, "":
		return NoDistortion{}, nil
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

// NoDistortion is the identity lens model.
type NoDistortion struct{}

// ModelType returns the type of distortion model.
func (NoDistortion) ModelType() DistortionType { return NoDistortionType }

// CheckValid always succeeds.
func (NoDistortion) CheckValid() error { return nil }

// Parameters returns no parameters.
func (NoDistortion) Parameters() []float64 { return []float64{} }

// Transform is the identity.
func (NoDistortion) Transform(x, y float64) (float64, float64) { return x, y }

// Undistort is the identity.
func (NoDistortion) Undistort(x, y float64) (float64, float64) { return x, y }
