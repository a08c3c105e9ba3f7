// Package framesource produces the frames played by simulated depth sensors: a procedural
// scene rendered through the device calibration, or frames recorded to disk.
package framesource

import (
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/components/depthsensor/simdevice"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage/transform"
)

// New returns the source described by cfg, rendered for the given calibration.
func New(
	cfg depthsensor.SourceConfig,
	calib *transform.DepthColorIntrinsicsExtrinsics,
	logger logging.Logger,
) (simdevice.Source, error) {
	switch cfg.Type {
	case depthsensor.SourceSynthetic:
		return NewSynthetic(calib, cfg.FPS, cfg.Seed)
	case depthsensor.SourceReplay:
		return NewReplay(cfg.Dir, logger), nil
	default:
		return nil, errors.Errorf("unknown frame source type %q", cfg.Type)
	}
}
