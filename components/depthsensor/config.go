package depthsensor

import (
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"

	"go.viam.com/depthmesh/rimage/transform"
)

// Frame source types understood by the simulated backends.
const (
	SourceSynthetic = "synthetic"
	SourceReplay    = "replay"
)

// SourceConfig selects where a simulated device gets its frames.
type SourceConfig struct {
	Type string  `json:"type"`
	Dir  string  `json:"dir,omitempty"`
	FPS  float64 `json:"fps,omitempty"`
	Seed int64   `json:"seed,omitempty"`
}

// TransformConfig overrides the point transformer constants.
type TransformConfig struct {
	DepthScale   *float64 `json:"depth_scale,omitempty"`
	InvalidDepth *float64 `json:"invalid_depth,omitempty"`
}

// Config describes one depth sensor.
type Config struct {
	Name         string          `json:"name"`
	Model        string          `json:"model"`
	Source       SourceConfig    `json:"source"`
	TablePadding int             `json:"table_padding,omitempty"`
	Transform    TransformConfig `json:"transform"`

	// CalibrationFile replaces the factory calibration of the model. It must describe the
	// same stream resolutions.
	CalibrationFile string `json:"calibration_file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Model == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	}
	if _, ok := lookupBackend(cfg.Model); !ok {
		return utils.NewConfigValidationError(path, errors.Errorf("unknown model %q", cfg.Model))
	}
	if err := cfg.Source.Validate(path + ".source"); err != nil {
		return err
	}
	if cfg.TablePadding < 0 {
		return utils.NewConfigValidationError(path, errors.New("table_padding cannot be negative"))
	}
	if cfg.Transform.DepthScale != nil && *cfg.Transform.DepthScale <= 0 {
		return utils.NewConfigValidationError(path+".transform", errors.New("depth_scale must be positive"))
	}
	return nil
}

// Validate ensures the frame source is usable.
func (sc *SourceConfig) Validate(path string) error {
	switch sc.Type {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "type")
	case SourceSynthetic:
	case SourceReplay:
		if sc.Dir == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "dir")
		}
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown source type %q", sc.Type))
	}
	if sc.FPS < 0 {
		return utils.NewConfigValidationError(path, errors.New("fps cannot be negative"))
	}
	return nil
}

// PointTransformer returns the transformer described by the config.
func (tc TransformConfig) PointTransformer() PointTransformer {
	pt := NewPointTransformer()
	if tc.DepthScale != nil {
		pt.DepthScale = float32(*tc.DepthScale)
	}
	if tc.InvalidDepth != nil {
		pt.InvalidDepth = float32(*tc.InvalidDepth)
	}
	return pt
}

// Calibration returns factory, or the calibration read from CalibrationFile, validated.
func (cfg *Config) Calibration(
	factory *transform.DepthColorIntrinsicsExtrinsics,
) (*transform.DepthColorIntrinsicsExtrinsics, error) {
	if cfg.CalibrationFile == "" {
		return factory, factory.CheckValid()
	}
	calib, err := transform.ReadDepthColorIntrinsicsExtrinsics(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}
	for _, pair := range [][2]transform.PinholeCameraIntrinsics{
		{calib.DepthCamera, factory.DepthCamera},
		{calib.ColorCamera, factory.ColorCamera},
	} {
		if pair[0].Width != pair[1].Width || pair[0].Height != pair[1].Height {
			return nil, errors.Errorf("calibration %q is for %dx%d, the %s streams %dx%d",
				cfg.CalibrationFile, pair[0].Width, pair[0].Height, cfg.Model, pair[1].Width, pair[1].Height)
		}
	}
	return calib, nil
}

// DecodeConfig converts an attribute map into a Config.
func DecodeConfig(attributes map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &conf})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return &conf, nil
}

// ReadConfig loads, decodes and validates a JSON5 config file, so comments and trailing
// commas are allowed.
func ReadConfig(path string) (*Config, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	var attributes map[string]interface{}
	if err := json5.Unmarshal(raw, &attributes); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	conf, err := DecodeConfig(attributes)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode config %q", path)
	}
	if conf.Name == "" {
		conf.Name = conf.Model
	}
	if err := conf.Validate(conf.Name); err != nil {
		return nil, err
	}
	return conf, nil
}
