package depthsensor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/testutils/inject"
)

const testModel = "test_config_model"

func init() {
	depthsensor.RegisterBackend(testModel, func(
		ctx context.Context,
		conf *depthsensor.Config,
		logger logging.Logger,
	) (depthsensor.Backend, error) {
		return &inject.Backend{ModelFunc: func() string { return conf.Model }}, nil
	})
}

func TestDecodeConfig(t *testing.T) {
	conf, err := depthsensor.DecodeConfig(map[string]interface{}{
		"model":         testModel,
		"table_padding": 4,
		"source":        map[string]interface{}{"type": "synthetic", "fps": 15.0, "seed": 3},
		"transform":     map[string]interface{}{"invalid_depth": -5.0},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Model, test.ShouldEqual, testModel)
	test.That(t, conf.TablePadding, test.ShouldEqual, 4)
	test.That(t, conf.Source.FPS, test.ShouldEqual, 15.0)
	test.That(t, conf.Source.Seed, test.ShouldEqual, int64(3))
	test.That(t, conf.Validate("sensor"), test.ShouldBeNil)

	pt := conf.Transform.PointTransformer()
	test.That(t, pt.DepthScale, test.ShouldEqual, float32(depthsensor.DefaultDepthScale))
	test.That(t, pt.InvalidDepth, test.ShouldEqual, float32(-5))
}

func TestConfigValidate(t *testing.T) {
	valid := func() *depthsensor.Config {
		return &depthsensor.Config{
			Model:  testModel,
			Source: depthsensor.SourceConfig{Type: depthsensor.SourceReplay, Dir: "/tmp/frames"},
		}
	}
	test.That(t, valid().Validate("path"), test.ShouldBeNil)

	conf := valid()
	conf.Model = ""
	err := conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "model")

	conf = valid()
	conf.Model = "kinect_v9"
	test.That(t, conf.Validate("path"), test.ShouldNotBeNil)

	conf = valid()
	conf.Source.Dir = ""
	err = conf.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dir")

	conf = valid()
	conf.Source.Type = "webcam"
	test.That(t, conf.Validate("path"), test.ShouldNotBeNil)

	conf = valid()
	conf.TablePadding = -1
	test.That(t, conf.Validate("path"), test.ShouldNotBeNil)

	conf = valid()
	scale := 0.0
	conf.Transform.DepthScale = &scale
	test.That(t, conf.Validate("path"), test.ShouldNotBeNil)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "sensor.json")
	raw := `{
		// tenth of a millimeter per unit
		"model": "` + testModel + `",
		"source": {"type": "synthetic"},
		"transform": {"depth_scale": 0.0001},
	}`
	test.That(t, os.WriteFile(fn, []byte(raw), 0o600), test.ShouldBeNil)

	conf, err := depthsensor.ReadConfig(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Name, test.ShouldEqual, testModel)
	test.That(t, conf.Transform.PointTransformer().DepthScale, test.ShouldEqual, float32(0.0001))

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"source": {"type": "synthetic"}}`), 0o600), test.ShouldBeNil)
	_, err = depthsensor.ReadConfig(bad)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = depthsensor.ReadConfig(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegistry(t *testing.T) {
	test.That(t, depthsensor.RegisteredModels(), test.ShouldContain, testModel)

	backend, err := depthsensor.NewBackend(context.Background(),
		&depthsensor.Config{Model: testModel}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, backend.Model(), test.ShouldEqual, testModel)

	_, err = depthsensor.NewBackend(context.Background(), &depthsensor.Config{Model: "nope"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, func() {
		depthsensor.RegisterBackend(testModel, func(
			ctx context.Context, conf *depthsensor.Config, logger logging.Logger,
		) (depthsensor.Backend, error) {
			return nil, nil
		})
	}, test.ShouldPanic)
	test.That(t, func() { depthsensor.RegisterBackend("nil_model", nil) }, test.ShouldPanic)
}
