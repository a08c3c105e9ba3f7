// Package main is the depthmesh command line: it runs a configured depth sensor headless and
// exports what it captures, records frames for the replay source, or streams into an OpenGL
// context.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthmesh/components/depthsensor"
	_ "go.viam.com/depthmesh/components/depthsensor/kinectv1"
	_ "go.viam.com/depthmesh/components/depthsensor/kinectv2"
	"go.viam.com/depthmesh/gpu"
	"go.viam.com/depthmesh/logging"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagTrace    = "trace"
	flagOut      = "out"
	flagFrames   = "frames"
	flagDuration = "duration"
)

func init() {
	// GL calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	logger := logging.NewLogger("depthmesh")

	app := &cli.App{
		Name:  "depthmesh",
		Usage: "turn depth sensor frames into GPU-ready geometry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "load sensor configuration from `FILE`",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagTrace,
				Usage: "log per-frame sensor events at info level",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("depthmesh")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "capture",
				Usage: "capture frames headless and export a colored point cloud",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Value: ".", Usage: "output `DIR`"},
					&cli.IntFlag{Name: flagFrames, Value: 1, Usage: "depth frames to acquire before exporting"},
				},
				Action: func(c *cli.Context) error {
					return captureAction(c, logger)
				},
			},
			{
				Name:  "record",
				Usage: "record frames in the layout read by the replay source",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Required: true, Usage: "output `DIR`"},
					&cli.IntFlag{Name: flagFrames, Value: 30, Usage: "frames to record"},
				},
				Action: func(c *cli.Context) error {
					return recordAction(c, logger)
				},
			},
			{
				Name:  "stream",
				Usage: "upload frames into a hidden OpenGL context and report rates",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: flagDuration, Value: 10 * time.Second, Usage: "how long to stream"},
				},
				Action: func(c *cli.Context) error {
					return streamAction(c, logger)
				},
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	cancel()
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// commandContext is the command's context, traced when requested.
func commandContext(c *cli.Context) context.Context {
	if c.Bool(flagTrace) {
		return logging.WithTrace(c.Context, "")
	}
	return c.Context
}

// openSensor builds the configured backend and attaches an active sensor to it.
func openSensor(ctx context.Context, path string, sink gpu.Sink, logger logging.Logger) (*depthsensor.Sensor, error) {
	conf, err := depthsensor.ReadConfig(path)
	if err != nil {
		return nil, err
	}
	backend, err := depthsensor.NewBackend(ctx, conf, logger)
	if err != nil {
		return nil, err
	}
	handle := depthsensor.NewDeviceHandle(backend, logger)
	s, err := depthsensor.NewSensor(ctx, conf.Name, handle, sink, conf.Transform.PointTransformer(), logger.Sublogger(conf.Name))
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return nil, multierr.Combine(
			errors.Wrapf(s.InactiveReason(), "sensor %q is not available", conf.Name),
			s.Close(ctx))
	}
	return s, nil
}

// pollInterval is how often the acquisition loops look for new frames.
const pollInterval = 2 * time.Millisecond

// acquireUntil polls both streams until done reports true or ctx ends. onDepth runs after
// every new depth frame.
func acquireUntil(ctx context.Context, s *depthsensor.Sensor, onDepth func() error, done func() bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for !done() {
		s.AcquireColor(ctx)
		if s.AcquireDepth(ctx) && onDepth != nil {
			if err := onDepth(); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
