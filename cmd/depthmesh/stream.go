package main

import (
	"context"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/depthmesh/gpu/glsink"
	"go.viam.com/depthmesh/logging"
)

// newHiddenContext makes an invisible window with an OpenGL 4.1 core context current on the
// calling thread.
func newHiddenContext() (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize glfw")
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)
	win, err := glfw.CreateWindow(64, 64, "depthmesh", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create window")
	}
	win.MakeContextCurrent()
	return win, nil
}

func streamAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx := commandContext(c)
	win, err := newHiddenContext()
	if err != nil {
		return err
	}
	defer func() {
		win.Destroy()
		glfw.Terminate()
	}()

	sink, err := glsink.New(logger.Sublogger("gl"))
	if err != nil {
		return err
	}
	s, err := openSensor(ctx, c.String(flagConfig), sink, logger)
	if err != nil {
		return err
	}
	// GPU resources go before the context does.
	defer func() {
		err = multierr.Combine(err, s.Close(ctx))
	}()

	start := time.Now()
	deadline := start.Add(c.Duration(flagDuration))
	lastReport := start
	last := s.Stats()
	err = acquireUntil(ctx, s, nil, func() bool {
		glfw.PollEvents()
		now := time.Now()
		if now.Sub(lastReport) >= time.Second {
			st := s.Stats()
			secs := now.Sub(lastReport).Seconds()
			logger.Infow("streaming",
				"color_fps", float64(st.ColorFrames-last.ColorFrames)/secs,
				"depth_fps", float64(st.DepthFrames-last.DepthFrames)/secs,
				"acquisition_errors", st.AcquisitionErrors)
			last, lastReport = st, now
		}
		return now.After(deadline) || win.ShouldClose()
	})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Infow("stream finished", "elapsed", time.Since(start), "stats", s.Stats())
	return err
}
