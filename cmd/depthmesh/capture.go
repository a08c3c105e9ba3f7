package main

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/components/depthsensor/framesource"
	"go.viam.com/depthmesh/gpu/memsink"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/pointcloud"
	"go.viam.com/depthmesh/rimage"
)

// Files written by capture.
const (
	PointsFileName     = "points.pcd"
	RegisteredFileName = "registered.webp"
	DepthFileName      = "depth.webp"
)

func captureAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx := commandContext(c)
	out := c.String(flagOut)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return err
	}

	s, err := openSensor(ctx, c.String(flagConfig), memsink.New(logger.Sublogger("sink")), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close(ctx))
	}()

	want := uint64(c.Int(flagFrames))
	if want == 0 {
		want = 1
	}
	if err := acquireUntil(ctx, s, nil, func() bool {
		st := s.Stats()
		return st.DepthFrames >= want && st.ColorFrames > 0
	}); err != nil {
		return err
	}
	return exportCapture(s, out, logger)
}

// exportCapture writes the latest rasters of s into dir.
func exportCapture(s *depthsensor.Sensor, dir string, logger logging.Logger) error {
	cloud, err := pointcloud.FromDepthFrame(
		s.Depth(), s.Points(), s.Correspondence(), s.Color(), float64(s.PointTransformer().DepthScale))
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, PointsFileName), func(f *os.File) error {
		return pointcloud.ToPCD(cloud, f, pointcloud.PCDBinary)
	}); err != nil {
		return errors.Wrap(err, "cannot write point cloud")
	}

	registered := registeredImage(s.Depth(), s.Correspondence(), s.Color())
	if err := writeFile(filepath.Join(dir, RegisteredFileName), func(f *os.File) error {
		return nativewebp.Encode(f, registered, nil)
	}); err != nil {
		return errors.Wrap(err, "cannot write registered color")
	}

	lo, hi := s.Depth().MinMax()
	if err := writeFile(filepath.Join(dir, DepthFileName), func(f *os.File) error {
		return nativewebp.Encode(f, s.Depth().ToPrettyPicture(lo, hi), nil)
	}); err != nil {
		return errors.Wrap(err, "cannot write depth preview")
	}

	logger.Infow("capture written", "dir", dir, "points", cloud.Size(), "stats", s.Stats())
	return nil
}

// registeredImage resamples the color frame onto the depth raster through the correspondence.
// Pixels without depth or outside the color image are transparent.
func registeredImage(depth *rimage.DepthMap, coords []mgl32.Vec2, colorFrame *rimage.ColorFrame) image.Image {
	w, h := depth.Width(), depth.Height()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	samples := depth.Data()
	for i, d := range samples {
		if d == 0 || i >= len(coords) {
			continue
		}
		if c, ok := colorFrame.SampleNormalized(coords[i].X(), coords[i].Y()); ok {
			img.SetNRGBA(i%w, i/w, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return img
}

func writeFile(fn string, write func(f *os.File) error) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := write(f); err != nil {
		return err
	}
	return f.Sync()
}

func recordAction(c *cli.Context, logger logging.Logger) (err error) {
	ctx := commandContext(c)
	out := c.String(flagOut)
	if err := os.MkdirAll(out, 0o750); err != nil {
		return err
	}

	s, err := openSensor(ctx, c.String(flagConfig), memsink.New(logger.Sublogger("sink")), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.Close(ctx))
	}()

	want := c.Int(flagFrames)
	written := 0
	if err := acquireUntil(ctx, s, func() error {
		if s.Stats().ColorFrames == 0 {
			return nil
		}
		if err := framesource.WriteFrame(out, written, s.Depth(), s.Color()); err != nil {
			return err
		}
		written++
		return nil
	}, func() bool { return written >= want }); err != nil {
		return err
	}
	logger.Infow("recording written", "dir", out, "frames", written)
	return nil
}
