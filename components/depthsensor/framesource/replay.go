package framesource

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/depthmesh/components/depthsensor"
	"go.viam.com/depthmesh/logging"
	"go.viam.com/depthmesh/rimage"
)

// DepthFileName is the name of recorded depth frame i.
func DepthFileName(i int) string {
	return fmt.Sprintf("depth_%06d.dat.gz", i)
}

// ColorFileName is the name of recorded color frame i.
func ColorFileName(i int) string {
	return fmt.Sprintf("color_%06d.png", i)
}

// WriteFrame records one depth and color pair as frame i of dir.
func WriteFrame(dir string, i int, depth *rimage.DepthMap, colorFrame *rimage.ColorFrame) (err error) {
	if err := depth.WriteToFile(filepath.Join(dir, DepthFileName(i))); err != nil {
		return errors.Wrapf(err, "cannot write depth frame %d", i)
	}
	//nolint:gosec
	f, err := os.Create(filepath.Join(dir, ColorFileName(i)))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return errors.Wrapf(png.Encode(f, colorFrame), "cannot write color frame %d", i)
}

// Replay plays frames recorded by WriteFrame, looping at the end.
type Replay struct {
	dir    string
	logger logging.Logger
	count  int
}

// NewReplay returns a source over dir. Nothing is read until Open.
func NewReplay(dir string, logger logging.Logger) *Replay {
	return &Replay{dir: dir, logger: logger}
}

// Open counts the recorded frames. An empty or missing directory is reported as a missing
// device.
func (r *Replay) Open(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(r.dir, "depth_*.dat.gz"))
	if err != nil {
		return err
	}
	count := 0
	for count < len(matches) {
		if _, err := os.Stat(filepath.Join(r.dir, DepthFileName(count))); err != nil {
			break
		}
		if _, err := os.Stat(filepath.Join(r.dir, ColorFileName(count))); err != nil {
			break
		}
		count++
	}
	if count == 0 {
		return errors.Wrapf(depthsensor.ErrDeviceNotFound, "no recorded frames in %q", r.dir)
	}
	r.count = count
	r.logger.CDebugw(ctx, "replaying frames", "dir", r.dir, "frames", count)
	return nil
}

// Close does nothing.
func (r *Replay) Close() error {
	return nil
}

// index maps a stream sequence number, starting at 1, onto the recording.
func (r *Replay) index(seq uint64) (int, error) {
	if r.count == 0 {
		return 0, errors.New("replay source is not open")
	}
	if seq == 0 {
		seq = 1
	}
	return int((seq - 1) % uint64(r.count)), nil
}

// RenderDepth loads the recorded depth frame for seq.
func (r *Replay) RenderDepth(seq uint64, dst *rimage.DepthMap) error {
	i, err := r.index(seq)
	if err != nil {
		return err
	}
	dm, err := rimage.ParseDepthMap(filepath.Join(r.dir, DepthFileName(i)))
	if err != nil {
		return err
	}
	if dm.Width() != dst.Width() || dm.Height() != dst.Height() {
		return errors.Errorf("recorded depth frame %d is %dx%d, stream is %dx%d",
			i, dm.Width(), dm.Height(), dst.Width(), dst.Height())
	}
	return dst.CopyFrom(dm.Data())
}

// RenderColor loads the recorded color frame for seq.
func (r *Replay) RenderColor(seq uint64, dst *rimage.ColorFrame) error {
	i, err := r.index(seq)
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Open(filepath.Join(r.dir, ColorFileName(i)))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, err := png.Decode(f)
	if err != nil {
		return errors.Wrapf(err, "cannot decode color frame %d", i)
	}
	b := img.Bounds()
	if b.Dx() != dst.Width() || b.Dy() != dst.Height() {
		return errors.Errorf("recorded color frame %d is %dx%d, stream is %dx%d",
			i, b.Dx(), b.Dy(), dst.Width(), dst.Height())
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.SetNRGBA(x, y, nrgba.NRGBAAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return nil
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetNRGBA(x, y, color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA))
		}
	}
	return nil
}
