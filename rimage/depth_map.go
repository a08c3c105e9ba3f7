// Package rimage holds the raw color and depth rasters produced by depth sensors.
package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// Depth is a single raw depth sample in device units (millimeters). Zero means no reading.
type Depth uint16

// DepthMap is a row-major raster of raw depth samples.
type DepthMap struct {
	width  int
	height int

	data []uint16
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]uint16, width*height),
	}
}

// HasData reports whether the map was allocated.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

// Width returns the horizontal size of the raster.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the raster.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the raster.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Get returns the depth at the given point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return Depth(dm.data[p.Y*dm.width+p.X])
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return Depth(dm.data[y*dm.width+x])
}

// Set stores a depth value at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[y*dm.width+x] = uint16(val)
}

// Data exposes the row-major sample slice. It aliases the map's storage.
func (dm *DepthMap) Data() []uint16 {
	return dm.data
}

// CopyFrom overwrites the map with samples from src, which must hold at least width*height values.
func (dm *DepthMap) CopyFrom(src []uint16) error {
	if len(src) < len(dm.data) {
		return errors.Errorf("depth source too short: got %d samples, need %d", len(src), len(dm.data))
	}
	copy(dm.data, src)
	return nil
}

// Clone makes a deep copy of the map.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// MinMax returns the smallest and largest non-zero depth in the map.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	var min, max Depth = Depth(^uint16(0)), 0
	for _, raw := range dm.data {
		z := Depth(raw)
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ToPrettyPicture maps depth to hue, clamped to [hardMin, hardMax]. Missing readings stay black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) image.Image {
	min, max := dm.MinMax()
	if min < hardMin {
		min = hardMin
	}
	if max > hardMax {
		max = hardMax
	}

	img := image.NewNRGBA(dm.Bounds())
	span := float64(max) - float64(min)
	if span <= 0 {
		span = 1
	}

	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			if z < min {
				z = min
			}
			if z > max {
				z = max
			}
			ratio := (float64(z) - float64(min)) / span
			hue := 30 + (200.0 * ratio)
			img.Set(x, y, colorful.Hsv(hue, 1.0, 1.0).Clamped())
		}
	}
	return img
}

// depthMapMagic is "VERSIONX" read as a little endian uint64.
const depthMapMagic = 6363110499870197078

func readNext(r io.Reader) (int64, error) {
	data := make([]byte, 8)
	x, err := io.ReadFull(r, data)
	if x == 8 {
		return int64(binary.LittleEndian.Uint64(data)), nil
	}
	return 0, errors.Errorf("got %d bytes, and %v", x, err)
}

// ParseDepthMap reads a depth map file, transparently decompressing .gz files.
func ParseDepthMap(fn string) (dm *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, gzErr := gzip.NewReader(f)
		if gzErr != nil {
			return nil, gzErr
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
	}
	return ReadDepthMap(bufio.NewReader(r))
}

// ReadDepthMap decodes either the legacy 64-bit column-major layout or the VERSIONX layout.
func ReadDepthMap(f *bufio.Reader) (*DepthMap, error) {
	rawWidth, err := readNext(f)
	if err != nil {
		return nil, err
	}
	if rawWidth == depthMapMagic {
		return readDepthMapFormat2(f)
	}

	rawHeight, err := readNext(f)
	if err != nil {
		return nil, err
	}
	width, height := int(rawWidth), int(rawHeight)
	if err := checkDepthMapSize(width, height); err != nil {
		return nil, err
	}

	dm := NewEmptyDepthMap(width, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			temp, err := readNext(f)
			if err != nil {
				return nil, err
			}
			dm.Set(x, y, Depth(temp))
		}
	}
	return dm, nil
}

func checkDepthMapSize(width, height int) error {
	if width <= 0 || width >= 100000 || height <= 0 || height >= 100000 {
		return errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	return nil
}

func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readDepthMapFormat2(r *bufio.Reader) (*DepthMap, error) {
	// get past the rest of the magic line
	if _, err := r.ReadString('\n'); err != nil {
		return nil, err
	}

	bytesPerPixel, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if bytesPerPixel != "2" {
		return nil, errors.Errorf("only 2 bytes per pixel depth maps are supported, not %s", bytesPerPixel)
	}

	unitsString, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	units, err := strconv.ParseFloat(unitsString, 64)
	if err != nil {
		return nil, err
	}
	units *= 1000 // m to mm

	widthString, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	width, err := strconv.Atoi(widthString)
	if err != nil {
		return nil, err
	}
	heightString, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	height, err := strconv.Atoi(heightString)
	if err != nil {
		return nil, err
	}
	if err := checkDepthMapSize(width, height); err != nil {
		return nil, err
	}

	dm := NewEmptyDepthMap(width, height)
	temp := make([]byte, 2)
	for i := range dm.data {
		if _, err := io.ReadFull(r, temp); err != nil {
			return nil, fmt.Errorf("short depth data at sample %d: %w", i, err)
		}
		dm.data[i] = uint16(units * float64(binary.LittleEndian.Uint16(temp)))
	}
	return dm, nil
}

// WriteToFile writes the map in the VERSIONX layout, gzip compressed when fn ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var out io.Writer = f
	var gout *gzip.Writer
	if filepath.Ext(fn) == ".gz" {
		gout = gzip.NewWriter(f)
		out = gout
	}

	bw := bufio.NewWriter(out)
	if err := dm.WriteTo(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if gout != nil {
		if err := gout.Close(); err != nil {
			return err
		}
	}
	return f.Sync()
}

// WriteTo encodes the map in the VERSIONX layout with millimeter units.
func (dm *DepthMap) WriteTo(out io.Writer) error {
	header := fmt.Sprintf("VERSIONX\n2\n0.001\n%d\n%d\n", dm.width, dm.height)
	if _, err := io.WriteString(out, header); err != nil {
		return err
	}
	buf := make([]byte, 2*len(dm.data))
	for i, v := range dm.data {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	_, err := out.Write(buf)
	return err
}
