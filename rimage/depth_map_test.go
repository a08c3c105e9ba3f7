package rimage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDepthMapRowMajor(t *testing.T) {
	dm := NewEmptyDepthMap(3, 2)
	dm.Set(2, 0, 1000)
	dm.Set(0, 1, 2000)
	test.That(t, dm.Data(), test.ShouldResemble, []uint16{0, 0, 1000, 2000, 0, 0})
	test.That(t, dm.Get(image.Point{2, 0}), test.ShouldEqual, Depth(1000))
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))

	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, Depth(1000))
	test.That(t, max, test.ShouldEqual, Depth(2000))

	clone := dm.Clone()
	clone.Set(0, 0, 5)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(0))

	err := dm.CopyFrom([]uint16{1, 2})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthMapFileRoundTrip(t *testing.T) {
	dm := NewEmptyDepthMap(4, 3)
	for i := range dm.Data() {
		dm.Data()[i] = uint16(i * 250)
	}
	fn := filepath.Join(t.TempDir(), "depth.dat.gz")
	test.That(t, dm.WriteToFile(fn), test.ShouldBeNil)

	back, err := ParseDepthMap(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Width(), test.ShouldEqual, 4)
	test.That(t, back.Height(), test.ShouldEqual, 3)
	test.That(t, back.Data(), test.ShouldResemble, dm.Data())
}

func TestReadLegacyDepthMap(t *testing.T) {
	var buf bytes.Buffer
	put := func(v uint64) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		buf.Write(b)
	}
	put(2)
	put(2)
	// column major: (0,0) (0,1) (1,0) (1,1)
	put(10)
	put(20)
	put(30)
	put(40)

	dm, err := ReadDepthMap(bufio.NewReader(&buf))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Data(), test.ShouldResemble, []uint16{10, 30, 20, 40})

	buf.Reset()
	put(0)
	put(5)
	_, err = ReadDepthMap(bufio.NewReader(&buf))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPrettyPictureLeavesHolesBlack(t *testing.T) {
	dm := NewEmptyDepthMap(2, 1)
	dm.Set(1, 0, 1500)
	img := dm.ToPrettyPicture(0, math.MaxUint16)
	_, _, _, a := img.At(0, 0).RGBA()
	test.That(t, a, test.ShouldEqual, 0)
	_, _, _, a = img.At(1, 0).RGBA()
	test.That(t, a, test.ShouldEqual, 0xffff)
}

func TestColorFrameBGRA(t *testing.T) {
	cf := NewColorFrame(2, 1)
	cf.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	test.That(t, cf.Pix()[4:8], test.ShouldResemble, []byte{30, 20, 10, 255})
	test.That(t, cf.NRGBAAt(1, 0), test.ShouldResemble, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	test.That(t, cf.NRGBAAt(5, 5), test.ShouldResemble, color.NRGBA{})

	c, ok := cf.SampleNormalized(0.9, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c.R, test.ShouldEqual, 10)
	_, ok = cf.SampleNormalized(1.2, 0.5)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = cf.SampleNormalized(float32(math.Inf(-1)), 0.5)
	test.That(t, ok, test.ShouldBeFalse)

	rgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	rgba.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	conv := ColorFrameFromImage(rgba)
	test.That(t, conv.Pix(), test.ShouldResemble, []byte{3, 2, 1, 4})

	dst := make([]byte, 4)
	test.That(t, conv.CopyTo(dst), test.ShouldBeNil)
	test.That(t, dst, test.ShouldResemble, []byte{3, 2, 1, 4})
	test.That(t, conv.CopyTo(make([]byte, 8)), test.ShouldNotBeNil)
}
