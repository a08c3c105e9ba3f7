package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = iota
	// PCDBinary binary format for pcd.
	PCDBinary
)

// ToPCD writes the cloud in PCD v0.7, in meters. Colored clouds carry a packed rgb field.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var dataName string
	switch outputType {
	case PCDAscii:
		dataName = "ascii"
	case PCDBinary:
		dataName = "binary"
	default:
		return errors.Errorf("unsupported pcd type %d", outputType)
	}

	w := bufio.NewWriter(out)
	hasColor := cloud.MetaData().HasColor
	if hasColor {
		fmt.Fprint(w, "VERSION .7\nFIELDS x y z rgb\nSIZE 4 4 4 4\nTYPE F F F I\nCOUNT 1 1 1 1\n")
	} else {
		fmt.Fprint(w, "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n")
	}
	fmt.Fprintf(w, "WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		cloud.Size(), cloud.Size(), dataName)

	var buf [16]byte
	var err error
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		x, y, z := float32(p.X/1000), float32(p.Y/1000), float32(p.Z/1000)
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(x))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(y))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(z))
			n := 12
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], d.packedRGB())
				n = 16
			}
			_, err = w.Write(buf[:n])
		default:
			if hasColor {
				_, err = fmt.Fprintf(w, "%f %f %f %d\n", x, y, z, d.packedRGB())
			} else {
				_, err = fmt.Fprintf(w, "%f %f %f\n", x, y, z)
			}
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

type pcdHeader struct {
	fields int
	points int
	data   PCDType
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	key, value, _ := strings.Cut(line, " ")
	if key != name {
		return errors.Errorf("expected pcd header field %s, got %q", name, line)
	}
	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch value {
		case "x y z":
			header.fields = 3
		case "x y z rgb":
			header.fields = 4
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "POINTS":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Errorf("invalid POINTS field %s", value)
		}
		header.points = n
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	return nil
}

// ReadPCD reads a cloud written by ToPCD.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	header := pcdHeader{}
	for i := 0; i < len(pcdHeaderFields); {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", i)
		}
		line, _, _ = strings.Cut(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, i, &header); err != nil {
			return nil, err
		}
		i++
	}

	pc := NewWithPrealloc(header.points)
	for i := 0; i < header.points; i++ {
		var pos r3.Vector
		var rgb uint32
		switch header.data {
		case PCDBinary:
			buf := make([]byte, 4*header.fields)
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			pos = r3.Vector{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[0:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
			}
			if header.fields == 4 {
				rgb = binary.LittleEndian.Uint32(buf[12:])
			}
		default:
			line, err := in.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return nil, errors.Wrapf(err, "reading point %d", i)
			}
			tokens := strings.Fields(line)
			if len(tokens) != header.fields {
				return nil, errors.Errorf("unexpected number of fields in point %d", i)
			}
			var xyz [3]float64
			for j := range xyz {
				if xyz[j], err = strconv.ParseFloat(tokens[j], 32); err != nil {
					return nil, errors.Wrapf(err, "invalid point %d", i)
				}
			}
			pos = r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			if header.fields == 4 {
				c, err := strconv.ParseUint(tokens[3], 10, 32)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid color of point %d", i)
				}
				rgb = uint32(c)
			}
		}

		var d Data
		if header.fields == 4 {
			d = unpackRGB(rgb)
		}
		if err := pc.Set(pos.Mul(1000), d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
