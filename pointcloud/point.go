package pointcloud

import "image/color"

// Data is what a point carries besides its position.
type Data struct {
	Color    color.NRGBA
	HasColor bool
}

// Colored returns data for a point seen in the color image.
func Colored(c color.NRGBA) Data {
	return Data{Color: c, HasColor: true}
}

// packedRGB is the PCD rgb field: 0x00RRGGBB.
func (d Data) packedRGB() uint32 {
	if !d.HasColor {
		return 0
	}
	return uint32(d.Color.R)<<16 | uint32(d.Color.G)<<8 | uint32(d.Color.B)
}

func unpackRGB(c uint32) Data {
	return Colored(color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255})
}
