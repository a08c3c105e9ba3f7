package framesource

import (
	"context"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"go.viam.com/depthmesh/components/depthsensor/simdevice"
	"go.viam.com/depthmesh/rimage"
	"go.viam.com/depthmesh/rimage/transform"
)

// Scene dimensions in millimeters, in the depth camera frame (x right, y down, z forward).
const (
	wallDistance    = 2500.0
	sphereDistance  = 1500.0
	sphereRadius    = 300.0
	sphereSwing     = 450.0
	checkerSize     = 200.0
	maxRange        = 4500.0
	swingPeriodSecs = 4.0
	dropoutPerMille = 8
)

// Synthetic renders a wall with a checkerboard gradient and a sphere swinging in front of it.
// Depth and color are rendered through their own cameras so the calibration registers them.
// A few depth samples per frame are dropped to zero, as real sensors do on edges.
type Synthetic struct {
	calib      *transform.DepthColorIntrinsicsExtrinsics
	depthRays  []r3.Vector
	rotation   []float64
	colorEye   r3.Vector
	framesSecs float64
	seed       uint64
}

// NewSynthetic precomputes the camera rays of both sensors.
func NewSynthetic(calib *transform.DepthColorIntrinsicsExtrinsics, fps float64, seed int64) (*Synthetic, error) {
	if err := calib.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "synthetic source needs a valid calibration")
	}
	if fps <= 0 {
		fps = simdevice.DefaultFPS
	}
	table, err := calib.DepthTable()
	if err != nil {
		return nil, err
	}
	s := &Synthetic{
		calib:      calib,
		depthRays:  make([]r3.Vector, len(table)),
		framesSecs: 1 / fps,
		seed:       uint64(seed),
	}
	for i, t := range table {
		s.depthRays[i] = r3.Vector{X: float64(t[0]), Y: float64(t[1]), Z: 1}
	}

	s.rotation = calib.ExtrinsicD2C.RotationMatrix
	t := calib.ExtrinsicD2C.TranslationVector
	s.colorEye = s.toDepth(r3.Vector{X: -t[0], Y: -t[1], Z: -t[2]})
	return s, nil
}

// toDepth rotates a color-frame direction into the depth frame: p_d = R^T (p_c - t).
func (s *Synthetic) toDepth(v r3.Vector) r3.Vector {
	r := s.rotation
	return r3.Vector{
		X: r[0]*v.X + r[3]*v.Y + r[6]*v.Z,
		Y: r[1]*v.X + r[4]*v.Y + r[7]*v.Z,
		Z: r[2]*v.X + r[5]*v.Y + r[8]*v.Z,
	}
}

func (s *Synthetic) colorRay(u, v int) r3.Vector {
	x, y := s.calib.ColorCamera.Normalize(float64(u), float64(v))
	if s.calib.ColorLens != nil {
		x, y = s.calib.ColorLens.Undistort(x, y)
	}
	return s.toDepth(r3.Vector{X: x, Y: y, Z: 1})
}

// Open always succeeds.
func (s *Synthetic) Open(ctx context.Context) error {
	return nil
}

// Close does nothing.
func (s *Synthetic) Close() error {
	return nil
}

func (s *Synthetic) sphereCenter(seq uint64) r3.Vector {
	phase := 2 * math.Pi * float64(seq) * s.framesSecs / swingPeriodSecs
	return r3.Vector{X: sphereSwing * math.Sin(phase), Y: 100 * math.Cos(2*phase), Z: sphereDistance}
}

// hit intersects a ray with the scene and returns the distance along dir, the point and
// whether the sphere was hit.
func hit(eye, dir, center r3.Vector) (float64, r3.Vector, bool) {
	// sphere: |eye + t*dir - center|^2 = radius^2
	oc := eye.Sub(center)
	a := dir.Dot(dir)
	b := 2 * oc.Dot(dir)
	c := oc.Dot(oc) - sphereRadius*sphereRadius
	if disc := b*b - 4*a*c; disc >= 0 {
		if t := (-b - math.Sqrt(disc)) / (2 * a); t > 0 {
			return t, eye.Add(dir.Mul(t)), true
		}
	}
	if dir.Z <= 0 {
		return math.Inf(1), r3.Vector{}, false
	}
	t := (wallDistance - eye.Z) / dir.Z
	return t, eye.Add(dir.Mul(t)), false
}

// RenderDepth writes z in millimeters for every depth pixel.
func (s *Synthetic) RenderDepth(seq uint64, dst *rimage.DepthMap) error {
	data := dst.Data()
	if len(data) != len(s.depthRays) {
		return errors.Errorf("depth raster holds %d samples, camera has %d pixels", len(data), len(s.depthRays))
	}
	center := s.sphereCenter(seq)
	for i, ray := range s.depthRays {
		_, p, _ := hit(r3.Vector{}, ray, center)
		if p.Z <= 0 || p.Z > maxRange || s.dropped(seq, i) {
			data[i] = 0
			continue
		}
		data[i] = uint16(math.Round(p.Z))
	}
	return nil
}

// RenderColor shades every color pixel.
func (s *Synthetic) RenderColor(seq uint64, dst *rimage.ColorFrame) error {
	cam := s.calib.ColorCamera
	if dst.Width() != cam.Width || dst.Height() != cam.Height {
		return errors.Errorf("color raster is %dx%d, camera is %dx%d",
			dst.Width(), dst.Height(), cam.Width, cam.Height)
	}
	center := s.sphereCenter(seq)
	light := r3.Vector{X: -0.4, Y: -0.6, Z: -0.7}.Normalize()
	hue := math.Mod(float64(seq)*s.framesSecs*30, 360)
	for v := 0; v < cam.Height; v++ {
		for u := 0; u < cam.Width; u++ {
			_, p, onSphere := hit(s.colorEye, s.colorRay(u, v), center)
			var c color.NRGBA
			switch {
			case onSphere:
				normal := p.Sub(center).Normalize()
				shade := 0.25 + 0.75*math.Max(0, normal.Dot(light))
				c = toNRGBA(colorful.Hsv(hue, 0.8, shade))
			case p.Z > 0:
				c = wallColor(p)
			}
			dst.SetNRGBA(u, v, c)
		}
	}
	return nil
}

// wallColor is a yellow to blue gradient modulated by a checkerboard.
func wallColor(p r3.Vector) color.NRGBA {
	dist := math.Min(1, math.Hypot(p.X+2000, p.Y+1500)/5000)
	base := colorful.Color{R: 1 - dist, G: 1 - dist, B: dist}
	cx := int(math.Floor(p.X / checkerSize))
	cy := int(math.Floor(p.Y / checkerSize))
	if (cx+cy)&1 == 0 {
		base = base.BlendRgb(colorful.Color{}, 0.35)
	}
	return toNRGBA(base)
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// dropped picks a deterministic, sparse set of missing samples per frame.
func (s *Synthetic) dropped(seq uint64, i int) bool {
	h := s.seed ^ (seq * 0x9e3779b97f4a7c15) ^ (uint64(i) * 0xbf58476d1ce4e5b9)
	h ^= h >> 31
	h *= 0x94d049bb133111eb
	h ^= h >> 29
	return h%1000 < dropoutPerMille
}
