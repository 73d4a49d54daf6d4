// Package envmap converts equirectangular panoramas into cube maps used for
// image based reflections.
package envmap

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	gomath "math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/go-gl/mathgl/mgl32"
)

// Face indexes a cube map face in GL order.
type Face int

const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// FaceCount is the number of cube faces.
const FaceCount = 6

// DefaultFaceSize is the edge length of each cube face in texels.
const DefaultFaceSize = 256

// ErrEmptyImage is returned for nil or zero-sized panoramas.
var ErrEmptyImage = errors.New("envmap: empty source image")

// Map is a preprocessed reflection map. It is read-only once built.
type Map struct {
	FaceSize int
	// Faces holds the sharp cube faces, indexed by Face.
	Faces [FaceCount]*image.RGBA
	// Blurred holds low-frequency copies of Faces sampled by rough materials.
	Blurred [FaceCount]*image.RGBA
}

// Options tunes preprocessing.
type Options struct {
	FaceSize   int
	BlurRadius float64
}

// DefaultOptions returns the standard preprocessing settings.
func DefaultOptions() Options {
	return Options{FaceSize: DefaultFaceSize, BlurRadius: 6}
}

// FromEquirect samples an equirectangular panorama into six cube faces.
func FromEquirect(src image.Image, opts Options) (*Map, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if opts.FaceSize <= 0 {
		return nil, fmt.Errorf("envmap: invalid face size %d", opts.FaceSize)
	}

	// Each face covers 90 degrees, so 4 faces span the panorama width.
	panoW, panoH := opts.FaceSize*4, opts.FaceSize*2
	var pano *image.RGBA
	if b := src.Bounds(); b.Dx() > panoW || b.Dy() > panoH {
		pano = transform.Resize(src, panoW, panoH, transform.Linear)
	} else if rgba, ok := src.(*image.RGBA); ok {
		pano = rgba
	} else {
		pano = clone.AsRGBA(src)
	}

	m := &Map{FaceSize: opts.FaceSize}
	for f := Face(0); f < FaceCount; f++ {
		m.Faces[f] = renderFace(pano, f, opts.FaceSize)
		if opts.BlurRadius > 0 {
			m.Blurred[f] = blur.Gaussian(m.Faces[f], opts.BlurRadius)
		} else {
			m.Blurred[f] = m.Faces[f]
		}
	}
	return m, nil
}

func renderFace(pano *image.RGBA, f Face, size int) *image.RGBA {
	face := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			u := 2*(float32(x)+0.5)/float32(size) - 1
			v := 2*(float32(y)+0.5)/float32(size) - 1
			face.SetRGBA(x, y, sample(pano, FaceDirection(f, u, v)))
		}
	}
	return face
}

// FaceDirection returns the world direction for face coordinates u, v in [-1, 1],
// following the GL cube map layout.
func FaceDirection(f Face, u, v float32) mgl32.Vec3 {
	var d mgl32.Vec3
	switch f {
	case FacePosX:
		d = mgl32.Vec3{1, -v, -u}
	case FaceNegX:
		d = mgl32.Vec3{-1, -v, u}
	case FacePosY:
		d = mgl32.Vec3{u, 1, v}
	case FaceNegY:
		d = mgl32.Vec3{u, -1, -v}
	case FacePosZ:
		d = mgl32.Vec3{u, -v, 1}
	default:
		d = mgl32.Vec3{-u, -v, -1}
	}
	return d.Normalize()
}

// sample looks up the panorama texel seen along dir.
func sample(pano *image.RGBA, dir mgl32.Vec3) color.RGBA {
	b := pano.Bounds()
	w, h := b.Dx(), b.Dy()

	lon := gomath.Atan2(float64(dir.Z()), float64(dir.X()))
	lat := gomath.Asin(clamp(float64(dir.Y()), -1, 1))

	px := int((lon/(2*gomath.Pi) + 0.5) * float64(w))
	py := int((0.5 - lat/gomath.Pi) * float64(h))
	if px >= w {
		px = w - 1
	}
	if py >= h {
		py = h - 1
	}
	if px < 0 {
		px = 0
	}
	if py < 0 {
		py = 0
	}
	return pano.RGBAAt(b.Min.X+px, b.Min.Y+py)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
