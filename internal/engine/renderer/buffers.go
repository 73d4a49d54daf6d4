package renderer

import (
	"image"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
)

// vertexStride is position(3) + normal(3) + uv(2) floats.
const vertexStride = 8

// interleave packs geometry attributes into one vertex buffer. Missing
// normals or uvs are zero filled.
func interleave(g *scene.Geometry) []float32 {
	out := make([]float32, 0, len(g.Positions)*vertexStride)
	for i, p := range g.Positions {
		out = append(out, p[0], p[1], p[2])
		if i < len(g.Normals) {
			n := g.Normals[i]
			out = append(out, n[0], n[1], n[2])
		} else {
			out = append(out, 0, 0, 0)
		}
		if i < len(g.UVs) {
			uv := g.UVs[i]
			out = append(out, uv[0], uv[1])
		} else {
			out = append(out, 0, 0)
		}
	}
	return out
}

// drawableSize converts a logical size into physical pixels.
func drawableSize(width, height int, ratio float64) (int32, int32) {
	if ratio <= 0 {
		ratio = 1
	}
	w := int32(gomath.Round(float64(width) * ratio))
	h := int32(gomath.Round(float64(height) * ratio))
	return max(w, 1), max(h, 1)
}

// normalMatrix returns the inverse transpose of the upper 3x3 of model.
func normalMatrix(model mgl32.Mat4) mgl32.Mat3 {
	m := model.Mat3()
	if m.Det() == 0 {
		return mgl32.Ident3()
	}
	return m.Inv().Transpose()
}

// flipRows returns an RGBA image from bottom-up GL pixel rows.
func flipRows(pixels []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img
}
