package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh pairs geometry with a material.
type Mesh struct {
	Geometry *Geometry
	Material *StandardMaterial
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the middle of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Geometry holds vertex attributes ready for GPU upload.
type Geometry struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Indices   []uint32

	// Version changes whenever vertex data is rewritten so GPU copies can be refreshed.
	Version uint64
}

// Bounds computes the bounding box of all positions.
func (g *Geometry) Bounds() Bounds {
	if len(g.Positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: g.Positions[0], Max: g.Positions[0]}
	for _, p := range g.Positions[1:] {
		updateBounds(&b, p)
	}
	return b
}

// Center translates all positions so the bounding box center sits at the
// origin. Returns the offset that was subtracted.
func (g *Geometry) Center() mgl32.Vec3 {
	c := g.Bounds().Center()
	if c == [3]float32{} {
		return mgl32.Vec3{}
	}
	for i := range g.Positions {
		g.Positions[i][0] -= c[0]
		g.Positions[i][1] -= c[1]
		g.Positions[i][2] -= c[2]
	}
	g.Version++
	return mgl32.Vec3(c)
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions)
}

// ComputeVertexNormals fills Normals by accumulating face normals per vertex.
func (g *Geometry) ComputeVertexNormals() {
	normals := make([]mgl32.Vec3, len(g.Positions))
	face := func(a, b, c uint32) {
		if int(a) >= len(g.Positions) || int(b) >= len(g.Positions) || int(c) >= len(g.Positions) {
			return
		}
		pa, pb, pc := mgl32.Vec3(g.Positions[a]), mgl32.Vec3(g.Positions[b]), mgl32.Vec3(g.Positions[c])
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	if len(g.Indices) > 0 {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			face(g.Indices[i], g.Indices[i+1], g.Indices[i+2])
		}
	} else {
		for i := 0; i+2 < len(g.Positions); i += 3 {
			face(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	g.Normals = make([][3]float32, len(normals))
	for i, n := range normals {
		if n.Len() == 0 {
			g.Normals[i] = [3]float32{0, 1, 0}
			continue
		}
		g.Normals[i] = n.Normalize()
	}
	g.Version++
}

func updateBounds(b *Bounds, p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}
