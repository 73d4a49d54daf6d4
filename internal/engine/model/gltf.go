// Package model decodes glTF 2.0 assets (binary .glb or embedded .gltf) into
// scene graph subgraphs.
package model

import (
	"bytes"
	"errors"
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
)

// ExtDraco is the glTF extension name for Draco mesh compression.
const ExtDraco = "KHR_draco_mesh_compression"

var (
	// ErrNoScene is returned for documents without a scene to instantiate.
	ErrNoScene = errors.New("gltf document has no scene")
	// ErrDracoUnsupported is returned when a primitive is Draco compressed and
	// no DracoDecoder is configured.
	ErrDracoUnsupported = errors.New("draco compressed primitive without a decoder")
	// ErrMalformed marks documents referencing data they do not contain.
	ErrMalformed = errors.New("malformed gltf document")
)

// DracoDecoder decodes KHR_draco_mesh_compression primitives.
type DracoDecoder interface {
	DecodePrimitive(doc *gltf.Document, prim *gltf.Primitive) (*scene.Geometry, error)
}

// DecodeOptions configures Decode.
type DecodeOptions struct {
	Draco DracoDecoder
	// DracoPath is where decoder modules are located; reported in errors.
	DracoPath string
}

// Decode parses a glTF document and returns a group node mirroring its
// default scene. Single-primitive meshes become mesh nodes; multi-primitive
// meshes become a group of mesh nodes.
func Decode(data []byte, opts DecodeOptions) (*scene.Node, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("parsing gltf: %w", err)
	}
	return Build(doc, opts)
}

// Build instantiates the default scene of an already parsed document.
func Build(doc *gltf.Document, opts DecodeOptions) (root *scene.Node, err error) {
	// modeler indexes buffer views and buffers from the file unchecked.
	defer func() {
		if r := recover(); r != nil {
			root, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if len(doc.Scenes) == 0 {
		return nil, ErrNoScene
	}
	sceneIdx := 0
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		sceneIdx = *doc.Scene
	}
	src := doc.Scenes[sceneIdx]
	if src == nil {
		return nil, ErrNoScene
	}

	b := &builder{doc: doc, opts: opts, visiting: make(map[int]bool)}
	root = scene.NewGroup(src.Name)
	for _, idx := range src.Nodes {
		n, err := b.node(idx)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

type builder struct {
	doc      *gltf.Document
	opts     DecodeOptions
	visiting map[int]bool
}

func (b *builder) node(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("node %d is its own ancestor", idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	src := b.doc.Nodes[idx]
	if src == nil {
		return nil, fmt.Errorf("node %d is null", idx)
	}

	var n *scene.Node
	if src.Mesh != nil {
		var err error
		if n, err = b.mesh(*src.Mesh); err != nil {
			return nil, fmt.Errorf("node %q: %w", src.Name, err)
		}
	} else if len(src.Children) > 0 {
		n = scene.NewGroup("")
	} else {
		n = scene.NewEmpty("")
	}
	n.Name = src.Name

	t := src.TranslationOrDefault()
	s := src.ScaleOrDefault()
	r := src.RotationOrDefault()
	n.Position = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
	n.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
	n.Rotation = quatToEulerXYZ(mgl32.Quat{
		W: float32(r[3]),
		V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
	})

	for _, c := range src.Children {
		child, err := b.node(c)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

func (b *builder) mesh(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", idx)
	}
	m := b.doc.Meshes[idx]
	if m == nil {
		return nil, fmt.Errorf("mesh %d is null", idx)
	}
	if len(m.Primitives) == 0 {
		return nil, fmt.Errorf("mesh %q has no primitives", m.Name)
	}

	var nodes []*scene.Node
	for i, prim := range m.Primitives {
		if prim == nil {
			return nil, fmt.Errorf("mesh %q primitive %d is null", m.Name, i)
		}
		geo, err := b.geometry(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
		}
		mat, err := b.material(prim.Material)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
		}
		nodes = append(nodes, scene.NewMesh(m.Name, geo, mat))
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}

	group := scene.NewGroup(m.Name)
	for _, n := range nodes {
		group.Add(n)
	}
	return group, nil
}

func (b *builder) geometry(prim *gltf.Primitive) (*scene.Geometry, error) {
	if _, ok := prim.Extensions[ExtDraco]; ok {
		if b.opts.Draco == nil {
			return nil, fmt.Errorf("%w (decoder path %q)", ErrDracoUnsupported, b.opts.DracoPath)
		}
		return b.opts.Draco.DecodePrimitive(b.doc, prim)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("no POSITION attribute")
	}
	acc, err := b.accessor(posIdx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(b.doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	geo := &scene.Geometry{Positions: positions}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acc, err = b.accessor(idx); err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
		if geo.UVs, err = modeler.ReadTextureCoord(b.doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading uvs: %w", err)
		}
	}
	if prim.Indices != nil {
		if acc, err = b.accessor(*prim.Indices); err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		if geo.Indices, err = modeler.ReadIndices(b.doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acc, err = b.accessor(idx); err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
		if geo.Normals, err = modeler.ReadNormal(b.doc, acc, nil); err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
	} else {
		geo.ComputeVertexNormals()
	}
	for _, i := range geo.Indices {
		if int(i) >= len(geo.Positions) {
			return nil, fmt.Errorf("%w: index %d out of range for %d vertices", ErrMalformed, i, len(geo.Positions))
		}
	}
	return geo, nil
}

func (b *builder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) || b.doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrMalformed, idx)
	}
	return b.doc.Accessors[idx], nil
}

func (b *builder) material(idx *int) (*scene.StandardMaterial, error) {
	mat := scene.NewStandardMaterial(0, 1)
	if idx == nil {
		return mat, nil
	}
	if *idx < 0 || *idx >= len(b.doc.Materials) || b.doc.Materials[*idx] == nil {
		return nil, fmt.Errorf("%w: material %d out of range", ErrMalformed, *idx)
	}
	pbr := b.doc.Materials[*idx].PBRMetallicRoughness
	if pbr == nil {
		return mat, nil
	}
	c := pbr.BaseColorFactorOrDefault()
	mat.Color = [3]float32{float32(c[0]), float32(c[1]), float32(c[2])}
	mat.Metalness = float32(pbr.MetallicFactorOrDefault())
	mat.Roughness = float32(pbr.RoughnessFactorOrDefault())
	return mat, nil
}

// quatToEulerXYZ converts q to angles matching scene.Node's Rx*Ry*Rz order.
func quatToEulerXYZ(q mgl32.Quat) mgl32.Vec3 {
	m := q.Normalize().Mat4()
	m13 := float64(m.At(0, 2))
	if m13 > 1 {
		m13 = 1
	} else if m13 < -1 {
		m13 = -1
	}

	y := gomath.Asin(m13)
	var x, z float64
	if gomath.Abs(m13) < 0.9999999 {
		x = gomath.Atan2(-float64(m.At(1, 2)), float64(m.At(2, 2)))
		z = gomath.Atan2(-float64(m.At(0, 1)), float64(m.At(0, 0)))
	} else {
		x = gomath.Atan2(float64(m.At(2, 1)), float64(m.At(1, 1)))
	}
	return mgl32.Vec3{float32(x), float32(y), float32(z)}
}
