package model

import (
	"bytes"
	"errors"
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
)

// triangleDoc builds a document with one scene holding the given root nodes.
func triangleDoc(withNormals bool) (*gltf.Document, int) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2})

	attrs := map[string]int{gltf.POSITION: pos}
	if withNormals {
		attrs[gltf.NORMAL] = modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: attrs,
		}},
	})
	return doc, len(doc.Meshes) - 1
}

func encodeGLB(t *testing.T, doc *gltf.Document) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		t.Fatalf("encoding glb: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeMeshRoot(t *testing.T) {
	doc, mesh := triangleDoc(true)
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:  "human",
		Mesh:  gltf.Index(mesh),
		Scale: [3]float64{2, 2, 2},
	})
	doc.Scenes = []*gltf.Scene{{Name: "Scene", Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)

	root, err := Decode(encodeGLB(t, doc), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if root.Kind != scene.KindGroup {
		t.Errorf("root kind: got %v", root.Kind)
	}
	first := root.FirstChild()
	if first == nil || first.Kind != scene.KindMesh {
		t.Fatalf("first child should be a mesh, got %+v", first)
	}
	if first.Name != "human" {
		t.Errorf("name: got %q", first.Name)
	}
	if first.Scale != (mgl32.Vec3{2, 2, 2}) {
		t.Errorf("scale: got %v", first.Scale)
	}
	geo := first.Mesh.Geometry
	if geo.VertexCount() != 3 || len(geo.Indices) != 3 || len(geo.Normals) != 3 {
		t.Errorf("geometry: %d verts, %d indices, %d normals", geo.VertexCount(), len(geo.Indices), len(geo.Normals))
	}
}

func TestDecodeComputesMissingNormals(t *testing.T) {
	doc, mesh := triangleDoc(false)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(mesh)})
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}

	root, err := Decode(encodeGLB(t, doc), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	normals := root.FirstChild().Mesh.Geometry.Normals
	if len(normals) != 3 || normals[0] != [3]float32{0, 0, 1} {
		t.Errorf("normals: got %v", normals)
	}
}

func TestDecodeEmptyFirstChild(t *testing.T) {
	doc, mesh := triangleDoc(true)
	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "light-anchor"},
		&gltf.Node{Name: "body", Mesh: gltf.Index(mesh)},
	)
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0, 1}}}

	root, err := Decode(encodeGLB(t, doc), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if k := root.FirstChild().Kind; k != scene.KindEmpty {
		t.Errorf("first child kind: got %v, want empty", k)
	}
	if len(root.Children) != 2 {
		t.Errorf("children: got %d", len(root.Children))
	}
}

func TestDecodeNestedChildren(t *testing.T) {
	doc, mesh := triangleDoc(true)
	doc.Nodes = append(doc.Nodes,
		&gltf.Node{Name: "armature", Children: []int{1}},
		&gltf.Node{Name: "body", Mesh: gltf.Index(mesh), Translation: [3]float64{0, 1, 0}},
	)
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}

	root, err := Decode(encodeGLB(t, doc), DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	armature := root.FirstChild()
	if armature.Kind != scene.KindGroup {
		t.Fatalf("armature kind: got %v", armature.Kind)
	}
	body := armature.FirstChild()
	if body == nil || body.Kind != scene.KindMesh || body.Position != (mgl32.Vec3{0, 1, 0}) {
		t.Errorf("body: got %+v", body)
	}
}

func TestDecodeDraco(t *testing.T) {
	doc, mesh := triangleDoc(true)
	doc.Meshes[mesh].Primitives[0].Extensions = gltf.Extensions{
		ExtDraco: map[string]any{"bufferView": 0, "attributes": map[string]int{"POSITION": 0}},
	}
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(mesh)})
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}

	_, err := Build(doc, DecodeOptions{DracoPath: "/draco/"})
	if !errors.Is(err, ErrDracoUnsupported) {
		t.Fatalf("got %v, want ErrDracoUnsupported", err)
	}

	root, err := Build(doc, DecodeOptions{Draco: stubDraco{}})
	if err != nil {
		t.Fatalf("Build with decoder: %v", err)
	}
	if root.FirstChild().Mesh.Geometry.VertexCount() != 4 {
		t.Error("expected geometry from the draco decoder")
	}
}

type stubDraco struct{}

func (stubDraco) DecodePrimitive(*gltf.Document, *gltf.Primitive) (*scene.Geometry, error) {
	return &scene.Geometry{Positions: make([][3]float32, 4)}, nil
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte("definitely not gltf"), DecodeOptions{}); err == nil {
		t.Error("expected parse error")
	}

	if _, err := Build(&gltf.Document{}, DecodeOptions{}); !errors.Is(err, ErrNoScene) {
		t.Errorf("no scene: got %v", err)
	}

	doc := gltf.NewDocument()
	doc.Nodes = []*gltf.Node{{Children: []int{0}}}
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	if _, err := Build(doc, DecodeOptions{}); err == nil {
		t.Error("expected cycle error")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc *gltf.Document, prim *gltf.Primitive)
	}{
		{"position accessor", func(_ *gltf.Document, p *gltf.Primitive) { p.Attributes[gltf.POSITION] = 99 }},
		{"negative normal accessor", func(_ *gltf.Document, p *gltf.Primitive) { p.Attributes[gltf.NORMAL] = -1 }},
		{"uv accessor", func(_ *gltf.Document, p *gltf.Primitive) { p.Attributes[gltf.TEXCOORD_0] = 42 }},
		{"indices accessor", func(_ *gltf.Document, p *gltf.Primitive) { p.Indices = gltf.Index(99) }},
		{"negative material", func(_ *gltf.Document, p *gltf.Primitive) { p.Material = gltf.Index(-1) }},
		{"material past end", func(_ *gltf.Document, p *gltf.Primitive) { p.Material = gltf.Index(5) }},
		{"index past vertex count", func(doc *gltf.Document, p *gltf.Primitive) {
			p.Indices = gltf.Index(modeler.WriteIndices(doc, []uint32{0, 1, 7}))
		}},
		{"buffer view", func(doc *gltf.Document, p *gltf.Primitive) {
			doc.Accessors[p.Attributes[gltf.POSITION]].BufferView = gltf.Index(99)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, mesh := triangleDoc(false)
			tt.mutate(doc, doc.Meshes[mesh].Primitives[0])
			doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(mesh)})
			doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}

			_, err := Build(doc, DecodeOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.name != "buffer view" && !errors.Is(err, ErrMalformed) {
				t.Errorf("got %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeMalformedGLB(t *testing.T) {
	doc, mesh := triangleDoc(true)
	doc.Meshes[mesh].Primitives[0].Attributes[gltf.POSITION] = 99
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(mesh)})
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}

	if _, err := Decode(encodeGLB(t, doc), DecodeOptions{}); err == nil {
		t.Error("expected error for out of range accessor")
	}
}

func TestQuatToEulerXYZ(t *testing.T) {
	tests := []mgl32.Vec3{
		{0, 0, 0},
		{0.3, 0, 0},
		{0, 0.5, 0},
		{0, 0, -0.7},
		{0.2, -0.4, 0.6},
	}
	for _, want := range tests {
		q := mgl32.Mat4ToQuat(mgl32.HomogRotate3DX(want.X()).
			Mul4(mgl32.HomogRotate3DY(want.Y())).
			Mul4(mgl32.HomogRotate3DZ(want.Z())))
		got := quatToEulerXYZ(q)
		for i := 0; i < 3; i++ {
			if gomath.Abs(float64(got[i]-want[i])) > 1e-4 {
				t.Errorf("euler for %v: got %v", want, got)
				break
			}
		}
	}
}
