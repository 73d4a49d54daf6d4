// Package scene provides the scene graph the viewer renders: group, mesh and
// empty nodes with local transforms, plus mesh geometry and materials.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Kind tags what a node carries.
type Kind int

const (
	KindGroup Kind = iota
	KindMesh
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Node is a scene graph node. Only KindMesh nodes have a non-nil Mesh.
type Node struct {
	Name string
	Kind Kind

	Position mgl32.Vec3
	Rotation mgl32.Vec3 // Euler XYZ, radians
	Scale    mgl32.Vec3

	Mesh     *Mesh
	Children []*Node

	parent *Node
}

// NewGroup creates an empty group node with identity transform.
func NewGroup(name string) *Node {
	return &Node{Name: name, Kind: KindGroup, Scale: mgl32.Vec3{1, 1, 1}}
}

// NewEmpty creates a transform-only node.
func NewEmpty(name string) *Node {
	return &Node{Name: name, Kind: KindEmpty, Scale: mgl32.Vec3{1, 1, 1}}
}

// NewMesh creates a mesh node.
func NewMesh(name string, geo *Geometry, mat *StandardMaterial) *Node {
	return &Node{
		Name:  name,
		Kind:  KindMesh,
		Scale: mgl32.Vec3{1, 1, 1},
		Mesh:  &Mesh{Geometry: geo, Material: mat},
	}
}

// Add appends child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
}

// Remove detaches child from n. Returns false if child was not a direct child.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0]
}

// LocalMatrix returns T * R(xyz) * S.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	t := mgl32.Translate3D(n.Position.X(), n.Position.Y(), n.Position.Z())
	r := mgl32.HomogRotate3DX(n.Rotation.X()).
		Mul4(mgl32.HomogRotate3DY(n.Rotation.Y())).
		Mul4(mgl32.HomogRotate3DZ(n.Rotation.Z()))
	s := mgl32.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z())
	return t.Mul4(r).Mul4(s)
}

// Walk visits n and its descendants depth-first with their world matrices.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, world mgl32.Mat4) bool) {
	n.walk(mgl32.Ident4(), fn)
}

func (n *Node) walk(parent mgl32.Mat4, fn func(*Node, mgl32.Mat4) bool) {
	world := parent.Mul4(n.LocalMatrix())
	if !fn(n, world) {
		return
	}
	for _, c := range n.Children {
		c.walk(world, fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node, mgl32.Mat4) bool {
		total++
		return true
	})
	return total
}
