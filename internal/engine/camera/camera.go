// Package camera provides the perspective camera and orbit controls.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Perspective is a perspective projection camera looking at Target.
type Perspective struct {
	Fov    float32 // vertical field of view, degrees
	Aspect float32
	Near   float32
	Far    float32

	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	projection      mgl32.Mat4
	projectionDirty bool
}

// NewPerspective creates a camera at the origin looking down -Z.
func NewPerspective(fov, aspect, near, far float32) *Perspective {
	c := &Perspective{
		Fov:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: mgl32.Vec3{0, 0, -1},
		Up:     mgl32.Vec3{0, 1, 0},
	}
	c.UpdateProjectionMatrix()
	return c
}

// SetAspect changes the aspect ratio and marks the projection dirty.
func (c *Perspective) SetAspect(aspect float32) {
	if c.Aspect == aspect {
		return
	}
	c.Aspect = aspect
	c.projectionDirty = true
}

// ProjectionDirty reports whether the projection needs recomputing.
func (c *Perspective) ProjectionDirty() bool {
	return c.projectionDirty
}

// UpdateProjectionMatrix recomputes the projection from Fov/Aspect/Near/Far.
func (c *Perspective) UpdateProjectionMatrix() {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	c.projection = mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
	c.projectionDirty = false
}

// ProjectionMatrix returns the projection, recomputing it if dirty.
func (c *Perspective) ProjectionMatrix() mgl32.Mat4 {
	if c.projectionDirty {
		c.UpdateProjectionMatrix()
	}
	return c.projection
}

// ViewMatrix returns the world-to-camera matrix.
func (c *Perspective) ViewMatrix() mgl32.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.Target, up)
}

// LookAt points the camera at target.
func (c *Perspective) LookAt(target mgl32.Vec3) {
	c.Target = target
}
