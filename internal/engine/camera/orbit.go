package camera

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitControls orbits a camera around a target using spherical coordinates.
// Polar angle is measured from +Y.
type OrbitControls struct {
	camera *Perspective

	Target mgl32.Vec3

	// Constraints
	MinPolarAngle float32
	MaxPolarAngle float32
	MinDistance   float32
	MaxDistance   float32

	// Sensitivity
	RotateSpeed float32
	ZoomSpeed   float32

	EnableDamping bool
	DampingFactor float32

	distance float32
	polar    float32
	azimuth  float32

	// pending deltas consumed by Update
	deltaPolar   float32
	deltaAzimuth float32
	zoomScale    float32
}

// NewOrbitControls attaches controls to cam, deriving the orbit from the
// camera's current position relative to target.
func NewOrbitControls(cam *Perspective, target mgl32.Vec3) *OrbitControls {
	c := &OrbitControls{
		camera:        cam,
		Target:        target,
		MinPolarAngle: 0,
		MaxPolarAngle: gomath.Pi,
		MinDistance:   0,
		MaxDistance:   float32(gomath.Inf(1)),
		RotateSpeed:   0.005,
		ZoomSpeed:     0.1,
		DampingFactor: 0.1,
		zoomScale:     1,
	}

	offset := cam.Position.Sub(target)
	c.distance = offset.Len()
	if c.distance > 0 {
		c.polar = float32(gomath.Acos(float64(clamp(offset.Y()/c.distance, -1, 1))))
		c.azimuth = float32(gomath.Atan2(float64(offset.X()), float64(offset.Z())))
	}
	return c
}

// Distance returns the current orbit radius.
func (c *OrbitControls) Distance() float32 { return c.distance }

// PolarAngle returns the current angle from +Y in radians.
func (c *OrbitControls) PolarAngle() float32 { return c.polar }

// AzimuthAngle returns the current angle around Y in radians.
func (c *OrbitControls) AzimuthAngle() float32 { return c.azimuth }

// HandleDrag queues a rotation from a mouse drag delta in pixels.
func (c *OrbitControls) HandleDrag(deltaX, deltaY float32) {
	c.deltaAzimuth -= deltaX * c.RotateSpeed
	c.deltaPolar -= deltaY * c.RotateSpeed
}

// HandleZoom queues a dolly from a scroll wheel delta. Positive zooms in.
func (c *OrbitControls) HandleZoom(delta float32) {
	c.zoomScale *= 1 - delta*c.ZoomSpeed
	if c.zoomScale <= 0 {
		c.zoomScale = 0.01
	}
}

// Update applies queued input, clamps the orbit and moves the camera.
// Returns true if the camera moved.
func (c *OrbitControls) Update() bool {
	factor := float32(1)
	if c.EnableDamping {
		factor = c.DampingFactor
	}

	c.azimuth += c.deltaAzimuth * factor
	c.polar += c.deltaPolar * factor
	c.polar = clamp(c.polar, c.MinPolarAngle, c.MaxPolarAngle)
	// Keep away from the poles where the view matrix degenerates.
	c.polar = clamp(c.polar, 1e-6, gomath.Pi-1e-6)

	c.distance *= c.zoomScale
	c.distance = clamp(c.distance, c.MinDistance, c.MaxDistance)

	if c.EnableDamping {
		c.deltaAzimuth *= 1 - c.DampingFactor
		c.deltaPolar *= 1 - c.DampingFactor
	} else {
		c.deltaAzimuth = 0
		c.deltaPolar = 0
	}
	c.zoomScale = 1

	sinPolar := float32(gomath.Sin(float64(c.polar)))
	offset := mgl32.Vec3{
		c.distance * sinPolar * float32(gomath.Sin(float64(c.azimuth))),
		c.distance * float32(gomath.Cos(float64(c.polar))),
		c.distance * sinPolar * float32(gomath.Cos(float64(c.azimuth))),
	}

	pos := c.Target.Add(offset)
	moved := !pos.ApproxEqualThreshold(c.camera.Position, 1e-5)
	c.camera.Position = pos
	c.camera.LookAt(c.Target)
	return moved
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
