// Package viewer wires the surface, scene, camera, controls, optional bloom
// chain and asset loads into a render loop driven by a platform.Loop.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/engine/camera"
	"github.com/Faultbox/orbit-viewer/internal/engine/envmap"
	"github.com/Faultbox/orbit-viewer/internal/engine/platform"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
	"github.com/Faultbox/orbit-viewer/internal/logger"
)

var (
	// ErrMissingContainer is returned by New when no container is registered
	// under the mount id.
	ErrMissingContainer = errors.New("missing container")
	// ErrNotMesh marks a loaded model whose first child is not a mesh.
	ErrNotMesh = errors.New("loaded model root is not a mesh")
)

// Fixed transform applied to a loaded model mesh.
const (
	ModelScale     = 0.1
	ModelMetalness = 1.0
	ModelRoughness = 0.28
)

// Viewer owns the scene and everything needed to draw it. All methods must be
// called on the loop.
type Viewer struct {
	loop      *platform.Loop
	opts      Options
	container platform.Container
	log       *zap.Logger

	surface  Surface
	post     PostChain
	root     *scene.Node
	camera   *camera.Perspective
	controls *camera.OrbitControls

	envMap *envmap.Map
	model  *scene.Node

	width      int
	height     int
	pixelRatio float64

	clock  float64
	frames uint64

	envStatus   AssetStatus
	modelStatus AssetStatus

	cancelFrame  func()
	removeResize func()
	cancelLoads  context.CancelFunc
	closed       bool
}

// New mounts a viewer into the container registered under opts.MountID,
// sizes it, starts the asset loads and schedules the first frame. Nothing is
// created when the container is missing.
func New(loop *platform.Loop, opts Options) (*Viewer, error) {
	if opts.MountID == "" {
		opts.MountID = DefaultMountID
	}
	container, ok := loop.Lookup(opts.MountID)
	if !ok {
		return nil, fmt.Errorf("%w: no element %q", ErrMissingContainer, opts.MountID)
	}
	if opts.NewSurface == nil {
		return nil, errors.New("viewer: NewSurface is required")
	}
	opts.Camera = opts.Camera.withDefaults()

	v := &Viewer{
		loop:      loop,
		opts:      opts,
		container: container,
		log:       logger.Named("viewer"),
		envStatus: AssetStatus{
			Ref: opts.EnvMapRef,
		},
		modelStatus: AssetStatus{
			Ref: opts.ModelRef,
		},
	}

	surface, err := opts.NewSurface(container)
	if err != nil {
		return nil, fmt.Errorf("creating surface: %w", err)
	}
	v.surface = surface
	v.pixelRatio = container.PixelRatio()
	v.surface.SetPixelRatio(v.pixelRatio)
	v.surface.SetClearColor(opts.ClearColor)

	v.root = scene.NewGroup("root")

	v.camera = camera.NewPerspective(opts.Camera.Fov, 1, opts.Camera.Near, opts.Camera.Far)
	v.camera.Position = opts.Camera.Position
	v.camera.LookAt(mgl32.Vec3{})

	if c := opts.Controls; c != nil {
		v.controls = camera.NewOrbitControls(v.camera, mgl32.Vec3{})
		v.controls.MinPolarAngle = c.MinPolarAngle
		v.controls.MaxPolarAngle = c.MaxPolarAngle
		v.controls.MinDistance = c.MinDistance
		v.controls.MaxDistance = c.MaxDistance
		v.controls.EnableDamping = c.Damping
		v.controls.Update()
	}

	if opts.NewPost != nil {
		post, err := opts.NewPost(surface)
		if err != nil {
			surface.Close()
			return nil, fmt.Errorf("creating post chain: %w", err)
		}
		v.post = post
	}

	// Size before the first frame is scheduled.
	v.Resize()
	v.removeResize = loop.AddResizeListener(v.Resize)

	ctx, cancel := context.WithCancel(context.Background())
	v.cancelLoads = cancel
	v.startLoads(ctx)

	v.cancelFrame = loop.RequestAnimationFrame(v.frame)

	v.log.Info("viewer mounted",
		zap.String("mount", opts.MountID),
		zap.Int("width", v.width),
		zap.Int("height", v.height),
		zap.Float64("pixel_ratio", v.pixelRatio),
		zap.Bool("controls", v.controls != nil),
		zap.Bool("post", v.post != nil),
	)
	return v, nil
}

func (c CameraOptions) withDefaults() CameraOptions {
	if c.Fov <= 0 {
		c.Fov = 45
	}
	if c.Near <= 0 {
		c.Near = 0.1
	}
	if c.Far <= c.Near {
		c.Far = c.Near * 1000
	}
	if c.Position == (mgl32.Vec3{}) {
		c.Position = mgl32.Vec3{0, 0, 1}
	}
	return c
}

// Resize re-reads the container size and applies it to the surface, the post
// chain and the camera. Unchanged or empty sizes are ignored.
func (v *Viewer) Resize() {
	if v.closed {
		return
	}

	if ratio := v.container.PixelRatio(); ratio != v.pixelRatio && ratio > 0 {
		v.pixelRatio = ratio
		v.surface.SetPixelRatio(ratio)
	}

	w, h := v.container.ContentSize()
	if w <= 0 || h <= 0 {
		v.log.Debug("ignoring empty container size", zap.Int("width", w), zap.Int("height", h))
		return
	}
	if w == v.width && h == v.height {
		return
	}
	v.width, v.height = w, h

	v.surface.SetSize(w, h)
	if v.post != nil {
		v.post.SetSize(w, h)
	}
	v.camera.SetAspect(float32(w) / float32(h))
	v.camera.UpdateProjectionMatrix()

	if v.opts.Observer != nil {
		v.opts.Observer.Resized(w, h)
	}
	v.log.Debug("resized", zap.Int("width", w), zap.Int("height", h))
}

func (v *Viewer) frame(time.Duration) {
	if v.closed {
		return
	}

	if v.opts.TimeStep > 0 {
		v.clock += v.opts.TimeStep
		v.root.Rotation[1] = float32(v.clock * v.opts.SpinSpeed)
	}
	if v.controls != nil {
		v.controls.Update()
	}

	if v.post != nil {
		v.post.Render(v.root, v.camera)
	} else {
		v.surface.Render(v.root, v.camera)
	}
	v.frames++
	if v.opts.Observer != nil {
		v.opts.Observer.FrameRendered()
	}

	v.cancelFrame = v.loop.RequestAnimationFrame(v.frame)
}

// Root returns the scene root.
func (v *Viewer) Root() *scene.Node { return v.root }

// Camera returns the viewer camera.
func (v *Viewer) Camera() *camera.Perspective { return v.camera }

// Controls returns the orbit controls, or nil when disabled.
func (v *Viewer) Controls() *camera.OrbitControls { return v.controls }

// EnvMap returns the loaded environment map, or nil.
func (v *Viewer) EnvMap() *envmap.Map { return v.envMap }

// Model returns the loaded model mesh, or nil.
func (v *Viewer) Model() *scene.Node { return v.model }

// Close stops the render loop, detaches the resize listener, cancels
// in-flight loads and releases the post chain and surface. Results that
// arrive afterwards are dropped. Close is idempotent.
func (v *Viewer) Close() {
	if v.closed {
		return
	}
	v.closed = true

	v.removeResize()
	if v.cancelFrame != nil {
		v.cancelFrame()
	}
	v.cancelLoads()

	if v.post != nil {
		v.post.Close()
	}
	v.surface.Close()

	v.log.Info("viewer closed", zap.Uint64("frames", v.frames))
}
