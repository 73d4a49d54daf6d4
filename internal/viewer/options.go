package viewer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/orbit-viewer/internal/assets"
	"github.com/Faultbox/orbit-viewer/internal/config"
	"github.com/Faultbox/orbit-viewer/internal/engine/camera"
	"github.com/Faultbox/orbit-viewer/internal/engine/envmap"
	"github.com/Faultbox/orbit-viewer/internal/engine/model"
	"github.com/Faultbox/orbit-viewer/internal/engine/platform"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
)

// DefaultMountID is the container id used when Options.MountID is empty.
const DefaultMountID = "app"

// Surface is the drawable target frames are rendered into.
type Surface interface {
	SetPixelRatio(ratio float64)
	SetClearColor(rgb [3]float32)
	SetSize(width, height int)
	Render(root *scene.Node, cam *camera.Perspective)
	Close()
}

// PostChain renders the scene through full-frame effects such as bloom.
type PostChain interface {
	SetSize(width, height int)
	Render(root *scene.Node, cam *camera.Perspective)
	Close()
}

// Observer receives viewer telemetry. All methods run on the loop.
type Observer interface {
	FrameRendered()
	Resized(width, height int)
	LoadProgress(asset string, loaded, total int64)
	LoadFinished(asset string, state string)
}

// CameraOptions configures the perspective camera.
type CameraOptions struct {
	Fov      float32
	Near     float32
	Far      float32
	Position mgl32.Vec3
}

// ControlsOptions configures orbit controls.
type ControlsOptions struct {
	MinPolarAngle float32
	MaxPolarAngle float32
	MinDistance   float32
	MaxDistance   float32
	Damping       bool
}

// Options configures a Viewer.
type Options struct {
	MountID    string
	ClearColor [3]float32

	Camera   CameraOptions
	Controls *ControlsOptions // nil disables orbit controls

	// NewSurface creates the render surface for the mounted container.
	NewSurface func(c platform.Container) (Surface, error)
	// NewPost creates the post-processing chain. nil renders straight to
	// the surface.
	NewPost func(s Surface) (PostChain, error)

	// Fetcher loads asset bytes. Refs left empty are not requested.
	Fetcher   assets.Fetcher
	EnvMapRef string
	ModelRef  string
	EnvMap    envmap.Options
	Model     model.DecodeOptions
	// DecodeModel overrides how fetched model bytes become a subgraph.
	// Defaults to model.Decode with Model.
	DecodeModel func(data []byte) (*scene.Node, error)

	// TimeStep is added to the clock once per frame; 0 freezes it.
	TimeStep float64
	// SpinSpeed is the scene root yaw per clock unit.
	SpinSpeed float64

	Observer Observer
}

// OptionsFromConfig maps file/flag configuration onto viewer options. The
// surface, post chain and fetcher factories are left for the caller.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	clearRGB, err := cfg.Renderer.ClearRGB()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		MountID:    cfg.Window.MountID,
		ClearColor: clearRGB,
		Camera: CameraOptions{
			Fov:      cfg.Camera.Fov,
			Near:     cfg.Camera.Near,
			Far:      cfg.Camera.Far,
			Position: mgl32.Vec3(cfg.Camera.Position),
		},
		EnvMapRef: cfg.Assets.EnvMap,
		ModelRef:  cfg.Assets.Model,
		EnvMap: envmap.Options{
			FaceSize:   cfg.Assets.EnvMapFaceSize,
			BlurRadius: envmap.DefaultOptions().BlurRadius,
		},
		Model:     model.DecodeOptions{DracoPath: cfg.Assets.DracoPath},
		TimeStep:  cfg.Animation.TimeStep,
		SpinSpeed: cfg.Animation.SpinSpeed,
	}
	if cfg.Controls.Enabled {
		opts.Controls = &ControlsOptions{
			MinPolarAngle: cfg.Controls.MinPolarAngle,
			MaxPolarAngle: cfg.Controls.MaxPolarAngle,
			MinDistance:   cfg.Controls.MinDistance,
			MaxDistance:   cfg.Controls.MaxDistance,
			Damping:       cfg.Controls.Damping,
		}
	}
	return opts, nil
}
