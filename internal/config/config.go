// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config holds all viewer settings.
type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Camera    CameraConfig    `yaml:"camera"`
	Controls  ControlsConfig  `yaml:"controls"`
	Bloom     BloomConfig     `yaml:"bloom"`
	Assets    AssetsConfig    `yaml:"assets"`
	Animation AnimationConfig `yaml:"animation"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	MountID    string `yaml:"mount_id"` // Container id the viewer mounts into
}

// RendererConfig holds surface settings.
type RendererConfig struct {
	ClearColor string  `yaml:"clear_color"` // #rrggbb
	Exposure   float32 `yaml:"exposure"`
}

// CameraConfig holds the perspective camera setup.
type CameraConfig struct {
	Fov      float32    `yaml:"fov"` // degrees
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Position [3]float32 `yaml:"position"`
}

// ControlsConfig holds orbit control limits.
type ControlsConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinPolarAngle float32 `yaml:"min_polar_angle"` // radians
	MaxPolarAngle float32 `yaml:"max_polar_angle"` // radians
	MinDistance   float32 `yaml:"min_distance"`
	MaxDistance   float32 `yaml:"max_distance"`
	Damping       bool    `yaml:"damping"`
}

// BloomConfig holds post-processing settings.
type BloomConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Strength  float32 `yaml:"strength"`
	Radius    float32 `yaml:"radius"`
	Threshold float32 `yaml:"threshold"`
}

// AssetsConfig holds asset locations.
type AssetsConfig struct {
	Base           string   `yaml:"base"` // directory, http(s):// or s3:// prefix
	EnvMap         string   `yaml:"env_map"`
	Model          string   `yaml:"model"`
	DracoPath      string   `yaml:"draco_path"`
	EnvMapFaceSize int      `yaml:"env_map_face_size"`
	S3             S3Config `yaml:"s3"`
}

// S3Config holds credentials for s3:// asset URLs.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// String formats the settings with the secret key masked, so configs can be
// logged.
func (c S3Config) String() string {
	secret := ""
	if c.SecretKey != "" {
		secret = "<redacted>"
	}
	return fmt.Sprintf("{Endpoint:%s AccessKey:%s SecretKey:%s UseSSL:%t}", c.Endpoint, c.AccessKey, secret, c.UseSSL)
}

// AnimationConfig controls the per-frame time accumulator.
type AnimationConfig struct {
	TimeStep  float64 `yaml:"time_step"`  // added to the clock every frame
	SpinSpeed float64 `yaml:"spin_speed"` // scene yaw per clock unit, radians
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // console or json
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:   "Orbit Viewer",
			Width:   1280,
			Height:  720,
			VSync:   true,
			MountID: "app",
		},
		Renderer: RendererConfig{
			ClearColor: "#eeeeee",
			Exposure:   1.0,
		},
		Camera: CameraConfig{
			Fov:      45,
			Near:     0.1,
			Far:      100,
			Position: [3]float32{0, 0, 3},
		},
		Controls: ControlsConfig{
			Enabled:       true,
			MinPolarAngle: math.Pi / 4,
			MaxPolarAngle: math.Pi / 2,
			MinDistance:   1,
			MaxDistance:   5,
			Damping:       true,
		},
		Bloom: BloomConfig{
			Enabled:   false,
			Strength:  0.5,
			Radius:    0.4,
			Threshold: 0.85,
		},
		Assets: AssetsConfig{
			Base:           "assets",
			EnvMap:         "environment-map.jpg",
			Model:          "human.glb",
			DracoPath:      "/draco/",
			EnvMapFaceSize: 256,
		},
		Animation: AnimationConfig{
			TimeStep: 0.01,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks settings that would otherwise fail deep inside the renderer.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.MountID == "" {
		errs = append(errs, errors.New("window.mount_id must not be empty"))
	}
	if _, err := c.Renderer.ClearRGB(); err != nil {
		errs = append(errs, err)
	}
	if c.Camera.Fov <= 0 || c.Camera.Fov >= 180 {
		errs = append(errs, fmt.Errorf("camera.fov must be in (0, 180), got %g", c.Camera.Fov))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, fmt.Errorf("camera planes must satisfy 0 < near < far, got near=%g far=%g", c.Camera.Near, c.Camera.Far))
	}
	if c.Controls.MinDistance > c.Controls.MaxDistance {
		errs = append(errs, fmt.Errorf("controls.min_distance %g exceeds max_distance %g", c.Controls.MinDistance, c.Controls.MaxDistance))
	}
	if c.Controls.MinPolarAngle > c.Controls.MaxPolarAngle {
		errs = append(errs, fmt.Errorf("controls.min_polar_angle %g exceeds max_polar_angle %g", c.Controls.MinPolarAngle, c.Controls.MaxPolarAngle))
	}
	if c.Bloom.Strength < 0 || c.Bloom.Radius < 0 || c.Bloom.Threshold < 0 {
		errs = append(errs, errors.New("bloom parameters must not be negative"))
	}
	if c.Assets.EnvMapFaceSize <= 0 {
		errs = append(errs, fmt.Errorf("assets.env_map_face_size must be positive, got %d", c.Assets.EnvMapFaceSize))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}
	if c.Animation.TimeStep < 0 {
		errs = append(errs, fmt.Errorf("animation.time_step must not be negative, got %g", c.Animation.TimeStep))
	}
	return errors.Join(errs...)
}

// ClearRGB parses ClearColor into normalized RGB.
func (r RendererConfig) ClearRGB() ([3]float32, error) {
	hex := strings.TrimPrefix(r.ClearColor, "#")
	if len(hex) != 6 {
		return [3]float32{}, fmt.Errorf("renderer.clear_color %q is not #rrggbb", r.ClearColor)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return [3]float32{}, fmt.Errorf("renderer.clear_color %q: %w", r.ClearColor, err)
	}
	return [3]float32{
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}
