package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Window.Width != 1280 || cfg.Window.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.MountID != "app" {
		t.Errorf("expected mount id 'app', got %s", cfg.Window.MountID)
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync to be true by default")
	}
	if cfg.Renderer.ClearColor != "#eeeeee" {
		t.Errorf("expected clear color #eeeeee, got %s", cfg.Renderer.ClearColor)
	}
	if cfg.Assets.EnvMap != "environment-map.jpg" {
		t.Errorf("expected env map environment-map.jpg, got %s", cfg.Assets.EnvMap)
	}
	if cfg.Assets.Model != "human.glb" {
		t.Errorf("expected model human.glb, got %s", cfg.Assets.Model)
	}
	if cfg.Assets.DracoPath != "/draco/" {
		t.Errorf("expected draco path /draco/, got %s", cfg.Assets.DracoPath)
	}
	if cfg.Bloom.Enabled {
		t.Error("expected bloom to be disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "viewer.yaml")

	yamlContent := `
window:
  width: 1920
  height: 1080
  fullscreen: true
  mount_id: "viewport"

renderer:
  clear_color: "#101820"
  exposure: 1.4

camera:
  fov: 60
  position: [0, 1, 4]

bloom:
  enabled: true
  strength: 1.2

assets:
  base: "s3://models"
  model: "statue.glb"
  s3:
    endpoint: "minio.local:9000"
    use_ssl: false

animation:
  time_step: 0.05
  spin_speed: 0.5

metrics:
  listen: ":9100"

logging:
  level: "debug"
  log_file: "viewer.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 1920 || cfg.Window.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.MountID != "viewport" {
		t.Errorf("expected mount id viewport, got %s", cfg.Window.MountID)
	}
	if cfg.Camera.Position != [3]float32{0, 1, 4} {
		t.Errorf("expected camera position (0,1,4), got %v", cfg.Camera.Position)
	}
	// Unset keys keep their defaults
	if cfg.Camera.Near != 0.1 {
		t.Errorf("expected default near plane, got %g", cfg.Camera.Near)
	}
	if !cfg.Bloom.Enabled || cfg.Bloom.Strength != 1.2 {
		t.Errorf("unexpected bloom config %+v", cfg.Bloom)
	}
	if cfg.Bloom.Threshold != 0.85 {
		t.Errorf("expected default bloom threshold, got %g", cfg.Bloom.Threshold)
	}
	if cfg.Assets.EnvMap != "environment-map.jpg" {
		t.Errorf("expected default env map, got %s", cfg.Assets.EnvMap)
	}
	if cfg.Assets.S3.Endpoint != "minio.local:9000" {
		t.Errorf("expected s3 endpoint, got %s", cfg.Assets.S3.Endpoint)
	}
	if cfg.Animation.SpinSpeed != 0.5 {
		t.Errorf("expected spin speed 0.5, got %g", cfg.Animation.SpinSpeed)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Errorf("expected metrics listen :9100, got %s", cfg.Metrics.Listen)
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file viewer.log, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
window:
  width: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/viewer.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero width", func(c *Config) { c.Window.Width = 0 }, "window size"},
		{"empty mount", func(c *Config) { c.Window.MountID = "" }, "mount_id"},
		{"bad clear color", func(c *Config) { c.Renderer.ClearColor = "grey" }, "clear_color"},
		{"fov", func(c *Config) { c.Camera.Fov = 180 }, "fov"},
		{"planes", func(c *Config) { c.Camera.Far = 0.05 }, "near < far"},
		{"distance", func(c *Config) { c.Controls.MinDistance = 10 }, "min_distance"},
		{"polar", func(c *Config) { c.Controls.MinPolarAngle = math.Pi }, "min_polar_angle"},
		{"bloom", func(c *Config) { c.Bloom.Strength = -1 }, "bloom"},
		{"face size", func(c *Config) { c.Assets.EnvMapFaceSize = 0 }, "face_size"},
		{"time step", func(c *Config) { c.Animation.TimeStep = -0.1 }, "time_step"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestClearRGB(t *testing.T) {
	rgb, err := RendererConfig{ClearColor: "#ff8000"}.ClearRGB()
	if err != nil {
		t.Fatalf("ClearRGB: %v", err)
	}
	if rgb[0] != 1 || rgb[1] != float32(0x80)/255 || rgb[2] != 0 {
		t.Errorf("unexpected rgb %v", rgb)
	}
	if _, err := (RendererConfig{ClearColor: "#zzzzzz"}).ClearRGB(); err == nil {
		t.Error("expected error for non-hex color")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "viewer.yaml")
	if err := os.WriteFile(configPath, []byte("window:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find viewer.yaml in current directory")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "viewer.yaml")
	cfg := Default()
	cfg.Assets.Model = "robot.glb"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Assets.Model != "robot.glb" {
		t.Errorf("expected model robot.glb after reload, got %s", loaded.Assets.Model)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(cfg *Config) {
				if !cfg.Window.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "asset flags",
			setup: func() {
				*flagModel = "robot.glb"
				*flagEnvMap = "studio.webp"
				*flagAssets = "https://cdn.example.com/viewer"
			},
			verify: func(cfg *Config) {
				if cfg.Assets.Model != "robot.glb" || cfg.Assets.EnvMap != "studio.webp" {
					t.Errorf("unexpected assets %+v", cfg.Assets)
				}
				if cfg.Assets.Base != "https://cdn.example.com/viewer" {
					t.Errorf("unexpected asset base %s", cfg.Assets.Base)
				}
			},
			teardown: func() {
				*flagModel = ""
				*flagEnvMap = ""
				*flagAssets = ""
			},
		},
		{
			name:  "bloom and metrics flags",
			setup: func() { *flagBloom = true; *flagMetrics = ":9100" },
			verify: func(cfg *Config) {
				if !cfg.Bloom.Enabled {
					t.Error("expected bloom enabled")
				}
				if cfg.Metrics.Listen != ":9100" {
					t.Errorf("expected metrics listen :9100, got %s", cfg.Metrics.Listen)
				}
			},
			teardown: func() { *flagBloom = false; *flagMetrics = "" },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(cfg *Config) {
				if cfg.Window.Width != 2560 || cfg.Window.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "viewer.yaml")

	yamlContent := `
window:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width from flag, height from file
	if cfg.Window.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "viewer.yaml")
	if err := os.WriteFile(configPath, []byte("camera:\n  near: 0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected validation error for near=0")
	}
}

func TestLoadFromFileStrict(t *testing.T) {
	dir := t.TempDir()

	typo := filepath.Join(dir, "typo.yaml")
	if err := os.WriteFile(typo, []byte("window:\n  widht: 800\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := loadFromFile(Default(), typo); err == nil {
		t.Error("expected error for unknown key")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, empty); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Window.Width != 1280 {
		t.Errorf("expected defaults after empty file, got width %d", cfg.Window.Width)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvS3AccessKey: "viewer",
		EnvS3SecretKey: "hunter2",
		EnvAssetsBase:  "s3://models",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	applyEnv(cfg, lookup)

	if cfg.Assets.S3.AccessKey != "viewer" || cfg.Assets.S3.SecretKey != "hunter2" {
		t.Errorf("unexpected s3 credentials %+v", cfg.Assets.S3)
	}
	if cfg.Assets.Base != "s3://models" {
		t.Errorf("expected base from env, got %s", cfg.Assets.Base)
	}

	cfg = Default()
	applyEnv(cfg, func(string) (string, bool) { return "", false })
	if cfg.Assets.Base != "assets" {
		t.Errorf("expected default base without env, got %s", cfg.Assets.Base)
	}
}

func TestSaveToOmitsSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	cfg := Default()
	cfg.Assets.S3.AccessKey = "viewer"
	cfg.Assets.S3.SecretKey = "hunter2"

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if cfg.Assets.S3.SecretKey != "hunter2" {
		t.Error("SaveTo modified the receiver")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("secret key written to disk")
	}
	if !strings.Contains(string(data), "viewer") {
		t.Error("access key missing from saved config")
	}
}

func TestFormattedConfigHidesSecret(t *testing.T) {
	cfg := Default()
	cfg.Assets.S3.Endpoint = "minio.local:9000"
	cfg.Assets.S3.AccessKey = "viewer"
	cfg.Assets.S3.SecretKey = "hunter2"

	for _, format := range []string{"%v", "%+v", "%s"} {
		out := fmt.Sprintf(format, cfg)
		if strings.Contains(out, "hunter2") {
			t.Errorf("%s leaks the secret: %s", format, out)
		}
		if !strings.Contains(out, "minio.local:9000") || !strings.Contains(out, "<redacted>") {
			t.Errorf("%s: unexpected s3 formatting: %s", format, out)
		}
	}

	if s := (S3Config{}).String(); strings.Contains(s, "redacted") {
		t.Errorf("empty secret should not be marked redacted: %s", s)
	}
}
