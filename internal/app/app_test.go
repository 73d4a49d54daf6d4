package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/orbit-viewer/internal/assets"
	"github.com/Faultbox/orbit-viewer/internal/config"
	"github.com/Faultbox/orbit-viewer/internal/engine/camera"
	"github.com/Faultbox/orbit-viewer/internal/engine/platform"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
	"github.com/Faultbox/orbit-viewer/internal/viewer"
)

func TestNewFetcherLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "human.glb"), []byte("glTF"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default().Assets
	cfg.Base = dir

	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	router, ok := f.(assets.Router)
	if !ok {
		t.Fatalf("got %T, want assets.Router", f)
	}
	if router.S3 != nil {
		t.Error("s3 backend configured without an endpoint")
	}

	data, err := f.Fetch(context.Background(), "human.glb", nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "glTF" {
		t.Errorf("data: %q", data)
	}

	if _, err := f.Fetch(context.Background(), "missing.glb", nil); !errors.Is(err, assets.ErrNotFound) {
		t.Errorf("missing asset: got %v", err)
	}
}

func TestNewFetcherS3(t *testing.T) {
	cfg := config.Default().Assets
	cfg.Base = "s3://models"
	cfg.S3 = config.S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}

	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if f.(assets.Router).S3 == nil {
		t.Error("s3 backend not configured")
	}
}

func TestNewFetcherNoS3Backend(t *testing.T) {
	cfg := config.Default().Assets
	cfg.Base = "s3://models"

	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "human.glb", nil); err == nil {
		t.Error("expected error without an s3 backend")
	}
}

func TestWindowTitle(t *testing.T) {
	tests := []struct {
		state    viewer.LoadState
		progress float64
		want     string
	}{
		{viewer.StateIdle, 0, "Viewer - 60 fps"},
		{viewer.StatePending, 0.42, "Viewer - 60 fps - loading 42%"},
		{viewer.StateLoaded, 1, "Viewer - 60 fps"},
		{viewer.StateFailed, 0.5, "Viewer - 60 fps - model failed"},
		{viewer.StateDiscarded, 1, "Viewer - 60 fps - model discarded"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			st := viewer.Status{Model: viewer.AssetStatus{State: tt.state, Progress: tt.progress}}
			if got := windowTitle("Viewer", 60, st); got != tt.want {
				t.Errorf("windowTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

type stubContainer struct{}

func (stubContainer) ContentSize() (int, int) { return 640, 480 }
func (stubContainer) PixelRatio() float64     { return 1 }

type stubSurface struct{ closed bool }

func (s *stubSurface) SetPixelRatio(float64)                   {}
func (s *stubSurface) SetClearColor([3]float32)                {}
func (s *stubSurface) SetSize(int, int)                        {}
func (s *stubSurface) Render(*scene.Node, *camera.Perspective) {}
func (s *stubSurface) Close()                                  { s.closed = true }

func TestMountUnregistersOnFailure(t *testing.T) {
	loop := platform.NewLoop()
	opts := viewer.Options{
		NewSurface: func(platform.Container) (viewer.Surface, error) {
			return nil, errors.New("no gl context")
		},
	}

	if _, err := mount(loop, "app", stubContainer{}, opts); err == nil {
		t.Fatal("expected mount error")
	}
	if _, ok := loop.Lookup("app"); ok {
		t.Error("container still registered after failed mount")
	}
}

func TestMount(t *testing.T) {
	loop := platform.NewLoop()
	surface := &stubSurface{}
	opts := viewer.Options{
		MountID: "ignored",
		NewSurface: func(platform.Container) (viewer.Surface, error) {
			return surface, nil
		},
	}

	v, err := mount(loop, "viewport", stubContainer{}, opts)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, ok := loop.Lookup("viewport"); !ok {
		t.Error("container not registered")
	}
	if st := v.Status(); st.Width != 640 || st.Height != 480 {
		t.Errorf("status size: got %dx%d", st.Width, st.Height)
	}

	v.Close()
	if !surface.closed {
		t.Error("surface not closed")
	}
}
