// Package app hosts the viewer in an SDL window: it owns the window, GL
// renderer, asset backends and metrics, and drives the main loop.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/assets"
	"github.com/Faultbox/orbit-viewer/internal/config"
	"github.com/Faultbox/orbit-viewer/internal/engine/input"
	"github.com/Faultbox/orbit-viewer/internal/engine/platform"
	"github.com/Faultbox/orbit-viewer/internal/engine/postfx"
	"github.com/Faultbox/orbit-viewer/internal/engine/renderer"
	"github.com/Faultbox/orbit-viewer/internal/engine/screenshot"
	"github.com/Faultbox/orbit-viewer/internal/engine/window"
	"github.com/Faultbox/orbit-viewer/internal/logger"
	"github.com/Faultbox/orbit-viewer/internal/metrics"
	"github.com/Faultbox/orbit-viewer/internal/viewer"
)

// Ambient light for meshes rendered without an environment map.
var defaultAmbient = [3]float32{0.3, 0.3, 0.3}

// Frame budget when vsync is off.
const idleFrameTime = time.Second / 60

// App is the running viewer application.
type App struct {
	cfg     *config.Config
	running bool

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	loop     *platform.Loop
	viewer   *viewer.Viewer

	assets     *assets.Manager
	metrics    *metrics.Metrics
	metricsSrv *http.Server

	screenshots    *screenshot.Capture
	wantScreenshot bool
}

// New creates the window and renderer, mounts the viewer and starts the
// asset loads.
func New(cfg *config.Config) (*App, error) {
	logger.Info("initializing viewer",
		zap.String("title", cfg.Window.Title),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height),
	)

	a := &App{
		cfg:         cfg,
		input:       input.New(),
		loop:        platform.NewLoop(),
		metrics:     metrics.New(),
		screenshots: screenshot.New("screenshots", "orbit-viewer"),
	}

	// Create window (this also creates OpenGL context)
	var err error
	a.window, err = window.New(window.Config{
		Title:      cfg.Window.Title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Create renderer (AFTER window, since OpenGL context must exist)
	a.renderer, err = renderer.New(renderer.Config{
		Exposure: cfg.Renderer.Exposure,
		Ambient:  defaultAmbient,
	})
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	fetcher, err := NewFetcher(cfg.Assets)
	if err != nil {
		a.renderer.Close()
		a.window.Close()
		return nil, err
	}
	a.assets = assets.NewManager(fetcher, a.metrics)

	opts, err := viewer.OptionsFromConfig(cfg)
	if err != nil {
		a.renderer.Close()
		a.window.Close()
		return nil, err
	}
	opts.Fetcher = a.assets
	opts.Observer = a.metrics
	opts.NewSurface = func(platform.Container) (viewer.Surface, error) {
		return a.renderer, nil
	}
	if cfg.Bloom.Enabled {
		opts.NewPost = func(viewer.Surface) (viewer.PostChain, error) {
			c, err := postfx.NewComposer(a.renderer, postfx.BloomOptions{
				Strength:  cfg.Bloom.Strength,
				Radius:    cfg.Bloom.Radius,
				Threshold: cfg.Bloom.Threshold,
			})
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	a.viewer, err = mount(a.loop, cfg.Window.MountID, a.window, opts)
	if err != nil {
		a.renderer.Close()
		a.window.Close()
		return nil, fmt.Errorf("failed to mount viewer: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		a.metricsSrv = a.metrics.Serve(cfg.Metrics.Listen)
	}

	logger.Info("viewer initialized successfully")
	return a, nil
}

// mount registers c under id and mounts a viewer into it. The registration
// is undone when mounting fails.
func mount(loop *platform.Loop, id string, c platform.Container, opts viewer.Options) (*viewer.Viewer, error) {
	loop.Register(id, c)
	opts.MountID = id
	v, err := viewer.New(loop, opts)
	if err != nil {
		loop.Unregister(id)
		return nil, err
	}
	return v, nil
}

// NewFetcher builds the asset router for cfg. The S3 backend is only
// configured when an endpoint is set.
func NewFetcher(cfg config.AssetsConfig) (assets.Fetcher, error) {
	router := assets.Router{
		Base: cfg.Base,
		File: assets.FileFetcher{},
		HTTP: assets.HTTPFetcher{Client: &http.Client{}},
	}
	if cfg.S3.Endpoint != "" {
		s3, err := assets.NewS3Fetcher(assets.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring s3 assets: %w", err)
		}
		router.S3 = s3
	}
	return router, nil
}

// Run drives the main loop until the window is closed or ESC is pressed.
// With vsync each iteration is one display refresh.
func (a *App) Run() error {
	a.running = true

	start := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting main loop")

	for a.running {
		frameStart := time.Now()

		if a.input.Update() {
			a.running = false
			break
		}
		a.handleEvents()

		a.loop.Step(time.Since(start))

		if a.wantScreenshot {
			a.wantScreenshot = false
			a.captureScreenshot()
		}

		a.window.SwapBuffers()

		// Without vsync, idle until the frame budget is used up or a load
		// result is posted.
		if !a.cfg.Window.VSync {
			if rest := idleFrameTime - time.Since(frameStart); rest > 0 {
				a.loop.Wait(rest)
			}
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			st := a.viewer.Status()
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("envmap", st.EnvMap.State.String()),
				zap.String("model", st.Model.State.String()),
			)
			a.window.SetTitle(windowTitle(a.cfg.Window.Title, frameCount, st))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

// windowTitle shows fps and, while loading, the model progress.
func windowTitle(base string, fps int, st viewer.Status) string {
	switch st.Model.State {
	case viewer.StatePending:
		return fmt.Sprintf("%s - %d fps - loading %.0f%%", base, fps, st.Model.Progress*100)
	case viewer.StateFailed, viewer.StateDiscarded:
		return fmt.Sprintf("%s - %d fps - model %s", base, fps, st.Model.State)
	}
	return fmt.Sprintf("%s - %d fps", base, fps)
}

func (a *App) handleEvents() {
	controls := a.viewer.Controls()

	for _, event := range a.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			a.loop.DispatchResize()
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				a.running = false
			case sdl.SCANCODE_F12:
				a.wantScreenshot = true
			}
		case input.EventMouseDrag:
			if controls != nil {
				controls.HandleDrag(event.DeltaX, event.DeltaY)
			}
		case input.EventMouseWheel:
			if controls != nil {
				controls.HandleZoom(event.DeltaY)
			}
		}
	}
}

func (a *App) captureScreenshot() {
	path, err := a.screenshots.Save(a.renderer.ReadPixels())
	if err != nil {
		logger.Error("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

// Status returns the viewer status.
func (a *App) Status() viewer.Status {
	return a.viewer.Status()
}

// Close tears down the viewer, metrics endpoint and window.
func (a *App) Close() {
	logger.Info("closing viewer")

	// Closes the post chain and renderer.
	a.viewer.Close()
	a.assets.Close()

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
		cancel()
	}

	a.loop.Unregister(a.cfg.Window.MountID)
	a.window.Close()
}
