// Package metrics exposes viewer and asset telemetry to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/logger"
)

// Metrics holds all viewer collectors. It satisfies both viewer.Observer and
// assets.Observer.
type Metrics struct {
	registry *prometheus.Registry

	frames        prometheus.Counter
	resizes       prometheus.Counter
	surfaceWidth  prometheus.Gauge
	surfaceHeight prometheus.Gauge
	loadBytes     *prometheus.GaugeVec
	loadsFinished *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	fetchBytes    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		frames: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viewer_frames_total",
				Help: "Frames submitted by the render loop",
			},
		),
		resizes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "viewer_resizes_total",
				Help: "Resizes applied to the surface",
			},
		),
		surfaceWidth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "viewer_surface_width_pixels",
				Help: "Current surface width in logical pixels",
			},
		),
		surfaceHeight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "viewer_surface_height_pixels",
				Help: "Current surface height in logical pixels",
			},
		),
		loadBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "viewer_asset_loaded_bytes",
				Help: "Bytes received so far per asset",
			},
			[]string{"asset"},
		),
		loadsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "viewer_asset_loads_total",
				Help: "Finished asset loads by outcome",
			},
			[]string{"asset", "state"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_cache_hits_total",
				Help: "Asset fetches served from cache",
			},
			[]string{"ref"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_cache_misses_total",
				Help: "Asset fetches that went to the backend",
			},
			[]string{"ref"},
		),
		fetchLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asset_fetch_latency_ms",
				Help:    "Backend fetch latency in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		fetchBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "asset_fetched_bytes_total",
				Help: "Bytes fetched from asset backends",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FrameRendered counts one submitted frame.
func (m *Metrics) FrameRendered() {
	m.frames.Inc()
}

// Resized records a surface resize.
func (m *Metrics) Resized(width, height int) {
	m.resizes.Inc()
	m.surfaceWidth.Set(float64(width))
	m.surfaceHeight.Set(float64(height))
}

// LoadProgress records received bytes for an asset.
func (m *Metrics) LoadProgress(asset string, loaded, total int64) {
	m.loadBytes.WithLabelValues(asset).Set(float64(loaded))
}

// LoadFinished counts a terminal load state.
func (m *Metrics) LoadFinished(asset, state string) {
	m.loadsFinished.WithLabelValues(asset, state).Inc()
}

// CacheHit implements assets.Observer.
func (m *Metrics) CacheHit(ref string) {
	m.cacheHits.WithLabelValues(ref).Inc()
}

// CacheMiss implements assets.Observer.
func (m *Metrics) CacheMiss(ref string) {
	m.cacheMisses.WithLabelValues(ref).Inc()
}

// Fetched implements assets.Observer.
func (m *Metrics) Fetched(ref string, bytes int, elapsed time.Duration) {
	m.fetchLatency.Observe(float64(elapsed.Microseconds()) / 1000)
	m.fetchBytes.Add(float64(bytes))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr. The server runs until
// Close or Shutdown is called on the returned value.
func (m *Metrics) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()
	return srv
}
