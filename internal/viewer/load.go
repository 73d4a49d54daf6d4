package viewer

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/orbit-viewer/internal/assets"
	"github.com/Faultbox/orbit-viewer/internal/engine/envmap"
	"github.com/Faultbox/orbit-viewer/internal/engine/model"
	"github.com/Faultbox/orbit-viewer/internal/engine/platform"
	"github.com/Faultbox/orbit-viewer/internal/engine/scene"
)

// Asset names used in logs, status and metrics.
const (
	AssetEnvMap = "envmap"
	AssetModel  = "model"
)

func (v *Viewer) startLoads(ctx context.Context) {
	if v.opts.Fetcher == nil {
		if v.opts.EnvMapRef != "" || v.opts.ModelRef != "" {
			v.log.Warn("no asset fetcher configured, skipping loads")
		}
		return
	}

	if ref := v.opts.EnvMapRef; ref != "" {
		req := assets.NewRequest(ref)
		v.envStatus.State = StatePending
		v.log.Info("loading environment map", zap.String("ref", ref), zap.Stringer("id", req.ID))

		envOpts := v.opts.EnvMap
		ch := assets.Load(ctx, v.opts.Fetcher, req, func(data []byte) (*envmap.Map, error) {
			img, err := assets.DecodeImage(data)
			if err != nil {
				return nil, err
			}
			return envmap.FromEquirect(img, envOpts)
		})
		deliver(v.loop, ch, func(r assets.Result[*envmap.Map]) {
			handleResult(v, AssetEnvMap, &v.envStatus, r, v.onEnvMap)
		})
	}

	if ref := v.opts.ModelRef; ref != "" {
		req := assets.NewRequest(ref)
		v.modelStatus.State = StatePending
		v.log.Info("loading model", zap.String("ref", ref), zap.Stringer("id", req.ID))

		decode := v.opts.DecodeModel
		if decode == nil {
			decodeOpts := v.opts.Model
			decode = func(data []byte) (*scene.Node, error) {
				return model.Decode(data, decodeOpts)
			}
		}
		ch := assets.Load(ctx, v.opts.Fetcher, req, decode)
		deliver(v.loop, ch, func(r assets.Result[*scene.Node]) {
			handleResult(v, AssetModel, &v.modelStatus, r, v.onModel)
		})
	}
}

// deliver forwards every result on ch to handle on the loop.
func deliver[T any](loop *platform.Loop, ch <-chan assets.Result[T], handle func(assets.Result[T])) {
	go func() {
		for r := range ch {
			loop.Post(func() { handle(r) })
		}
	}()
}

// handleResult applies one load event on the loop. Events arriving after
// Close are dropped.
func handleResult[T any](v *Viewer, asset string, st *AssetStatus, r assets.Result[T], success func(T)) {
	if v.closed {
		return
	}

	switch r.Kind {
	case assets.ResultProgress:
		st.Progress = r.Fraction()
		v.log.Debug("load progress",
			zap.String("asset", asset),
			zap.Int64("loaded", r.Loaded),
			zap.Int64("total", r.Total),
		)
		if v.opts.Observer != nil {
			v.opts.Observer.LoadProgress(asset, r.Loaded, r.Total)
		}
		return

	case assets.ResultFailure:
		st.State = StateFailed
		st.Err = r.Err
		v.log.Error("load failed", zap.String("asset", asset), zap.String("ref", st.Ref), zap.Error(r.Err))

	case assets.ResultSuccess:
		st.Progress = 1
		success(r.Value)
	}

	if v.opts.Observer != nil {
		v.opts.Observer.LoadFinished(asset, st.State.String())
	}
}

func (v *Viewer) onEnvMap(m *envmap.Map) {
	v.envMap = m
	v.envStatus.State = StateLoaded
	v.log.Info("environment map ready", zap.Int("face_size", m.FaceSize))
}

// onModel attaches a loaded subgraph if its first child is a mesh. The mesh
// picks up the environment map only if it has already loaded.
func (v *Viewer) onModel(loaded *scene.Node) {
	first := loaded.FirstChild()
	if first == nil || first.Kind != scene.KindMesh {
		kind := "none"
		if first != nil {
			kind = first.Kind.String()
		}
		v.modelStatus.State = StateDiscarded
		v.modelStatus.Err = fmt.Errorf("%w: first child is %s", ErrNotMesh, kind)
		v.log.Warn("discarding model", zap.String("ref", v.modelStatus.Ref), zap.String("first_child", kind))
		return
	}

	v.root.Add(loaded)

	first.Scale = mgl32.Vec3{ModelScale, ModelScale, ModelScale}
	first.Rotation = mgl32.Vec3{}
	offset := first.Mesh.Geometry.Center()

	mat := scene.NewStandardMaterial(ModelMetalness, ModelRoughness)
	mat.EnvMap = v.envMap
	first.Mesh.Material = mat

	v.model = first
	v.modelStatus.State = StateLoaded
	v.log.Info("model attached",
		zap.String("name", first.Name),
		zap.Int("vertices", first.Mesh.Geometry.VertexCount()),
		zap.Float32s("center_offset", offset[:]),
		zap.Bool("env_map", mat.EnvMap != nil),
	)
}
