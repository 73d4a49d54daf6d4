package viewer

// LoadState is the lifecycle of one asset load.
type LoadState int

const (
	StateIdle LoadState = iota // not requested
	StatePending
	StateLoaded
	StateFailed
	StateDiscarded // loaded but rejected, see AssetStatus.Err
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// AssetStatus reports one asset load.
type AssetStatus struct {
	Ref      string
	State    LoadState
	Progress float64 // 0..1, 0 while the size is unknown
	Err      error
}

// Status is a snapshot of the viewer.
type Status struct {
	Width      int
	Height     int
	PixelRatio float64
	Frames     uint64
	Clock      float64
	EnvMap     AssetStatus
	Model      AssetStatus
	Closed     bool
}

// Status returns a snapshot of the viewer state.
func (v *Viewer) Status() Status {
	return Status{
		Width:      v.width,
		Height:     v.height,
		PixelRatio: v.pixelRatio,
		Frames:     v.frames,
		Clock:      v.clock,
		EnvMap:     v.envStatus,
		Model:      v.modelStatus,
		Closed:     v.closed,
	}
}
