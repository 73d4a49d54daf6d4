package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ResultKind discriminates load results.
type ResultKind int

const (
	ResultProgress ResultKind = iota
	ResultSuccess
	ResultFailure
)

func (k ResultKind) String() string {
	switch k {
	case ResultProgress:
		return "progress"
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Request identifies one asset load.
type Request struct {
	ID  uuid.UUID
	Ref string
}

// NewRequest creates a request with a fresh ID.
func NewRequest(ref string) Request {
	return Request{ID: uuid.New(), Ref: ref}
}

// Result is one event of a load: zero or more progress updates followed by
// exactly one success or failure.
type Result[T any] struct {
	Request Request
	Kind    ResultKind
	Value   T
	Loaded  int64
	Total   int64
	Err     error
}

// Fraction returns Loaded/Total, or 0 when the total is unknown.
func (r Result[T]) Fraction() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Loaded) / float64(r.Total)
}

// Terminal reports whether r ends the load.
func (r Result[T]) Terminal() bool {
	return r.Kind != ResultProgress
}

// progressBuffer bounds queued progress events; extra updates are dropped.
const progressBuffer = 16

// Load fetches req.Ref and decodes it on a new goroutine. The returned channel
// yields progress events, then exactly one terminal result, then closes.
// Progress is best effort and may be dropped when the consumer lags. If ctx is
// cancelled the terminal result is a failure carrying ctx.Err(), and it is
// dropped if nobody is receiving.
func Load[T any](ctx context.Context, f Fetcher, req Request, decode func([]byte) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], progressBuffer+1)

	// Shared fetches may report progress after this load has finished.
	var (
		mu   sync.Mutex
		done bool
	)

	go func() {
		defer func() {
			mu.Lock()
			done = true
			close(ch)
			mu.Unlock()
		}()

		progress := func(loaded, total int64) {
			mu.Lock()
			defer mu.Unlock()
			if done {
				return
			}
			select {
			case ch <- Result[T]{Request: req, Kind: ResultProgress, Loaded: loaded, Total: total}:
			default:
			}
		}

		finish := func(r Result[T]) {
			select {
			case ch <- r:
			case <-ctx.Done():
			}
		}

		data, err := f.Fetch(ctx, req.Ref, progress)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			finish(Result[T]{Request: req, Kind: ResultFailure, Err: fmt.Errorf("fetching %s: %w", req.Ref, err)})
			return
		}

		value, err := safeDecode(decode, data)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			finish(Result[T]{Request: req, Kind: ResultFailure, Err: fmt.Errorf("decoding %s: %w", req.Ref, err)})
			return
		}
		finish(Result[T]{Request: req, Kind: ResultSuccess, Value: value, Loaded: int64(len(data)), Total: int64(len(data))})
	}()

	return ch
}

// ErrDecodePanic wraps a panic raised by a decode func.
var ErrDecodePanic = errors.New("decoder panicked")

func safeDecode[T any](decode func([]byte) (T, error), data []byte) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, fmt.Errorf("%w: %v", ErrDecodePanic, r)
		}
	}()
	return decode(data)
}
