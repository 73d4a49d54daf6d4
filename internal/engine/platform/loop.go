// Package platform provides the single-threaded main loop the viewer runs on:
// a posted-task queue, animation frame requests, resize listeners and a
// registry of mount containers.
//
// Everything scheduled on a Loop runs on the goroutine that calls Step, which
// for the SDL host is the locked main OS thread. Only Post and Wake are safe to
// call from other goroutines.
package platform

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Container is a mount point the viewer renders into.
type Container interface {
	// ContentSize returns the drawable content box in logical pixels.
	ContentSize() (width, height int)
	// PixelRatio returns physical pixels per logical pixel.
	PixelRatio() float64
}

// FrameFunc is an animation frame callback. now is the loop time of the step.
type FrameFunc func(now time.Duration)

// Loop is the main-thread scheduler.
type Loop struct {
	mu     sync.Mutex
	posted []func()
	wake   chan struct{}

	// main-thread only
	frames     map[uint64]FrameFunc
	frameOrder []uint64
	resize     map[uint64]func()
	mounts     map[string]Container
	nextID     uint64
	frameCount uint64
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		frames: make(map[uint64]FrameFunc),
		resize: make(map[uint64]func()),
		mounts: make(map[string]Container),
	}
}

// Register makes c available under id.
func (l *Loop) Register(id string, c Container) {
	l.mounts[id] = c
}

// Unregister removes the container registered under id.
func (l *Loop) Unregister(id string) {
	delete(l.mounts, id)
}

// Lookup returns the container registered under id.
func (l *Loop) Lookup(id string) (Container, bool) {
	c, ok := l.mounts[id]
	return c, ok
}

// Post queues fn to run on the loop. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wake is signalled whenever a task is posted.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

// Wait blocks until a task is posted or timeout elapses. It reports whether
// a post woke it. Hosts without vsync use it to idle between steps.
func (l *Loop) Wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-l.wake:
		return true
	case <-t.C:
		return false
	}
}

// Pending returns the number of posted tasks not yet run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posted)
}

// RequestAnimationFrame schedules fn for the next step. The returned func
// cancels the request if it has not run yet.
func (l *Loop) RequestAnimationFrame(fn FrameFunc) (cancel func()) {
	l.nextID++
	id := l.nextID
	l.frames[id] = fn
	l.frameOrder = append(l.frameOrder, id)
	return func() {
		delete(l.frames, id)
	}
}

// PendingFrames returns the number of frame callbacks waiting for the next step.
func (l *Loop) PendingFrames() int {
	return len(l.frames)
}

// AddResizeListener registers fn for DispatchResize.
func (l *Loop) AddResizeListener(fn func()) (remove func()) {
	l.nextID++
	id := l.nextID
	l.resize[id] = fn
	return func() {
		delete(l.resize, id)
	}
}

// DispatchResize notifies every resize listener.
func (l *Loop) DispatchResize() {
	for _, id := range slices.Sorted(maps.Keys(l.resize)) {
		if fn, ok := l.resize[id]; ok {
			fn()
		}
	}
}

// Step runs posted tasks, then the frame callbacks requested before this step.
// Frames requested while the step runs are deferred to the next step.
func (l *Loop) Step(now time.Duration) {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
	}

	order := l.frameOrder
	l.frameOrder = nil
	for _, id := range order {
		fn, ok := l.frames[id]
		if !ok {
			continue
		}
		delete(l.frames, id)
		fn(now)
	}
	l.frameCount++
}

// Steps returns how many steps have run.
func (l *Loop) Steps() uint64 {
	return l.frameCount
}
