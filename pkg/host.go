package buildstamp

import (
	"context"
	"fmt"
	"sync"
)

// LocalHost is an in-process Host. Fire runs the hook registered for an event
// and waits for its completion signal.
type LocalHost struct {
	mu    sync.Mutex
	hooks map[Event]HookFunc
}

// NewLocalHost returns a host with no hooks registered.
func NewLocalHost() *LocalHost {
	return &LocalHost{hooks: make(map[Event]HookFunc)}
}

// OnFullBuild implements Host.
func (h *LocalHost) OnFullBuild(fn HookFunc) {
	h.register(EventFullBuild, fn)
}

// OnIncrementalBuild implements Host.
func (h *LocalHost) OnIncrementalBuild(fn HookFunc) {
	h.register(EventIncrementalBuild, fn)
}

func (h *LocalHost) register(ev Event, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[ev] = fn
}

// Fire invokes the hook for ev and returns the error it completed with. A
// second completion signal from a misbehaving hook is ignored.
func (h *LocalHost) Fire(ctx context.Context, ev Event) error {
	h.mu.Lock()
	fn, ok := h.hooks[ev]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no hook registered for %q", ev)
	}

	result := make(chan error, 1)
	var once sync.Once
	go fn(ctx, func(err error) {
		once.Do(func() { result <- err })
	})

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
