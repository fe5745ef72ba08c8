// Package async provides the background runtime that hosts every goroutine
// outside the UI loop. It is constructed once at startup and passed to each
// component that spawns work.
package async

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *slog.Logger
}

func New(parent context.Context, logger *slog.Logger) *Runtime {
	ctx, cancel := context.WithCancel(parent)
	// The group context is not used: one failing task must not cancel the others.
	group := &errgroup.Group{}
	return &Runtime{ctx: ctx, cancel: cancel, group: group, logger: logger}
}

// Context is cancelled when the runtime shuts down.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Spawn runs fn on its own goroutine. A returned error other than context
// cancellation is logged under name.
func (r *Runtime) Spawn(name string, fn func(ctx context.Context) error) {
	r.group.Go(func() error {
		err := fn(r.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("background task failed", "task", name, "err", err)
		}
		return nil
	})
}

// Shutdown cancels every task and waits up to timeout for them to return.
func (r *Runtime) Shutdown(timeout time.Duration) {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		r.logger.Warn("background tasks still running after shutdown", "timeout", timeout)
	}
}
