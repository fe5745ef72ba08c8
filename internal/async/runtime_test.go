package async_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zsprackett/tunedeck/internal/async"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShutdownCancelsTasks(t *testing.T) {
	rt := async.New(context.Background(), discardLogger())
	var stopped atomic.Int32
	for range 3 {
		rt.Spawn("wait", func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return ctx.Err()
		})
	}
	rt.Shutdown(time.Second)
	assert.Equal(t, int32(3), stopped.Load())
	assert.Error(t, rt.Context().Err())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFailingTaskIsLoggedAndOthersKeepRunning(t *testing.T) {
	logs := &syncBuffer{}
	rt := async.New(context.Background(), slog.New(slog.NewTextHandler(logs, nil)))

	rt.Spawn("broken", func(context.Context) error { return errors.New("boom") })
	alive := make(chan struct{})
	rt.Spawn("healthy", func(ctx context.Context) error {
		close(alive)
		<-ctx.Done()
		return nil
	})
	<-alive

	assert.Eventually(t, func() bool { return strings.Contains(logs.String(), "task=broken") }, time.Second, 5*time.Millisecond)
	assert.NoError(t, rt.Context().Err())
	rt.Shutdown(time.Second)
}

func TestShutdownTimesOut(t *testing.T) {
	var logs bytes.Buffer
	rt := async.New(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	release := make(chan struct{})
	defer close(release)
	rt.Spawn("stuck", func(context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	rt.Shutdown(20 * time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, logs.String(), "still running")
}
