package player_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/player"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type run struct {
	resume *model.Session
	ctx    context.Context
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []run
	// connect makes every run report a successful connection.
	connect bool
}

func (f *fakeRunner) Run(ctx context.Context, resume *model.Session, connected func()) error {
	if f.connect {
		connected()
	}
	f.mu.Lock()
	f.runs = append(f.runs, run{resume: resume, ctx: ctx})
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeRunner) snapshot() []run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]run(nil), f.runs...)
}

func newPlayer(t *testing.T, cfg player.Config, runner player.Runner, url string) *player.Player {
	t.Helper()
	rt := async.New(context.Background(), discardLogger())
	t.Cleanup(func() { rt.Shutdown(time.Second) })
	return player.New(cfg, player.NewClient(url, "secret"), runner, rt, discardLogger())
}

func TestStartWorkerReplacesPrevious(t *testing.T) {
	runner := &fakeRunner{}
	p := newPlayer(t, player.Config{}, runner, "http://unused")

	resume := &model.Session{ID: "old"}
	p.StartWorker(resume)
	require.Eventually(t, func() bool { return len(runner.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	p.StartWorker(nil)
	require.Eventually(t, func() bool { return len(runner.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	runs := runner.snapshot()
	assert.Same(t, resume, runs[0].resume)
	assert.Nil(t, runs[1].resume)
	assert.Error(t, runs[0].ctx.Err(), "first worker should be cancelled")
	assert.NoError(t, runs[1].ctx.Err())
}

func TestStartWorkerGivesUpAfterMaxRestarts(t *testing.T) {
	runner := &fakeRunner{}
	p := newPlayer(t, player.Config{MaxRestarts: 2}, runner, "http://unused")

	for range 5 {
		p.StartWorker(nil)
	}
	require.Eventually(t, func() bool { return len(runner.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, runner.snapshot(), 3)
}

func TestConnectedResetsRestartCount(t *testing.T) {
	runner := &fakeRunner{connect: true}
	p := newPlayer(t, player.Config{MaxRestarts: 1}, runner, "http://unused")

	for i := range 4 {
		p.StartWorker(nil)
		require.Eventually(t, func() bool { return len(runner.snapshot()) == i+1 }, time.Second, 5*time.Millisecond)
	}
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) delays() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return regexp.MustCompile(`delay=\S+`).FindAllString(b.buf.String(), -1)
}

func newLoggedPlayer(t *testing.T, cfg player.Config, runner player.Runner) (*player.Player, *lockedBuffer) {
	t.Helper()
	logs := &lockedBuffer{}
	rt := async.New(context.Background(), discardLogger())
	t.Cleanup(func() { rt.Shutdown(time.Second) })
	logger := slog.New(slog.NewTextHandler(logs, nil))
	return player.New(cfg, player.NewClient("http://unused", "secret"), runner, rt, logger), logs
}

func TestRestartBackoffDoublesUpToMax(t *testing.T) {
	runner := &fakeRunner{}
	p, logs := newLoggedPlayer(t, player.Config{
		RestartBackoff:    20 * time.Millisecond,
		MaxRestartBackoff: 50 * time.Millisecond,
	}, runner)

	waits := []time.Duration{0, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}
	for i, wait := range waits {
		start := time.Now()
		p.StartWorker(nil)
		require.Eventually(t, func() bool { return len(runner.snapshot()) == i+1 }, time.Second, time.Millisecond)
		assert.GreaterOrEqual(t, time.Since(start), wait, "restart %d started early", i)
	}

	assert.Equal(t, []string{"delay=20ms", "delay=40ms", "delay=50ms", "delay=50ms"}, logs.delays())
}

func TestConnectedResetsBackoff(t *testing.T) {
	runner := &fakeRunner{connect: true}
	p, logs := newLoggedPlayer(t, player.Config{RestartBackoff: 20 * time.Millisecond, MaxRestartBackoff: time.Second}, runner)

	for i := range 3 {
		p.StartWorker(nil)
		require.Eventually(t, func() bool { return len(runner.snapshot()) == i+1 }, time.Second, time.Millisecond)
	}

	assert.Equal(t, []string{"delay=20ms", "delay=20ms"}, logs.delays())
}

func TestZeroBackoffRestartsImmediately(t *testing.T) {
	runner := &fakeRunner{}
	p, logs := newLoggedPlayer(t, player.Config{}, runner)

	for i := range 3 {
		p.StartWorker(nil)
		require.Eventually(t, func() bool { return len(runner.snapshot()) == i+1 }, time.Second, time.Millisecond)
	}
	assert.Empty(t, logs.delays())
}

func TestShutdownStopsRestarts(t *testing.T) {
	runner := &fakeRunner{}
	p := newPlayer(t, player.Config{}, runner, "http://unused")

	p.StartWorker(nil)
	require.Eventually(t, func() bool { return len(runner.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	p.Shutdown()
	p.StartWorker(nil)

	time.Sleep(20 * time.Millisecond)
	runs := runner.snapshot()
	require.Len(t, runs, 1)
	assert.Error(t, runs[0].ctx.Err())
}

func TestUpdateStatusTracksElapsed(t *testing.T) {
	p := newPlayer(t, player.Config{}, &fakeRunner{}, "http://unused")

	p.UpdateStatus(model.Playing)
	time.Sleep(10 * time.Millisecond)
	p.UpdateStatus(model.Paused)
	paused := p.Elapsed()
	assert.GreaterOrEqual(t, paused, 10*time.Millisecond)
	assert.Equal(t, model.Paused, p.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, paused, p.Elapsed())

	p.UpdateStatus(model.FinishedTrack)
	assert.Zero(t, p.Elapsed())
}

type posted struct {
	path string
	body map[string]any
	auth string
}

func TestCommandsReachBackend(t *testing.T) {
	got := make(chan posted, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		got <- posted{path: r.URL.Path, body: body, auth: r.Header.Get("Authorization")}
	}))
	defer srv.Close()

	p := newPlayer(t, player.Config{}, &fakeRunner{}, srv.URL)
	p.Start()

	p.Load(&model.Track{URI: "spotify:track:1"})
	p.SetVolume(150)

	first := <-got
	assert.Equal(t, "/player/play", first.path)
	assert.Equal(t, "spotify:track:1", first.body["uri"])
	assert.Equal(t, "Bearer secret", first.auth)

	second := <-got
	assert.Equal(t, "/player/volume", second.path)
	assert.EqualValues(t, 100, second.body["volume"])
	assert.Equal(t, 100, p.Volume())
	assert.Equal(t, "spotify:track:1", p.Current().URI)
}
