// Package player is the UI-side handle to the playback daemon. It caches the
// last reported status, forwards playback commands without blocking the
// caller, and owns the lifecycle of the session worker.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/model"
)

// Runner is the session worker. Run blocks until ctx is cancelled or the
// session ends; connected is called once the daemon has sent its first frame.
type Runner interface {
	Run(ctx context.Context, resume *model.Session, connected func()) error
}

type Config struct {
	// RestartBackoff is the delay before the first restart. Zero restarts
	// immediately every time.
	RestartBackoff    time.Duration
	MaxRestartBackoff time.Duration
	// MaxRestarts caps consecutive restarts without a successful connection.
	// Zero means unlimited.
	MaxRestarts int
}

const commandBuffer = 64

type request struct {
	path string
	body any
}

type Player struct {
	cfg    Config
	client *Client
	runner Runner
	rt     *async.Runtime
	logger *slog.Logger

	requests chan request

	mu           sync.Mutex
	state        model.PlayerState
	position     time.Duration
	resumedAt    time.Time
	volume       int
	current      *model.Track
	cancelWorker context.CancelFunc
	restarts     int
	backoff      time.Duration
	shutdown     bool
}

func New(cfg Config, client *Client, runner Runner, rt *async.Runtime, logger *slog.Logger) *Player {
	return &Player{
		cfg:      cfg,
		client:   client,
		runner:   runner,
		rt:       rt,
		logger:   logger,
		requests: make(chan request, commandBuffer),
		volume:   100,
		backoff:  cfg.RestartBackoff,
	}
}

// Start runs the command forwarding loop on the background runtime.
func (p *Player) Start() {
	p.rt.Spawn("player-commands", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req := <-p.requests:
				if err := p.client.Post(ctx, req.path, req.body); err != nil {
					p.logger.Warn("playback command failed", "path", req.path, "err", err)
				}
			}
		}
	})
}

// StartWorker replaces the running session worker with a new one. A nil
// resume starts a fresh session.
func (p *Player) StartWorker(resume *model.Session) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	if p.cancelWorker != nil {
		p.cancelWorker()
		p.cancelWorker = nil
	}
	if p.cfg.MaxRestarts > 0 && p.restarts > p.cfg.MaxRestarts {
		p.mu.Unlock()
		p.logger.Error("session worker keeps failing, giving up", "restarts", p.restarts-1)
		return
	}
	var delay time.Duration
	if p.restarts > 0 {
		delay = p.backoff
		p.backoff = min(p.backoff*2, max(p.cfg.MaxRestartBackoff, p.cfg.RestartBackoff))
	}
	p.restarts++
	ctx, cancel := context.WithCancel(p.rt.Context())
	p.cancelWorker = cancel
	p.mu.Unlock()

	if delay > 0 {
		p.logger.Info("restarting session worker", "delay", delay)
	}
	p.rt.Spawn("session-worker", func(context.Context) error {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		return p.runner.Run(ctx, resume, p.connected)
	})
}

func (p *Player) connected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restarts = 1
	p.backoff = p.cfg.RestartBackoff
}

// UpdateStatus records a state reported by the worker.
func (p *Player) UpdateStatus(state model.PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	switch state {
	case model.Playing:
		if p.state != model.Playing {
			p.resumedAt = now
		}
	case model.Paused:
		if p.state == model.Playing {
			p.position += now.Sub(p.resumedAt)
		}
	case model.Stopped, model.FinishedTrack:
		p.position = 0
	}
	p.state = state
}

func (p *Player) State() model.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Elapsed estimates the playback position of the current track.
func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == model.Playing {
		return p.position + time.Since(p.resumedAt)
	}
	return p.position
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Current returns the track last passed to Load.
func (p *Player) Current() *model.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Player) Load(t *model.Track) {
	p.mu.Lock()
	p.current = t
	p.position = 0
	p.resumedAt = time.Now()
	p.mu.Unlock()
	p.send("/player/play", map[string]any{"uri": t.URI, "paused": false})
}

func (p *Player) Preload(t *model.Track) {
	p.send("/player/preload", map[string]any{"uri": t.URI})
}

func (p *Player) Pause() { p.send("/player/pause", nil) }

func (p *Player) Resume() { p.send("/player/resume", nil) }

func (p *Player) TogglePlayback() {
	if p.State() == model.Playing {
		p.Pause()
		return
	}
	p.Resume()
}

func (p *Player) Stop() {
	p.mu.Lock()
	p.current = nil
	p.position = 0
	p.mu.Unlock()
	p.send("/player/stop", nil)
}

// Seek moves to an absolute position, or relative to the current one when
// relative is set.
func (p *Player) Seek(offset time.Duration, relative bool) {
	p.mu.Lock()
	if relative {
		pos := p.position
		if p.state == model.Playing {
			pos += time.Since(p.resumedAt)
		}
		p.position = max(pos+offset, 0)
	} else {
		p.position = max(offset, 0)
	}
	p.resumedAt = time.Now()
	p.mu.Unlock()
	p.send("/player/seek", map[string]any{"position": offset.Milliseconds(), "relative": relative})
}

// SetVolume clamps v to 0..100.
func (p *Player) SetVolume(v int) {
	v = min(max(v, 0), 100)
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	p.send("/player/volume", map[string]any{"volume": v})
}

// Shutdown stops the worker for good and asks the daemon to stop playback.
func (p *Player) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	if p.cancelWorker != nil {
		p.cancelWorker()
		p.cancelWorker = nil
	}
	p.mu.Unlock()
	p.send("/player/stop", nil)
}

func (p *Player) send(path string, body any) {
	select {
	case p.requests <- request{path: path, body: body}:
	default:
		p.logger.Warn("playback command dropped, backend busy", "path", path)
	}
}
