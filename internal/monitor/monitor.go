// Package monitor keeps the progress display moving while a track plays.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/tui"
)

type StateSource interface {
	State() model.PlayerState
}

type Waker interface {
	Wake() error
}

type Monitor struct {
	player    StateSource
	ui        Waker
	interval  time.Duration
	prevState model.PlayerState
	logger    *slog.Logger
}

func New(player StateSource, ui Waker, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		player:   player,
		ui:       ui,
		interval: interval,
		logger:   logger,
	}
}

// Start polls the player on rt until it shuts down or the UI goes away.
func (m *Monitor) Start(rt *async.Runtime) {
	rt.Spawn("progress-monitor", func(ctx context.Context) error {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := m.refresh(); err != nil {
					m.logger.Debug("monitor: ui closed, stopping")
					return nil
				}
			}
		}
	})
}

// refresh wakes the UI on every tick while playing, and once more on the
// tick that sees playback stop so the final position is drawn.
func (m *Monitor) refresh() error {
	state := m.player.State()
	prev := m.prevState
	m.prevState = state
	if state != model.Playing && prev != model.Playing {
		return nil
	}
	err := m.ui.Wake()
	if errors.Is(err, tui.ErrSinkClosed) {
		return err
	}
	return nil
}
