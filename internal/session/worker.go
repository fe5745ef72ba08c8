// Package session runs the streaming session worker: a websocket client of
// the playback daemon that turns its event frames into player and queue
// events for the UI goroutine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zsprackett/tunedeck/internal/applog"
	"github.com/zsprackett/tunedeck/internal/events"
	"github.com/zsprackett/tunedeck/internal/model"
)

type Config struct {
	// URL is the daemon's HTTP base address; the worker connects to its
	// /events websocket.
	URL   string
	Token string
	// PreloadLead is how long before the end of a track the queue is asked
	// to preload the next one.
	PreloadLead time.Duration
}

// Frame is one message on the daemon's event stream.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type progress struct {
	Position int64 `json:"position"`
	Duration int64 `json:"duration"`
}

type Worker struct {
	cfg    Config
	events *events.Manager
	dialer *websocket.Dialer
	logger *slog.Logger
}

func NewWorker(cfg Config, em *events.Manager, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		events: em,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

// Run connects to the daemon and forwards events until ctx is cancelled.
// Any other exit is reported as events.SessionDied.
func (w *Worker) Run(ctx context.Context, resume *model.Session, connected func()) error {
	sess := model.Session{ID: uuid.NewString(), StartedAt: time.Now()}
	if resume != nil {
		sess.ID = resume.ID
		w.logger.Info("resuming session", "session", sess.ID)
	}

	err := w.run(ctx, sess, connected)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	w.logger.Error("session worker exited", "session", sess.ID, "err", err)
	w.events.Send(events.SessionDied{})
	return nil
}

func (w *Worker) run(ctx context.Context, sess model.Session, connected func()) error {
	endpoint, err := eventsURL(w.cfg.URL)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("X-Session-Id", sess.ID)
	if w.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+w.cfg.Token)
	}
	conn, _, err := w.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.logger.Debug("session connected", "session", sess.ID, "url", endpoint)
	t := newTracker(w.cfg.PreloadLead, func() {
		w.events.Send(events.Queue{Occurrence: model.PreloadTrackRequest})
	})
	defer t.stop()

	first := true
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if first {
			first = false
			if connected != nil {
				connected()
			}
		}
		w.handle(f, t)
	}
}

func (w *Worker) handle(f Frame, t *tracker) {
	var p progress
	if len(f.Data) > 0 {
		// Frames without progress data leave p zeroed.
		_ = json.Unmarshal(f.Data, &p)
	}
	switch f.Type {
	case "metadata", "seek":
		t.update(ms(p.Position), ms(p.Duration))
		return
	case "volume", "active", "inactive":
		return
	}
	state, ok := model.ParsePlayerState(f.Type)
	if !ok {
		w.logger.Log(context.Background(), applog.LevelTrace, "ignoring frame", "type", f.Type)
		return
	}
	switch state {
	case model.Playing:
		t.play()
	case model.Paused:
		t.pause()
	default:
		t.reset()
	}
	w.events.Send(events.Player{State: state})
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func eventsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("backend url must be http(s) or ws(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	return u.String(), nil
}
