// Package notify announces track changes on the desktop and to optional
// webhook and ntfy endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/model"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier fires system notifications and optional webhook POSTs when a new
// track starts playing. It implements events.Publisher.
type Notifier struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client
	queue  chan model.Track

	mu      sync.Mutex
	lastURI string
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
		queue:  make(chan model.Track, 4),
	}
}

// Start delivers queued notifications on rt until it shuts down.
func (n *Notifier) Start(rt *async.Runtime) {
	rt.Spawn("notify", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t := <-n.queue:
				n.Notify(t)
			}
		}
	})
}

// Publish queues a notification when playback moves to a different track.
// It never blocks the caller.
func (n *Notifier) Publish(state model.PlayerState, current *model.Track) {
	if !n.cfg.Enabled || state != model.Playing || current == nil {
		return
	}
	n.mu.Lock()
	if current.URI == n.lastURI {
		n.mu.Unlock()
		return
	}
	n.lastURI = current.URI
	n.mu.Unlock()

	select {
	case n.queue <- *current:
	default:
		n.logger.Warn("notification dropped", "track", current.Display())
	}
}

// Notify sends every configured notification for t synchronously.
func (n *Notifier) Notify(t model.Track) {
	if !n.cfg.Enabled {
		return
	}

	n.sendSystemNotification(t)

	if n.cfg.Webhook != "" {
		n.sendWebhook(t)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(t)
	}
}

func (n *Notifier) systemCommand(t model.Track) *exec.Cmd {
	title, body := "Now playing", t.Display()
	// A blank command means no override.
	if fields := strings.Fields(n.cfg.Command); len(fields) > 0 {
		return exec.Command(fields[0], append(fields[1:], title, body)...)
	}
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf(`display notification %q with title "tunedeck" subtitle %q`, body, title)
		return exec.Command("osascript", "-e", script)
	}
	if _, err := exec.LookPath("notify-send"); err != nil {
		return nil
	}
	return exec.Command("notify-send", "--app-name=tunedeck", title, body)
}

func (n *Notifier) sendSystemNotification(t model.Track) {
	cmd := n.systemCommand(t)
	if cmd == nil {
		return
	}
	if err := cmd.Run(); err != nil {
		n.logger.Warn("notify: system notification failed", "cmd", cmd.Path, "err", err)
	}
}

type webhookPayload struct {
	Event     string   `json:"event"`
	URI       string   `json:"uri"`
	Title     string   `json:"title"`
	Artists   []string `json:"artists"`
	Album     string   `json:"album"`
	Timestamp string   `json:"timestamp"`
}

func (n *Notifier) sendWebhook(t model.Track) {
	payload := webhookPayload{
		Event:     "track_started",
		URI:       t.URI,
		Title:     t.Title,
		Artists:   t.Artists,
		Album:     t.Album,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	n.post("webhook", n.cfg.Webhook, payload)
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(t model.Track) {
	payload := ntfyPayload{
		Title:    "Now playing",
		Message:  t.Display(),
		Priority: 2,
		Tags:     []string{"musical_note"},
	}
	n.post("ntfy", n.cfg.NtfyURL, payload)
}

func (n *Notifier) post(kind, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: "+kind+" failed", "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: "+kind+" rejected", "status", resp.StatusCode)
	}
}
