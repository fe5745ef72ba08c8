package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/zsprackett/tunedeck/internal/model"
)

type PlaybackSource interface {
	State() model.PlayerState
	Elapsed() time.Duration
	Volume() int
}

type QueueSource interface {
	Tracks() []*model.Track
	CurrentIndex() int
	Current() *model.Track
	Repeat() model.RepeatMode
	Shuffled() bool
}

// StatusBar renders the current track and playback position. It reads its
// sources on every draw so a wake-up is enough to refresh it.
type StatusBar struct {
	*tview.Box
	player PlaybackSource
	queue  QueueSource
	theme  Theme
}

func NewStatusBar(player PlaybackSource, queue QueueSource, theme Theme) *StatusBar {
	b := &StatusBar{Box: tview.NewBox(), player: player, queue: queue, theme: theme}
	b.SetBackgroundColor(theme.Panel)
	return b
}

func (b *StatusBar) Draw(screen tcell.Screen) {
	b.Box.DrawForSubclass(screen, b)
	x, y, width, _ := b.GetInnerRect()
	if width <= 0 {
		return
	}
	state := b.player.State()
	icon, color := b.theme.StatusIcon(state)
	left, right := statusText(state, b.queue.Current(), b.player.Elapsed(), b.player.Volume(), b.queue.Repeat(), b.queue.Shuffled())

	base := tcell.StyleDefault.Background(b.theme.Panel).Foreground(b.theme.Text)
	right = runewidth.Truncate(right, width, "")
	rw := runewidth.StringWidth(right)
	put(screen, x+width-rw, y, right, base.Foreground(b.theme.Muted))

	avail := width - rw - 1
	if avail <= 2 {
		return
	}
	n := put(screen, x, y, icon+" ", base.Foreground(color))
	put(screen, x+n, y, runewidth.Truncate(left, avail-n, "…"), base)
}

// statusText returns the left (track) and right (position and modes) halves
// of the status bar.
func statusText(state model.PlayerState, t *model.Track, elapsed time.Duration, volume int, repeat model.RepeatMode, shuffled bool) (string, string) {
	left := "Not playing"
	var pos string
	if t != nil && state != model.Stopped {
		left = t.Display()
		pos = formatDuration(elapsed)
		if t.Duration > 0 {
			pos += " / " + formatDuration(t.Duration)
		}
	}

	var parts []string
	if pos != "" {
		parts = append(parts, pos)
	}
	switch repeat {
	case model.RepeatTrack:
		parts = append(parts, "[R1]")
	case model.RepeatPlaylist:
		parts = append(parts, "[R]")
	}
	if shuffled {
		parts = append(parts, "[Z]")
	}
	parts = append(parts, fmt.Sprintf("vol %d%%", volume))
	return left, strings.Join(parts, "  ")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// put writes s at (x, y) and returns the number of columns used.
func put(screen tcell.Screen, x, y int, s string, style tcell.Style) int {
	col := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		screen.SetContent(x+col, y, r, nil, style)
		col += w
	}
	return col
}
