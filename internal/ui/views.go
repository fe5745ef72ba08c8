package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/zsprackett/tunedeck/internal/model"
)

type LibrarySource interface {
	Loaded() bool
	Tracks() []*model.Track
}

type QueueControl interface {
	QueueSource
	Len() int
	Append(tracks ...*model.Track)
	Play(i int)
	Remove(i int)
}

// SavedSource reports whether a track is in the saved library.
type SavedSource interface {
	IsSaved(uri string) bool
}

func newTable(theme Theme) *tview.Table {
	t := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSelectedStyle(tcell.StyleDefault.
			Background(theme.Selected).
			Foreground(theme.SelectedText))
	t.SetBackgroundColor(theme.Background)
	return t
}

func setHeader(t *tview.Table, theme Theme, titles ...string) {
	for i, title := range titles {
		t.SetCell(0, i, tview.NewTableCell(title).
			SetTextColor(theme.Primary).
			SetSelectable(false).
			SetExpansion(1))
	}
}

func setRow(t *tview.Table, row int, color tcell.Color, cols ...string) {
	for i, c := range cols {
		t.SetCell(row, i, tview.NewTableCell(c).SetTextColor(color).SetExpansion(1))
	}
}

func artists(t *model.Track) string { return strings.Join(t.Artists, ", ") }

func trackLength(t *model.Track) string {
	if t.Duration <= 0 {
		return ""
	}
	return formatDuration(t.Duration)
}

// LibraryView lists saved tracks, newest first. Enter queues and plays the
// selected track.
type LibraryView struct {
	*tview.Table
	library LibrarySource
	queue   QueueControl
	theme   Theme
	tracks  []*model.Track
}

func NewLibraryView(library LibrarySource, queue QueueControl, theme Theme) *LibraryView {
	v := &LibraryView{Table: newTable(theme), library: library, queue: queue, theme: theme}
	v.SetSelectedFunc(func(row, _ int) {
		if row < 1 || row > len(v.tracks) {
			return
		}
		v.queue.Append(v.tracks[row-1])
		v.queue.Play(v.queue.Len() - 1)
	})
	return v
}

func (v *LibraryView) Draw(screen tcell.Screen) {
	v.refresh()
	v.Table.Draw(screen)
}

func (v *LibraryView) refresh() {
	v.Clear()
	if !v.library.Loaded() {
		v.tracks = nil
		v.SetCell(0, 0, tview.NewTableCell("Loading library…").SetTextColor(v.theme.Muted).SetSelectable(false))
		return
	}
	v.tracks = v.library.Tracks()
	setHeader(v.Table, v.theme, "Title", "Artists", "Album", "Length", "Added")
	for i, t := range v.tracks {
		added := ""
		if !t.AddedAt.IsZero() {
			added = humanize.Time(t.AddedAt)
		}
		setRow(v.Table, i+1, v.theme.Text, t.Title, artists(t), t.Album, trackLength(t), added)
	}
	if row, _ := v.GetSelection(); row == 0 && len(v.tracks) > 0 {
		v.Select(1, 0)
	}
}

// QueueView lists the play queue and highlights the current track. Enter
// jumps to the selected entry and Delete or d removes it. Saved tracks are
// marked.
type QueueView struct {
	*tview.Table
	queue QueueControl
	saved SavedSource
	theme Theme
}

func NewQueueView(queue QueueControl, saved SavedSource, theme Theme) *QueueView {
	v := &QueueView{Table: newTable(theme), queue: queue, saved: saved, theme: theme}
	v.SetSelectedFunc(func(row, _ int) {
		if row >= 1 && row <= v.queue.Len() {
			v.queue.Play(row - 1)
		}
	})
	v.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() != tcell.KeyDelete && (ev.Key() != tcell.KeyRune || ev.Rune() != 'd') {
			return ev
		}
		if row, _ := v.GetSelection(); row >= 1 && row <= v.queue.Len() {
			v.queue.Remove(row - 1)
		}
		return nil
	})
	return v
}

func (v *QueueView) Draw(screen tcell.Screen) {
	v.refresh()
	v.Table.Draw(screen)
}

func (v *QueueView) refresh() {
	v.Clear()
	tracks := v.queue.Tracks()
	current := v.queue.CurrentIndex()
	setHeader(v.Table, v.theme, "#", "Title", "Artists", "Length", "")
	for i, t := range tracks {
		color := v.theme.Text
		marker := fmt.Sprint(i + 1)
		if i == current {
			color = v.theme.Accent
			marker = IconPlaying
		}
		saved := ""
		if v.saved != nil && v.saved.IsSaved(t.URI) {
			saved = IconSaved
		}
		setRow(v.Table, i+1, color, marker, t.Title, artists(t), trackLength(t), saved)
	}
	if len(tracks) == 0 {
		v.SetCell(1, 1, tview.NewTableCell("Queue is empty").SetTextColor(v.theme.Muted).SetSelectable(false))
		return
	}
	if row, _ := v.GetSelection(); row == 0 || row > len(tracks) {
		v.Select(min(max(row, 1), len(tracks)), 0)
	}
}

// NewHelpView lists the active keybindings.
func NewHelpView(bindings map[string]string, theme Theme) *tview.TextView {
	var b strings.Builder
	b.WriteString("[yellow]Keybindings[-]\n\n")
	for _, key := range slices.Sorted(maps.Keys(bindings)) {
		fmt.Fprintf(&b, "  [green]%-10s[-] %s\n", tview.Escape(key), tview.Escape(bindings[key]))
	}
	b.WriteString("\nCommands can also be sent with [green]tunedeck send <command>[-].")

	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	tv.SetBorder(true).SetTitle(" Help ").SetTitleAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.Background)
	tv.SetText(b.String())
	return tv
}
