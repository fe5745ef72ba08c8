package ui

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rivo/tview"

	"github.com/zsprackett/tunedeck/internal/model"
)

// FilterTracks returns the tracks whose title, artists or album fuzzily
// match query, best match first. Equal matches keep their input order.
func FilterTracks(tracks []*model.Track, query string) []*model.Track {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	targets := make([]string, len(tracks))
	for i, t := range tracks {
		targets[i] = t.Title + " " + artists(t) + " " + t.Album
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.OriginalIndex, b.OriginalIndex)
	})
	out := make([]*model.Track, len(ranks))
	for i, r := range ranks {
		out[i] = tracks[r.OriginalIndex]
	}
	return out
}

// SearchView filters the saved library as the query changes. Enter or Tab
// in the query field moves to the results, Escape or Tab goes back, and
// Enter on a result queues and plays it.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	results *tview.Table
	library LibrarySource
	queue   QueueControl
	theme   Theme
	matches []*model.Track
}

func NewSearchView(library LibrarySource, queue QueueControl, theme Theme) *SearchView {
	v := &SearchView{
		input:   tview.NewInputField().SetLabel("Search: "),
		results: newTable(theme),
		library: library,
		queue:   queue,
		theme:   theme,
	}
	v.input.SetFieldBackgroundColor(theme.Panel).
		SetFieldTextColor(theme.Text).
		SetLabelColor(theme.Primary).
		SetBackgroundColor(theme.Background)
	v.results.SetSelectedFunc(func(row, _ int) {
		if row < 1 || row > len(v.matches) {
			return
		}
		v.queue.Append(v.matches[row-1])
		v.queue.Play(v.queue.Len() - 1)
	})
	v.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.input, 1, 0, true).
		AddItem(v.results, 0, 1, false)
	return v
}

// Query is the current search text.
func (v *SearchView) Query() string { return v.input.GetText() }

func (v *SearchView) SetQuery(q string) { v.input.SetText(q) }

func (v *SearchView) InputHandler() func(*tcell.EventKey, func(tview.Primitive)) {
	return v.WrapInputHandler(func(ev *tcell.EventKey, setFocus func(tview.Primitive)) {
		switch {
		case v.input.HasFocus():
			switch ev.Key() {
			case tcell.KeyEnter, tcell.KeyTab, tcell.KeyDown:
				if len(v.matches) > 0 {
					setFocus(v.results)
				}
				return
			}
		case v.results.HasFocus():
			row, _ := v.results.GetSelection()
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyTab ||
				ev.Key() == tcell.KeyBacktab || (ev.Key() == tcell.KeyUp && row <= 1) {
				setFocus(v.input)
				return
			}
		}
		if h := v.Flex.InputHandler(); h != nil {
			h(ev, setFocus)
		}
	})
}

func (v *SearchView) Draw(screen tcell.Screen) {
	v.refresh()
	v.Flex.Draw(screen)
}

func (v *SearchView) refresh() {
	v.results.Clear()
	if !v.library.Loaded() {
		v.matches = nil
		v.results.SetCell(0, 0, tview.NewTableCell("Loading library…").SetTextColor(v.theme.Muted).SetSelectable(false))
		return
	}
	query := v.input.GetText()
	v.matches = FilterTracks(v.library.Tracks(), query)
	setHeader(v.results, v.theme, "Title", "Artists", "Album", "Length")
	for i, t := range v.matches {
		setRow(v.results, i+1, v.theme.Text, t.Title, artists(t), t.Album, trackLength(t))
	}
	if len(v.matches) == 0 {
		msg := "Type to search your library"
		if strings.TrimSpace(query) != "" {
			msg = "No matches"
		}
		v.results.SetCell(1, 0, tview.NewTableCell(msg).SetTextColor(v.theme.Muted).SetSelectable(false))
		return
	}
	if row, _ := v.results.GetSelection(); row == 0 || row > len(v.matches) {
		v.results.Select(1, 0)
	}
}
