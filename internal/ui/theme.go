package ui

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/tunedeck/internal/model"
)

// Theme colors for the TUI.
type Theme struct {
	Background   tcell.Color
	Panel        tcell.Color
	Primary      tcell.Color
	Accent       tcell.Color
	Text         tcell.Color
	Muted        tcell.Color
	Playing      tcell.Color
	Paused       tcell.Color
	Error        tcell.Color
	Selected     tcell.Color
	SelectedText tcell.Color
}

func DefaultTheme() Theme {
	return Theme{
		Background:   tcell.NewHexColor(0x1e1e2e),
		Panel:        tcell.NewHexColor(0x181825),
		Primary:      tcell.NewHexColor(0x89b4fa), // blue
		Accent:       tcell.NewHexColor(0xcba6f7), // mauve
		Text:         tcell.NewHexColor(0xcdd6f4),
		Muted:        tcell.NewHexColor(0x6c7086),
		Playing:      tcell.NewHexColor(0xa6e3a1), // green
		Paused:       tcell.NewHexColor(0xf9e2af), // yellow
		Error:        tcell.NewHexColor(0xf38ba8), // red
		Selected:     tcell.NewHexColor(0x89b4fa),
		SelectedText: tcell.NewHexColor(0x1e1e2e),
	}
}

func (t *Theme) slots() map[string]*tcell.Color {
	return map[string]*tcell.Color{
		"background":    &t.Background,
		"panel":         &t.Panel,
		"primary":       &t.Primary,
		"accent":        &t.Accent,
		"text":          &t.Text,
		"muted":         &t.Muted,
		"playing":       &t.Playing,
		"paused":        &t.Paused,
		"error":         &t.Error,
		"selected":      &t.Selected,
		"selected_text": &t.SelectedText,
	}
}

// LoadTheme overlays the configured colors on the default theme. Values are
// color names or #rrggbb. Entries that cannot be applied are returned as
// errors and leave the default in place.
func LoadTheme(overrides map[string]string) (Theme, []error) {
	t := DefaultTheme()
	slots := t.slots()
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		slot, ok := slots[name]
		if !ok {
			errs = append(errs, fmt.Errorf("theme: unknown color %q", name))
			continue
		}
		c := tcell.GetColor(overrides[name])
		if c == tcell.ColorDefault {
			errs = append(errs, fmt.Errorf("theme: invalid value %q for %s", overrides[name], name))
			continue
		}
		*slot = c
	}
	return t, errs
}

// Icons for playback state and saved tracks.
const (
	IconPlaying  = "▶"
	IconPaused   = "⏸"
	IconStopped  = "◻"
	IconFinished = "✓"
	IconSaved    = "♥"
)

func (t Theme) StatusIcon(state model.PlayerState) (string, tcell.Color) {
	switch state {
	case model.Playing:
		return IconPlaying, t.Playing
	case model.Paused:
		return IconPaused, t.Paused
	case model.FinishedTrack:
		return IconFinished, t.Muted
	default:
		return IconStopped, t.Muted
	}
}
