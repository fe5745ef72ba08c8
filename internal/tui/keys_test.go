package tui_test

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/tunedeck/internal/tui"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want tui.Key
	}{
		{"q", tui.Key{Code: tcell.KeyRune, Rune: 'q'}},
		{">", tui.Key{Code: tcell.KeyRune, Rune: '>'}},
		{"Space", tui.Key{Code: tcell.KeyRune, Rune: ' '}},
		{"Enter", tui.Key{Code: tcell.KeyEnter}},
		{"esc", tui.Key{Code: tcell.KeyEscape}},
		{"Ctrl+P", tui.Key{Code: tcell.KeyCtrlP}},
		{"Alt+n", tui.Key{Code: tcell.KeyRune, Rune: 'n', Mod: tcell.ModAlt}},
		{"F1", tui.Key{Code: tcell.KeyF1}},
	}
	for _, tc := range cases {
		got, err := tui.ParseKey(tc.in)
		if err != nil {
			t.Errorf("ParseKey(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKey(%q): got %+v want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseKeyRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "NotAKey", "Ctrl+1"} {
		if _, err := tui.ParseKey(in); err == nil {
			t.Errorf("ParseKey(%q): expected error", in)
		}
	}
}

func TestKeyOfFoldsControlLetters(t *testing.T) {
	ev := tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModCtrl)
	if got := tui.KeyOf(ev); got.Code != tcell.KeyCtrlP {
		t.Errorf("got %+v want Ctrl+P", got)
	}
	ev = tcell.NewEventKey(tcell.KeyRune, 'P', tcell.ModShift)
	if got := tui.KeyOf(ev); got != (tui.Key{Code: tcell.KeyRune, Rune: 'P'}) {
		t.Errorf("got %+v want rune P", got)
	}
}
