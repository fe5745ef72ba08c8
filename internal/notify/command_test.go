package notify

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/zsprackett/tunedeck/internal/model"
)

func TestSystemCommandBlankFallsBack(t *testing.T) {
	for _, blank := range []string{"", "   ", "\t\n"} {
		n := New(Config{Enabled: true, Command: blank}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		c := n.systemCommand(model.Track{URI: "u", Title: "Blue in Green"})
		if c == nil {
			continue
		}
		switch base := filepath.Base(c.Path); base {
		case "osascript", "notify-send":
		default:
			t.Errorf("command %q: unexpected fallback %q", blank, base)
		}
	}
}

func TestSystemCommandOverride(t *testing.T) {
	n := New(Config{Enabled: true, Command: "  echo  -n "}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := n.systemCommand(model.Track{URI: "u", Title: "So What", Artists: []string{"Miles Davis"}})
	if c == nil {
		t.Fatal("expected a command")
	}
	want := []string{"echo", "-n", "Now playing", "Miles Davis - So What"}
	if len(c.Args) != len(want) {
		t.Fatalf("args = %q, want %q", c.Args, want)
	}
	for i := range want {
		if c.Args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, c.Args[i], want[i])
		}
	}
}
