package tui

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// Key identifies a key press independent of the event that carried it.
type Key struct {
	Code tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// KeyOf normalises a tcell key event. Shift is folded into the rune and
// control letters are reported as their tcell.KeyCtrl* codes.
func KeyOf(ev *tcell.EventKey) Key {
	if ev.Key() != tcell.KeyRune {
		return Key{Code: ev.Key()}
	}
	r := ev.Rune()
	if ev.Modifiers()&tcell.ModCtrl != 0 && r >= 'a' && r <= 'z' {
		return Key{Code: tcell.KeyCtrlA + tcell.Key(r-'a')}
	}
	return Key{Code: tcell.KeyRune, Rune: r, Mod: ev.Modifiers() & tcell.ModAlt}
}

func (k Key) String() string {
	if k.Code != tcell.KeyRune {
		if name, ok := tcell.KeyNames[k.Code]; ok {
			return name
		}
		return fmt.Sprintf("Key[%d]", k.Code)
	}
	name := string(k.Rune)
	if k.Rune == ' ' {
		name = "Space"
	}
	if k.Mod&tcell.ModAlt != 0 {
		return "Alt+" + name
	}
	return name
}

var (
	namedKeysOnce sync.Once
	namedKeys     map[string]tcell.Key
)

func lookupNamedKey(name string) (tcell.Key, bool) {
	namedKeysOnce.Do(func() {
		namedKeys = make(map[string]tcell.Key, len(tcell.KeyNames))
		for code, n := range tcell.KeyNames {
			namedKeys[strings.ToLower(n)] = code
		}
		namedKeys["escape"] = tcell.KeyEscape
		namedKeys["return"] = tcell.KeyEnter
		namedKeys["pageup"] = tcell.KeyPgUp
		namedKeys["pagedown"] = tcell.KeyPgDn
	})
	code, ok := namedKeys[strings.ToLower(name)]
	return code, ok
}

// ParseKey parses a keybinding name such as "q", "Space", "Enter", "Ctrl+P"
// or "Alt+n".
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, fmt.Errorf("empty key")
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return Key{Code: tcell.KeyRune, Rune: r}, nil
	}
	if strings.EqualFold(s, "space") {
		return Key{Code: tcell.KeyRune, Rune: ' '}, nil
	}
	for _, sep := range []string{"+", "-"} {
		prefix, rest, ok := strings.Cut(s, sep)
		if !ok || rest == "" {
			continue
		}
		switch strings.ToLower(prefix) {
		case "ctrl":
			r, size := utf8.DecodeRuneInString(strings.ToLower(rest))
			if size != len(rest) || r < 'a' || r > 'z' {
				return Key{}, fmt.Errorf("unsupported control key %q", s)
			}
			return Key{Code: tcell.KeyCtrlA + tcell.Key(r-'a')}, nil
		case "alt":
			if utf8.RuneCountInString(rest) != 1 {
				return Key{}, fmt.Errorf("unsupported alt key %q", s)
			}
			r, _ := utf8.DecodeRuneInString(rest)
			return Key{Code: tcell.KeyRune, Rune: r, Mod: tcell.ModAlt}, nil
		}
	}
	if code, ok := lookupNamedKey(s); ok {
		return Key{Code: code}, nil
	}
	return Key{}, fmt.Errorf("unknown key %q", s)
}
