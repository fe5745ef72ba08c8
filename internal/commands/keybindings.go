package commands

import (
	"github.com/zsprackett/tunedeck/internal/command"
	"github.com/zsprackett/tunedeck/internal/tui"
)

// DefaultKeybindings maps key names to command text.
func DefaultKeybindings() map[string]string {
	return map[string]string{
		"q":      "quit",
		"Space":  "playpause",
		"p":      "playpause",
		"s":      "stop",
		">":      "next",
		"<":      "previous",
		"r":      "repeat",
		"z":      "shuffle",
		"f":      "seek +10",
		"b":      "seek -10",
		"+":      "volup",
		"-":      "voldown",
		"F1":     "focus queue",
		"F2":     "focus search",
		"F3":     "focus library",
		"/":      "focus search",
		"?":      "help",
		"S":      "save",
		"D":      "unsave",
		"c":      "clear",
		"Ctrl+L": "redraw",
	}
}

// Keybindings overlays overrides on the default keymap. An override with
// empty command text unbinds the key.
func Keybindings(overrides map[string]string) map[string]string {
	bindings := DefaultKeybindings()
	for k, v := range overrides {
		if v == "" {
			delete(bindings, k)
			continue
		}
		bindings[k] = v
	}
	return bindings
}

// RegisterKeybindings binds Keybindings(overrides) as global callbacks on
// rt. Invalid entries are logged and skipped.
func (m *Manager) RegisterKeybindings(rt *tui.Runtime, overrides map[string]string) {
	for name, text := range Keybindings(overrides) {
		key, err := tui.ParseKey(name)
		if err != nil {
			m.logger.Warn("invalid keybinding", "key", name, "err", err)
			continue
		}
		cmds, err := command.Parse(text)
		if err != nil {
			m.logger.Warn("invalid keybinding", "key", name, "command", text, "err", err)
			continue
		}
		rt.AddGlobalCallback(key, func(rt *tui.Runtime) {
			for _, c := range cmds {
				m.Handle(rt, c)
			}
		})
	}
}
