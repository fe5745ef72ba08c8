// Package commands executes parsed commands against the player, the queue
// and the views. Every handler runs on the UI goroutine.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zsprackett/tunedeck/internal/command"
	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/tui"
)

var ErrUnknownCommand = errors.New("unknown command")

type Player interface {
	TogglePlayback()
	Pause()
	Resume()
	Stop()
	Seek(offset time.Duration, relative bool)
	SetVolume(v int)
	Volume() int
	Shutdown()
}

type Queue interface {
	Append(tracks ...*model.Track)
	Clear()
	Play(i int)
	Next(manual bool)
	Previous()
	Current() *model.Track
	Len() int
	Repeat() model.RepeatMode
	SetRepeat(m model.RepeatMode)
	Shuffled() bool
	SetShuffle(on bool)
}

type Library interface {
	Save(t *model.Track) bool
	Unsave(uri string) bool
}

// Screens switches the visible view.
type Screens interface {
	SetScreen(name string) error
}

// Handler runs one command. Returned errors are logged by the Manager.
type Handler func(rt *tui.Runtime, args []string) error

type Manager struct {
	player     Player
	queue      Queue
	library    Library
	screens    Screens
	volumeStep int
	logger     *slog.Logger
	handlers   map[string]Handler
}

func New(player Player, queue Queue, library Library, volumeStep int, logger *slog.Logger) *Manager {
	if volumeStep <= 0 {
		volumeStep = 5
	}
	m := &Manager{
		player:     player,
		queue:      queue,
		library:    library,
		volumeStep: volumeStep,
		logger:     logger,
		handlers:   make(map[string]Handler),
	}
	m.registerAll()
	return m
}

// SetScreens attaches the view switcher once the layout exists.
func (m *Manager) SetScreens(s Screens) {
	m.screens = s
}

// Register adds or replaces the handler for name.
func (m *Manager) Register(name string, h Handler) {
	m.handlers[name] = h
}

// Handle runs cmd synchronously. Failures are logged, never returned.
func (m *Manager) Handle(rt *tui.Runtime, cmd command.Command) {
	if err := m.Execute(rt, cmd); err != nil {
		m.logger.Error("command failed", "command", cmd.String(), "err", err)
	}
}

func (m *Manager) Execute(rt *tui.Runtime, cmd command.Command) error {
	h, ok := m.handlers[cmd.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	m.logger.Debug("executing command", "command", cmd.String())
	return h(rt, cmd.Args)
}

// Quit runs the quit command.
func (m *Manager) Quit(rt *tui.Runtime) {
	m.Handle(rt, command.Command{Name: "quit"})
}

func (m *Manager) registerAll() {
	m.Register("quit", func(rt *tui.Runtime, _ []string) error {
		m.player.Shutdown()
		rt.Quit()
		return nil
	})
	m.Register("playpause", func(*tui.Runtime, []string) error {
		m.player.TogglePlayback()
		return nil
	})
	m.Register("play", func(*tui.Runtime, []string) error {
		if m.queue.Current() == nil && m.queue.Len() > 0 {
			m.queue.Play(0)
			return nil
		}
		m.player.Resume()
		return nil
	})
	m.Register("pause", func(*tui.Runtime, []string) error {
		m.player.Pause()
		return nil
	})
	m.Register("stop", func(*tui.Runtime, []string) error {
		m.player.Stop()
		return nil
	})
	m.Register("next", func(*tui.Runtime, []string) error {
		m.queue.Next(true)
		return nil
	})
	m.Register("previous", func(*tui.Runtime, []string) error {
		m.queue.Previous()
		return nil
	})
	m.Register("repeat", m.repeat)
	m.Register("shuffle", m.shuffle)
	m.Register("seek", func(_ *tui.Runtime, args []string) error {
		offset, relative, err := ParseSeek(args[0])
		if err != nil {
			return err
		}
		m.player.Seek(offset, relative)
		return nil
	})
	m.Register("volup", func(_ *tui.Runtime, args []string) error {
		return m.volume(args, 1)
	})
	m.Register("voldown", func(_ *tui.Runtime, args []string) error {
		return m.volume(args, -1)
	})
	m.Register("focus", func(_ *tui.Runtime, args []string) error {
		if m.screens == nil {
			return errors.New("no screens")
		}
		return m.screens.SetScreen(args[0])
	})
	m.Register("help", func(*tui.Runtime, []string) error {
		if m.screens == nil {
			return errors.New("no screens")
		}
		return m.screens.SetScreen("help")
	})
	m.Register("save", func(*tui.Runtime, []string) error {
		t := m.queue.Current()
		if t == nil {
			return errors.New("nothing playing")
		}
		m.library.Save(t)
		return nil
	})
	m.Register("unsave", func(*tui.Runtime, []string) error {
		t := m.queue.Current()
		if t == nil {
			return errors.New("nothing playing")
		}
		m.library.Unsave(t.URI)
		return nil
	})
	m.Register("clear", func(*tui.Runtime, []string) error {
		m.queue.Clear()
		return nil
	})
	m.Register("add", func(_ *tui.Runtime, args []string) error {
		t := &model.Track{URI: args[0], Title: strings.Join(args[1:], " ")}
		m.queue.Append(t)
		return nil
	})
	m.Register("redraw", func(rt *tui.Runtime, _ []string) error {
		return rt.Sink().Send(tui.Redraw{})
	})
}

func (m *Manager) repeat(_ *tui.Runtime, args []string) error {
	if len(args) == 0 {
		// Cycle off, playlist, track.
		next := map[model.RepeatMode]model.RepeatMode{
			model.RepeatOff:      model.RepeatPlaylist,
			model.RepeatPlaylist: model.RepeatTrack,
			model.RepeatTrack:    model.RepeatOff,
		}
		m.queue.SetRepeat(next[m.queue.Repeat()])
		return nil
	}
	mode, ok := model.ParseRepeatMode(args[0])
	if !ok {
		return fmt.Errorf("invalid repeat mode %q", args[0])
	}
	m.queue.SetRepeat(mode)
	return nil
}

func (m *Manager) shuffle(_ *tui.Runtime, args []string) error {
	if len(args) == 0 {
		m.queue.SetShuffle(!m.queue.Shuffled())
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true":
		m.queue.SetShuffle(true)
	case "off", "false":
		m.queue.SetShuffle(false)
	default:
		return fmt.Errorf("invalid shuffle mode %q", args[0])
	}
	return nil
}

func (m *Manager) volume(args []string, sign int) error {
	step := m.volumeStep
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid volume step %q", args[0])
		}
		step = n
	}
	m.player.SetVolume(m.player.Volume() + sign*step)
	return nil
}

// ParseSeek accepts seconds or m:ss, optionally prefixed with + or - for a
// relative seek.
func ParseSeek(s string) (time.Duration, bool, error) {
	relative := strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
	}
	body := strings.TrimLeft(s, "+-")

	var secs int
	if mins, rest, ok := strings.Cut(body, ":"); ok {
		m, err1 := strconv.Atoi(mins)
		sec, err2 := strconv.Atoi(rest)
		if err1 != nil || err2 != nil || sec >= 60 || m < 0 || sec < 0 {
			return 0, false, fmt.Errorf("invalid seek position %q", s)
		}
		secs = m*60 + sec
	} else {
		n, err := strconv.Atoi(body)
		if err != nil || n < 0 {
			return 0, false, fmt.Errorf("invalid seek position %q", s)
		}
		secs = n
	}
	return sign * time.Duration(secs) * time.Second, relative, nil
}
