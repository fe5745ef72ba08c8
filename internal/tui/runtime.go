// Package tui is a cooperative terminal runtime. Unlike tview.Application it
// does not own its loop: the caller drives it one Step at a time, which lets
// the application drain its own event queue between steps.
//
// All methods except those on Sink must be called from the goroutine that
// calls Step.
package tui

import (
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type Runtime struct {
	screen   tcell.Screen
	sink     *Sink
	logger   *slog.Logger
	running  bool
	needSync bool

	root     tview.Primitive
	focused  tview.Primitive
	bindings map[Key]func(*Runtime)
	userData any
}

// NewRuntime initialises screen and attaches sink to it. Actions sent to the
// sink before this call run on the first step.
func NewRuntime(screen tcell.Screen, sink *Sink, logger *slog.Logger) (*Runtime, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.DisableMouse()
	r := &Runtime{
		screen:   screen,
		sink:     sink,
		logger:   logger,
		running:  true,
		bindings: make(map[Key]func(*Runtime)),
	}
	sink.attach(screen)
	return r, nil
}

func (r *Runtime) IsRunning() bool { return r.running }

// Quit makes IsRunning report false. The current step still completes.
func (r *Runtime) Quit() { r.running = false }

func (r *Runtime) Sink() *Sink { return r.sink }

func (r *Runtime) Screen() tcell.Screen { return r.screen }

func (r *Runtime) UserData() any { return r.userData }

func (r *Runtime) SetUserData(v any) { r.userData = v }

// AddGlobalCallback binds k to fn. Global callbacks take precedence over the
// focused primitive, except that plain runes go to a focused text field.
func (r *Runtime) AddGlobalCallback(k Key, fn func(*Runtime)) {
	r.bindings[k] = fn
}

func (r *Runtime) SetRoot(p tview.Primitive) {
	r.root = p
	r.SetFocus(p)
}

// SetFocus moves keyboard focus, letting containers delegate to a child the
// same way tview.Application does.
func (r *Runtime) SetFocus(p tview.Primitive) {
	if r.focused != nil && r.focused != p {
		r.focused.Blur()
	}
	r.focused = p
	if p != nil {
		p.Focus(r.SetFocus)
	}
}

// Step performs one unit of UI work: it waits for the next terminal event or
// wake-up, runs every queued action in order, handles the event and redraws.
func (r *Runtime) Step() {
	if !r.running {
		return
	}
	ev := r.screen.PollEvent()
	for _, a := range r.sink.take() {
		a.apply(r)
	}
	if ev == nil {
		// Only reachable during teardown: the screen was finalised while
		// the loop was still running. Quit is the normal way out.
		r.logger.Warn("terminal closed, stopping ui loop")
		r.running = false
		return
	}
	r.handle(ev)
	if r.running {
		r.draw()
	}
}

func (r *Runtime) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		k := KeyOf(ev)
		if fn, ok := r.bindings[k]; ok && !r.typing(k) {
			fn(r)
			return
		}
		if r.root == nil {
			return
		}
		if h := r.root.InputHandler(); h != nil {
			h(ev, r.SetFocus)
		}
	case *tcell.EventResize:
		r.needSync = true
	case *tcell.EventError:
		r.logger.Error("terminal error", "err", ev.Error())
	}
}

// typing reports whether k is text for the focused input field.
func (r *Runtime) typing(k Key) bool {
	_, ok := r.focused.(*tview.InputField)
	return ok && k.Code == tcell.KeyRune && k.Mod == 0
}

func (r *Runtime) draw() {
	if r.root == nil {
		return
	}
	if r.needSync {
		r.needSync = false
		r.screen.Sync()
	}
	w, h := r.screen.Size()
	r.root.SetRect(0, 0, w, h)
	r.screen.Clear()
	r.root.Draw(r.screen)
	r.screen.Show()
}

// Close drops pending actions, rejects further sends and restores the terminal.
func (r *Runtime) Close() {
	r.running = false
	r.sink.close()
	r.screen.Fini()
}
