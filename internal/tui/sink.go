package tui

import (
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// ErrSinkClosed is returned by Sink.Send once the UI runtime has shut down.
var ErrSinkClosed = errors.New("tui: callback sink closed")

// Action is work scheduled onto the UI goroutine. It runs between two steps,
// never concurrently with one.
type Action interface {
	apply(r *Runtime)
}

// Wake only interrupts the blocking wait inside Step.
type Wake struct{}

// Redraw forces a full repaint of the terminal on the next step.
type Redraw struct{}

// Quit stops the runtime.
type Quit struct{}

// Func runs arbitrary code against the runtime. Reserved for actions that do
// not fit the typed set, such as shutdown triggered from a signal.
type Func func(r *Runtime)

func (Wake) apply(*Runtime) {}

func (Redraw) apply(r *Runtime) { r.needSync = true }

func (Quit) apply(r *Runtime) { r.Quit() }

func (f Func) apply(r *Runtime) { f(r) }

// Sink lets any goroutine schedule actions on the UI goroutine. Actions run
// in the order they were sent.
type Sink struct {
	mu      sync.Mutex
	pending []Action
	screen  tcell.Screen
	woken   bool
	closed  bool
}

func NewSink() *Sink {
	return &Sink{}
}

// Send queues a and wakes the UI loop.
func (s *Sink) Send(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.pending = append(s.pending, a)
	s.wakeLocked()
	return nil
}

// Wake interrupts the UI loop without queueing an action.
func (s *Sink) Wake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.wakeLocked()
	return nil
}

// Pending reports how many actions are waiting for the next step.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Sink) wakeLocked() {
	if s.screen == nil || s.woken {
		return
	}
	// A full event queue already guarantees a pending wake-up.
	if err := s.screen.PostEvent(tcell.NewEventInterrupt(nil)); err == nil {
		s.woken = true
	}
}

func (s *Sink) take() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := s.pending
	s.pending = nil
	s.woken = false
	return actions
}

func (s *Sink) attach(screen tcell.Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = screen
	if len(s.pending) > 0 {
		s.wakeLocked()
	}
}

func (s *Sink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.screen = nil
}
