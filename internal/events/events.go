package events

import (
	"iter"
	"log/slog"
	"sync"

	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/tui"
)

// Event is something a background task wants the UI goroutine to act on.
// The set of variants is closed.
type Event interface {
	isEvent()
}

// Player reports a playback state change from the session worker.
type Player struct {
	State model.PlayerState
}

// Queue carries a request from the worker to the play queue.
type Queue struct {
	Occurrence model.QueueEvent
}

// SessionDied reports that the session worker has exited.
type SessionDied struct{}

// IpcInput is one line of command text received from a control client.
type IpcInput struct {
	Text string
}

func (Player) isEvent() {}

func (Queue) isEvent() {}

func (SessionDied) isEvent() {}

func (IpcInput) isEvent() {}

type shared struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	sink   *tui.Sink
	logger *slog.Logger
}

// Manager is a multi-producer, single-consumer event queue bound to the UI
// runtime's callback sink. Handles returned by Clone share one queue.
type Manager struct {
	s *shared
}

func NewManager(sink *tui.Sink, logger *slog.Logger) *Manager {
	return &Manager{s: &shared{sink: sink, logger: logger}}
}

// Clone returns a handle to the same queue for another producer.
func (m *Manager) Clone() *Manager {
	return &Manager{s: m.s}
}

// CallbackSink returns the sink that schedules work on the UI goroutine.
func (m *Manager) CallbackSink() *tui.Sink {
	return m.s.sink
}

// Send appends ev and wakes the UI loop. It never blocks. Once the consumer
// has been closed the event is dropped.
func (m *Manager) Send(ev Event) {
	m.s.mu.Lock()
	if m.s.closed {
		m.s.mu.Unlock()
		m.s.logger.Warn("dropping event after shutdown", "event", describe(ev))
		return
	}
	m.s.queue = append(m.s.queue, ev)
	m.s.mu.Unlock()
	m.Trigger()
}

// Trigger wakes the UI loop without queueing an event.
func (m *Manager) Trigger() {
	if err := m.s.sink.Wake(); err != nil {
		m.s.logger.Debug("could not wake ui loop", "err", err)
	}
}

// Drain yields every event buffered when iteration starts, in FIFO order.
// Events sent while draining are left for the next call. If the consumer
// stops early the rest are put back at the head of the queue. The returned
// sequence is single use: ranging it again yields nothing, and a sequence
// that is never ranged takes nothing from the queue.
func (m *Manager) Drain() iter.Seq[Event] {
	var consumed bool
	return func(yield func(Event) bool) {
		if consumed {
			return
		}
		consumed = true

		m.s.mu.Lock()
		batch := m.s.queue
		m.s.queue = nil
		m.s.mu.Unlock()

		for i, ev := range batch {
			if !yield(ev) {
				m.requeue(batch[i+1:])
				return
			}
		}
	}
}

func (m *Manager) requeue(rest []Event) {
	if len(rest) == 0 {
		return
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.queue = append(append([]Event(nil), rest...), m.s.queue...)
}

// Len reports how many events are buffered.
func (m *Manager) Len() int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.queue)
}

// Close marks the consumer as gone. Buffered events are discarded.
func (m *Manager) Close() {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.closed = true
	m.s.queue = nil
}

func describe(ev Event) string {
	switch ev := ev.(type) {
	case Player:
		return "player:" + ev.State.String()
	case Queue:
		return "queue:" + ev.Occurrence.String()
	case SessionDied:
		return "session-died"
	case IpcInput:
		return "ipc-input"
	default:
		return "unknown"
	}
}
