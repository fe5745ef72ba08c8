package tui_test

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/tunedeck/internal/tui"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRuntime(t *testing.T, sink *tui.Sink) (*tui.Runtime, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	rt, err := tui.NewRuntime(screen, sink, discardLogger())
	require.NoError(t, err)
	screen.SetSize(80, 24)
	t.Cleanup(rt.Close)
	return rt, screen
}

// stepUntil steps rt until done reports true. The simulation screen may
// deliver a resize ahead of injected input.
func stepUntil(t *testing.T, rt *tui.Runtime, done func() bool) {
	t.Helper()
	for range 5 {
		rt.Step()
		if done() {
			return
		}
	}
	t.Fatal("condition not reached")
}

func TestStepRunsQueuedActionsInOrder(t *testing.T) {
	rt, _ := newRuntime(t, tui.NewSink())

	var got []int
	for i := range 5 {
		require.NoError(t, rt.Sink().Send(tui.Func(func(*tui.Runtime) {
			got = append(got, i)
		})))
	}
	rt.Step()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, rt.Sink().Pending())
}

func TestActionsSentBeforeAttachRunOnFirstStep(t *testing.T) {
	sink := tui.NewSink()
	ran := false
	require.NoError(t, sink.Send(tui.Func(func(*tui.Runtime) { ran = true })))

	rt, _ := newRuntime(t, sink)
	rt.Step()

	assert.True(t, ran)
}

func TestConcurrentSendersKeepPerSenderOrder(t *testing.T) {
	rt, _ := newRuntime(t, tui.NewSink())

	const senders, perSender = 4, 50
	var got [senders][]int
	var wg sync.WaitGroup
	for s := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSender {
				rt.Sink().Send(tui.Func(func(*tui.Runtime) {
					got[s] = append(got[s], i)
				}))
			}
		}()
	}
	wg.Wait()
	rt.Step()

	for s := range senders {
		require.Len(t, got[s], perSender)
		for i, v := range got[s] {
			assert.Equal(t, i, v)
		}
	}
}

func TestQuitActionStopsRuntime(t *testing.T) {
	rt, _ := newRuntime(t, tui.NewSink())
	require.True(t, rt.IsRunning())

	require.NoError(t, rt.Sink().Send(tui.Quit{}))
	rt.Step()

	assert.False(t, rt.IsRunning())
}

func TestSendAfterCloseFails(t *testing.T) {
	sink := tui.NewSink()
	screen := tcell.NewSimulationScreen("UTF-8")
	rt, err := tui.NewRuntime(screen, sink, discardLogger())
	require.NoError(t, err)
	rt.Close()

	assert.ErrorIs(t, sink.Send(tui.Wake{}), tui.ErrSinkClosed)
	assert.ErrorIs(t, sink.Wake(), tui.ErrSinkClosed)
}

func TestGlobalCallbackTakesKeyPress(t *testing.T) {
	rt, screen := newRuntime(t, tui.NewSink())

	pressed := 0
	rt.AddGlobalCallback(tui.Key{Code: tcell.KeyRune, Rune: 'q'}, func(*tui.Runtime) { pressed++ })
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	stepUntil(t, rt, func() bool { return pressed > 0 })

	assert.Equal(t, 1, pressed)
}

func TestUnboundKeyReachesRoot(t *testing.T) {
	rt, screen := newRuntime(t, tui.NewSink())

	var seen rune
	box := tview.NewBox()
	box.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		seen = ev.Rune()
		return nil
	})
	rt.SetRoot(box)
	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	stepUntil(t, rt, func() bool { return seen != 0 })

	assert.Equal(t, 'x', seen)
}

func TestFocusedInputFieldTakesRunes(t *testing.T) {
	rt, screen := newRuntime(t, tui.NewSink())

	quits := 0
	rt.AddGlobalCallback(tui.Key{Code: tcell.KeyRune, Rune: 'q'}, func(*tui.Runtime) { quits++ })
	redraws := 0
	rt.AddGlobalCallback(tui.Key{Code: tcell.KeyCtrlL}, func(*tui.Runtime) { redraws++ })

	input := tview.NewInputField()
	rt.SetRoot(input)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	stepUntil(t, rt, func() bool { return input.GetText() != "" })

	assert.Equal(t, "q", input.GetText())
	assert.Zero(t, quits)

	screen.InjectKey(tcell.KeyCtrlL, 0, tcell.ModCtrl)
	stepUntil(t, rt, func() bool { return redraws > 0 })
	assert.Equal(t, "q", input.GetText())
}

// closedScreen reports a finalised terminal on every poll.
type closedScreen struct {
	tcell.SimulationScreen
}

func (closedScreen) PollEvent() tcell.Event { return nil }

func TestClosedTerminalStopsAndLogs(t *testing.T) {
	var logs strings.Builder
	screen := closedScreen{tcell.NewSimulationScreen("UTF-8")}
	rt, err := tui.NewRuntime(screen, tui.NewSink(), slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	rt.Step()

	assert.False(t, rt.IsRunning())
	assert.Contains(t, logs.String(), "terminal closed")
}

func TestUserDataRoundTrip(t *testing.T) {
	rt, _ := newRuntime(t, tui.NewSink())
	assert.Nil(t, rt.UserData())
	rt.SetUserData("data")
	assert.Equal(t, "data", rt.UserData())
}
