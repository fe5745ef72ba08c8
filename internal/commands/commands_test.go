package commands_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/tunedeck/internal/command"
	"github.com/zsprackett/tunedeck/internal/commands"
	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/tui"
)

type fakePlayer struct {
	calls  []string
	volume int
}

func (f *fakePlayer) TogglePlayback() { f.calls = append(f.calls, "toggle") }

func (f *fakePlayer) Pause() { f.calls = append(f.calls, "pause") }

func (f *fakePlayer) Resume() { f.calls = append(f.calls, "resume") }

func (f *fakePlayer) Stop() { f.calls = append(f.calls, "stop") }

func (f *fakePlayer) Seek(d time.Duration, rel bool) {
	f.calls = append(f.calls, "seek "+d.String()+map[bool]string{true: " rel", false: ""}[rel])
}

func (f *fakePlayer) SetVolume(v int) { f.volume = v }

func (f *fakePlayer) Volume() int { return f.volume }

func (f *fakePlayer) Shutdown() { f.calls = append(f.calls, "shutdown") }

type fakeQueue struct {
	calls   []string
	tracks  []*model.Track
	current *model.Track
	repeat  model.RepeatMode
	shuffle bool
}

func (q *fakeQueue) Append(t ...*model.Track) { q.tracks = append(q.tracks, t...) }

func (q *fakeQueue) Clear() { q.calls = append(q.calls, "clear") }

func (q *fakeQueue) Play(i int) { q.current = q.tracks[i] }

func (q *fakeQueue) Next(manual bool) {
	if manual {
		q.calls = append(q.calls, "next manual")
		return
	}
	q.calls = append(q.calls, "next")
}

func (q *fakeQueue) Previous() { q.calls = append(q.calls, "previous") }

func (q *fakeQueue) Current() *model.Track { return q.current }

func (q *fakeQueue) Len() int { return len(q.tracks) }

func (q *fakeQueue) Repeat() model.RepeatMode { return q.repeat }

func (q *fakeQueue) SetRepeat(m model.RepeatMode) { q.repeat = m }

func (q *fakeQueue) Shuffled() bool { return q.shuffle }

func (q *fakeQueue) SetShuffle(on bool) { q.shuffle = on }

type fakeLibrary struct{ saved map[string]bool }

func (l *fakeLibrary) Save(t *model.Track) bool { l.saved[t.URI] = true; return true }

func (l *fakeLibrary) Unsave(uri string) bool { delete(l.saved, uri); return true }

type fakeScreens struct{ current string }

func (s *fakeScreens) SetScreen(name string) error { s.current = name; return nil }

type fixture struct {
	m       *commands.Manager
	rt      *tui.Runtime
	screen  tcell.SimulationScreen
	player  *fakePlayer
	queue   *fakeQueue
	library *fakeLibrary
	screens *fakeScreens
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		player:  &fakePlayer{volume: 50},
		queue:   &fakeQueue{},
		library: &fakeLibrary{saved: map[string]bool{}},
		screens: &fakeScreens{},
		logs:    &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	f.m = commands.New(f.player, f.queue, f.library, 5, logger)
	f.m.SetScreens(f.screens)

	f.screen = tcell.NewSimulationScreen("UTF-8")
	rt, err := tui.NewRuntime(f.screen, tui.NewSink(), logger)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	f.rt = rt
	return f
}

func (f *fixture) run(t *testing.T, text string) {
	t.Helper()
	cmds, err := command.Parse(text)
	require.NoError(t, err)
	for _, c := range cmds {
		f.m.Handle(f.rt, c)
	}
}

func TestQuitShutsDownPlayerAndStopsRuntime(t *testing.T) {
	f := newFixture(t)
	f.run(t, "quit")

	assert.Equal(t, []string{"shutdown"}, f.player.calls)
	assert.False(t, f.rt.IsRunning())
}

func TestPlaybackCommands(t *testing.T) {
	f := newFixture(t)
	f.run(t, "playpause; pause; play; stop; seek +10; seek 1:30")

	assert.Equal(t, []string{"toggle", "pause", "resume", "stop", "seek 10s rel", "seek 1m30s"}, f.player.calls)
}

func TestPlayStartsQueueWhenIdle(t *testing.T) {
	f := newFixture(t)
	f.run(t, `add uri:1 "First Song"`)
	f.run(t, "play")

	require.NotNil(t, f.queue.current)
	assert.Equal(t, "First Song", f.queue.current.Title)
	assert.Empty(t, f.player.calls)
}

func TestNextIsManual(t *testing.T) {
	f := newFixture(t)
	f.run(t, "next\nprevious")
	assert.Equal(t, []string{"next manual", "previous"}, f.queue.calls)
}

func TestRepeatCyclesAndSets(t *testing.T) {
	f := newFixture(t)
	f.run(t, "repeat")
	assert.Equal(t, model.RepeatPlaylist, f.queue.repeat)
	f.run(t, "repeat")
	assert.Equal(t, model.RepeatTrack, f.queue.repeat)
	f.run(t, "repeat off")
	assert.Equal(t, model.RepeatOff, f.queue.repeat)
}

func TestShuffleToggles(t *testing.T) {
	f := newFixture(t)
	f.run(t, "shuffle")
	assert.True(t, f.queue.shuffle)
	f.run(t, "shuffle off")
	assert.False(t, f.queue.shuffle)
}

func TestVolumeSteps(t *testing.T) {
	f := newFixture(t)
	f.run(t, "volup")
	assert.Equal(t, 55, f.player.volume)
	f.run(t, "voldown 20")
	assert.Equal(t, 35, f.player.volume)
}

func TestFocusAndHelp(t *testing.T) {
	f := newFixture(t)
	f.run(t, "focus queue")
	assert.Equal(t, "queue", f.screens.current)
	f.run(t, "help")
	assert.Equal(t, "help", f.screens.current)
}

func TestSaveNeedsCurrentTrack(t *testing.T) {
	f := newFixture(t)
	f.run(t, "save")
	assert.Contains(t, f.logs.String(), "nothing playing")

	f.queue.current = &model.Track{URI: "x"}
	f.run(t, "save")
	assert.True(t, f.library.saved["x"])
	f.run(t, "unsave")
	assert.False(t, f.library.saved["x"])
}

func TestUnknownCommandIsLogged(t *testing.T) {
	f := newFixture(t)
	err := f.m.Execute(f.rt, command.Command{Name: "dance"})
	assert.ErrorIs(t, err, commands.ErrUnknownCommand)
}

func TestKeybindingRunsCommand(t *testing.T) {
	f := newFixture(t)
	f.m.RegisterKeybindings(f.rt, map[string]string{"n": "next; next", "q": "", "Bogus+Key": "next"})

	f.screen.InjectKey(tcell.KeyRune, 'n', tcell.ModNone)
	for range 3 {
		if len(f.queue.calls) > 0 {
			break
		}
		f.rt.Step()
	}
	assert.Equal(t, []string{"next manual", "next manual"}, f.queue.calls)

	f.screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	f.rt.Step()
	assert.True(t, f.rt.IsRunning(), "q was unbound")
	assert.Contains(t, f.logs.String(), "invalid keybinding")
}

func TestParseSeek(t *testing.T) {
	cases := []struct {
		in       string
		offset   time.Duration
		relative bool
	}{
		{"30", 30 * time.Second, false},
		{"+5", 5 * time.Second, true},
		{"-1:05", -65 * time.Second, true},
		{"2:00", 2 * time.Minute, false},
	}
	for _, tc := range cases {
		offset, rel, err := commands.ParseSeek(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.offset, offset, tc.in)
		assert.Equal(t, tc.relative, rel, tc.in)
	}
	for _, bad := range []string{"", "abc", "1:75", "+"} {
		_, _, err := commands.ParseSeek(bad)
		assert.Error(t, err, bad)
	}
}
