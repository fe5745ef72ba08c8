package session

import (
	"sync"
	"time"
)

// tracker follows the playback position of the current track and fires
// preload once per track, lead before it ends.
type tracker struct {
	lead    time.Duration
	preload func()
	now     func() time.Time

	mu       sync.Mutex
	position time.Duration
	duration time.Duration
	since    time.Time
	playing  bool
	fired    bool
	timer    *time.Timer
}

func newTracker(lead time.Duration, preload func()) *tracker {
	return &tracker{lead: lead, preload: preload, now: time.Now}
}

// update records a new position for the current track. A new duration
// means a new track; zero keeps the known one.
func (t *tracker) update(position, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if duration > 0 && duration != t.duration {
		t.fired = false
		t.duration = duration
	}
	t.position = position
	t.since = t.now()
	t.scheduleLocked()
}

func (t *tracker) play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		t.playing = true
		t.since = t.now()
	}
	t.scheduleLocked()
}

func (t *tracker) pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		t.position += t.now().Sub(t.since)
		t.playing = false
	}
	t.cancelLocked()
}

// reset forgets the current track.
func (t *tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.playing = false
	t.fired = false
	t.position, t.duration = 0, 0
}

func (t *tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// remainingLocked is the time until preload should fire.
func (t *tracker) remainingLocked() time.Duration {
	pos := t.position
	if t.playing {
		pos += t.now().Sub(t.since)
	}
	return t.duration - t.lead - pos
}

func (t *tracker) scheduleLocked() {
	t.cancelLocked()
	if !t.playing || t.fired || t.duration == 0 {
		return
	}
	t.timer = time.AfterFunc(max(t.remainingLocked(), 0), t.fire)
}

func (t *tracker) fire() {
	t.mu.Lock()
	if t.fired || !t.playing {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.timer = nil
	t.mu.Unlock()
	t.preload()
}

func (t *tracker) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
