// Package queue is the play queue. It decides what plays next and tells the
// player to load it.
package queue

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/zsprackett/tunedeck/internal/model"
)

// Player is the part of the playback handle the queue drives.
type Player interface {
	Load(t *model.Track)
	Preload(t *model.Track)
	Stop()
}

type Queue struct {
	player Player

	mu      sync.Mutex
	tracks  []*model.Track
	order   []int
	current int
	repeat  model.RepeatMode
	shuffle bool
}

func New(player Player) *Queue {
	return &Queue{player: player, current: -1}
}

func (q *Queue) Append(tracks ...*model.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range tracks {
		q.tracks = append(q.tracks, t)
		q.order = append(q.order, len(q.tracks)-1)
	}
	if q.shuffle {
		q.reshuffleLocked()
	}
}

func (q *Queue) Clear() {
	q.mu.Lock()
	q.tracks, q.order = nil, nil
	q.current = -1
	q.mu.Unlock()
	q.player.Stop()
}

// Remove drops the track at index i, stopping playback if it was current.
func (q *Queue) Remove(i int) {
	q.mu.Lock()
	if i < 0 || i >= len(q.tracks) {
		q.mu.Unlock()
		return
	}
	wasCurrent := q.currentIndexLocked() == i
	pos := slices.Index(q.order, i)
	q.tracks = slices.Delete(q.tracks, i, i+1)
	q.order = slices.Delete(q.order, pos, pos+1)
	for k, idx := range q.order {
		if idx > i {
			q.order[k] = idx - 1
		}
	}
	switch {
	case wasCurrent:
		q.current = -1
	case q.current > pos:
		q.current--
	}
	q.mu.Unlock()
	if wasCurrent {
		q.player.Stop()
	}
}

func (q *Queue) Tracks() []*model.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.tracks)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// CurrentIndex is the index into Tracks of the playing track, or -1.
func (q *Queue) CurrentIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentIndexLocked()
}

func (q *Queue) Current() *model.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.currentIndexLocked(); i >= 0 {
		return q.tracks[i]
	}
	return nil
}

func (q *Queue) currentIndexLocked() int {
	if q.current < 0 || q.current >= len(q.order) {
		return -1
	}
	return q.order[q.current]
}

// Play starts the track at index i of Tracks.
func (q *Queue) Play(i int) {
	q.mu.Lock()
	pos := slices.Index(q.order, i)
	if pos < 0 {
		q.mu.Unlock()
		return
	}
	q.current = pos
	t := q.tracks[i]
	q.mu.Unlock()
	q.player.Load(t)
}

// Next advances playback. A manual advance skips over repeat-track.
func (q *Queue) Next(manual bool) {
	q.mu.Lock()
	t := q.nextLocked(manual)
	q.mu.Unlock()
	if t == nil {
		q.player.Stop()
		return
	}
	q.player.Load(t)
}

func (q *Queue) nextLocked(manual bool) *model.Track {
	if len(q.order) == 0 {
		q.current = -1
		return nil
	}
	if q.repeat == model.RepeatTrack && !manual && q.current >= 0 {
		return q.tracks[q.order[q.current]]
	}
	pos, ok := q.peekLocked()
	if !ok {
		q.current = -1
		return nil
	}
	q.current = pos
	return q.tracks[q.order[pos]]
}

// peekLocked returns the position in order that follows the current one.
func (q *Queue) peekLocked() (int, bool) {
	next := q.current + 1
	if next < len(q.order) {
		return next, true
	}
	if q.repeat == model.RepeatPlaylist && len(q.order) > 0 {
		return 0, true
	}
	return 0, false
}

// Previous restarts the previous track, or the first one at the start.
func (q *Queue) Previous() {
	q.mu.Lock()
	if len(q.order) == 0 {
		q.mu.Unlock()
		return
	}
	switch {
	case q.current > 0:
		q.current--
	case q.repeat == model.RepeatPlaylist:
		q.current = len(q.order) - 1
	default:
		q.current = 0
	}
	t := q.tracks[q.order[q.current]]
	q.mu.Unlock()
	q.player.Load(t)
}

// HandleEvent reacts to a request from the session worker.
func (q *Queue) HandleEvent(ev model.QueueEvent) {
	switch ev {
	case model.PreloadTrackRequest:
		q.mu.Lock()
		var t *model.Track
		if q.repeat == model.RepeatTrack && q.current >= 0 && q.current < len(q.order) {
			t = q.tracks[q.order[q.current]]
		} else if pos, ok := q.peekLocked(); ok && len(q.order) > 0 {
			t = q.tracks[q.order[pos]]
		}
		q.mu.Unlock()
		if t != nil {
			q.player.Preload(t)
		}
	}
}

func (q *Queue) Repeat() model.RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

func (q *Queue) SetRepeat(m model.RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = m
}

func (q *Queue) Shuffled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

// SetShuffle changes the play order. The current track keeps playing.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if on == q.shuffle {
		return
	}
	q.shuffle = on
	if on {
		q.reshuffleLocked()
		return
	}
	cur := q.currentIndexLocked()
	q.order = q.order[:0]
	for i := range q.tracks {
		q.order = append(q.order, i)
	}
	q.current = cur
}

// reshuffleLocked randomises the order, keeping the current track first.
func (q *Queue) reshuffleLocked() {
	cur := q.currentIndexLocked()
	rand.Shuffle(len(q.order), func(i, j int) { q.order[i], q.order[j] = q.order[j], q.order[i] })
	if cur < 0 {
		return
	}
	pos := slices.Index(q.order, cur)
	q.order[0], q.order[pos] = q.order[pos], q.order[0]
	q.current = 0
}
