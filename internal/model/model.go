// Package model holds the value types shared by the player, the queue and
// the event bridge. It has no dependencies so every other package can use it.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PlayerState is a snapshot of the playback status reported by the backend.
type PlayerState int

const (
	Stopped PlayerState = iota
	Playing
	Paused
	FinishedTrack
)

func (s PlayerState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case FinishedTrack:
		return "finished"
	default:
		return "stopped"
	}
}

// ParsePlayerState maps a backend event type onto a PlayerState.
func ParsePlayerState(s string) (PlayerState, bool) {
	switch s {
	case "playing":
		return Playing, true
	case "paused":
		return Paused, true
	case "stopped":
		return Stopped, true
	case "finished", "not_playing":
		return FinishedTrack, true
	}
	return Stopped, false
}

// QueueEvent is an occurrence addressed to the queue by a background producer.
type QueueEvent int

const (
	// PreloadTrackRequest asks the queue to preload the track after the
	// current one.
	PreloadTrackRequest QueueEvent = iota
)

func (e QueueEvent) String() string {
	switch e {
	case PreloadTrackRequest:
		return "preload-track-request"
	default:
		return fmt.Sprintf("queue-event(%d)", int(e))
	}
}

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatTrack
	RepeatPlaylist
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatTrack:
		return "track"
	case RepeatPlaylist:
		return "playlist"
	default:
		return "off"
	}
}

// ParseRepeatMode accepts the names produced by String.
func ParseRepeatMode(s string) (RepeatMode, bool) {
	switch strings.ToLower(s) {
	case "off", "none":
		return RepeatOff, true
	case "track", "one":
		return RepeatTrack, true
	case "playlist", "all":
		return RepeatPlaylist, true
	}
	return RepeatOff, false
}

// Track is a playable item.
type Track struct {
	URI      string        `json:"uri"`
	Title    string        `json:"title"`
	Artists  []string      `json:"artists,omitempty"`
	Album    string        `json:"album,omitempty"`
	Duration time.Duration `json:"-"`
	AddedAt  time.Time     `json:"added_at,omitzero"`
}

type trackJSON struct {
	alias
	DurationMs int64 `json:"duration_ms"`
}

type alias Track

// MarshalJSON encodes the duration as milliseconds, the unit the backend uses.
func (t Track) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackJSON{alias: alias(t), DurationMs: t.Duration.Milliseconds()})
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var raw trackJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Track(raw.alias)
	t.Duration = time.Duration(raw.DurationMs) * time.Millisecond
	return nil
}

// Display returns "artist - title", or the title alone when the artist is unknown.
func (t Track) Display() string {
	title := t.Title
	if title == "" {
		title = t.URI
	}
	if len(t.Artists) == 0 {
		return title
	}
	return strings.Join(t.Artists, ", ") + " - " + title
}

// Session identifies one connection to the playback backend. A worker may be
// started with a previous Session to resume it.
type Session struct {
	ID        string
	StartedAt time.Time
}

// Status is the playback status published to control clients.
type Status struct {
	Mode     string `json:"mode"`
	Playable *Track `json:"playable"`
}

func NewStatus(state PlayerState, current *Track) Status {
	return Status{Mode: state.String(), Playable: current}
}
