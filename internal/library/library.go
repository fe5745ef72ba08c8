// Package library holds the user's saved tracks.
package library

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/zsprackett/tunedeck/internal/model"
)

// Fetcher reads the saved tracks from the backend.
type Fetcher interface {
	Get(ctx context.Context, path string, out any) error
}

// Notifier is woken after a background load so the UI can redraw.
type Notifier interface {
	Trigger()
}

type Library struct {
	mu      sync.RWMutex
	tracks  []*model.Track
	loaded  bool
	logger  *slog.Logger
	fetcher Fetcher
}

func New(fetcher Fetcher, logger *slog.Logger) *Library {
	return &Library{fetcher: fetcher, logger: logger}
}

// Load replaces the contents with the backend's saved tracks and wakes n.
func (l *Library) Load(ctx context.Context, n Notifier) error {
	var tracks []*model.Track
	if err := l.fetcher.Get(ctx, "/library/tracks", &tracks); err != nil {
		return err
	}
	l.mu.Lock()
	// Tracks saved locally while the fetch was in flight survive it.
	for _, t := range l.tracks {
		if !containsURI(tracks, t.URI) {
			tracks = append(tracks, t)
		}
	}
	l.tracks = tracks
	l.loaded = true
	l.mu.Unlock()
	l.logger.Info("library loaded", "tracks", len(tracks))
	n.Trigger()
	return nil
}

func (l *Library) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Save adds t unless it is already saved. It reports whether t was added.
func (l *Library) Save(t *model.Track) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if containsURI(l.tracks, t.URI) {
		return false
	}
	saved := *t
	if saved.AddedAt.IsZero() {
		saved.AddedAt = time.Now()
	}
	l.tracks = append(l.tracks, &saved)
	return true
}

// Unsave removes the track with uri. It reports whether one was removed.
func (l *Library) Unsave(uri string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.tracks)
	l.tracks = slices.DeleteFunc(l.tracks, func(t *model.Track) bool { return t.URI == uri })
	return len(l.tracks) != n
}

func (l *Library) IsSaved(uri string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return containsURI(l.tracks, uri)
}

// Tracks returns the saved tracks, most recently added first.
func (l *Library) Tracks() []*model.Track {
	l.mu.RLock()
	out := slices.Clone(l.tracks)
	l.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b *model.Track) int { return b.AddedAt.Compare(a.AddedAt) })
	return out
}

func containsURI(tracks []*model.Track, uri string) bool {
	return slices.ContainsFunc(tracks, func(t *model.Track) bool { return t.URI == uri })
}
