package events

import "github.com/zsprackett/tunedeck/internal/model"

// Publisher is told about every playback state change along with the track
// that is current at that moment. Implementations must not block.
type Publisher interface {
	Publish(state model.PlayerState, current *model.Track)
}

// Publishers fans a state change out to every member. The zero value
// publishes nowhere.
type Publishers []Publisher

func (ps Publishers) Publish(state model.PlayerState, current *model.Track) {
	for _, p := range ps {
		p.Publish(state, current)
	}
}
