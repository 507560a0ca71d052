package combat

import (
	"time"

	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

// EventKind labels an encounter update.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventAction  EventKind = "player_action"
	EventNPCTurn EventKind = "npc_turn"
	EventAborted EventKind = "aborted"
)

// Event is published after every committed change to an encounter.
type Event struct {
	Kind        EventKind                 `json:"kind"`
	EncounterID string                    `json:"encounter_id"`
	Encounter   domain.Encounter          `json:"encounter"`
	Log         []string                  `json:"log"`
	Resolutions []domain.AttackResolution `json:"resolutions,omitempty"`
	At          time.Time                 `json:"at"`
}

// Publisher receives encounter events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

func (s *Service) publish(kind EventKind, enc domain.Encounter, log []string, resolutions []domain.AttackResolution) {
	s.publisher.Publish(Event{
		Kind:        kind,
		EncounterID: enc.ID,
		Encounter:   enc,
		Log:         log,
		Resolutions: resolutions,
		At:          time.Now().UTC(),
	})
}
