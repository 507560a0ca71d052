package domain

import (
	"sort"
	"time"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// Status is the lifecycle state of an encounter.
type Status string

const (
	StatusActive     Status = "active"
	StatusPlayersWin Status = "players_win"
	StatusNPCsWin    Status = "npcs_win"
	StatusDraw       Status = "draw"
	StatusAborted    Status = "aborted"
)

// Terminal reports whether s is absorbing.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPlayersWin, StatusNPCsWin, StatusDraw, StatusAborted:
		return true
	}
	return false
}

// Participant is an actor's seat in an encounter. It never changes after
// the encounter is created.
type Participant struct {
	ActorID    ActorID `json:"actor_id"`
	Initiative int     `json:"initiative"`
	JoinedAt   int     `json:"joined_at"`
}

// Encounter is the combat aggregate.
type Encounter struct {
	ID               string        `json:"id"`
	LocationID       string        `json:"location_id"`
	Status           Status        `json:"status"`
	TurnOrder        []ActorID     `json:"turn_order"`
	CurrentTurnIndex int           `json:"current_turn_index"`
	Participants     []Participant `json:"participants"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// CurrentActor returns the actor whose turn it is.
func (e Encounter) CurrentActor() (ActorID, error) {
	if e.CurrentTurnIndex < 0 || e.CurrentTurnIndex >= len(e.TurnOrder) {
		return ActorID{}, apperrors.Newf(apperrors.CodeEncounterTurnIndex,
			"turn index %d outside [0, %d)", e.CurrentTurnIndex, len(e.TurnOrder))
	}
	return e.TurnOrder[e.CurrentTurnIndex], nil
}

// NextTurnIndex returns the index after the current one, wrapping around.
func (e Encounter) NextTurnIndex() int {
	if len(e.TurnOrder) == 0 {
		return 0
	}
	return (e.CurrentTurnIndex + 1) % len(e.TurnOrder)
}

// HasParticipant reports whether id is seated in the encounter.
func (e Encounter) HasParticipant(id ActorID) bool {
	for _, p := range e.Participants {
		if p.ActorID == id {
			return true
		}
	}
	return false
}

// ActorsOfKind returns the turn-order actors of kind, in turn order.
func (e Encounter) ActorsOfKind(kind ActorKind) []ActorID {
	var out []ActorID
	for _, id := range e.TurnOrder {
		if id.Kind == kind {
			out = append(out, id)
		}
	}
	return out
}

// Validate checks the structural invariants of an encounter.
func (e Encounter) Validate() error {
	if len(e.TurnOrder) == 0 {
		return apperrors.New(apperrors.CodeInvalidInput, "encounter needs at least one participant")
	}
	if len(e.TurnOrder) != len(e.Participants) {
		return apperrors.Newf(apperrors.CodeInvalidInput, "turn order has %d actors but %d participants", len(e.TurnOrder), len(e.Participants))
	}
	if e.CurrentTurnIndex < 0 || e.CurrentTurnIndex >= len(e.TurnOrder) {
		return apperrors.Newf(apperrors.CodeEncounterTurnIndex, "turn index %d outside [0, %d)", e.CurrentTurnIndex, len(e.TurnOrder))
	}
	if !e.Status.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidInput, "unknown status %q", e.Status)
	}
	seen := make(map[ActorID]bool, len(e.TurnOrder))
	for _, id := range e.TurnOrder {
		if err := id.Validate(); err != nil {
			return err
		}
		if seen[id] {
			return apperrors.Newf(apperrors.CodeEncounterDuplicate, "actor %s appears twice in turn order", id)
		}
		seen[id] = true
	}
	for _, p := range e.Participants {
		if !seen[p.ActorID] {
			return apperrors.Newf(apperrors.CodeInvalidInput, "participant %s missing from turn order", p.ActorID)
		}
	}
	return nil
}

// BuildTurnOrder sorts participants by initiative, highest first, breaking
// ties by JoinedAt.
func BuildTurnOrder(participants []Participant) ([]ActorID, error) {
	sorted := append([]Participant(nil), participants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Initiative != sorted[j].Initiative {
			return sorted[i].Initiative > sorted[j].Initiative
		}
		return sorted[i].JoinedAt < sorted[j].JoinedAt
	})
	order := make([]ActorID, 0, len(sorted))
	seen := make(map[ActorID]bool, len(sorted))
	for _, p := range sorted {
		if seen[p.ActorID] {
			return nil, apperrors.Newf(apperrors.CodeEncounterDuplicate, "actor %s listed twice", p.ActorID)
		}
		seen[p.ActorID] = true
		order = append(order, p.ActorID)
	}
	return order, nil
}
