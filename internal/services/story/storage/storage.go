// Package storage defines persistence contracts for encounter state.
package storage

import (
	"context"
	"strings"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

// NewEncounter is the input to EncounterStore.Create. The turn order is
// derived from the participants' initiative.
type NewEncounter struct {
	LocationID   string
	Participants []domain.Participant
}

// Validate checks the creation input.
func (n NewEncounter) Validate() error {
	if strings.TrimSpace(n.LocationID) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "location id is required")
	}
	if len(n.Participants) == 0 {
		return apperrors.New(apperrors.CodeInvalidInput, "encounter needs at least one participant")
	}
	for _, p := range n.Participants {
		if err := p.ActorID.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Patch is a partial encounter update. Nil fields are left unchanged.
// TurnOrder exists only so callers that try to rewrite it are rejected.
type Patch struct {
	TurnIndex *int
	Status    *domain.Status
	TurnOrder []domain.ActorID
}

// Validate checks the patch on its own, before it meets stored state.
func (p Patch) Validate() error {
	if p.TurnOrder != nil {
		return apperrors.New(apperrors.CodeEncounterTurnOrder, "turn order cannot change after creation")
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperrors.Newf(apperrors.CodeInvalidInput, "unknown status %q", *p.Status)
	}
	return nil
}

// Apply returns e with the patch applied, enforcing the transition rules:
// terminal encounters are frozen and the turn index stays in range.
func (p Patch) Apply(e domain.Encounter) (domain.Encounter, error) {
	if err := p.Validate(); err != nil {
		return domain.Encounter{}, err
	}
	if e.Status.Terminal() {
		return domain.Encounter{}, apperrors.Newf(apperrors.CodeEncounterTerminal, "encounter %s is %s", e.ID, e.Status)
	}
	if p.TurnIndex != nil {
		if *p.TurnIndex < 0 || *p.TurnIndex >= len(e.TurnOrder) {
			return domain.Encounter{}, apperrors.Newf(apperrors.CodeEncounterTurnIndex,
				"turn index %d outside [0, %d)", *p.TurnIndex, len(e.TurnOrder))
		}
		e.CurrentTurnIndex = *p.TurnIndex
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	return e, nil
}

// TurnIndex is a Patch setting the turn index.
func TurnIndex(i int) Patch {
	return Patch{TurnIndex: &i}
}

// SetStatus is a Patch setting the status.
func SetStatus(s domain.Status) Patch {
	return Patch{Status: &s}
}

// EncounterStore persists encounters. Update is atomic: it re-reads the
// row and applies the patch in one transaction.
type EncounterStore interface {
	Create(ctx context.Context, in NewEncounter) (domain.Encounter, error)
	Get(ctx context.Context, id string) (domain.Encounter, error)
	Update(ctx context.Context, id string, patch Patch) (domain.Encounter, error)
}
