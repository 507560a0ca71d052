package domain

import (
	"strings"

	"github.com/louisbranch/fulcrum/internal/core/check"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// Action names handled by the resolver.
const (
	ActionAttack = "attack"
	ActionWait   = "wait"
)

const maxActionNameLen = 64

// Action is a declared turn action.
type Action struct {
	Name      string
	Target    ActorID
	AbilityID string
	ItemID    string
}

// NormalizeActionName lowercases and validates an action name. Names are
// letters, digits and underscores.
func NormalizeActionName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return "", apperrors.New(apperrors.CodeActionInvalid, "action is required")
	}
	if len(name) > maxActionNameLen {
		return "", apperrors.Newf(apperrors.CodeActionInvalid, "action name longer than %d characters", maxActionNameLen)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return "", apperrors.Newf(apperrors.CodeActionInvalid, "action %q has invalid characters", raw)
		}
	}
	return name, nil
}

// SideEffectKind classifies a side effect of an attack.
type SideEffectKind string

const (
	SideEffectStatus SideEffectKind = "status"
	SideEffectInjury SideEffectKind = "injury"
)

// SideEffect is a status or injury produced by an attack.
type SideEffect struct {
	Kind        SideEffectKind `json:"kind"`
	Name        string         `json:"name"`
	Location    string         `json:"location,omitempty"`
	SubLocation string         `json:"sub_location,omitempty"`
	Severity    int            `json:"severity,omitempty"`
	Effects     []string       `json:"effects,omitempty"`
	Applied     bool           `json:"applied"`
}

// AttackResolution records one attack.
type AttackResolution struct {
	Attacker       ActorID       `json:"attacker"`
	Target         ActorID       `json:"target"`
	AttackerRoll   int           `json:"attacker_roll"`
	DefenderRoll   int           `json:"defender_roll"`
	AttackerTotal  int           `json:"attacker_total"`
	DefenderTotal  int           `json:"defender_total"`
	Margin         int           `json:"margin"`
	Outcome        check.Outcome `json:"outcome"`
	DamageDealt    int           `json:"damage_dealt"`
	TargetHPAfter  int           `json:"target_hp_after"`
	TargetDefeated bool          `json:"target_defeated"`
	Log            []string      `json:"log"`
	SideEffects    []SideEffect  `json:"side_effects"`
}
