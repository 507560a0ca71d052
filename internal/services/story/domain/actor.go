// Package domain defines the combat aggregate shared by the story service:
// actors, encounters, actor contexts and attack resolutions.
package domain

import (
	"strings"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// ActorKind tells players and NPCs apart.
type ActorKind string

const (
	KindPlayer ActorKind = "player"
	KindNPC    ActorKind = "npc"
)

// ActorID identifies a combat participant. The zero value is invalid.
type ActorID struct {
	Kind ActorKind
	ID   string
}

// PlayerID builds a player actor id.
func PlayerID(id string) ActorID {
	return ActorID{Kind: KindPlayer, ID: id}
}

// NPCID builds an NPC actor id.
func NPCID(id string) ActorID {
	return ActorID{Kind: KindNPC, ID: id}
}

// ParseActorID reads the wire form "player_<digits>" or "npc_<digits>".
func ParseActorID(raw string) (ActorID, error) {
	prefix, id, ok := strings.Cut(raw, "_")
	if !ok {
		return ActorID{}, apperrors.Newf(apperrors.CodeActorInvalidID, "actor id %q must look like player_<n> or npc_<n>", raw)
	}
	kind := ActorKind(prefix)
	if kind != KindPlayer && kind != KindNPC {
		return ActorID{}, apperrors.Newf(apperrors.CodeActorInvalidID, "actor id %q has unknown kind %q", raw, prefix)
	}
	if !isDigits(id) {
		return ActorID{}, apperrors.Newf(apperrors.CodeActorInvalidID, "actor id %q must end in digits", raw)
	}
	return ActorID{Kind: kind, ID: id}, nil
}

// ParseActorIDs parses every raw id, failing on the first invalid one.
func ParseActorIDs(raw []string) ([]ActorID, error) {
	ids := make([]ActorID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseActorID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// String returns the wire form.
func (a ActorID) String() string {
	if a.IsZero() {
		return ""
	}
	return string(a.Kind) + "_" + a.ID
}

// IsZero reports whether a is unset.
func (a ActorID) IsZero() bool {
	return a.Kind == "" && a.ID == ""
}

// IsPlayer reports whether a names a player character.
func (a ActorID) IsPlayer() bool { return a.Kind == KindPlayer }

// IsNPC reports whether a names an NPC instance.
func (a ActorID) IsNPC() bool { return a.Kind == KindNPC }

// Validate checks the id has a known kind and a digit id.
func (a ActorID) Validate() error {
	_, err := ParseActorID(a.String())
	return err
}

// MarshalText encodes the wire form.
func (a ActorID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes the wire form.
func (a *ActorID) UnmarshalText(text []byte) error {
	parsed, err := ParseActorID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
