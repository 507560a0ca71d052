// Package domain implements the Fulcrum rules calculations: initiative,
// contested attacks and damage. Every function is pure over a Roller.
package domain

import "github.com/louisbranch/fulcrum/internal/core/dice"

// Roller draws dice for the rules calculations.
type Roller interface {
	D20() int
	Roll(spec dice.Spec) (dice.Roll, error)
}

// SourceRoller rolls dice from a dice.Source.
type SourceRoller struct {
	src dice.Source
}

// NewRoller wraps src. The source must be safe for concurrent use when the
// roller is shared between requests.
func NewRoller(src dice.Source) *SourceRoller {
	return &SourceRoller{src: src}
}

// D20 rolls one twenty-sided die.
func (r *SourceRoller) D20() int {
	return dice.RollD20(r.src)
}

// Roll rolls spec. The zero spec yields an empty roll.
func (r *SourceRoller) Roll(spec dice.Spec) (dice.Roll, error) {
	if spec.IsZero() {
		return dice.Roll{}, nil
	}
	result, err := dice.RollWithSource(r.src, []dice.Spec{spec})
	if err != nil {
		return dice.Roll{}, err
	}
	return result.Rolls[0], nil
}
