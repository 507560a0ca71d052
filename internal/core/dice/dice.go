// Package dice rolls polyhedral dice and parses damage notation.
package dice

import (
	"errors"
	"strconv"
)

var (
	// ErrMissingDice is returned when a roll names no dice.
	ErrMissingDice = errors.New("at least one die must be provided")
	// ErrInvalidDiceSpec is returned when a spec has no sides or no dice.
	ErrInvalidDiceSpec = errors.New("dice spec must have positive sides and count")
	// ErrInvalidNotation is returned when a dice string cannot be parsed.
	ErrInvalidNotation = errors.New("invalid dice notation")
)

const (
	// MaxCount bounds the number of dice in one term.
	MaxCount = 100
	// MaxSides bounds the faces of a single die.
	MaxSides = 1000
	// MaxHits bounds the number of independent hits in a multi-hit expression.
	MaxHits = 10
)

// Spec describes Count dice of Sides faces. The zero Spec rolls nothing and
// is written "0".
type Spec struct {
	Sides int
	Count int
}

// IsZero reports whether the spec rolls no dice.
func (s Spec) IsZero() bool {
	return s.Sides == 0 && s.Count == 0
}

// String formats the spec in NdS notation.
func (s Spec) String() string {
	if s.IsZero() {
		return "0"
	}
	return strconv.Itoa(s.Count) + "d" + strconv.Itoa(s.Sides)
}

// Roll is the outcome of rolling one Spec.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

// Result is the outcome of rolling a list of specs.
type Result struct {
	Rolls []Roll
	Total int
}

// Source supplies uniform integers in [0, n).
type Source interface {
	Intn(n int) int
}
