package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads a single damage term: "NdS" with N and S at least one, or the
// literal "0".
func Parse(expr string) (Spec, error) {
	term := strings.ToLower(strings.TrimSpace(expr))
	if term == "0" {
		return Spec{}, nil
	}
	count, sides, ok := strings.Cut(term, "d")
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidNotation, expr)
	}
	n, err := parseBounded(count, MaxCount)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %q: count %v", ErrInvalidNotation, expr, err)
	}
	s, err := parseBounded(sides, MaxSides)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %q: sides %v", ErrInvalidNotation, expr, err)
	}
	return Spec{Sides: s, Count: n}, nil
}

// ParseDamage expands a weapon damage expression into one Spec per
// independently rolled hit. It accepts a single term, terms joined with "+"
// ("1d4+1d4" is two hits), and a repeated term "AdB(xK)" (K hits of AdB).
func ParseDamage(expr string) ([]Spec, error) {
	trimmed := strings.ToLower(strings.Join(strings.Fields(expr), ""))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidNotation)
	}

	if open := strings.Index(trimmed, "(x"); open != -1 {
		if !strings.HasSuffix(trimmed, ")") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNotation, expr)
		}
		times, err := parseBounded(trimmed[open+2:len(trimmed)-1], MaxHits)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: repeat %v", ErrInvalidNotation, expr, err)
		}
		spec, err := Parse(trimmed[:open])
		if err != nil {
			return nil, err
		}
		hits := make([]Spec, times)
		for i := range hits {
			hits[i] = spec
		}
		return hits, nil
	}

	terms := strings.Split(trimmed, "+")
	if len(terms) > MaxHits {
		return nil, fmt.Errorf("%w: %q: more than %d hits", ErrInvalidNotation, expr, MaxHits)
	}
	hits := make([]Spec, 0, len(terms))
	for _, term := range terms {
		spec, err := Parse(term)
		if err != nil {
			return nil, err
		}
		hits = append(hits, spec)
	}
	return hits, nil
}

func parseBounded(raw string, max int) (int, error) {
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("not a number")
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 1 || value > max {
		return 0, fmt.Errorf("%d outside 1..%d", value, max)
	}
	return value, nil
}
