package check

// Outcome is the tier of a contested attack roll.
type Outcome string

const (
	OutcomeCriticalFumble Outcome = "critical_fumble"
	OutcomeMiss           Outcome = "miss"
	OutcomeHit            Outcome = "hit"
	OutcomeSolidHit       Outcome = "solid_hit"
	OutcomeCriticalHit    Outcome = "critical_hit"
)

const (
	// NaturalFumble is the raw d20 that always fumbles.
	NaturalFumble = 1
	// NaturalCritical is the raw d20 that always crits.
	NaturalCritical = 20
	// SolidHitMargin is the smallest margin that upgrades a hit.
	SolidHitMargin = 5
)

// ClassifyContest maps the attacker's raw d20 and the contest margin to an
// outcome. Natural rolls take precedence over the margin.
func ClassifyContest(attackerRoll, margin int) Outcome {
	switch {
	case attackerRoll == NaturalFumble:
		return OutcomeCriticalFumble
	case attackerRoll == NaturalCritical:
		return OutcomeCriticalHit
	case margin >= SolidHitMargin:
		return OutcomeSolidHit
	case margin >= 0:
		return OutcomeHit
	default:
		return OutcomeMiss
	}
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCriticalFumble, OutcomeMiss, OutcomeHit, OutcomeSolidHit, OutcomeCriticalHit:
		return true
	}
	return false
}

// Lands reports whether the outcome deals damage.
func (o Outcome) Lands() bool {
	return o == OutcomeHit || o == OutcomeSolidHit || o == OutcomeCriticalHit
}
