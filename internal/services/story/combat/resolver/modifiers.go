package resolver

import (
	"fmt"
	"strconv"
	"strings"
)

// Modifier buckets a scalar effect can feed.
const (
	BucketAttackBonus    = "attack_roll_bonus"
	BucketAttackPenalty  = "attack_roll_penalty"
	BucketDefenseBonus   = "defense_roll_bonus"
	BucketDefensePenalty = "defense_roll_penalty"
	BucketDamageBonus    = "damage_bonus"
	BucketDamagePenalty  = "damage_penalty"
	BucketDRModifier     = "dr_modifier"
)

var buckets = map[string]bool{
	BucketAttackBonus:    true,
	BucketAttackPenalty:  true,
	BucketDefenseBonus:   true,
	BucketDefensePenalty: true,
	BucketDamageBonus:    true,
	BucketDamagePenalty:  true,
	BucketDRModifier:     true,
}

// ParseEffect reads a scalar effect of the form "<bucket>:<int>". Values
// are non-negative; the bucket name carries the sign.
func ParseEffect(effect string) (bucket string, value int, ok bool) {
	name, raw, found := strings.Cut(strings.TrimSpace(effect), ":")
	if !found {
		return "", 0, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if !buckets[name] {
		return "", 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return "", 0, false
	}
	return name, value, true
}

// Modifiers are the summed status and equipment modifiers of one attack.
type Modifiers struct {
	AttackBonus    int
	AttackPenalty  int
	DefenseBonus   int
	DefensePenalty int
	DamageBonus    int
	DamagePenalty  int
	DRModifier     int
}

// Side selects which buckets a source contributes to.
type Side int

const (
	// Attacking sources feed the attack, damage and DR buckets.
	Attacking Side = iota
	// Defending sources feed the defense buckets.
	Defending
)

// Add folds one scalar effect into m. It reports false when the effect is
// not scalar; scalar effects for the other side are accepted and ignored.
func (m *Modifiers) Add(side Side, effect string) bool {
	bucket, value, ok := ParseEffect(effect)
	if !ok {
		return false
	}
	switch side {
	case Attacking:
		switch bucket {
		case BucketAttackBonus:
			m.AttackBonus += value
		case BucketAttackPenalty:
			m.AttackPenalty += value
		case BucketDamageBonus:
			m.DamageBonus += value
		case BucketDamagePenalty:
			m.DamagePenalty += value
		case BucketDRModifier:
			m.DRModifier += value
		}
	case Defending:
		switch bucket {
		case BucketDefenseBonus:
			m.DefenseBonus += value
		case BucketDefensePenalty:
			m.DefensePenalty += value
		}
	}
	return true
}

// StatusSource is one looked-up status of an actor.
type StatusSource struct {
	Name    string
	Effects []string
	Known   bool
}

// Aggregate sums the scalar effects of the attacker's and defender's
// statuses and the weapon's properties. Unknown statuses and non-scalar
// status effects come back as log lines.
func Aggregate(attacker, defender []StatusSource, weaponProperties []string) (Modifiers, []string) {
	var (
		m    Modifiers
		logs []string
	)
	fold := func(side Side, who string, statuses []StatusSource) {
		for _, s := range statuses {
			if !s.Known {
				logs = append(logs, fmt.Sprintf("%s status %q is unknown; ignored", who, s.Name))
				continue
			}
			for _, effect := range s.Effects {
				if !m.Add(side, effect) {
					logs = append(logs, fmt.Sprintf("%s status %s: %q has no modifier", who, s.Name, effect))
				}
			}
		}
	}
	fold(Attacking, "attacker", attacker)
	fold(Defending, "defender", defender)
	for _, prop := range weaponProperties {
		m.Add(Attacking, prop)
	}
	return m, logs
}
