package domain

import "github.com/louisbranch/fulcrum/internal/core/check"

// InitiativeStats are the six scores that feed initiative.
type InitiativeStats struct {
	Endurance int `json:"endurance"`
	Reflexes  int `json:"reflexes"`
	Fortitude int `json:"fortitude"`
	Logic     int `json:"logic"`
	Intuition int `json:"intuition"`
	Willpower int `json:"willpower"`
}

// Initiative is a rolled initiative score.
type Initiative struct {
	Roll      int            `json:"roll_value"`
	Modifiers map[string]int `json:"modifier_details"`
	Total     int            `json:"total_initiative"`
}

// RollInitiative returns d20 plus the modifier of every initiative stat.
func RollInitiative(r Roller, stats InitiativeStats) Initiative {
	mods := map[string]int{
		"endurance": check.Modifier(stats.Endurance),
		"reflexes":  check.Modifier(stats.Reflexes),
		"fortitude": check.Modifier(stats.Fortitude),
		"logic":     check.Modifier(stats.Logic),
		"intuition": check.Modifier(stats.Intuition),
		"willpower": check.Modifier(stats.Willpower),
	}
	roll := r.D20()
	total := roll
	for _, mod := range mods {
		total += mod
	}
	return Initiative{Roll: roll, Modifiers: mods, Total: total}
}
