package rules

import "github.com/louisbranch/fulcrum/internal/core/check"

// InitiativeRequest carries the six initiative scores.
type InitiativeRequest struct {
	Endurance int `json:"endurance"`
	Reflexes  int `json:"reflexes"`
	Fortitude int `json:"fortitude"`
	Logic     int `json:"logic"`
	Intuition int `json:"intuition"`
	Willpower int `json:"willpower"`
}

// InitiativeResult is a rolled initiative.
type InitiativeResult struct {
	Roll      int            `json:"roll_value"`
	Modifiers map[string]int `json:"modifier_details"`
	Total     int            `json:"total_initiative"`
}

// ContestRequest are the inputs of a contested attack.
type ContestRequest struct {
	AttackerStatScore      int `json:"attacker_attacking_stat_score"`
	AttackerSkillRank      int `json:"attacker_skill_rank"`
	AttackerRollBonus      int `json:"attacker_attack_roll_bonus"`
	AttackerRollPenalty    int `json:"attacker_attack_roll_penalty"`
	DefenderArmorStatScore int `json:"defender_armor_stat_score"`
	DefenderArmorSkillRank int `json:"defender_armor_skill_rank"`
	DefenderWeaponPenalty  int `json:"defender_weapon_penalty"`
	DefenderRollBonus      int `json:"defender_defense_roll_bonus"`
	DefenderRollPenalty    int `json:"defender_defense_roll_penalty"`
}

// ContestResult reports a contested attack.
type ContestResult struct {
	AttackerRoll  int           `json:"attacker_roll"`
	AttackerTotal int           `json:"attacker_final_total"`
	DefenderRoll  int           `json:"defender_roll"`
	DefenderTotal int           `json:"defender_final_total"`
	Margin        int           `json:"margin"`
	Outcome       check.Outcome `json:"outcome"`
}

// DamageRequest are the inputs of one damage roll. Dice must be a single
// term.
type DamageRequest struct {
	Dice          string `json:"base_damage_dice"`
	StatScore     int    `json:"relevant_stat_score"`
	DamageBonus   int    `json:"attacker_damage_bonus"`
	DamagePenalty int    `json:"attacker_damage_penalty"`
	DRModifier    int    `json:"attacker_dr_modifier"`
	BaseDR        int    `json:"defender_base_dr"`
}

// DamageResult is one computed damage roll.
type DamageResult struct {
	Rolls       []int `json:"damage_roll_details"`
	BaseTotal   int   `json:"base_roll_total"`
	StatBonus   int   `json:"stat_bonus"`
	NetMisc     int   `json:"misc_bonus"`
	Subtotal    int   `json:"subtotal_damage"`
	EffectiveDR int   `json:"effective_dr"`
	DRApplied   int   `json:"damage_reduction_applied"`
	Final       int   `json:"final_damage"`
}

// WeaponDamage is the accumulated damage of a possibly multi-hit weapon.
type WeaponDamage struct {
	Hits  []DamageResult
	Final int
}

// Weapon is a weapon table record.
type Weapon struct {
	Category   string   `json:"category"`
	Kind       string   `json:"kind"`
	DamageDice string   `json:"damage_dice"`
	Skill      string   `json:"skill"`
	SkillStat  string   `json:"skill_stat"`
	Penalty    int      `json:"penalty"`
	Properties []string `json:"properties"`
}

// Armor is an armor table record.
type Armor struct {
	Category   string   `json:"category"`
	Skill      string   `json:"skill"`
	SkillStat  string   `json:"skill_stat"`
	DR         int      `json:"dr"`
	Properties []string `json:"properties"`
}

// Injury is an injury table record.
type Injury struct {
	SeverityName string   `json:"severity_name"`
	Effects      []string `json:"effects"`
}

// StatusEffect is a status table record.
type StatusEffect struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Effects         []string `json:"effects"`
	Type            string   `json:"type"`
	DurationType    string   `json:"duration_type"`
	DefaultDuration int      `json:"default_duration"`
}
