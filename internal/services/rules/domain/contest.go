package domain

import (
	"github.com/louisbranch/fulcrum/internal/core/check"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// ContestParams are the inputs of a contested attack roll. Bonuses and
// penalties are non-negative magnitudes; the weapon penalty is already
// signed and must not be positive.
type ContestParams struct {
	AttackerStatScore   int `json:"attacker_attacking_stat_score"`
	AttackerSkillRank   int `json:"attacker_skill_rank"`
	AttackerRollBonus   int `json:"attacker_attack_roll_bonus"`
	AttackerRollPenalty int `json:"attacker_attack_roll_penalty"`

	DefenderArmorStatScore int `json:"defender_armor_stat_score"`
	DefenderArmorSkillRank int `json:"defender_armor_skill_rank"`
	DefenderWeaponPenalty  int `json:"defender_weapon_penalty"`
	DefenderRollBonus      int `json:"defender_defense_roll_bonus"`
	DefenderRollPenalty    int `json:"defender_defense_roll_penalty"`
}

// Validate rejects parameters the contest cannot interpret.
func (p ContestParams) Validate() error {
	if p.DefenderWeaponPenalty > 0 {
		return apperrors.Newf(apperrors.CodeWeaponPenalty, "defender weapon penalty must be <= 0, got %d", p.DefenderWeaponPenalty)
	}
	if p.AttackerSkillRank < 0 || p.DefenderArmorSkillRank < 0 {
		return apperrors.New(apperrors.CodeInvalidInput, "skill ranks must be >= 0")
	}
	for _, v := range []int{p.AttackerRollBonus, p.AttackerRollPenalty, p.DefenderRollBonus, p.DefenderRollPenalty} {
		if v < 0 {
			return apperrors.New(apperrors.CodeInvalidInput, "roll bonuses and penalties must be >= 0")
		}
	}
	return nil
}

// ContestResult reports both sides of a contested attack.
type ContestResult struct {
	AttackerRoll          int           `json:"attacker_roll"`
	AttackerStatModifier  int           `json:"attacker_stat_mod"`
	AttackerSkillBonus    int           `json:"attacker_skill_bonus"`
	AttackerTotalModifier int           `json:"attacker_total_modifier"`
	AttackerTotal         int           `json:"attacker_final_total"`
	DefenderRoll          int           `json:"defender_roll"`
	DefenderStatModifier  int           `json:"defender_stat_mod"`
	DefenderSkillBonus    int           `json:"defender_skill_bonus"`
	DefenderTotalModifier int           `json:"defender_total_modifier"`
	DefenderTotal         int           `json:"defender_final_total"`
	Margin                int           `json:"margin"`
	Outcome               check.Outcome `json:"outcome"`
}

// ContestedAttack rolls attacker then defender and classifies the result.
func ContestedAttack(r Roller, p ContestParams) (ContestResult, error) {
	if err := p.Validate(); err != nil {
		return ContestResult{}, err
	}

	res := ContestResult{
		AttackerStatModifier: check.Modifier(p.AttackerStatScore),
		AttackerSkillBonus:   check.MasteryBonus(p.AttackerSkillRank),
		DefenderStatModifier: check.Modifier(p.DefenderArmorStatScore),
		DefenderSkillBonus:   check.MasteryBonus(p.DefenderArmorSkillRank),
	}
	res.AttackerTotalModifier = res.AttackerStatModifier + res.AttackerSkillBonus +
		p.AttackerRollBonus - p.AttackerRollPenalty
	res.DefenderTotalModifier = res.DefenderStatModifier + res.DefenderSkillBonus +
		p.DefenderWeaponPenalty + p.DefenderRollBonus - p.DefenderRollPenalty

	res.AttackerRoll = r.D20()
	res.DefenderRoll = r.D20()
	res.AttackerTotal = res.AttackerRoll + res.AttackerTotalModifier
	res.DefenderTotal = res.DefenderRoll + res.DefenderTotalModifier
	res.Margin = check.Margin(res.AttackerTotal, res.DefenderTotal)
	res.Outcome = check.ClassifyContest(res.AttackerRoll, res.Margin)
	return res, nil
}
