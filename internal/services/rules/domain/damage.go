package domain

import (
	"errors"

	"github.com/louisbranch/fulcrum/internal/core/check"
	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// DamageParams are the inputs of a single damage roll.
type DamageParams struct {
	Dice          string `json:"base_damage_dice"`
	StatScore     int    `json:"relevant_stat_score"`
	DamageBonus   int    `json:"attacker_damage_bonus"`
	DamagePenalty int    `json:"attacker_damage_penalty"`
	DRModifier    int    `json:"attacker_dr_modifier"`
	BaseDR        int    `json:"defender_base_dr"`
}

// Damage is one computed damage roll.
//
// Final never exceeds Subtotal, and when Final is positive
// BaseTotal + StatBonus + NetMisc - DRApplied == Final.
type Damage struct {
	Rolls       []int `json:"damage_roll_details"`
	BaseTotal   int   `json:"base_roll_total"`
	StatBonus   int   `json:"stat_bonus"`
	NetMisc     int   `json:"misc_bonus"`
	Subtotal    int   `json:"subtotal_damage"`
	EffectiveDR int   `json:"effective_dr"`
	DRApplied   int   `json:"damage_reduction_applied"`
	Final       int   `json:"final_damage"`
}

// CalculateDamage rolls the dice and applies stat, misc and damage reduction.
func CalculateDamage(r Roller, p DamageParams) (Damage, error) {
	if p.BaseDR < 0 || p.DRModifier < 0 {
		return Damage{}, apperrors.New(apperrors.CodeDamageReduction, "damage reduction inputs must be >= 0")
	}
	if p.DamageBonus < 0 || p.DamagePenalty < 0 {
		return Damage{}, apperrors.New(apperrors.CodeInvalidInput, "damage bonus and penalty must be >= 0")
	}
	spec, err := dice.Parse(p.Dice)
	if err != nil {
		return Damage{}, apperrors.Wrap(apperrors.CodeDiceInvalidSpec, "parse damage dice", err)
	}
	roll, err := r.Roll(spec)
	if err != nil {
		if errors.Is(err, dice.ErrInvalidDiceSpec) || errors.Is(err, dice.ErrMissingDice) {
			return Damage{}, apperrors.Wrap(apperrors.CodeDiceInvalidSpec, "roll damage dice", err)
		}
		return Damage{}, err
	}

	out := Damage{
		Rolls:     append([]int{}, roll.Results...),
		BaseTotal: roll.Total,
		StatBonus: check.Modifier(p.StatScore),
		NetMisc:   p.DamageBonus - p.DamagePenalty,
	}
	out.Subtotal = max(0, out.BaseTotal+out.StatBonus+out.NetMisc)
	out.EffectiveDR = max(0, p.BaseDR-p.DRModifier)
	out.DRApplied = min(out.Subtotal, out.EffectiveDR)
	out.Final = max(0, out.Subtotal-out.EffectiveDR)
	return out, nil
}
