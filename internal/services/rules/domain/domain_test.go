package domain

import (
	"testing"

	"github.com/louisbranch/fulcrum/internal/core/check"
	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

// fixedRoller replays preset d20 rolls and die faces.
type fixedRoller struct {
	d20s  []int
	faces []int
}

func (f *fixedRoller) D20() int {
	v := f.d20s[0]
	f.d20s = f.d20s[1:]
	return v
}

func (f *fixedRoller) Roll(spec dice.Spec) (dice.Roll, error) {
	if spec.IsZero() {
		return dice.Roll{}, nil
	}
	out := dice.Roll{Sides: spec.Sides}
	for i := 0; i < spec.Count; i++ {
		v := f.faces[0]
		f.faces = f.faces[1:]
		out.Results = append(out.Results, v)
		out.Total += v
	}
	return out, nil
}

func TestRollInitiativeSumsSixModifiers(t *testing.T) {
	r := &fixedRoller{d20s: []int{11}}
	got := RollInitiative(r, InitiativeStats{
		Endurance: 14, Reflexes: 12, Fortitude: 10,
		Logic: 9, Intuition: 18, Willpower: 7,
	})
	if got.Roll != 11 {
		t.Fatalf("roll = %d, want 11", got.Roll)
	}
	if len(got.Modifiers) != 6 {
		t.Fatalf("modifiers = %v, want six entries", got.Modifiers)
	}
	// 2 + 1 + 0 - 1 + 4 - 2 = 4
	if got.Total != 15 {
		t.Fatalf("total = %d, want 15", got.Total)
	}
	sum := got.Roll
	for _, m := range got.Modifiers {
		sum += m
	}
	if sum != got.Total {
		t.Fatalf("roll + mods = %d, total = %d", sum, got.Total)
	}
}

func TestContestedAttackOutcomes(t *testing.T) {
	base := ContestParams{AttackerStatScore: 14, DefenderArmorStatScore: 10}

	tests := []struct {
		name       string
		params     ContestParams
		d20s       []int
		want       check.Outcome
		wantMargin int
	}{
		{"hit", base, []int{12, 10}, check.OutcomeHit, 4},
		{"solid hit", base, []int{18, 10}, check.OutcomeSolidHit, 10},
		{"critical hit", base, []int{20, 19}, check.OutcomeCriticalHit, 3},
		{"critical fumble", base, []int{1, 1}, check.OutcomeCriticalFumble, 2},
		{"defender wins", ContestParams{AttackerStatScore: 10, DefenderArmorStatScore: 10}, []int{12, 15}, check.OutcomeMiss, -3},
		{"tie hits", ContestParams{AttackerStatScore: 10, DefenderArmorStatScore: 10}, []int{9, 9}, check.OutcomeHit, 0},
		{
			"modifiers apply",
			ContestParams{
				AttackerStatScore: 10, AttackerSkillRank: 6, AttackerRollBonus: 1, AttackerRollPenalty: 2,
				DefenderArmorStatScore: 12, DefenderArmorSkillRank: 3, DefenderWeaponPenalty: -1,
				DefenderRollBonus: 2, DefenderRollPenalty: 1,
			},
			[]int{10, 10},
			check.OutcomeMiss,
			-1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContestedAttack(&fixedRoller{d20s: tt.d20s}, tt.params)
			if err != nil {
				t.Fatalf("contested attack: %v", err)
			}
			if got.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s", got.Outcome, tt.want)
			}
			if got.Margin != tt.wantMargin {
				t.Fatalf("margin = %d, want %d", got.Margin, tt.wantMargin)
			}
			if got.Margin != got.AttackerTotal-got.DefenderTotal {
				t.Fatalf("margin %d does not match totals %d-%d", got.Margin, got.AttackerTotal, got.DefenderTotal)
			}
		})
	}
}

func TestContestedAttackRejectsPositiveWeaponPenalty(t *testing.T) {
	_, err := ContestedAttack(&fixedRoller{d20s: []int{10, 10}}, ContestParams{DefenderWeaponPenalty: 1})
	if apperrors.CodeOf(err) != apperrors.CodeWeaponPenalty {
		t.Fatalf("err = %v, want weapon penalty code", err)
	}
	if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Fatalf("err kind = %s, want invalid_input", apperrors.KindOf(err))
	}
}

func TestCalculateDamage(t *testing.T) {
	tests := []struct {
		name   string
		params DamageParams
		faces  []int
		want   Damage
	}{
		{
			name:   "simple hit no armor",
			params: DamageParams{Dice: "1d6", StatScore: 14},
			faces:  []int{3},
			want:   Damage{Rolls: []int{3}, BaseTotal: 3, StatBonus: 2, Subtotal: 5, Final: 5},
		},
		{
			name:   "armor absorbs part",
			params: DamageParams{Dice: "2d6", StatScore: 10, DamageBonus: 1, BaseDR: 3},
			faces:  []int{2, 4},
			want:   Damage{Rolls: []int{2, 4}, BaseTotal: 6, NetMisc: 1, Subtotal: 7, EffectiveDR: 3, DRApplied: 3, Final: 4},
		},
		{
			name:   "armor absorbs all",
			params: DamageParams{Dice: "1d4", StatScore: 10, BaseDR: 5},
			faces:  []int{2},
			want:   Damage{Rolls: []int{2}, BaseTotal: 2, Subtotal: 2, EffectiveDR: 5, DRApplied: 2, Final: 0},
		},
		{
			name:   "dr modifier pierces",
			params: DamageParams{Dice: "1d4", StatScore: 10, BaseDR: 2, DRModifier: 3},
			faces:  []int{2},
			want:   Damage{Rolls: []int{2}, BaseTotal: 2, Subtotal: 2, Final: 2},
		},
		{
			name:   "zero dice uses stat and misc",
			params: DamageParams{Dice: "0", StatScore: 16, DamageBonus: 2, DamagePenalty: 1, BaseDR: 1},
			want:   Damage{Rolls: []int{}, StatBonus: 3, NetMisc: 1, Subtotal: 4, EffectiveDR: 1, DRApplied: 1, Final: 3},
		},
		{
			name:   "negative sum clamps",
			params: DamageParams{Dice: "1d4", StatScore: 2, DamagePenalty: 3},
			faces:  []int{1},
			want:   Damage{Rolls: []int{1}, BaseTotal: 1, StatBonus: -4, NetMisc: -3, Subtotal: 0, Final: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateDamage(&fixedRoller{faces: tt.faces}, tt.params)
			if err != nil {
				t.Fatalf("calculate damage: %v", err)
			}
			if got.BaseTotal != tt.want.BaseTotal || got.StatBonus != tt.want.StatBonus ||
				got.NetMisc != tt.want.NetMisc || got.Subtotal != tt.want.Subtotal ||
				got.EffectiveDR != tt.want.EffectiveDR || got.DRApplied != tt.want.DRApplied ||
				got.Final != tt.want.Final {
				t.Fatalf("damage = %+v, want %+v", got, tt.want)
			}
			if len(got.Rolls) != len(tt.want.Rolls) {
				t.Fatalf("rolls = %v, want %v", got.Rolls, tt.want.Rolls)
			}
			if got.Final < 0 || got.Final > got.Subtotal {
				t.Fatalf("final %d outside [0, %d]", got.Final, got.Subtotal)
			}
			if got.Final > 0 && got.BaseTotal+got.StatBonus+got.NetMisc-got.DRApplied != got.Final {
				t.Fatalf("round trip broken: %+v", got)
			}
		})
	}
}

func TestCalculateDamageRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		params DamageParams
		code   apperrors.Code
	}{
		{"bad dice", DamageParams{Dice: "d6"}, apperrors.CodeDiceInvalidSpec},
		{"multi hit is not a single roll", DamageParams{Dice: "1d4+1d4"}, apperrors.CodeDiceInvalidSpec},
		{"negative dr", DamageParams{Dice: "1d6", BaseDR: -1}, apperrors.CodeDamageReduction},
		{"negative dr modifier", DamageParams{Dice: "1d6", DRModifier: -1}, apperrors.CodeDamageReduction},
		{"negative bonus", DamageParams{Dice: "1d6", DamageBonus: -1}, apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateDamage(&fixedRoller{faces: []int{1, 1}}, tt.params)
			if apperrors.CodeOf(err) != tt.code {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestSourceRollerZeroSpec(t *testing.T) {
	roll, err := NewRoller(nil).Roll(dice.Spec{})
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if roll.Total != 0 || len(roll.Results) != 0 {
		t.Fatalf("roll = %+v, want empty", roll)
	}
}
