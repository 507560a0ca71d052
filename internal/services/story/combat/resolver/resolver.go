// Package resolver resolves one declared combat action against the rules
// and entity services. It never touches encounter state; the turn
// controller decides what a result means for the encounter.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/fulcrum/internal/core/check"
	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/rules"
)

// Rules is the subset of the rules client the resolver needs.
type Rules interface {
	ContestedAttack(ctx context.Context, req rules.ContestRequest) (rules.ContestResult, error)
	CalculateWeaponDamage(ctx context.Context, req rules.DamageRequest) (rules.WeaponDamage, error)
	LookupWeapon(ctx context.Context, category string, kind domain.WeaponKind) (rules.Weapon, error)
	LookupArmor(ctx context.Context, category string) (rules.Armor, error)
	LookupInjury(ctx context.Context, location, subLocation string, severity int) (rules.Injury, error)
	LookupStatus(ctx context.Context, name string) (rules.StatusEffect, error)
}

// Entities is the subset of the entity client the resolver needs.
type Entities interface {
	Context(ctx context.Context, id domain.ActorID) (domain.ActorContext, error)
	ApplyDamage(ctx context.Context, id domain.ActorID, amount int) (int, error)
	ApplyStatus(ctx context.Context, id domain.ActorID, name string) error
}

// Verdict discriminates a resolved action.
type Verdict string

const (
	// Completed actions consume the actor's turn.
	Completed Verdict = "completed"
	// Rejected actions change nothing and leave the turn with the actor.
	Rejected Verdict = "rejected"
)

// Rejection reasons.
const (
	ReasonTargetDefeated   = "target_defeated"
	ReasonAttackerDefeated = "attacker_defeated"
	ReasonNotParticipant   = "target_not_participant"
	ReasonSelfTarget       = "target_is_self"
)

// MessageUnsupported is the message of an accepted but unimplemented action.
const MessageUnsupported = "unsupported"

// Result is the outcome of one action. Failures are returned as errors.
type Result struct {
	Verdict Verdict
	Action  string
	Reason  string
	Message string
	Log     []string
	Attack  *domain.AttackResolution
}

// Completed reports whether the action consumed the turn.
func (r Result) Completed() bool {
	return r.Verdict == Completed
}

// Resolver resolves actions.
type Resolver struct {
	rules    Rules
	entities Entities
	random   dice.Source
	logger   *zap.Logger
}

// New builds a resolver. random picks critical-hit locations.
func New(rulesClient Rules, entities Entities, random dice.Source, logger *zap.Logger) *Resolver {
	return &Resolver{
		rules:    rulesClient,
		entities: entities,
		random:   random,
		logger:   logging.OrNop(logger),
	}
}

// Resolve performs action for actor within enc. The caller has already
// checked that it is actor's turn.
func (r *Resolver) Resolve(ctx context.Context, enc domain.Encounter, actor domain.ActorID, action domain.Action) (Result, error) {
	name, err := domain.NormalizeActionName(action.Name)
	if err != nil {
		return Result{}, err
	}
	switch name {
	case domain.ActionAttack:
		return r.attack(ctx, enc, actor, action.Target)
	case domain.ActionWait:
		return Result{
			Verdict: Completed,
			Action:  name,
			Message: fmt.Sprintf("%s waits", actor),
			Log:     []string{fmt.Sprintf("%s waits.", actor)},
		}, nil
	default:
		intent := fmt.Sprintf("%s declared %s", actor, name)
		if action.Target.Kind != "" {
			intent += " targeting " + action.Target.String()
		}
		if action.AbilityID != "" {
			intent += " with ability " + action.AbilityID
		}
		if action.ItemID != "" {
			intent += " with item " + action.ItemID
		}
		return Result{
			Verdict: Completed,
			Action:  name,
			Message: MessageUnsupported,
			Log:     []string{intent + "; the action is unsupported and the turn passes."},
		}, nil
	}
}

func reject(action, reason, message string) Result {
	return Result{
		Verdict: Rejected,
		Action:  action,
		Reason:  reason,
		Message: message,
		Log:     []string{message},
	}
}

// attackSetup is everything fetched before the dice are rolled.
type attackSetup struct {
	attacker domain.ActorContext
	target   domain.ActorContext
	weapon   rules.Weapon
	armor    rules.Armor
	mods     Modifiers
	log      []string
}

func (r *Resolver) attack(ctx context.Context, enc domain.Encounter, actor, targetID domain.ActorID) (Result, error) {
	if targetID.IsZero() {
		return Result{}, apperrors.New(apperrors.CodeActionMissingTarget, "attack requires a target")
	}
	if err := targetID.Validate(); err != nil {
		return Result{}, err
	}
	if targetID == actor {
		return reject(domain.ActionAttack, ReasonSelfTarget, fmt.Sprintf("%s cannot attack itself.", actor)), nil
	}
	if !enc.HasParticipant(targetID) {
		return reject(domain.ActionAttack, ReasonNotParticipant, fmt.Sprintf("%s is not in this encounter.", targetID)), nil
	}

	attacker, target, err := r.contexts(ctx, actor, targetID)
	if err != nil {
		return Result{}, err
	}
	if attacker.Defeated() {
		return reject(domain.ActionAttack, ReasonAttackerDefeated, fmt.Sprintf("%s is defeated and cannot attack.", actor)), nil
	}
	if target.Defeated() {
		return reject(domain.ActionAttack, ReasonTargetDefeated, fmt.Sprintf("%s is already defeated.", targetID)), nil
	}

	setup, err := r.prepare(ctx, attacker, target)
	if err != nil {
		return Result{}, err
	}
	return r.strike(ctx, setup)
}

func (r *Resolver) contexts(ctx context.Context, attackerID, targetID domain.ActorID) (domain.ActorContext, domain.ActorContext, error) {
	var attacker, target domain.ActorContext
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attacker, err = r.entities.Context(gctx, attackerID)
		return err
	})
	g.Go(func() error {
		var err error
		target, err = r.entities.Context(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ActorContext{}, domain.ActorContext{}, fmt.Errorf("load combatants: %w", err)
	}
	return attacker, target, nil
}

// prepare looks up equipment and statuses concurrently.
func (r *Resolver) prepare(ctx context.Context, attacker, target domain.ActorContext) (attackSetup, error) {
	setup := attackSetup{attacker: attacker, target: target}
	weaponRef := attacker.EquippedWeapon()
	armorRef := target.EquippedArmor()
	attackerStatuses := make([]StatusSource, len(attacker.StatusEffects))
	targetStatuses := make([]StatusSource, len(target.StatusEffects))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := r.rules.LookupWeapon(gctx, weaponRef.Category, weaponRef.Kind)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return apperrors.Wrap(apperrors.CodeRulesRecordInvalid,
				fmt.Sprintf("%s weapon %q has no definition", weaponRef.Kind, weaponRef.Category), err)
		}
		setup.weapon = w
		return err
	})
	g.Go(func() error {
		a, err := r.rules.LookupArmor(gctx, armorRef.Category)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			setup.armor = rules.Armor{Category: domain.DefaultArmorCategory, SkillStat: domain.DefaultArmorStat}
			return nil
		}
		setup.armor = a
		return err
	})
	lookupStatuses(g, gctx, r.rules, attacker.StatusEffects, attackerStatuses)
	lookupStatuses(g, gctx, r.rules, target.StatusEffects, targetStatuses)
	if err := g.Wait(); err != nil {
		return attackSetup{}, fmt.Errorf("prepare attack: %w", err)
	}
	if armorRef.Category != setup.armor.Category && setup.armor.Category == domain.DefaultArmorCategory {
		setup.log = append(setup.log, fmt.Sprintf("Armor %q is unknown; %s defends unarmored.", armorRef.Category, target.ID))
	}

	mods, logs := Aggregate(attackerStatuses, targetStatuses, setup.weapon.Properties)
	setup.mods = mods
	setup.log = append(setup.log, logs...)
	return setup, nil
}

func lookupStatuses(g *errgroup.Group, ctx context.Context, client Rules, names []string, out []StatusSource) {
	for i, name := range names {
		g.Go(func() error {
			s, err := client.LookupStatus(ctx, name)
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				out[i] = StatusSource{Name: name}
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = StatusSource{Name: s.Name, Effects: s.Effects, Known: true}
			return nil
		})
	}
}

// strike rolls the contest and applies its consequences in causal order.
func (r *Resolver) strike(ctx context.Context, s attackSetup) (Result, error) {
	attacker, target := s.attacker, s.target
	contest, err := r.rules.ContestedAttack(ctx, rules.ContestRequest{
		AttackerStatScore:      attacker.Stat(s.weapon.SkillStat),
		AttackerSkillRank:      attacker.Skill(s.weapon.Skill),
		AttackerRollBonus:      s.mods.AttackBonus,
		AttackerRollPenalty:    s.mods.AttackPenalty,
		DefenderArmorStatScore: target.Stat(s.armor.SkillStat),
		DefenderArmorSkillRank: target.Skill(s.armor.Skill),
		DefenderWeaponPenalty:  min(0, s.weapon.Penalty),
		DefenderRollBonus:      s.mods.DefenseBonus,
		DefenderRollPenalty:    s.mods.DefensePenalty,
	})
	if err != nil {
		return Result{}, err
	}

	res := &domain.AttackResolution{
		Attacker:      attacker.ID,
		Target:        target.ID,
		AttackerRoll:  contest.AttackerRoll,
		DefenderRoll:  contest.DefenderRoll,
		AttackerTotal: contest.AttackerTotal,
		DefenderTotal: contest.DefenderTotal,
		Margin:        contest.Margin,
		Outcome:       contest.Outcome,
		TargetHPAfter: target.HPCurrent,
	}
	logf := func(format string, args ...any) {
		res.Log = append(res.Log, fmt.Sprintf(format, args...))
	}
	res.Log = append(res.Log, s.log...)
	logf("%s attacks %s with %s: %d (d20 %d) vs %d (d20 %d), margin %d: %s.",
		attacker.ID, target.ID, s.weapon.Category,
		contest.AttackerTotal, contest.AttackerRoll,
		contest.DefenderTotal, contest.DefenderRoll,
		contest.Margin, contest.Outcome)

	result := Result{Verdict: Completed, Action: domain.ActionAttack, Attack: res}
	if !contest.Outcome.Lands() {
		if contest.Outcome == check.OutcomeCriticalFumble {
			logf("%s fumbles the attack.", attacker.ID)
		}
		result.Message = string(contest.Outcome)
		result.Log = res.Log
		return result, nil
	}

	damage, err := r.rules.CalculateWeaponDamage(ctx, rules.DamageRequest{
		Dice:          s.weapon.DamageDice,
		StatScore:     attacker.Stat(s.weapon.SkillStat),
		DamageBonus:   s.mods.DamageBonus,
		DamagePenalty: s.mods.DamagePenalty,
		DRModifier:    s.mods.DRModifier,
		BaseDR:        max(0, s.armor.DR),
	})
	if err != nil {
		return Result{}, err
	}
	newHP, err := r.entities.ApplyDamage(ctx, target.ID, damage.Final)
	if err != nil {
		return Result{}, fmt.Errorf("apply damage to %s: %w", target.ID, err)
	}
	res.DamageDealt = damage.Final
	res.TargetHPAfter = newHP
	if len(damage.Hits) > 1 {
		for i, hit := range damage.Hits {
			logf("Hit %d: rolled %v, %d damage after %d DR.", i+1, hit.Rolls, hit.Final, hit.DRApplied)
		}
	}
	logf("%s takes %d damage (HP %d -> %d).", target.ID, damage.Final, target.HPCurrent, newHP)

	// Damage is applied; from here on failures are logged, not returned,
	// so a retried request cannot strike twice.
	switch contest.Outcome {
	case check.OutcomeSolidHit:
		r.applyStatus(ctx, res, domain.StatusStaggered)
	case check.OutcomeCriticalHit:
		r.injure(ctx, res)
	}

	after, err := r.entities.Context(ctx, target.ID)
	if err != nil {
		r.logger.Warn("re-read target after damage",
			zap.String("target", target.ID.String()), zap.Error(err))
		logf("Could not re-read %s; using computed HP %d.", target.ID, newHP)
	} else {
		res.TargetHPAfter = after.HPCurrent
	}
	if res.TargetHPAfter <= 0 {
		res.TargetDefeated = true
		logf("%s is defeated!", target.ID)
	}

	result.Message = string(contest.Outcome)
	result.Log = res.Log
	return result, nil
}

func (r *Resolver) applyStatus(ctx context.Context, res *domain.AttackResolution, name string) {
	effect := domain.SideEffect{Kind: domain.SideEffectStatus, Name: name}
	if err := r.entities.ApplyStatus(ctx, res.Target, name); err != nil {
		r.logger.Warn("apply status", zap.String("target", res.Target.String()), zap.String("status", name), zap.Error(err))
		res.Log = append(res.Log, fmt.Sprintf("Failed to apply %s to %s.", name, res.Target))
	} else {
		effect.Applied = true
		res.Log = append(res.Log, fmt.Sprintf("%s is %s.", res.Target, name))
	}
	res.SideEffects = append(res.SideEffects, effect)
}

func (r *Resolver) injure(ctx context.Context, res *domain.AttackResolution) {
	loc := HitLocations[r.random.Intn(len(HitLocations))]
	injury, err := r.rules.LookupInjury(ctx, loc.Location, loc.SubLocation, CriticalSeverity)
	if err != nil {
		r.logger.Warn("lookup injury", zap.String("location", loc.Location), zap.String("sub_location", loc.SubLocation), zap.Error(err))
		res.Log = append(res.Log, fmt.Sprintf("Critical hit to the %s (%s), but the injury could not be determined.", loc.SubLocation, loc.Location))
		return
	}
	res.Log = append(res.Log, fmt.Sprintf("Critical hit! %s injury to the %s (%s): %s.",
		injury.SeverityName, loc.SubLocation, loc.Location, strings.Join(injury.Effects, "; ")))
	res.SideEffects = append(res.SideEffects, domain.SideEffect{
		Kind:        domain.SideEffectInjury,
		Name:        injury.SeverityName,
		Location:    loc.Location,
		SubLocation: loc.SubLocation,
		Severity:    CriticalSeverity,
		Effects:     injury.Effects,
		Applied:     true,
	})
	for _, effect := range injury.Effects {
		status, err := r.rules.LookupStatus(ctx, effect)
		if err != nil {
			// Descriptive effects are not statuses.
			if !apperrors.IsKind(err, apperrors.KindNotFound) {
				r.logger.Warn("lookup injury status", zap.String("effect", effect), zap.Error(err))
			}
			continue
		}
		r.applyStatus(ctx, res, status.Name)
	}
}
