// Package turn moves an encounter from one actor to the next and runs NPC
// turns.
package turn

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/policy"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/resolver"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/storage"
)

// Event tells the caller what happens next.
type Event string

const (
	// EventAwaitPlayer means the current actor is a player.
	EventAwaitPlayer Event = "await_player"
	// EventNPCTurn means the current actor is an NPC.
	EventNPCTurn Event = "npc_turn"
	// EventTerminated means the encounter reached a terminal status.
	EventTerminated Event = "terminated"
)

// Step is the encounter after a transition.
type Step struct {
	Event       Event
	Encounter   domain.Encounter
	Log         []string
	Resolutions []domain.AttackResolution
}

// Store is the encounter persistence the controller writes through.
type Store interface {
	Update(ctx context.Context, encounterID string, patch storage.Patch) (domain.Encounter, error)
}

// Entities reads actor state.
type Entities interface {
	Context(ctx context.Context, id domain.ActorID) (domain.ActorContext, error)
}

// Resolver resolves one action.
type Resolver interface {
	Resolve(ctx context.Context, enc domain.Encounter, actor domain.ActorID, action domain.Action) (resolver.Result, error)
}

// Controller owns turn transitions. Callers serialize calls per encounter.
type Controller struct {
	store    Store
	entities Entities
	resolver Resolver
	random   dice.Source
	logger   *zap.Logger
}

// NewController builds a controller. random drives NPC target choice.
func NewController(store Store, entities Entities, res Resolver, random dice.Source, logger *zap.Logger) *Controller {
	return &Controller{
		store:    store,
		entities: entities,
		resolver: res,
		random:   random,
		logger:   logging.OrNop(logger),
	}
}

// EventFor reports the event of an encounter as stored.
func EventFor(enc domain.Encounter) Event {
	if enc.Status.Terminal() {
		return EventTerminated
	}
	actor, err := enc.CurrentActor()
	if err == nil && actor.IsNPC() {
		return EventNPCTurn
	}
	return EventAwaitPlayer
}

// Advance ends the current turn: it either terminates the encounter or
// moves to the next live actor.
func (c *Controller) Advance(ctx context.Context, enc domain.Encounter) (Step, error) {
	if enc.Status.Terminal() {
		return Step{}, apperrors.Newf(apperrors.CodeEncounterTerminal, "encounter %s is %s", enc.ID, enc.Status)
	}
	hp, log := c.participantHP(ctx, enc)
	// Reads cut short by cancellation look like defeats; never end or move
	// the encounter on them.
	if err := ctx.Err(); err != nil {
		return Step{}, apperrors.Wrap(apperrors.CodeUnavailable, "turn check interrupted", err)
	}

	if status, over := Outcome(enc, hp); over {
		next, err := c.store.Update(ctx, enc.ID, storage.SetStatus(status))
		if err != nil {
			return Step{}, fmt.Errorf("end encounter: %w", err)
		}
		log = append(log, fmt.Sprintf("Combat is over: %s.", status))
		c.logger.Info("encounter ended", zap.String("encounter_id", enc.ID), zap.String("status", string(status)))
		return Step{Event: EventTerminated, Encounter: next, Log: log}, nil
	}

	index := enc.NextTurnIndex()
	for range len(enc.TurnOrder) {
		actor := enc.TurnOrder[index]
		if hp[actor] > 0 {
			break
		}
		log = append(log, fmt.Sprintf("%s is defeated; skipping their turn.", actor))
		index = (index + 1) % len(enc.TurnOrder)
	}
	next, err := c.store.Update(ctx, enc.ID, storage.TurnIndex(index))
	if err != nil {
		return Step{}, fmt.Errorf("advance turn: %w", err)
	}
	actor := next.TurnOrder[next.CurrentTurnIndex]
	log = append(log, fmt.Sprintf("It is now %s's turn.", actor))
	return Step{Event: EventFor(next), Encounter: next, Log: log}, nil
}

// Outcome decides whether the encounter is over given every participant's
// HP. Missing entries count as defeated.
func Outcome(enc domain.Encounter, hp map[domain.ActorID]int) (domain.Status, bool) {
	var playersUp, npcsUp bool
	for _, id := range enc.TurnOrder {
		if hp[id] <= 0 {
			continue
		}
		if id.IsPlayer() {
			playersUp = true
		} else {
			npcsUp = true
		}
	}
	switch {
	case !playersUp:
		return domain.StatusNPCsWin, true
	case !npcsUp:
		return domain.StatusPlayersWin, true
	}
	return domain.StatusActive, false
}

// participantHP reads every participant concurrently. A participant that
// cannot be read counts as defeated so the encounter can still end.
func (c *Controller) participantHP(ctx context.Context, enc domain.Encounter) (map[domain.ActorID]int, []string) {
	values := make([]int, len(enc.TurnOrder))
	failed := make([]error, len(enc.TurnOrder))
	var g errgroup.Group
	for i, id := range enc.TurnOrder {
		g.Go(func() error {
			actor, err := c.entities.Context(ctx, id)
			if err != nil {
				failed[i] = err
				return nil
			}
			values[i] = actor.HPCurrent
			return nil
		})
	}
	_ = g.Wait()

	hp := make(map[domain.ActorID]int, len(enc.TurnOrder))
	var log []string
	for i, id := range enc.TurnOrder {
		if failed[i] != nil {
			c.logger.Warn("participant unavailable during termination check",
				zap.String("encounter_id", enc.ID), zap.String("actor", id.String()), zap.Error(failed[i]))
			log = append(log, fmt.Sprintf("Could not read %s; counting them as down.", id))
			continue
		}
		hp[id] = values[i]
	}
	return hp, log
}

// RunNPCTurn plays the current NPC's turn and advances. Errors from the
// NPC's action are logged and the turn still passes; only store failures
// and a non-NPC current actor are returned.
func (c *Controller) RunNPCTurn(ctx context.Context, enc domain.Encounter) (Step, error) {
	if enc.Status.Terminal() {
		return Step{}, apperrors.Newf(apperrors.CodeEncounterTerminal, "encounter %s is %s", enc.ID, enc.Status)
	}
	actor, err := enc.CurrentActor()
	if err != nil {
		return Step{}, err
	}
	if !actor.IsNPC() {
		return Step{}, apperrors.Newf(apperrors.CodeEncounterNotYourTurn, "it is %s's turn, not an NPC's", actor)
	}

	log, resolutions := c.npcAct(ctx, enc, actor)
	step, err := c.Advance(ctx, enc)
	if err != nil {
		return Step{}, err
	}
	step.Log = append(log, step.Log...)
	step.Resolutions = append(resolutions, step.Resolutions...)
	return step, nil
}

func (c *Controller) npcAct(ctx context.Context, enc domain.Encounter, actor domain.ActorID) ([]string, []domain.AttackResolution) {
	fields := []zap.Field{zap.String("encounter_id", enc.ID), zap.String("actor", actor.String())}
	npc, err := c.entities.Context(ctx, actor)
	if err != nil {
		c.logger.Warn("npc unavailable; skipping turn", append(fields, zap.Error(err))...)
		return []string{fmt.Sprintf("%s could not act and loses the turn.", actor)}, nil
	}
	if npc.Defeated() {
		return []string{fmt.Sprintf("%s is defeated; skipping their turn.", actor)}, nil
	}

	decision := policy.Decide(npc, c.opponents(ctx, enc), c.random)
	c.logger.Debug("npc decision", append(fields,
		zap.String("action", decision.Action), zap.String("target", decision.Target.String()), zap.String("rule", decision.Rule))...)

	res, err := c.resolver.Resolve(ctx, enc, actor, domain.Action{Name: decision.Action, Target: decision.Target})
	if err != nil {
		c.logger.Warn("npc action failed", append(fields, zap.Error(err))...)
		return []string{fmt.Sprintf("%s's %s failed: %v", actor, decision.Action, err)}, nil
	}
	if res.Verdict == resolver.Rejected {
		c.logger.Info("npc action rejected", append(fields, zap.String("reason", res.Reason))...)
	}
	var resolutions []domain.AttackResolution
	if res.Attack != nil {
		resolutions = append(resolutions, *res.Attack)
	}
	return res.Log, resolutions
}

// opponents returns live players in turn order. Players that cannot be
// read are left out.
func (c *Controller) opponents(ctx context.Context, enc domain.Encounter) []policy.Opponent {
	ids := enc.ActorsOfKind(domain.KindPlayer)
	found := make([]*policy.Opponent, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			actor, err := c.entities.Context(ctx, id)
			if err != nil {
				c.logger.Warn("opponent unavailable", zap.String("actor", id.String()), zap.Error(err))
				return nil
			}
			found[i] = &policy.Opponent{ID: id, HPCurrent: actor.HPCurrent}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]policy.Opponent, 0, len(ids))
	for _, o := range found {
		if o != nil && o.HPCurrent > 0 {
			out = append(out, *o)
		}
	}
	return out
}
