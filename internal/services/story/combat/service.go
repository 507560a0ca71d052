// Package combat is the entry point of the combat core: it starts
// encounters, accepts player actions and drives NPC turns, serializing all
// writes to one encounter.
package combat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/platform/random"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/resolver"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/spawn"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/turn"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/entity"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/rules"
	"github.com/louisbranch/fulcrum/internal/services/story/storage"
)

// DefaultMaxNPCChain bounds how many NPC turns one player action triggers.
const DefaultMaxNPCChain = 16

const tracerName = "github.com/louisbranch/fulcrum/internal/services/story/combat"

// Deps are the collaborators of a Service.
type Deps struct {
	Store     storage.EncounterStore
	Rules     *rules.Client
	Entities  *entity.Client
	Random    random.Source
	Publisher Publisher
	Logger    *zap.Logger
	// MaxNPCChain defaults to DefaultMaxNPCChain when zero.
	MaxNPCChain int
}

// Service is the combat façade.
type Service struct {
	store     storage.EncounterStore
	resolver  *resolver.Resolver
	turns     *turn.Controller
	placer    *spawn.Placer
	publisher Publisher
	maxChain  int
	logger    *zap.Logger
	tracer    trace.Tracer

	locksMu sync.Mutex
	locks   map[string]*encounterLock
}

// encounterLock serializes calls on one encounter. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type encounterLock struct {
	mu   sync.Mutex
	refs int
}

// New wires a Service.
func New(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("encounter store is required")
	}
	if deps.Rules == nil || deps.Entities == nil {
		return nil, fmt.Errorf("rules and entity clients are required")
	}
	if deps.Random == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if deps.MaxNPCChain < 0 {
		return nil, fmt.Errorf("max npc chain must be >= 0")
	}
	logger := logging.OrNop(deps.Logger)
	maxChain := deps.MaxNPCChain
	if maxChain == 0 {
		maxChain = DefaultMaxNPCChain
	}
	res := resolver.New(deps.Rules, deps.Entities, deps.Random, logger.Named("resolver"))
	publisher := deps.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		store:     deps.Store,
		resolver:  res,
		turns:     turn.NewController(deps.Store, deps.Entities, res, deps.Random, logger.Named("turn")),
		placer:    spawn.NewPlacer(deps.Entities, deps.Rules, deps.Random, logger.Named("spawn")),
		publisher: publisher,
		maxChain:  maxChain,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		locks:     make(map[string]*encounterLock),
	}, nil
}

// Result is the outcome of a turn-taking call.
type Result struct {
	Success      bool                      `json:"success"`
	Message      string                    `json:"message"`
	Log          []string                  `json:"log"`
	NewTurnIndex int                       `json:"new_turn_index"`
	CombatOver   bool                      `json:"combat_over"`
	Status       domain.Status             `json:"status"`
	Reason       string                    `json:"reason,omitempty"`
	Next         turn.Event                `json:"next"`
	Resolutions  []domain.AttackResolution `json:"resolutions,omitempty"`
	Encounter    domain.Encounter          `json:"encounter"`
}

func resultFor(enc domain.Encounter) Result {
	return Result{
		NewTurnIndex: enc.CurrentTurnIndex,
		CombatOver:   enc.Status.Terminal(),
		Status:       enc.Status,
		Next:         turn.EventFor(enc),
		Encounter:    enc,
	}
}

// Started is a freshly created encounter.
type Started struct {
	Encounter domain.Encounter `json:"encounter"`
	Log       []string         `json:"log"`
	Next      turn.Event       `json:"next"`
}

func (s *Service) lock(encounterID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[encounterID]
	if !ok {
		l = &encounterLock{}
		s.locks[encounterID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, encounterID)
		}
		s.locksMu.Unlock()
	}
}

func (s *Service) span(ctx context.Context, name, encounterID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "combat."+name)
	if encounterID != "" {
		span.SetAttributes(attribute.String("encounter.id", encounterID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartEncounter spawns the NPCs, rolls initiative and stores the new
// encounter.
func (s *Service) StartEncounter(ctx context.Context, req spawn.Request) (_ Started, err error) {
	ctx, span := s.span(ctx, "StartEncounter", "")
	defer func() { endSpan(span, err) }()

	prep, err := s.placer.Prepare(ctx, req)
	if err != nil {
		return Started{}, err
	}
	enc, err := s.store.Create(ctx, prep.Encounter)
	if err != nil {
		return Started{}, fmt.Errorf("create encounter: %w", err)
	}
	span.SetAttributes(attribute.String("encounter.id", enc.ID), attribute.Int("encounter.participants", len(enc.TurnOrder)))
	log := append(prep.Log, fmt.Sprintf("Turn order: %s.", joinActors(enc.TurnOrder)))
	s.logger.Info("encounter started",
		zap.String("encounter_id", enc.ID),
		zap.String("location_id", enc.LocationID),
		zap.Stringers("turn_order", enc.TurnOrder))
	s.publish(EventStarted, enc, log, nil)
	return Started{Encounter: enc, Log: log, Next: turn.EventFor(enc)}, nil
}

// GetEncounter returns the stored encounter.
func (s *Service) GetEncounter(ctx context.Context, encounterID string) (domain.Encounter, error) {
	return s.store.Get(ctx, encounterID)
}

// SubmitPlayerAction resolves the current player's action and, if the turn
// passes to NPCs, plays their turns before returning.
func (s *Service) SubmitPlayerAction(ctx context.Context, encounterID string, actor domain.ActorID, action domain.Action) (_ Result, err error) {
	ctx, span := s.span(ctx, "SubmitPlayerAction", encounterID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("actor.id", actor.String()), attribute.String("action", action.Name))

	if err := actor.Validate(); err != nil {
		return Result{}, err
	}
	if !actor.IsPlayer() {
		return Result{}, apperrors.Newf(apperrors.CodeActorWrongKind, "%s is not a player; NPC turns run through npc_action", actor)
	}

	unlock := s.lock(encounterID)
	defer unlock()

	enc, err := s.activeEncounter(ctx, encounterID)
	if err != nil {
		return Result{}, err
	}
	current, err := enc.CurrentActor()
	if err != nil {
		return Result{}, err
	}
	if current != actor {
		return Result{}, apperrors.Newf(apperrors.CodeEncounterNotYourTurn, "it is %s's turn, not %s's", current, actor)
	}

	res, err := s.resolver.Resolve(ctx, enc, actor, action)
	if err != nil {
		return Result{}, err
	}
	if res.Verdict == resolver.Rejected {
		out := resultFor(enc)
		out.Message = res.Message
		out.Reason = res.Reason
		out.Log = res.Log
		return out, nil
	}

	log := append([]string(nil), res.Log...)
	var resolutions []domain.AttackResolution
	if res.Attack != nil {
		resolutions = append(resolutions, *res.Attack)
	}
	step, err := s.turns.Advance(ctx, enc)
	if err != nil {
		return Result{}, fmt.Errorf("advance after %s: %w", action.Name, err)
	}
	log = append(log, step.Log...)
	s.publish(EventAction, step.Encounter, log, resolutions)

	enc, chainLog, chainRes := s.chainNPCTurns(ctx, step)
	log = append(log, chainLog...)
	resolutions = append(resolutions, chainRes...)

	out := resultFor(enc)
	out.Success = true
	out.Message = res.Message
	out.Log = log
	out.Resolutions = resolutions
	return out, nil
}

// chainNPCTurns plays consecutive NPC turns, up to the configured bound.
// A failing NPC turn stops the chain; the encounter is left for npc_action.
func (s *Service) chainNPCTurns(ctx context.Context, step turn.Step) (domain.Encounter, []string, []domain.AttackResolution) {
	var (
		log         []string
		resolutions []domain.AttackResolution
	)
	enc := step.Encounter
	for i := 0; i < s.maxChain && step.Event == turn.EventNPCTurn; i++ {
		next, err := s.turns.RunNPCTurn(ctx, enc)
		if err != nil {
			s.logger.Warn("npc chain stopped", zap.String("encounter_id", enc.ID), zap.Error(err))
			log = append(log, "NPC turns paused; continue with npc_action.")
			break
		}
		step, enc = next, next.Encounter
		log = append(log, next.Log...)
		resolutions = append(resolutions, next.Resolutions...)
		s.publish(EventNPCTurn, enc, next.Log, next.Resolutions)
	}
	if step.Event == turn.EventNPCTurn && !enc.Status.Terminal() {
		s.logger.Debug("npc chain bound reached", zap.String("encounter_id", enc.ID), zap.Int("max", s.maxChain))
	}
	return enc, log, resolutions
}

// StepNPC plays exactly one NPC turn.
func (s *Service) StepNPC(ctx context.Context, encounterID string) (_ Result, err error) {
	ctx, span := s.span(ctx, "StepNPC", encounterID)
	defer func() { endSpan(span, err) }()

	unlock := s.lock(encounterID)
	defer unlock()

	enc, err := s.activeEncounter(ctx, encounterID)
	if err != nil {
		return Result{}, err
	}
	step, err := s.turns.RunNPCTurn(ctx, enc)
	if err != nil {
		return Result{}, err
	}
	s.publish(EventNPCTurn, step.Encounter, step.Log, step.Resolutions)
	out := resultFor(step.Encounter)
	out.Success = true
	out.Message = string(step.Event)
	out.Log = step.Log
	out.Resolutions = step.Resolutions
	return out, nil
}

// AbortEncounter ends an active encounter without a winner.
func (s *Service) AbortEncounter(ctx context.Context, encounterID string) (_ domain.Encounter, err error) {
	ctx, span := s.span(ctx, "AbortEncounter", encounterID)
	defer func() { endSpan(span, err) }()

	unlock := s.lock(encounterID)
	defer unlock()

	enc, err := s.store.Update(ctx, encounterID, storage.SetStatus(domain.StatusAborted))
	if err != nil {
		return domain.Encounter{}, err
	}
	s.logger.Info("encounter aborted", zap.String("encounter_id", enc.ID))
	s.publish(EventAborted, enc, []string{"The encounter was aborted."}, nil)
	return enc, nil
}

func (s *Service) activeEncounter(ctx context.Context, encounterID string) (domain.Encounter, error) {
	enc, err := s.store.Get(ctx, encounterID)
	if err != nil {
		return domain.Encounter{}, err
	}
	if enc.Status.Terminal() {
		return domain.Encounter{}, apperrors.Newf(apperrors.CodeEncounterTerminal, "encounter %s is over (%s)", enc.ID, enc.Status)
	}
	return enc, nil
}

func joinActors(ids []domain.ActorID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
