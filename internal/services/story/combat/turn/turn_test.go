package turn

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/resolver"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/storage"
	"github.com/louisbranch/fulcrum/internal/testkit/combatfakes"
)

type memoryStore struct {
	mu  sync.Mutex
	enc domain.Encounter
}

func (s *memoryStore) Update(_ context.Context, id string, patch storage.Patch) (domain.Encounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.enc.ID {
		return domain.Encounter{}, apperrors.New(apperrors.CodeEncounterNotFound, "missing")
	}
	if err := patch.Validate(); err != nil {
		return domain.Encounter{}, err
	}
	next, err := patch.Apply(s.enc)
	if err != nil {
		return domain.Encounter{}, err
	}
	s.enc = next
	return next, nil
}

type fakeEntities struct {
	actors map[domain.ActorID]domain.ActorContext
	down   map[domain.ActorID]bool
}

func (f fakeEntities) Context(ctx context.Context, id domain.ActorID) (domain.ActorContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.ActorContext{}, apperrors.Wrap(apperrors.CodeUnavailable, "peer call", err)
	}
	if f.down[id] {
		return domain.ActorContext{}, apperrors.New(apperrors.CodeUnavailable, "peer down")
	}
	actor, ok := f.actors[id]
	if !ok {
		return domain.ActorContext{}, apperrors.New(apperrors.CodeActorNotFound, "missing")
	}
	return actor, nil
}

type call struct {
	actor  domain.ActorID
	action domain.Action
}

type fakeResolver struct {
	mu     sync.Mutex
	calls  []call
	result resolver.Result
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, _ domain.Encounter, actor domain.ActorID, action domain.Action) (resolver.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{actor, action})
	return f.result, f.err
}

var (
	p1 = domain.PlayerID("1")
	p2 = domain.PlayerID("2")
	n5 = domain.NPCID("5")
	n6 = domain.NPCID("6")
)

func encounter(order ...domain.ActorID) domain.Encounter {
	enc := domain.Encounter{ID: "enc-1", Status: domain.StatusActive, TurnOrder: order}
	for i, id := range order {
		enc.Participants = append(enc.Participants, domain.Participant{ActorID: id, JoinedAt: i})
	}
	return enc
}

func actors(hp map[domain.ActorID]int) map[domain.ActorID]domain.ActorContext {
	out := make(map[domain.ActorID]domain.ActorContext, len(hp))
	for id, v := range hp {
		out[id] = domain.ActorContext{ID: id, HPCurrent: v, HPMax: 10}
	}
	return out
}

type rig struct {
	store    *memoryStore
	entities fakeEntities
	resolver *fakeResolver
	ctrl     *Controller
}

func newRig(enc domain.Encounter, hp map[domain.ActorID]int) *rig {
	r := &rig{
		store:    &memoryStore{enc: enc},
		entities: fakeEntities{actors: actors(hp), down: map[domain.ActorID]bool{}},
		resolver: &fakeResolver{result: resolver.Result{Verdict: resolver.Completed, Log: []string{"swing"}}},
	}
	r.ctrl = NewController(r.store, r.entities, r.resolver, combatfakes.NewScriptedSource(), nil)
	return r
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name   string
		order  []domain.ActorID
		index  int
		hp     map[domain.ActorID]int
		down   []domain.ActorID
		event  Event
		status domain.Status
		next   int
	}{
		{
			name:   "next player",
			order:  []domain.ActorID{n5, p1, p2},
			hp:     map[domain.ActorID]int{n5: 4, p1: 10, p2: 10},
			event:  EventAwaitPlayer,
			status: domain.StatusActive,
			next:   1,
		},
		{
			name:   "wraps to npc",
			order:  []domain.ActorID{n5, p1, p2},
			index:  2,
			hp:     map[domain.ActorID]int{n5: 4, p1: 10, p2: 10},
			event:  EventNPCTurn,
			status: domain.StatusActive,
			next:   0,
		},
		{
			name:   "skips defeated actors",
			order:  []domain.ActorID{p1, n5, n6, p2},
			hp:     map[domain.ActorID]int{p1: 10, n5: 0, n6: 3, p2: 0},
			index:  2,
			event:  EventAwaitPlayer,
			status: domain.StatusActive,
			next:   0,
		},
		{
			name:   "players win",
			order:  []domain.ActorID{p1, p2, n5},
			hp:     map[domain.ActorID]int{p1: 10, p2: 10, n5: 0},
			event:  EventTerminated,
			status: domain.StatusPlayersWin,
		},
		{
			name:   "npcs win",
			order:  []domain.ActorID{p1, n5},
			hp:     map[domain.ActorID]int{p1: 0, n5: 2},
			event:  EventTerminated,
			status: domain.StatusNPCsWin,
		},
		{
			name:   "unreadable player counts as down",
			order:  []domain.ActorID{p1, n5},
			hp:     map[domain.ActorID]int{p1: 10, n5: 2},
			down:   []domain.ActorID{p1},
			event:  EventTerminated,
			status: domain.StatusNPCsWin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encounter(tt.order...)
			enc.CurrentTurnIndex = tt.index
			r := newRig(enc, tt.hp)
			for _, id := range tt.down {
				r.entities.down[id] = true
			}
			step, err := r.ctrl.Advance(context.Background(), enc)
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if step.Event != tt.event || step.Encounter.Status != tt.status {
				t.Fatalf("step = %s/%s, want %s/%s", step.Event, step.Encounter.Status, tt.event, tt.status)
			}
			if tt.status == domain.StatusActive && step.Encounter.CurrentTurnIndex != tt.next {
				t.Fatalf("index = %d, want %d", step.Encounter.CurrentTurnIndex, tt.next)
			}
			if tt.status.Terminal() && step.Encounter.CurrentTurnIndex != tt.index {
				t.Fatalf("terminal index moved to %d", step.Encounter.CurrentTurnIndex)
			}
			if r.store.enc.Status != tt.status {
				t.Fatalf("stored status = %s", r.store.enc.Status)
			}
		})
	}
}

func TestAdvanceTerminalIsConflict(t *testing.T) {
	enc := encounter(p1, n5)
	enc.Status = domain.StatusAborted
	r := newRig(enc, map[domain.ActorID]int{p1: 10, n5: 10})
	if _, err := r.ctrl.Advance(context.Background(), enc); !apperrors.IsKind(err, apperrors.KindConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAdvanceCancelledKeepsEncounterActive(t *testing.T) {
	enc := encounter(p1, n5)
	r := newRig(enc, map[domain.ActorID]int{p1: 10, n5: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.ctrl.Advance(ctx, enc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context canceled", err)
	}
	if r.store.enc.Status != domain.StatusActive || r.store.enc.CurrentTurnIndex != 0 {
		t.Fatalf("stored = %s at %d, want active at 0", r.store.enc.Status, r.store.enc.CurrentTurnIndex)
	}

	if _, err := r.ctrl.RunNPCTurn(ctx, encounter(n5, p1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("npc turn err = %v, want context canceled", err)
	}
	if r.store.enc.Status != domain.StatusActive {
		t.Fatalf("stored status = %s after npc turn", r.store.enc.Status)
	}
}

func TestRunNPCTurnRequiresNPC(t *testing.T) {
	enc := encounter(p1, n5)
	r := newRig(enc, map[domain.ActorID]int{p1: 10, n5: 10})
	_, err := r.ctrl.RunNPCTurn(context.Background(), enc)
	if apperrors.CodeOf(err) != apperrors.CodeEncounterNotYourTurn {
		t.Fatalf("err = %v, want not your turn", err)
	}
	if r.store.enc.CurrentTurnIndex != 0 {
		t.Fatal("state changed")
	}
}

func TestRunNPCTurnAttacksWeakest(t *testing.T) {
	enc := encounter(n5, p1, p2)
	r := newRig(enc, map[domain.ActorID]int{n5: 10, p1: 9, p2: 4})
	npc := r.entities.actors[n5]
	npc.BehaviorTags = []string{domain.TagTargetsWeakest}
	r.entities.actors[n5] = npc
	r.resolver.result.Attack = &domain.AttackResolution{Attacker: n5, Target: p2}

	step, err := r.ctrl.RunNPCTurn(context.Background(), enc)
	if err != nil {
		t.Fatalf("npc turn: %v", err)
	}
	if len(r.resolver.calls) != 1 {
		t.Fatalf("resolver calls = %d", len(r.resolver.calls))
	}
	got := r.resolver.calls[0]
	if got.actor != n5 || got.action.Name != domain.ActionAttack || got.action.Target != p2 {
		t.Fatalf("call = %+v", got)
	}
	if step.Event != EventAwaitPlayer || step.Encounter.CurrentTurnIndex != 1 {
		t.Fatalf("step = %s at %d", step.Event, step.Encounter.CurrentTurnIndex)
	}
	if len(step.Resolutions) != 1 || step.Log[0] != "swing" {
		t.Fatalf("step = %+v", step)
	}
}

func TestRunNPCTurnAdvancesPastFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *rig)
		calls int
	}{
		{
			name:  "resolver error",
			setup: func(r *rig) { r.resolver.err = errors.New("rules offline") },
			calls: 1,
		},
		{
			name: "rejected action",
			setup: func(r *rig) {
				r.resolver.result = resolver.Result{Verdict: resolver.Rejected, Reason: resolver.ReasonTargetDefeated, Log: []string{"no"}}
			},
			calls: 1,
		},
		{
			name:  "npc unreadable",
			setup: func(r *rig) { r.entities.down[n5] = true },
		},
		{
			name: "npc defeated",
			setup: func(r *rig) {
				npc := r.entities.actors[n5]
				npc.HPCurrent = 0
				r.entities.actors[n5] = npc
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encounter(n5, n6, p1)
			r := newRig(enc, map[domain.ActorID]int{n5: 10, n6: 10, p1: 10})
			tt.setup(r)
			step, err := r.ctrl.RunNPCTurn(context.Background(), enc)
			if err != nil {
				t.Fatalf("npc turn: %v", err)
			}
			if len(r.resolver.calls) != tt.calls {
				t.Fatalf("resolver calls = %d, want %d", len(r.resolver.calls), tt.calls)
			}
			if step.Encounter.CurrentTurnIndex != 1 || step.Event != EventNPCTurn {
				t.Fatalf("step = %s at %d", step.Event, step.Encounter.CurrentTurnIndex)
			}
			if len(step.Log) == 0 {
				t.Fatal("expected a log line")
			}
		})
	}
}

func TestEventFor(t *testing.T) {
	enc := encounter(n5, p1)
	if got := EventFor(enc); got != EventNPCTurn {
		t.Fatalf("event = %s", got)
	}
	enc.CurrentTurnIndex = 1
	if got := EventFor(enc); got != EventAwaitPlayer {
		t.Fatalf("event = %s", got)
	}
	enc.Status = domain.StatusDraw
	if got := EventFor(enc); got != EventTerminated {
		t.Fatalf("event = %s", got)
	}
}
