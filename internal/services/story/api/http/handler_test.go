package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/services/story/combat"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/spawn"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

type fakeCombat struct {
	start    spawn.Request
	actor    domain.ActorID
	action   domain.Action
	stepped  string
	aborted  string
	err      error
	started  combat.Started
	result   combat.Result
	existing domain.Encounter
}

func (f *fakeCombat) StartEncounter(_ context.Context, req spawn.Request) (combat.Started, error) {
	f.start = req
	if f.err != nil {
		return combat.Started{}, f.err
	}
	if err := req.Validate(); err != nil {
		return combat.Started{}, err
	}
	return f.started, nil
}

func (f *fakeCombat) GetEncounter(_ context.Context, id string) (domain.Encounter, error) {
	if id != f.existing.ID {
		return domain.Encounter{}, apperrors.Newf(apperrors.CodeEncounterNotFound, "encounter %s not found", id)
	}
	return f.existing, nil
}

func (f *fakeCombat) SubmitPlayerAction(_ context.Context, _ string, actor domain.ActorID, action domain.Action) (combat.Result, error) {
	f.actor, f.action = actor, action
	return f.result, f.err
}

func (f *fakeCombat) StepNPC(_ context.Context, id string) (combat.Result, error) {
	f.stepped = id
	return f.result, f.err
}

func (f *fakeCombat) AbortEncounter(_ context.Context, id string) (domain.Encounter, error) {
	f.aborted = id
	if f.err != nil {
		return domain.Encounter{}, f.err
	}
	enc := f.existing
	enc.Status = domain.StatusAborted
	return enc, nil
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

func sampleEncounter() domain.Encounter {
	return domain.Encounter{
		ID:         "enc-1",
		LocationID: "cave",
		Status:     domain.StatusActive,
		TurnOrder:  []domain.ActorID{domain.PlayerID("1"), domain.NPCID("7")},
	}
}

func TestStartRoute(t *testing.T) {
	fake := &fakeCombat{started: combat.Started{Encounter: sampleEncounter(), Log: []string{"Turn order: player_1, npc_7."}}}
	h := NewHandler(fake, nil, nil)

	rr := do(t, h, http.MethodPost, "/v1/combat/start", StartRequest{
		LocationID:     " cave ",
		PlayerIDs:      []string{"player_1"},
		NPCTemplateIDs: []string{"goblin"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if fake.start.LocationID != "cave" || len(fake.start.PlayerIDs) != 1 || fake.start.PlayerIDs[0] != domain.PlayerID("1") {
		t.Fatalf("start request = %+v", fake.start)
	}
	var got combat.Started
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Encounter.ID != "enc-1" || got.Encounter.TurnOrder[1] != domain.NPCID("7") {
		t.Fatalf("started = %+v", got)
	}
}

func TestStartRouteRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body any
		code apperrors.Code
	}{
		{name: "malformed actor", body: StartRequest{LocationID: "cave", PlayerIDs: []string{"hero"}, NPCTemplateIDs: []string{"goblin"}}, code: apperrors.CodeActorInvalidID},
		{name: "no players", body: StartRequest{LocationID: "cave", NPCTemplateIDs: []string{"goblin"}}, code: apperrors.CodeEncounterNoPlayers},
		{name: "no npcs", body: StartRequest{LocationID: "cave", PlayerIDs: []string{"player_1"}}, code: apperrors.CodeEncounterNoNPCs},
		{name: "unknown field", body: map[string]any{"location": "cave"}, code: apperrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, NewHandler(&fakeCombat{}, nil, nil), http.MethodPost, "/v1/combat/start", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if body := decodeError(t, rr); body.Code != string(tt.code) {
				t.Fatalf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestGetRoute(t *testing.T) {
	h := NewHandler(&fakeCombat{existing: sampleEncounter()}, nil, nil)

	rr := do(t, h, http.MethodGet, "/v1/combat/enc-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var enc domain.Encounter
	if err := json.Unmarshal(rr.Body.Bytes(), &enc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enc.ID != "enc-1" || enc.Status != domain.StatusActive {
		t.Fatalf("encounter = %+v", enc)
	}

	rr = do(t, h, http.MethodGet, "/v1/combat/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rr.Code)
	}
	if body := decodeError(t, rr); body.Kind != string(apperrors.KindNotFound) {
		t.Fatalf("kind = %q", body.Kind)
	}
}

func TestPlayerActionRoute(t *testing.T) {
	fake := &fakeCombat{result: combat.Result{Success: true, Message: "hit", NewTurnIndex: 1, Status: domain.StatusActive}}
	h := NewHandler(fake, nil, nil)

	rr := do(t, h, http.MethodPost, "/v1/combat/enc-1/player_action", ActionRequest{
		ActorID: "player_1", Action: "Attack", TargetID: "npc_7", ItemID: "potion",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if fake.actor != domain.PlayerID("1") || fake.action.Target != domain.NPCID("7") || fake.action.Name != "Attack" || fake.action.ItemID != "potion" {
		t.Fatalf("forwarded actor %v action %+v", fake.actor, fake.action)
	}
	var got combat.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.NewTurnIndex != 1 {
		t.Fatalf("result = %+v", got)
	}
}

func TestPlayerActionRouteErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   ActionRequest
		err    error
		status int
	}{
		{name: "bad actor", body: ActionRequest{ActorID: "p1", Action: "wait"}, status: http.StatusBadRequest},
		{name: "bad target", body: ActionRequest{ActorID: "player_1", Action: "attack", TargetID: "goblin"}, status: http.StatusBadRequest},
		{name: "not your turn", body: ActionRequest{ActorID: "player_1", Action: "wait"}, err: apperrors.New(apperrors.CodeEncounterNotYourTurn, "not your turn"), status: http.StatusConflict},
		{name: "upstream down", body: ActionRequest{ActorID: "player_1", Action: "wait"}, err: apperrors.New(apperrors.CodeUnavailable, "rules down"), status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeCombat{err: tt.err}, nil, nil)
			rr := do(t, h, http.MethodPost, "/v1/combat/enc-1/player_action", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestNPCActionAndAbortRoutes(t *testing.T) {
	fake := &fakeCombat{existing: sampleEncounter(), result: combat.Result{Success: true, CombatOver: true, Status: domain.StatusNPCsWin}}
	h := NewHandler(fake, nil, nil)

	rr := do(t, h, http.MethodPost, "/v1/combat/enc-1/npc_action", nil)
	if rr.Code != http.StatusOK || fake.stepped != "enc-1" {
		t.Fatalf("npc_action status = %d, stepped %q", rr.Code, fake.stepped)
	}

	rr = do(t, h, http.MethodPost, "/v1/combat/enc-1/abort", nil)
	if rr.Code != http.StatusOK || fake.aborted != "enc-1" {
		t.Fatalf("abort status = %d, aborted %q", rr.Code, fake.aborted)
	}
	var enc domain.Encounter
	if err := json.Unmarshal(rr.Body.Bytes(), &enc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enc.Status != domain.StatusAborted {
		t.Fatalf("status = %q", enc.Status)
	}

	fake.err = apperrors.New(apperrors.CodeEncounterTerminal, "over")
	if rr := do(t, h, http.MethodPost, "/v1/combat/enc-1/npc_action", nil); rr.Code != http.StatusConflict {
		t.Fatalf("terminal npc_action status = %d, want 409", rr.Code)
	}
}

func TestStreamRouteIsOptional(t *testing.T) {
	if rr := do(t, NewHandler(&fakeCombat{}, nil, nil), http.MethodGet, "/v1/combat/enc-1/stream", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a stream", rr.Code)
	}
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(r.PathValue("id")))
	})
	rr := do(t, NewHandler(&fakeCombat{}, stream, nil), http.MethodGet, "/v1/combat/enc-1/stream", nil)
	if rr.Code != http.StatusTeapot || rr.Body.String() != "enc-1" {
		t.Fatalf("stream status = %d body %q", rr.Code, rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	if rr := do(t, NewHandler(&fakeCombat{}, nil, nil), http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}
