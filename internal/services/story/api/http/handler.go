// Package httpapi serves the combat façade as JSON-over-HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/services/story/combat"
	"github.com/louisbranch/fulcrum/internal/services/story/combat/spawn"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

// Combat is the façade the routes drive.
type Combat interface {
	StartEncounter(ctx context.Context, req spawn.Request) (combat.Started, error)
	GetEncounter(ctx context.Context, encounterID string) (domain.Encounter, error)
	SubmitPlayerAction(ctx context.Context, encounterID string, actor domain.ActorID, action domain.Action) (combat.Result, error)
	StepNPC(ctx context.Context, encounterID string) (combat.Result, error)
	AbortEncounter(ctx context.Context, encounterID string) (domain.Encounter, error)
}

// StartRequest opens an encounter.
type StartRequest struct {
	LocationID     string   `json:"location_id"`
	PlayerIDs      []string `json:"player_ids"`
	NPCTemplateIDs []string `json:"npc_template_ids"`
}

// ActionRequest is a player's declared action.
type ActionRequest struct {
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	TargetID  string `json:"target_id,omitempty"`
	AbilityID string `json:"ability_id,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
}

// Handler routes combat requests.
type Handler struct {
	combat Combat
	logger *zap.Logger
	mux    *http.ServeMux
}

// NewHandler builds the story routes. stream serves the live feed and may be
// nil, in which case the route is not registered.
func NewHandler(svc Combat, stream http.Handler, logger *zap.Logger) *Handler {
	h := &Handler{combat: svc, logger: logging.OrNop(logger), mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /v1/combat/start", h.start)
	h.mux.HandleFunc("GET /v1/combat/{id}", h.get)
	h.mux.HandleFunc("POST /v1/combat/{id}/player_action", h.playerAction)
	h.mux.HandleFunc("POST /v1/combat/{id}/npc_action", h.npcAction)
	h.mux.HandleFunc("POST /v1/combat/{id}/abort", h.abort)
	if stream != nil {
		h.mux.Handle("GET /v1/combat/{id}/stream", stream)
	}
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	players, err := domain.ParseActorIDs(req.PlayerIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	started, err := h.combat.StartEncounter(r.Context(), spawn.Request{
		LocationID:     strings.TrimSpace(req.LocationID),
		PlayerIDs:      players,
		NPCTemplateIDs: req.NPCTemplateIDs,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, started)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	enc, err := h.combat.GetEncounter(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, enc)
}

func (h *Handler) playerAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	actor, err := domain.ParseActorID(req.ActorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	action := domain.Action{Name: req.Action, AbilityID: req.AbilityID, ItemID: req.ItemID}
	if target := strings.TrimSpace(req.TargetID); target != "" {
		if action.Target, err = domain.ParseActorID(target); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	result, err := h.combat.SubmitPlayerAction(r.Context(), r.PathValue("id"), actor, action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) npcAction(w http.ResponseWriter, r *http.Request) {
	result, err := h.combat.StepNPC(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) abort(w http.ResponseWriter, r *http.Request) {
	enc, err := h.combat.AbortEncounter(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, enc)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("combat request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", httpx.RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	httpx.WriteError(w, err)
}
