// Package httpapi serves the rules calculations and table lookups as
// JSON-over-HTTP.
package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/services/rules/content"
	"github.com/louisbranch/fulcrum/internal/services/rules/domain"
)

// Handler routes rules requests.
type Handler struct {
	tables *content.Tables
	roller domain.Roller
	logger *zap.Logger
	mux    *http.ServeMux
}

// InjuryRequest names the injury to look up.
type InjuryRequest struct {
	Location    string `json:"location"`
	SubLocation string `json:"sub_location"`
	Severity    int    `json:"severity"`
}

// NewHandler builds the rules routes over tables and roller.
func NewHandler(tables *content.Tables, roller domain.Roller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{tables: tables, roller: roller, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /v1/roll/initiative", h.rollInitiative)
	h.mux.HandleFunc("POST /v1/roll/contested_attack", h.contestedAttack)
	h.mux.HandleFunc("POST /v1/calculate/damage", h.calculateDamage)
	h.mux.HandleFunc("GET /v1/lookup/melee_weapon/{category}", h.lookupWeapon(content.WeaponMelee))
	h.mux.HandleFunc("GET /v1/lookup/ranged_weapon/{category}", h.lookupWeapon(content.WeaponRanged))
	h.mux.HandleFunc("GET /v1/lookup/armor/{category}", h.lookupArmor)
	h.mux.HandleFunc("POST /v1/lookup/injury_effects", h.lookupInjury)
	h.mux.HandleFunc("GET /v1/lookup/status_effect/{name}", h.lookupStatus)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) rollInitiative(w http.ResponseWriter, r *http.Request) {
	var stats domain.InitiativeStats
	if err := httpx.DecodeJSON(r, &stats); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, domain.RollInitiative(h.roller, stats))
}

func (h *Handler) contestedAttack(w http.ResponseWriter, r *http.Request) {
	var params domain.ContestParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := domain.ContestedAttack(h.roller, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) calculateDamage(w http.ResponseWriter, r *http.Request) {
	var params domain.DamageParams
	if err := httpx.DecodeJSON(r, &params); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := domain.CalculateDamage(h.roller, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) lookupWeapon(kind content.WeaponKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weapon, err := h.tables.Weapon(kind, r.PathValue("category"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		_ = httpx.WriteJSON(w, http.StatusOK, weapon)
	}
}

func (h *Handler) lookupArmor(w http.ResponseWriter, r *http.Request) {
	armor, err := h.tables.Armor(r.PathValue("category"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, armor)
}

func (h *Handler) lookupInjury(w http.ResponseWriter, r *http.Request) {
	var req InjuryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	injury, err := h.tables.Injury(req.Location, req.SubLocation, req.Severity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, injury)
}

func (h *Handler) lookupStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.tables.Status(strings.TrimSpace(r.PathValue("name")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("rules request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", httpx.RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	httpx.WriteError(w, err)
}
