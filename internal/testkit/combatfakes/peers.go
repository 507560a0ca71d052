package combatfakes

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/entity"
)

// Call records one request received by a fake peer.
type Call struct {
	Method string
	Path   string
}

type recorder struct {
	mu    sync.Mutex
	calls []Call
	down  bool
	fail  map[string]int
	hook  func(*http.Request)
}

// wrap records each request, runs the request hook and applies injected
// failures before next.
func (r *recorder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.record(req)
		status := r.injected(req)
		hook := r.hook
		r.mu.Unlock()
		if hook != nil {
			hook(req)
		}
		if status != 0 {
			writeFailure(w, status)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// OnRequest runs fn for every request before it is served; nil clears it.
func (r *recorder) OnRequest(fn func(*http.Request)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

func (r *recorder) record(req *http.Request) {
	r.calls = append(r.calls, Call{Method: req.Method, Path: req.URL.Path})
}

// injected reports a configured failure for the request, if any.
func (r *recorder) injected(req *http.Request) int {
	if r.down {
		return http.StatusServiceUnavailable
	}
	if status, ok := r.fail[req.Method+" "+req.URL.Path]; ok {
		return status
	}
	return 0
}

func (r *recorder) setDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *recorder) failRoute(method, path string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail == nil {
		r.fail = make(map[string]int)
	}
	if status == 0 {
		delete(r.fail, method+" "+path)
		return
	}
	r.fail[method+" "+path] = status
}

func (r *recorder) count(method, prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

func writeFailure(w http.ResponseWriter, status int) {
	kind := apperrors.KindFromHTTPStatus(status)
	_ = httpx.WriteJSON(w, status, httpx.ErrorBody{
		Error: "injected failure",
		Code:  string(apperrors.CodeForKind(kind)),
		Kind:  string(kind),
	})
}

func notFound(w http.ResponseWriter, what string) {
	httpx.WriteError(w, apperrors.Newf(apperrors.CodeNotFound, "%s not found", what))
}

// CharacterService is an in-memory character service.
type CharacterService struct {
	recorder
	sheets map[string]*entity.CharacterSheet
	URL    string
}

// NewCharacterService starts a character service holding sheets.
func NewCharacterService(t testing.TB, sheets ...entity.CharacterSheet) *CharacterService {
	t.Helper()
	s := &CharacterService{sheets: make(map[string]*entity.CharacterSheet)}
	for _, sheet := range sheets {
		s.Put(sheet)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/characters/{id}", s.get)
	mux.HandleFunc("POST /v1/characters/{id}/apply_damage", s.applyDamage)
	mux.HandleFunc("POST /v1/characters/{id}/apply_status", s.applyStatus)
	mux.HandleFunc("PUT /v1/characters/{id}/position", s.position)
	srv := httptest.NewServer(s.wrap(mux))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// Put stores or replaces a sheet.
func (s *CharacterService) Put(sheet entity.CharacterSheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet.StatusEffects = slices.Clone(sheet.StatusEffects)
	s.sheets[sheet.ID] = &sheet
}

// Sheet returns a copy of the stored sheet.
func (s *CharacterService) Sheet(id string) (entity.CharacterSheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[id]
	if !ok {
		return entity.CharacterSheet{}, false
	}
	out := *sheet
	out.StatusEffects = slices.Clone(sheet.StatusEffects)
	return out, true
}

// SetDown makes every request fail with 503 while down is true.
func (s *CharacterService) SetDown(down bool) { s.setDown(down) }

// FailRoute makes one method and path fail with status; zero clears it.
func (s *CharacterService) FailRoute(method, path string, status int) {
	s.failRoute(method, path, status)
}

// Calls counts requests with the method whose path starts with prefix.
func (s *CharacterService) Calls(method, prefix string) int { return s.count(method, prefix) }

func (s *CharacterService) get(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.Sheet(r.PathValue("id"))
	if !ok {
		notFound(w, "character")
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, sheet)
}

func (s *CharacterService) applyDamage(w http.ResponseWriter, r *http.Request) {
	var req entity.ApplyDamageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	s.mu.Lock()
	sheet, ok := s.sheets[r.PathValue("id")]
	if ok {
		sheet.CombatStats.CurrentHP = max(0, sheet.CombatStats.CurrentHP-req.DamageAmount)
	}
	s.mu.Unlock()
	if !ok {
		notFound(w, "character")
		return
	}
	s.get(w, r)
}

func (s *CharacterService) applyStatus(w http.ResponseWriter, r *http.Request) {
	var req entity.ApplyStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	s.mu.Lock()
	sheet, ok := s.sheets[r.PathValue("id")]
	if ok && !slices.Contains(sheet.StatusEffects, req.StatusID) {
		sheet.StatusEffects = append(sheet.StatusEffects, req.StatusID)
	}
	s.mu.Unlock()
	if !ok {
		notFound(w, "character")
		return
	}
	s.get(w, r)
}

func (s *CharacterService) position(w http.ResponseWriter, r *http.Request) {
	var req entity.PositionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	s.mu.Lock()
	sheet, ok := s.sheets[r.PathValue("id")]
	if ok {
		sheet.Coordinates = slices.Clone(req.Coordinates)
	}
	s.mu.Unlock()
	if !ok {
		notFound(w, "character")
		return
	}
	s.get(w, r)
}

// NPCTemplate is the blueprint the fake world service spawns from.
type NPCTemplate struct {
	Name         string
	HP           int
	Stats        map[string]int
	Skills       map[string]int
	Equipment    entity.Equipment
	BehaviorTags []string
}

// WorldService is an in-memory world service.
type WorldService struct {
	recorder
	templates map[string]NPCTemplate
	npcs      map[int]*entity.NPCInstance
	locations map[string]entity.LocationRecord
	nextID    int
	URL       string
}

// NewWorldService starts an empty world service.
func NewWorldService(t testing.TB) *WorldService {
	t.Helper()
	s := &WorldService{
		templates: make(map[string]NPCTemplate),
		npcs:      make(map[int]*entity.NPCInstance),
		locations: make(map[string]entity.LocationRecord),
		nextID:    1,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/locations/{id}", s.location)
	mux.HandleFunc("POST /v1/npcs/spawn", s.spawn)
	mux.HandleFunc("GET /v1/npcs/{id}", s.getNPC)
	mux.HandleFunc("PUT /v1/npcs/{id}", s.putNPC)
	srv := httptest.NewServer(s.wrap(mux))
	t.Cleanup(srv.Close)
	s.URL = srv.URL
	return s
}

// AddTemplate registers an NPC template.
func (s *WorldService) AddTemplate(id string, tmpl NPCTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[id] = tmpl
}

// AddLocation registers a location.
func (s *WorldService) AddLocation(loc entity.LocationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[string(loc.ID)] = loc
}

// PutNPC stores or replaces an NPC instance.
func (s *WorldService) PutNPC(npc entity.NPCInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	npc.StatusEffects = slices.Clone(npc.StatusEffects)
	s.npcs[npc.ID] = &npc
	if npc.ID >= s.nextID {
		s.nextID = npc.ID + 1
	}
}

// NPC returns a copy of a stored NPC.
func (s *WorldService) NPC(id int) (entity.NPCInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	npc, ok := s.npcs[id]
	if !ok {
		return entity.NPCInstance{}, false
	}
	out := *npc
	out.StatusEffects = slices.Clone(npc.StatusEffects)
	return out, true
}

// SetDown makes every request fail with 503 while down is true.
func (s *WorldService) SetDown(down bool) { s.setDown(down) }

// FailRoute makes one method and path fail with status; zero clears it.
func (s *WorldService) FailRoute(method, path string, status int) {
	s.failRoute(method, path, status)
}

// Calls counts requests with the method whose path starts with prefix.
func (s *WorldService) Calls(method, prefix string) int { return s.count(method, prefix) }

func (s *WorldService) location(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	loc, ok := s.locations[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "location")
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, loc)
}

func (s *WorldService) spawn(w http.ResponseWriter, r *http.Request) {
	var req entity.SpawnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	s.mu.Lock()
	tmpl, ok := s.templates[req.TemplateID]
	var npc entity.NPCInstance
	if ok {
		npc = entity.NPCInstance{
			ID:           s.nextID,
			TemplateID:   req.TemplateID,
			NameOverride: tmpl.Name,
			CurrentHP:    tmpl.HP,
			MaxHP:        tmpl.HP,
			Stats:        tmpl.Stats,
			Skills:       tmpl.Skills,
			Equipment:    tmpl.Equipment,
			BehaviorTags: slices.Clone(tmpl.BehaviorTags),
			LocationID:   req.LocationID,
			Coordinates:  slices.Clone(req.Coordinates),
		}
		s.nextID++
		stored := npc
		s.npcs[npc.ID] = &stored
	}
	s.mu.Unlock()
	if !ok {
		notFound(w, "npc template")
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, npc)
}

func (s *WorldService) npcID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		notFound(w, "npc")
		return 0, false
	}
	return id, true
}

func (s *WorldService) getNPC(w http.ResponseWriter, r *http.Request) {
	id, ok := s.npcID(w, r)
	if !ok {
		return
	}
	npc, ok := s.NPC(id)
	if !ok {
		notFound(w, "npc")
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, npc)
}

func (s *WorldService) putNPC(w http.ResponseWriter, r *http.Request) {
	id, ok := s.npcID(w, r)
	if !ok {
		return
	}
	var update entity.NPCUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.WriteError(w, err)
		return
	}
	s.mu.Lock()
	npc, ok := s.npcs[id]
	if ok {
		if update.CurrentHP != nil {
			npc.CurrentHP = *update.CurrentHP
		}
		if update.StatusEffects != nil {
			npc.StatusEffects = slices.Clone(update.StatusEffects)
		}
		if update.Coordinates != nil {
			npc.Coordinates = slices.Clone(update.Coordinates)
		}
	}
	s.mu.Unlock()
	if !ok {
		notFound(w, "npc")
		return
	}
	s.getNPC(w, r)
}
