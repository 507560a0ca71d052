package entity_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/entity"
	"github.com/louisbranch/fulcrum/internal/testkit/combatfakes"
)

type fixture struct {
	characters *combatfakes.CharacterService
	world      *combatfakes.WorldService
	client     *entity.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	characters := combatfakes.NewCharacterService(t, entity.CharacterSheet{
		ID:          "1",
		Name:        "Aria",
		Stats:       map[string]int{"Might": 14},
		Skills:      map[string]int{"Blades": 3},
		CombatStats: entity.CombatStats{CurrentHP: 10, MaxHP: 12},
		Equipment: entity.Equipment{
			Weapon: &entity.EquippedWeapon{Category: "Bows", Type: "ranged"},
			Armor:  &entity.EquippedArmor{Category: "Leather and Hides"},
		},
		Inventory:     []domain.InventoryItem{{ItemID: "potion", Quantity: 2}},
		StatusEffects: []string{"Inspired"},
		Coordinates:   []int{2, 3},
	})
	world := combatfakes.NewWorldService(t)
	world.PutNPC(entity.NPCInstance{
		ID:            7,
		TemplateID:    "goblin",
		CurrentHP:     6,
		MaxHP:         6,
		StatusEffects: []string{"Dazed"},
		BehaviorTags:  []string{"cowardly"},
	})
	client, err := entity.New(characters.URL, world.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return fixture{characters: characters, world: world, client: client}
}

func TestContextProjectsBothKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	player, err := f.client.Context(ctx, domain.PlayerID("1"))
	if err != nil {
		t.Fatalf("player context: %v", err)
	}
	if player.HPCurrent != 10 || player.HPMax != 12 {
		t.Fatalf("player hp = %d/%d", player.HPCurrent, player.HPMax)
	}
	if player.Stat("might") != 14 || player.Stat("Logic") != 10 || player.Skill("Blades") != 3 {
		t.Fatalf("player stats = %+v skills = %+v", player.Stats, player.Skills)
	}
	if player.Weapon.Kind != domain.WeaponRanged || player.Armor.Category != "Leather and Hides" {
		t.Fatalf("player equipment = %+v %+v", player.Weapon, player.Armor)
	}
	if player.Position == nil || *player.Position != (domain.Coord{X: 2, Y: 3}) {
		t.Fatalf("player position = %v", player.Position)
	}

	npc, err := f.client.Context(ctx, domain.NPCID("7"))
	if err != nil {
		t.Fatalf("npc context: %v", err)
	}
	if npc.Name != "goblin" || npc.HPCurrent != 6 || !npc.HasTag(domain.TagCowardly) {
		t.Fatalf("npc = %+v", npc)
	}
	if w := npc.EquippedWeapon(); w.Category != domain.DefaultWeaponCategory {
		t.Fatalf("npc weapon = %+v", w)
	}
	if npc.Position != nil {
		t.Fatalf("npc position = %v, want nil", npc.Position)
	}
}

func TestContextNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Context(context.Background(), domain.NPCID("99"))
	if apperrors.CodeOf(err) != apperrors.CodeActorNotFound {
		t.Fatalf("err = %v, want actor not found", err)
	}
}

func TestUnknownKindIsInvalidInput(t *testing.T) {
	f := newFixture(t)
	bogus := domain.ActorID{Kind: "ghost", ID: "1"}
	ctx := context.Background()
	if _, err := f.client.Context(ctx, bogus); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Fatalf("context err = %v", err)
	}
	if _, err := f.client.ApplyDamage(ctx, bogus, 1); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Fatalf("damage err = %v", err)
	}
}

func TestApplyDamage(t *testing.T) {
	tests := []struct {
		name   string
		id     domain.ActorID
		amount int
		want   int
	}{
		{"player partial", domain.PlayerID("1"), 4, 6},
		{"player overkill floors at zero", domain.PlayerID("1"), 50, 0},
		{"npc partial", domain.NPCID("7"), 2, 4},
		{"npc overkill floors at zero", domain.NPCID("7"), 9, 0},
		{"zero damage", domain.NPCID("7"), 0, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			got, err := f.client.ApplyDamage(context.Background(), tt.id, tt.amount)
			if err != nil {
				t.Fatalf("apply damage: %v", err)
			}
			if got != tt.want {
				t.Fatalf("new hp = %d, want %d", got, tt.want)
			}
			after, err := f.client.Context(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("re-read: %v", err)
			}
			if after.HPCurrent != tt.want {
				t.Fatalf("stored hp = %d, want %d", after.HPCurrent, tt.want)
			}
		})
	}
}

func TestApplyDamageUsesDeltaForPlayersAndAbsoluteForNPCs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.client.ApplyDamage(ctx, domain.PlayerID("1"), 3); err != nil {
		t.Fatalf("player damage: %v", err)
	}
	if got := f.characters.Calls(http.MethodPost, "/v1/characters/1/apply_damage"); got != 1 {
		t.Fatalf("apply_damage calls = %d, want 1", got)
	}
	if _, err := f.client.ApplyDamage(ctx, domain.NPCID("7"), 3); err != nil {
		t.Fatalf("npc damage: %v", err)
	}
	if got := f.world.Calls(http.MethodPut, "/v1/npcs/7"); got != 1 {
		t.Fatalf("npc put calls = %d, want 1", got)
	}
}

func TestApplyDamageRejectsNegative(t *testing.T) {
	f := newFixture(t)
	if _, err := f.client.ApplyDamage(context.Background(), domain.PlayerID("1"), -1); !apperrors.IsKind(err, apperrors.KindInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestApplyStatusIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []domain.ActorID{domain.PlayerID("1"), domain.NPCID("7")} {
		for range 2 {
			if err := f.client.ApplyStatus(ctx, id, "Staggered"); err != nil {
				t.Fatalf("apply status %s: %v", id, err)
			}
		}
		actor, err := f.client.Context(ctx, id)
		if err != nil {
			t.Fatalf("context %s: %v", id, err)
		}
		if len(actor.StatusEffects) != 2 || !actor.HasStatus("staggered") {
			t.Fatalf("%s statuses = %v", id, actor.StatusEffects)
		}
	}
	npc, _ := f.world.NPC(7)
	if npc.StatusEffects[0] != "Dazed" {
		t.Fatalf("npc statuses = %v, want existing status kept first", npc.StatusEffects)
	}
}

func TestSetPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []domain.ActorID{domain.PlayerID("1"), domain.NPCID("7")} {
		if err := f.client.SetPosition(ctx, id, domain.Coord{X: 4, Y: 1}); err != nil {
			t.Fatalf("set position %s: %v", id, err)
		}
		pos, err := f.client.Position(ctx, id)
		if err != nil {
			t.Fatalf("position %s: %v", id, err)
		}
		if pos == nil || *pos != (domain.Coord{X: 4, Y: 1}) {
			t.Fatalf("%s position = %v", id, pos)
		}
	}
}

func TestSpawnNPC(t *testing.T) {
	f := newFixture(t)
	f.world.AddTemplate("wolf", combatfakes.NPCTemplate{Name: "Wolf", HP: 8, BehaviorTags: []string{"aggressive"}})
	ctx := context.Background()

	id, err := f.client.SpawnNPC(ctx, "wolf", "3", domain.Coord{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !id.IsNPC() || id.ID != "8" {
		t.Fatalf("id = %v, want npc_8", id)
	}
	npc, err := f.client.Context(ctx, id)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if npc.Name != "Wolf" || npc.HPCurrent != 8 || npc.Position == nil {
		t.Fatalf("spawned npc = %+v", npc)
	}

	if _, err := f.client.SpawnNPC(ctx, "dragon", "3", domain.Coord{}); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Fatalf("unknown template err = %v", err)
	}
}

func TestLocation(t *testing.T) {
	f := newFixture(t)
	f.world.AddLocation(entity.LocationRecord{
		ID:               "3",
		Name:             "Cave",
		GeneratedMapData: [][]int{{1, 0}, {3, 1}},
		SpawnPoints:      [][]int{{0, 1}, {9}},
	})
	loc, err := f.client.Location(context.Background(), "3")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if len(loc.Tiles) != 2 || len(loc.SpawnPoints) != 1 || loc.SpawnPoints[0] != (domain.Coord{X: 0, Y: 1}) {
		t.Fatalf("location = %+v", loc)
	}
}

func TestWorldRecordsWithIntegerKeys(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/npcs/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":7,"template_id":"goblin","current_hp":4,"max_hp":6,"status_effects":[],"behavior_tags":[],"location_id":3,"coordinates":[1,2]}`)
	})
	mux.HandleFunc("GET /v1/locations/3", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":3,"name":"Cave","generated_map_data":[[0,1],[0,0]],"ai_annotations":{"mood":"damp"}}`)
	})
	world := httptest.NewServer(mux)
	t.Cleanup(world.Close)

	client, err := entity.New(newFixture(t).characters.URL, world.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	npc, err := client.Context(ctx, domain.NPCID("7"))
	if err != nil {
		t.Fatalf("npc context: %v", err)
	}
	if npc.HPCurrent != 4 || npc.Position == nil || *npc.Position != (domain.Coord{X: 1, Y: 2}) {
		t.Fatalf("npc = %+v", npc)
	}
	loc, err := client.Location(ctx, "3")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.ID != "3" || loc.Name != "Cave" || len(loc.Tiles) != 2 {
		t.Fatalf("location = %+v", loc)
	}
}

func TestRecordIDJSON(t *testing.T) {
	tests := []struct {
		in   string
		want entity.RecordID
		out  string
	}{
		{in: `3`, want: "3", out: `3`},
		{in: `"3"`, want: "3", out: `3`},
		{in: `"cave"`, want: "cave", out: `"cave"`},
		{in: `"007"`, want: "007", out: `"007"`},
		{in: `null`, want: "", out: `""`},
	}
	for _, tt := range tests {
		var id entity.RecordID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if id != tt.want {
			t.Fatalf("unmarshal %s = %q, want %q", tt.in, id, tt.want)
		}
		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %q: %v", id, err)
		}
		if string(out) != tt.out {
			t.Fatalf("marshal %q = %s, want %s", id, out, tt.out)
		}
	}
	var id entity.RecordID
	if err := json.Unmarshal([]byte(`true`), &id); err == nil {
		t.Fatal("expected error for bool id")
	}
}

func TestSpawnSendsIntegerLocation(t *testing.T) {
	var body map[string]any
	world := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":9,"template_id":"wolf","current_hp":8,"max_hp":8,"location_id":3}`)
	}))
	t.Cleanup(world.Close)
	client, err := entity.New(newFixture(t).characters.URL, world.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	id, err := client.SpawnNPC(context.Background(), "wolf", "3", domain.Coord{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if id != domain.NPCID("9") {
		t.Fatalf("id = %v", id)
	}
	if loc, ok := body["location_id"].(float64); !ok || loc != 3 {
		t.Fatalf("location_id = %#v, want number 3", body["location_id"])
	}
}

func TestPeerOutageIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.world.SetDown(true)
	_, err := f.client.ApplyDamage(context.Background(), domain.NPCID("7"), 1)
	if !apperrors.IsKind(err, apperrors.KindUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if got := f.world.Calls(http.MethodGet, "/v1/npcs/7"); got != 1 {
		t.Fatalf("calls = %d, want no retry", got)
	}
}
