package domain

import (
	"encoding/json"
	"testing"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

func TestParseActorID(t *testing.T) {
	tests := []struct {
		raw     string
		want    ActorID
		wantErr bool
	}{
		{raw: "player_1", want: PlayerID("1")},
		{raw: "npc_042", want: NPCID("042")},
		{raw: "player_", wantErr: true},
		{raw: "player_abc", wantErr: true},
		{raw: "monster_1", wantErr: true},
		{raw: "1", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "npc_1_2", wantErr: true},
		{raw: "PLAYER_1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseActorID(tt.raw)
			if tt.wantErr {
				if !apperrors.IsKind(err, apperrors.KindInvalidInput) {
					t.Fatalf("ParseActorID(%q) err = %v, want invalid input", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseActorID(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseActorID(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
			if got.String() != tt.raw {
				t.Fatalf("String() = %q, want %q", got.String(), tt.raw)
			}
		})
	}
}

func TestActorIDJSONRoundTrip(t *testing.T) {
	type payload struct {
		ID ActorID `json:"id"`
	}
	raw, err := json.Marshal(payload{ID: NPCID("7")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"id":"npc_7"}` {
		t.Fatalf("json = %s", raw)
	}
	var back payload
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != NPCID("7") {
		t.Fatalf("id = %+v", back.ID)
	}
	if err := json.Unmarshal([]byte(`{"id":"goblin"}`), &back); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestBuildTurnOrder(t *testing.T) {
	participants := []Participant{
		{ActorID: PlayerID("1"), Initiative: 12, JoinedAt: 0},
		{ActorID: PlayerID("2"), Initiative: 15, JoinedAt: 1},
		{ActorID: NPCID("10"), Initiative: 12, JoinedAt: 2},
		{ActorID: NPCID("11"), Initiative: 20, JoinedAt: 3},
	}
	order, err := BuildTurnOrder(participants)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []ActorID{NPCID("11"), PlayerID("2"), PlayerID("1"), NPCID("10")}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBuildTurnOrderRejectsDuplicates(t *testing.T) {
	_, err := BuildTurnOrder([]Participant{
		{ActorID: PlayerID("1"), JoinedAt: 0},
		{ActorID: PlayerID("1"), JoinedAt: 1},
	})
	if apperrors.CodeOf(err) != apperrors.CodeEncounterDuplicate {
		t.Fatalf("err = %v, want duplicate", err)
	}
}

func TestEncounterValidate(t *testing.T) {
	valid := Encounter{
		Status:           StatusActive,
		TurnOrder:        []ActorID{PlayerID("1"), NPCID("2")},
		Participants:     []Participant{{ActorID: PlayerID("1")}, {ActorID: NPCID("2"), JoinedAt: 1}},
		CurrentTurnIndex: 1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid encounter: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Encounter)
	}{
		{"empty", func(e *Encounter) { e.TurnOrder = nil; e.Participants = nil }},
		{"length mismatch", func(e *Encounter) { e.Participants = e.Participants[:1] }},
		{"index high", func(e *Encounter) { e.CurrentTurnIndex = 2 }},
		{"index negative", func(e *Encounter) { e.CurrentTurnIndex = -1 }},
		{"duplicate", func(e *Encounter) { e.TurnOrder = []ActorID{PlayerID("1"), PlayerID("1")} }},
		{"bad status", func(e *Encounter) { e.Status = "paused" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := valid
			enc.TurnOrder = append([]ActorID(nil), valid.TurnOrder...)
			enc.Participants = append([]Participant(nil), valid.Participants...)
			tt.mutate(&enc)
			if err := enc.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEncounterTurnHelpers(t *testing.T) {
	enc := Encounter{TurnOrder: []ActorID{PlayerID("1"), NPCID("2"), NPCID("3")}, CurrentTurnIndex: 2}
	if enc.NextTurnIndex() != 0 {
		t.Fatalf("next = %d, want wrap to 0", enc.NextTurnIndex())
	}
	actor, err := enc.CurrentActor()
	if err != nil || actor != NPCID("3") {
		t.Fatalf("current = %v, %v", actor, err)
	}
	if got := enc.ActorsOfKind(KindNPC); len(got) != 2 {
		t.Fatalf("npcs = %v", got)
	}
}

func TestActorContextDefaults(t *testing.T) {
	ctx := ActorContext{
		Stats:         map[string]int{"might": 14},
		Skills:        map[string]int{"Blades": 3},
		StatusEffects: []string{"staggered"},
	}
	if ctx.Stat(StatMight) != 14 {
		t.Fatalf("might = %d, want 14", ctx.Stat(StatMight))
	}
	if ctx.Stat(StatLogic) != DefaultStatScore {
		t.Fatalf("logic = %d, want default", ctx.Stat(StatLogic))
	}
	if ctx.Skill("Blades") != 3 || ctx.Skill("Archery") != 0 {
		t.Fatal("skill defaults wrong")
	}
	if !ctx.HasStatus(StatusStaggered) {
		t.Fatal("status lookup should ignore case")
	}
	if w := ctx.EquippedWeapon(); w.Category != DefaultWeaponCategory || w.Kind != WeaponMelee {
		t.Fatalf("weapon = %+v, want unarmed melee", w)
	}
	if a := ctx.EquippedArmor(); a.Category != DefaultArmorCategory {
		t.Fatalf("armor = %+v, want unarmored", a)
	}
	if !ctx.Defeated() {
		t.Fatal("zero hp should be defeated")
	}
}

func TestNormalizeActionName(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "attack", want: "attack"},
		{raw: " Wait ", want: "wait"},
		{raw: "use_item", want: "use_item"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "drop table", wantErr: true},
		{raw: "move!", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeActionName(tt.raw)
		if tt.wantErr {
			if apperrors.CodeOf(err) != apperrors.CodeActionInvalid {
				t.Fatalf("NormalizeActionName(%q) err = %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("NormalizeActionName(%q) = %q, %v", tt.raw, got, err)
		}
	}
}
