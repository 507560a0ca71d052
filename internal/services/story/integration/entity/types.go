package entity

import "github.com/louisbranch/fulcrum/internal/services/story/domain"

// CharacterSheet is the character service's view of a player.
type CharacterSheet struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Stats         map[string]int         `json:"stats"`
	Skills        map[string]int         `json:"skills"`
	CombatStats   CombatStats            `json:"combat_stats"`
	Equipment     Equipment              `json:"equipment"`
	Inventory     []domain.InventoryItem `json:"inventory"`
	StatusEffects []string               `json:"status_effects"`
	Coordinates   []int                  `json:"coordinates,omitempty"`
}

// CombatStats holds a player's hit points.
type CombatStats struct {
	CurrentHP int `json:"current_hp"`
	MaxHP     int `json:"max_hp"`
}

// Equipment names the equipped weapon and armor categories.
type Equipment struct {
	Weapon *EquippedWeapon `json:"weapon,omitempty"`
	Armor  *EquippedArmor  `json:"armor,omitempty"`
}

// EquippedWeapon is a weapon slot; Type is "melee" or "ranged".
type EquippedWeapon struct {
	Category string `json:"category"`
	Type     string `json:"type"`
}

// EquippedArmor is an armor slot.
type EquippedArmor struct {
	Category string `json:"category"`
}

// ApplyDamageRequest is the player damage delta.
type ApplyDamageRequest struct {
	DamageAmount int `json:"damage_amount"`
}

// ApplyStatusRequest adds one status to a player.
type ApplyStatusRequest struct {
	StatusID string `json:"status_id"`
}

// PositionRequest moves a player.
type PositionRequest struct {
	Coordinates []int `json:"coordinates"`
}

// NPCInstance is the world service's view of a spawned NPC.
type NPCInstance struct {
	ID            int            `json:"id"`
	TemplateID    string         `json:"template_id"`
	NameOverride  string         `json:"name_override,omitempty"`
	CurrentHP     int            `json:"current_hp"`
	MaxHP         int            `json:"max_hp"`
	Stats         map[string]int `json:"stats,omitempty"`
	Skills        map[string]int `json:"skills,omitempty"`
	Equipment     Equipment      `json:"equipment"`
	StatusEffects []string       `json:"status_effects"`
	BehaviorTags  []string       `json:"behavior_tags"`
	LocationID    RecordID       `json:"location_id"`
	Coordinates   []int          `json:"coordinates,omitempty"`
}

// NPCUpdate is a partial NPC write. Set fields are absolute values.
type NPCUpdate struct {
	CurrentHP     *int     `json:"current_hp,omitempty"`
	StatusEffects []string `json:"status_effects,omitempty"`
	Coordinates   []int    `json:"coordinates,omitempty"`
}

// SpawnRequest asks the world service for a new NPC instance.
type SpawnRequest struct {
	TemplateID  string   `json:"template_id"`
	LocationID  RecordID `json:"location_id"`
	Coordinates []int    `json:"coordinates"`
}

// LocationRecord is the world service's location payload.
type LocationRecord struct {
	ID               RecordID `json:"id"`
	Name             string   `json:"name"`
	GeneratedMapData [][]int  `json:"generated_map_data"`
	SpawnPoints      [][]int  `json:"spawn_points,omitempty"`
}

// Location is a location's map as seen by spawn placement.
type Location struct {
	ID          string
	Name        string
	Tiles       [][]int
	SpawnPoints []domain.Coord
}
