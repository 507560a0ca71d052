package domain

import (
	"slices"
	"strings"
)

// Stat names used by the rules.
const (
	StatMight     = "Might"
	StatEndurance = "Endurance"
	StatFinesse   = "Finesse"
	StatReflexes  = "Reflexes"
	StatVitality  = "Vitality"
	StatFortitude = "Fortitude"
	StatKnowledge = "Knowledge"
	StatLogic     = "Logic"
	StatAwareness = "Awareness"
	StatIntuition = "Intuition"
	StatCharm     = "Charm"
	StatWillpower = "Willpower"
)

// Stats lists the twelve stats in sheet order.
var Stats = []string{
	StatMight, StatEndurance, StatFinesse, StatReflexes,
	StatVitality, StatFortitude, StatKnowledge, StatLogic,
	StatAwareness, StatIntuition, StatCharm, StatWillpower,
}

const (
	// DefaultStatScore is used for a stat missing from a sheet.
	DefaultStatScore = 10
	// DefaultWeaponCategory is wielded when nothing is equipped.
	DefaultWeaponCategory = "Unarmed"
	// DefaultArmorCategory is worn when nothing is equipped.
	DefaultArmorCategory = "Unarmored"
	// DefaultArmorStat governs defense without armor.
	DefaultArmorStat = StatReflexes
	// StatusStaggered is applied on a solid hit.
	StatusStaggered = "Staggered"
)

// Behavior tags that drive NPC policy.
const (
	TagAggressive           = "aggressive"
	TagCowardly             = "cowardly"
	TagTargetsWeakest       = "targets_weakest"
	TagFocusesHighestThreat = "focuses_highest_threat"
	TagTerritorial          = "territorial"
)

// WeaponKind is the table a weapon category lives in.
type WeaponKind string

const (
	WeaponMelee  WeaponKind = "melee"
	WeaponRanged WeaponKind = "ranged"
)

// Weapon is the equipped weapon reference.
type Weapon struct {
	Category string     `json:"category"`
	Kind     WeaponKind `json:"kind"`
}

// Armor is the equipped armor reference.
type Armor struct {
	Category string `json:"category"`
}

// InventoryItem is one stack in a player's inventory.
type InventoryItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Coord is a map position; X is the column and Y the row.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ActorContext is a read-only projection of an actor sheet fetched for a
// single turn.
type ActorContext struct {
	ID            ActorID
	Name          string
	HPCurrent     int
	HPMax         int
	Stats         map[string]int
	Skills        map[string]int
	Weapon        Weapon
	Armor         Armor
	StatusEffects []string
	BehaviorTags  []string
	Inventory     []InventoryItem
	Position      *Coord
}

// Stat returns the named score, or DefaultStatScore when absent.
func (c ActorContext) Stat(name string) int {
	if v, ok := lookupFold(c.Stats, name); ok {
		return v
	}
	return DefaultStatScore
}

// Skill returns the named rank, or zero when absent.
func (c ActorContext) Skill(name string) int {
	if v, ok := lookupFold(c.Skills, name); ok && v > 0 {
		return v
	}
	return 0
}

// Defeated reports whether the actor has no hit points left.
func (c ActorContext) Defeated() bool {
	return c.HPCurrent <= 0
}

// HasStatus reports whether name is among the actor's statuses, ignoring case.
func (c ActorContext) HasStatus(name string) bool {
	return slices.ContainsFunc(c.StatusEffects, func(s string) bool {
		return strings.EqualFold(s, name)
	})
}

// HasTag reports whether the actor carries a behavior tag.
func (c ActorContext) HasTag(tag string) bool {
	return slices.ContainsFunc(c.BehaviorTags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// EquippedWeapon returns the weapon, defaulting to unarmed melee.
func (c ActorContext) EquippedWeapon() Weapon {
	w := c.Weapon
	if strings.TrimSpace(w.Category) == "" {
		return Weapon{Category: DefaultWeaponCategory, Kind: WeaponMelee}
	}
	if w.Kind != WeaponRanged {
		w.Kind = WeaponMelee
	}
	return w
}

// EquippedArmor returns the armor, defaulting to unarmored.
func (c ActorContext) EquippedArmor() Armor {
	if strings.TrimSpace(c.Armor.Category) == "" {
		return Armor{Category: DefaultArmorCategory}
	}
	return c.Armor
}

func lookupFold(m map[string]int, name string) (int, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return 0, false
}
