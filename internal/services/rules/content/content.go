// Package content loads the rule tables (weapons, armor, injuries and status
// effects) that the rules service serves. Tables are decoded once at startup
// and are read-only afterwards.
package content

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/louisbranch/fulcrum/internal/core/dice"
	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
)

//go:embed tables/*.yaml
var embedded embed.FS

const (
	weaponsFile  = "weapons.yaml"
	armorFile    = "armor.yaml"
	injuriesFile = "injuries.yaml"
	statusFile   = "status_effects.yaml"
)

// MinSeverity and MaxSeverity bound injury severities.
const (
	MinSeverity = 1
	MaxSeverity = 5
)

// WeaponKind distinguishes melee and ranged weapon tables.
type WeaponKind string

const (
	WeaponMelee  WeaponKind = "melee"
	WeaponRanged WeaponKind = "ranged"
)

// Weapon is one weapon category.
type Weapon struct {
	Category   string     `json:"category"`
	Kind       WeaponKind `json:"kind"`
	DamageDice string     `json:"damage_dice" yaml:"damage_dice"`
	Skill      string     `json:"skill" yaml:"skill"`
	SkillStat  string     `json:"skill_stat" yaml:"skill_stat"`
	Penalty    int        `json:"penalty" yaml:"penalty"`
	Properties []string   `json:"properties" yaml:"properties"`
}

// Armor is one armor category.
type Armor struct {
	Category   string   `json:"category"`
	Skill      string   `json:"skill" yaml:"skill"`
	SkillStat  string   `json:"skill_stat" yaml:"skill_stat"`
	DR         int      `json:"dr" yaml:"dr"`
	Properties []string `json:"properties" yaml:"properties"`
}

// Injury is the effect list for one location, sub-location and severity.
type Injury struct {
	SeverityName string   `json:"severity_name" yaml:"name"`
	Effects      []string `json:"effects" yaml:"effects"`
}

// StatusEffect describes one named status.
type StatusEffect struct {
	Name            string   `json:"name"`
	Description     string   `json:"description" yaml:"description"`
	Effects         []string `json:"effects" yaml:"effects"`
	Type            string   `json:"type" yaml:"type"`
	DurationType    string   `json:"duration_type" yaml:"duration_type"`
	DefaultDuration int      `json:"default_duration" yaml:"default_duration"`
}

type weaponFile struct {
	Melee  map[string]Weapon `yaml:"melee"`
	Ranged map[string]Weapon `yaml:"ranged"`
}

// Tables holds every rule table keyed by folded name.
type Tables struct {
	weapons  map[WeaponKind]map[string]Weapon
	armor    map[string]Armor
	injuries map[string]map[string]map[int]Injury
	statuses map[string]StatusEffect
}

// Load decodes the tables compiled into the binary.
func Load() (*Tables, error) {
	sub, err := fs.Sub(embedded, "tables")
	if err != nil {
		return nil, fmt.Errorf("open embedded tables: %w", err)
	}
	return LoadFS(sub)
}

// LoadFS decodes and validates the four table files found at the root of fsys.
func LoadFS(fsys fs.FS) (*Tables, error) {
	var weapons weaponFile
	if err := decode(fsys, weaponsFile, &weapons); err != nil {
		return nil, err
	}
	var armor map[string]Armor
	if err := decode(fsys, armorFile, &armor); err != nil {
		return nil, err
	}
	var injuries map[string]map[string]map[int]Injury
	if err := decode(fsys, injuriesFile, &injuries); err != nil {
		return nil, err
	}
	var statuses map[string]StatusEffect
	if err := decode(fsys, statusFile, &statuses); err != nil {
		return nil, err
	}

	t := &Tables{
		weapons: map[WeaponKind]map[string]Weapon{
			WeaponMelee:  {},
			WeaponRanged: {},
		},
		armor:    make(map[string]Armor, len(armor)),
		injuries: make(map[string]map[string]map[int]Injury, len(injuries)),
		statuses: make(map[string]StatusEffect, len(statuses)),
	}
	for kind, table := range map[WeaponKind]map[string]Weapon{WeaponMelee: weapons.Melee, WeaponRanged: weapons.Ranged} {
		for category, w := range table {
			w.Category = category
			w.Kind = kind
			if err := validateWeapon(w); err != nil {
				return nil, err
			}
			t.weapons[kind][Key(category)] = w
		}
	}
	for category, a := range armor {
		a.Category = category
		if strings.TrimSpace(a.Skill) == "" || strings.TrimSpace(a.SkillStat) == "" {
			return nil, fmt.Errorf("armor %q: skill and skill_stat are required", category)
		}
		if a.DR < 0 {
			return nil, fmt.Errorf("armor %q: dr must be >= 0", category)
		}
		t.armor[Key(category)] = a
	}
	for location, subs := range injuries {
		folded := make(map[string]map[int]Injury, len(subs))
		for subLocation, bySeverity := range subs {
			for severity := range bySeverity {
				if severity < MinSeverity || severity > MaxSeverity {
					return nil, fmt.Errorf("injury %s/%s: severity %d out of range", location, subLocation, severity)
				}
			}
			folded[Key(subLocation)] = bySeverity
		}
		t.injuries[Key(location)] = folded
	}
	for name, s := range statuses {
		s.Name = name
		t.statuses[Key(name)] = s
	}
	return t, nil
}

func decode(fsys fs.FS, name string, target any) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func validateWeapon(w Weapon) error {
	if strings.TrimSpace(w.Skill) == "" || strings.TrimSpace(w.SkillStat) == "" {
		return fmt.Errorf("%s weapon %q: skill and skill_stat are required", w.Kind, w.Category)
	}
	if w.Penalty > 0 {
		return fmt.Errorf("%s weapon %q: penalty must be <= 0, got %d", w.Kind, w.Category, w.Penalty)
	}
	if _, err := dice.ParseDamage(w.DamageDice); err != nil {
		return fmt.Errorf("%s weapon %q: %w", w.Kind, w.Category, err)
	}
	return nil
}

// Key folds a table name for case-insensitive lookup.
func Key(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Weapon returns the weapon category of the given kind.
func (t *Tables) Weapon(kind WeaponKind, category string) (Weapon, error) {
	table, ok := t.weapons[kind]
	if !ok {
		return Weapon{}, apperrors.Newf(apperrors.CodeInvalidInput, "unknown weapon kind %q", kind)
	}
	w, ok := table[Key(category)]
	if !ok {
		return Weapon{}, apperrors.Newf(apperrors.CodeNotFound, "%s weapon category %q not found", kind, category)
	}
	w.Properties = append([]string(nil), w.Properties...)
	return w, nil
}

// Armor returns the armor category.
func (t *Tables) Armor(category string) (Armor, error) {
	a, ok := t.armor[Key(category)]
	if !ok {
		return Armor{}, apperrors.Newf(apperrors.CodeNotFound, "armor category %q not found", category)
	}
	a.Properties = append([]string(nil), a.Properties...)
	return a, nil
}

// Injury returns the effects for an injury.
func (t *Tables) Injury(location, subLocation string, severity int) (Injury, error) {
	if severity < MinSeverity || severity > MaxSeverity {
		return Injury{}, apperrors.Newf(apperrors.CodeInjurySeverity, "severity %d outside %d..%d", severity, MinSeverity, MaxSeverity)
	}
	subs, ok := t.injuries[Key(location)]
	if !ok {
		return Injury{}, apperrors.Newf(apperrors.CodeNotFound, "injury location %q not found", location)
	}
	bySeverity, ok := subs[Key(subLocation)]
	if !ok {
		return Injury{}, apperrors.Newf(apperrors.CodeNotFound, "injury sub-location %q not found for %q", subLocation, location)
	}
	injury, ok := bySeverity[severity]
	if !ok {
		return Injury{}, apperrors.Newf(apperrors.CodeNotFound, "severity %d not defined for %s/%s", severity, location, subLocation)
	}
	injury.Effects = append([]string(nil), injury.Effects...)
	return injury, nil
}

// Status returns a status effect by name, ignoring case.
func (t *Tables) Status(name string) (StatusEffect, error) {
	s, ok := t.statuses[Key(name)]
	if !ok {
		return StatusEffect{}, apperrors.Newf(apperrors.CodeNotFound, "status effect %q not found", name)
	}
	s.Effects = append([]string(nil), s.Effects...)
	return s, nil
}

// StatusNames lists every status effect name in sorted order.
func (t *Tables) StatusNames() []string {
	names := make([]string, 0, len(t.statuses))
	for _, s := range t.statuses {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
