// Package entity reads and writes combat actors held by the character
// service (players) and the world service (NPCs). Callers see one actor
// interface; the differences between the two peers stay in this package.
//
// Entity calls are not retried: they mutate state and a timeout is
// reported as Unavailable.
package entity

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/httpjson"
)

// Client is the unified actor client.
type Client struct {
	characters *httpjson.Client
	world      *httpjson.Client
}

// New builds a client for the character and world services.
func New(characterURL, worldURL string, opts ...httpjson.Option) (*Client, error) {
	characters, err := httpjson.New("character", characterURL, opts...)
	if err != nil {
		return nil, err
	}
	world, err := httpjson.New("world", worldURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{characters: characters, world: world}, nil
}

// Context fetches the current sheet of an actor.
func (c *Client) Context(ctx context.Context, id domain.ActorID) (domain.ActorContext, error) {
	switch id.Kind {
	case domain.KindPlayer:
		sheet, err := c.character(ctx, id)
		if err != nil {
			return domain.ActorContext{}, err
		}
		return sheet.context(id), nil
	case domain.KindNPC:
		npc, err := c.npc(ctx, id)
		if err != nil {
			return domain.ActorContext{}, err
		}
		return npc.context(id), nil
	default:
		return domain.ActorContext{}, unknownKind(id)
	}
}

// ApplyDamage lowers an actor's hit points by amount and returns the new
// value, floored at zero. Players receive a delta; NPCs an absolute value.
func (c *Client) ApplyDamage(ctx context.Context, id domain.ActorID, amount int) (int, error) {
	if amount < 0 {
		return 0, apperrors.Newf(apperrors.CodeInvalidInput, "damage amount %d is negative", amount)
	}
	switch id.Kind {
	case domain.KindPlayer:
		sheet, err := c.character(ctx, id)
		if err != nil {
			return 0, err
		}
		newHP := max(0, sheet.CombatStats.CurrentHP-amount)
		path := characterPath(id) + "/apply_damage"
		if err := c.characters.Post(ctx, path, ApplyDamageRequest{DamageAmount: amount}, nil); err != nil {
			return 0, actorErr(id, "apply damage", err)
		}
		return newHP, nil
	case domain.KindNPC:
		npc, err := c.npc(ctx, id)
		if err != nil {
			return 0, err
		}
		newHP := max(0, npc.CurrentHP-amount)
		if err := c.putNPC(ctx, id, NPCUpdate{CurrentHP: &newHP}); err != nil {
			return 0, actorErr(id, "apply damage", err)
		}
		return newHP, nil
	default:
		return 0, unknownKind(id)
	}
}

// ApplyStatus adds a named status to an actor. Adding a status the actor
// already has is a no-op.
func (c *Client) ApplyStatus(ctx context.Context, id domain.ActorID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "status name is required")
	}
	switch id.Kind {
	case domain.KindPlayer:
		path := characterPath(id) + "/apply_status"
		if err := c.characters.Post(ctx, path, ApplyStatusRequest{StatusID: name}, nil); err != nil {
			return actorErr(id, "apply status", err)
		}
		return nil
	case domain.KindNPC:
		npc, err := c.npc(ctx, id)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(npc.StatusEffects, func(s string) bool { return strings.EqualFold(s, name) }) {
			return nil
		}
		statuses := append(slices.Clone(npc.StatusEffects), name)
		if err := c.putNPC(ctx, id, NPCUpdate{StatusEffects: statuses}); err != nil {
			return actorErr(id, "apply status", err)
		}
		return nil
	default:
		return unknownKind(id)
	}
}

// SetPosition moves an actor on the location map.
func (c *Client) SetPosition(ctx context.Context, id domain.ActorID, pos domain.Coord) error {
	coords := []int{pos.X, pos.Y}
	switch id.Kind {
	case domain.KindPlayer:
		if err := c.characters.Put(ctx, characterPath(id)+"/position", PositionRequest{Coordinates: coords}, nil); err != nil {
			return actorErr(id, "set position", err)
		}
		return nil
	case domain.KindNPC:
		if err := c.putNPC(ctx, id, NPCUpdate{Coordinates: coords}); err != nil {
			return actorErr(id, "set position", err)
		}
		return nil
	default:
		return unknownKind(id)
	}
}

// Position returns an actor's map position, or nil when it has none.
func (c *Client) Position(ctx context.Context, id domain.ActorID) (*domain.Coord, error) {
	actor, err := c.Context(ctx, id)
	if err != nil {
		return nil, err
	}
	return actor.Position, nil
}

// SpawnNPC instantiates templateID at a location and returns its actor id.
func (c *Client) SpawnNPC(ctx context.Context, templateID, locationID string, pos domain.Coord) (domain.ActorID, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return domain.ActorID{}, apperrors.New(apperrors.CodeInvalidInput, "npc template id is required")
	}
	req := SpawnRequest{TemplateID: templateID, LocationID: RecordID(locationID), Coordinates: []int{pos.X, pos.Y}}
	var npc NPCInstance
	if err := c.world.Post(ctx, "/v1/npcs/spawn", req, &npc); err != nil {
		return domain.ActorID{}, fmt.Errorf("spawn npc %q: %w", templateID, err)
	}
	if npc.ID <= 0 {
		return domain.ActorID{}, apperrors.Newf(apperrors.CodeDataCorruption, "spawn npc %q returned id %d", templateID, npc.ID)
	}
	return domain.NPCID(strconv.Itoa(npc.ID)), nil
}

// Location fetches a location's map.
func (c *Client) Location(ctx context.Context, id string) (Location, error) {
	var rec LocationRecord
	if err := c.world.Get(ctx, "/v1/locations/"+httpjson.PathEscape(id), &rec); err != nil {
		return Location{}, fmt.Errorf("get location %q: %w", id, err)
	}
	loc := Location{
		ID:    rec.ID.String(),
		Name:  rec.Name,
		Tiles: rec.GeneratedMapData,
	}
	for _, p := range rec.SpawnPoints {
		if pt, ok := coord(p); ok {
			loc.SpawnPoints = append(loc.SpawnPoints, *pt)
		}
	}
	return loc, nil
}

func (c *Client) character(ctx context.Context, id domain.ActorID) (CharacterSheet, error) {
	var sheet CharacterSheet
	if err := c.characters.Get(ctx, characterPath(id), &sheet); err != nil {
		return CharacterSheet{}, actorErr(id, "get", err)
	}
	return sheet, nil
}

func (c *Client) npc(ctx context.Context, id domain.ActorID) (NPCInstance, error) {
	var npc NPCInstance
	if err := c.world.Get(ctx, npcPath(id), &npc); err != nil {
		return NPCInstance{}, actorErr(id, "get", err)
	}
	return npc, nil
}

func (c *Client) putNPC(ctx context.Context, id domain.ActorID, update NPCUpdate) error {
	return c.world.Put(ctx, npcPath(id), update, nil)
}

func characterPath(id domain.ActorID) string {
	return "/v1/characters/" + httpjson.PathEscape(id.ID)
}

func npcPath(id domain.ActorID) string {
	return "/v1/npcs/" + httpjson.PathEscape(id.ID)
}

func (s CharacterSheet) context(id domain.ActorID) domain.ActorContext {
	actor := domain.ActorContext{
		ID:            id,
		Name:          s.Name,
		HPCurrent:     max(0, s.CombatStats.CurrentHP),
		HPMax:         max(0, s.CombatStats.MaxHP),
		Stats:         s.Stats,
		Skills:        s.Skills,
		StatusEffects: s.StatusEffects,
		Inventory:     s.Inventory,
		Position:      coordOrNil(s.Coordinates),
	}
	actor.Weapon, actor.Armor = s.Equipment.domain()
	return actor
}

func (n NPCInstance) context(id domain.ActorID) domain.ActorContext {
	name := n.NameOverride
	if name == "" {
		name = n.TemplateID
	}
	actor := domain.ActorContext{
		ID:            id,
		Name:          name,
		HPCurrent:     max(0, n.CurrentHP),
		HPMax:         max(0, n.MaxHP),
		Stats:         n.Stats,
		Skills:        n.Skills,
		StatusEffects: n.StatusEffects,
		BehaviorTags:  n.BehaviorTags,
		Position:      coordOrNil(n.Coordinates),
	}
	actor.Weapon, actor.Armor = n.Equipment.domain()
	return actor
}

func (e Equipment) domain() (domain.Weapon, domain.Armor) {
	var weapon domain.Weapon
	if e.Weapon != nil {
		weapon.Category = strings.TrimSpace(e.Weapon.Category)
		weapon.Kind = domain.WeaponMelee
		if strings.EqualFold(e.Weapon.Type, string(domain.WeaponRanged)) {
			weapon.Kind = domain.WeaponRanged
		}
	}
	var armor domain.Armor
	if e.Armor != nil {
		armor.Category = strings.TrimSpace(e.Armor.Category)
	}
	return weapon, armor
}

func coordOrNil(raw []int) *domain.Coord {
	c, _ := coord(raw)
	return c
}

func coord(raw []int) (*domain.Coord, bool) {
	if len(raw) != 2 {
		return nil, false
	}
	return &domain.Coord{X: raw[0], Y: raw[1]}, true
}

func unknownKind(id domain.ActorID) error {
	return apperrors.Newf(apperrors.CodeActorInvalidID, "unknown actor kind %q", id.Kind)
}

// actorErr names the actor in err and narrows a peer 404 to actor not found.
func actorErr(id domain.ActorID, op string, err error) error {
	if apperrors.IsKind(err, apperrors.KindNotFound) {
		return apperrors.Wrap(apperrors.CodeActorNotFound, fmt.Sprintf("%s %s", op, id), err)
	}
	return fmt.Errorf("%s %s: %w", op, id, err)
}
