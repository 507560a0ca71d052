// Package spawn places the actors of a new encounter on the map and rolls
// their initiative.
package spawn

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/platform/random"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/entity"
	"github.com/louisbranch/fulcrum/internal/services/story/integration/rules"
	"github.com/louisbranch/fulcrum/internal/services/story/storage"
)

// Traversable tile ids.
var Traversable = map[int]bool{0: true, 3: true}

// Fallback is used when a map has no traversable tile.
var Fallback = domain.Coord{X: 0, Y: 0}

// Entities is the entity access spawning needs.
type Entities interface {
	Location(ctx context.Context, id string) (entity.Location, error)
	SpawnNPC(ctx context.Context, templateID, locationID string, pos domain.Coord) (domain.ActorID, error)
	SetPosition(ctx context.Context, id domain.ActorID, pos domain.Coord) error
	Context(ctx context.Context, id domain.ActorID) (domain.ActorContext, error)
}

// Initiative rolls initiative.
type Initiative interface {
	RollInitiative(ctx context.Context, req rules.InitiativeRequest) (rules.InitiativeResult, error)
}

// Request asks for a new encounter.
type Request struct {
	LocationID     string
	PlayerIDs      []domain.ActorID
	NPCTemplateIDs []string
}

// Validate checks the request shape before anything is spawned.
func (r Request) Validate() error {
	if strings.TrimSpace(r.LocationID) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "location_id is required")
	}
	if len(r.PlayerIDs) == 0 {
		return apperrors.New(apperrors.CodeEncounterNoPlayers, "player_ids must not be empty")
	}
	if len(r.NPCTemplateIDs) == 0 {
		return apperrors.New(apperrors.CodeEncounterNoNPCs, "npc_template_ids must not be empty")
	}
	seen := make(map[domain.ActorID]bool, len(r.PlayerIDs))
	for _, id := range r.PlayerIDs {
		if err := id.Validate(); err != nil {
			return err
		}
		if !id.IsPlayer() {
			return apperrors.Newf(apperrors.CodeActorWrongKind, "%s is not a player", id)
		}
		if seen[id] {
			return apperrors.Newf(apperrors.CodeEncounterDuplicate, "%s listed twice", id)
		}
		seen[id] = true
	}
	for _, tmpl := range r.NPCTemplateIDs {
		if strings.TrimSpace(tmpl) == "" {
			return apperrors.New(apperrors.CodeInvalidInput, "npc template ids must not be blank")
		}
	}
	return nil
}

// Candidates lists the traversable cells of a row-major tile grid.
func Candidates(tiles [][]int) []domain.Coord {
	var out []domain.Coord
	for y, row := range tiles {
		for x, tile := range row {
			if Traversable[tile] {
				out = append(out, domain.Coord{X: x, Y: y})
			}
		}
	}
	return out
}

// Pick draws n points from candidates: distinct while they last, then with
// replacement. It returns nil when there are no candidates.
func Pick(candidates []domain.Coord, n int, rng random.Source) []domain.Coord {
	if len(candidates) == 0 {
		return nil
	}
	pool := append([]domain.Coord(nil), candidates...)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	out := make([]domain.Coord, n)
	for i := range out {
		if i < len(pool) {
			out[i] = pool[i]
		} else {
			out[i] = pool[rng.Intn(len(pool))]
		}
	}
	return out
}

// Placer spawns NPCs, positions players and rolls initiative.
type Placer struct {
	entities   Entities
	initiative Initiative
	random     random.Source
	logger     *zap.Logger
}

// NewPlacer builds a placer.
func NewPlacer(entities Entities, initiative Initiative, rng random.Source, logger *zap.Logger) *Placer {
	return &Placer{
		entities:   entities,
		initiative: initiative,
		random:     rng,
		logger:     logging.OrNop(logger),
	}
}

// Prepared is a ready-to-store encounter plus what happened on the way.
type Prepared struct {
	Encounter storage.NewEncounter
	Log       []string
}

// Prepare spawns the NPCs in template order and rolls everyone's
// initiative. A spawn failure aborts; NPCs spawned before it are left in
// the world.
func (p *Placer) Prepare(ctx context.Context, req Request) (Prepared, error) {
	if err := req.Validate(); err != nil {
		return Prepared{}, err
	}
	locationID := strings.TrimSpace(req.LocationID)
	loc, err := p.entities.Location(ctx, locationID)
	if err != nil {
		return Prepared{}, err
	}

	var log []string
	points := Pick(Candidates(loc.Tiles), len(req.NPCTemplateIDs), p.random)
	if points == nil {
		p.logger.Warn("location has no traversable tiles; using fallback",
			zap.String("location_id", locationID), zap.Int("x", Fallback.X), zap.Int("y", Fallback.Y))
		log = append(log, fmt.Sprintf("No open ground in %s; everyone spawns at (%d,%d).", locationID, Fallback.X, Fallback.Y))
		points = make([]domain.Coord, len(req.NPCTemplateIDs))
		for i := range points {
			points[i] = Fallback
		}
	}

	npcs := make([]domain.ActorID, 0, len(req.NPCTemplateIDs))
	for i, tmpl := range req.NPCTemplateIDs {
		id, err := p.entities.SpawnNPC(ctx, tmpl, locationID, points[i])
		if err != nil {
			if len(npcs) > 0 {
				p.logger.Warn("spawn aborted with npcs already in the world",
					zap.String("location_id", locationID), zap.Stringers("spawned", npcs))
			}
			return Prepared{}, fmt.Errorf("spawn %q: %w", tmpl, err)
		}
		npcs = append(npcs, id)
		log = append(log, fmt.Sprintf("%s (%s) appears at (%d,%d).", id, tmpl, points[i].X, points[i].Y))
	}

	log = append(log, p.placePlayers(ctx, req.PlayerIDs, loc.SpawnPoints)...)

	actors := append(append([]domain.ActorID(nil), req.PlayerIDs...), npcs...)
	participants, rolls, err := p.rollInitiative(ctx, actors)
	if err != nil {
		return Prepared{}, err
	}
	log = append(log, rolls...)
	return Prepared{
		Encounter: storage.NewEncounter{LocationID: locationID, Participants: participants},
		Log:       log,
	}, nil
}

// placePlayers moves players onto the location's spawn points in order.
// Placement failures are logged and do not stop the encounter.
func (p *Placer) placePlayers(ctx context.Context, players []domain.ActorID, spawnPoints []domain.Coord) []string {
	if len(spawnPoints) == 0 {
		return nil
	}
	var log []string
	for i, id := range players {
		pos := spawnPoints[i%len(spawnPoints)]
		if err := p.entities.SetPosition(ctx, id, pos); err != nil {
			p.logger.Warn("place player", zap.String("actor", id.String()), zap.Error(err))
			log = append(log, fmt.Sprintf("Could not place %s.", id))
			continue
		}
		log = append(log, fmt.Sprintf("%s enters at (%d,%d).", id, pos.X, pos.Y))
	}
	return log
}

// rollInitiative reads every actor and rolls their initiative
// concurrently. JoinedAt follows the order of actors.
func (p *Placer) rollInitiative(ctx context.Context, actors []domain.ActorID) ([]domain.Participant, []string, error) {
	participants := make([]domain.Participant, len(actors))
	log := make([]string, len(actors))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range actors {
		g.Go(func() error {
			actor, err := p.entities.Context(gctx, id)
			if err != nil {
				return fmt.Errorf("read %s for initiative: %w", id, err)
			}
			roll, err := p.initiative.RollInitiative(gctx, rules.InitiativeFor(actor))
			if err != nil {
				return fmt.Errorf("roll initiative for %s: %w", id, err)
			}
			participants[i] = domain.Participant{ActorID: id, Initiative: roll.Total, JoinedAt: i}
			log[i] = fmt.Sprintf("%s rolls %d for initiative (total %d).", id, roll.Roll, roll.Total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return participants, log, nil
}
