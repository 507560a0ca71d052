// Package sqlite provides a SQLite-backed encounter store.
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/louisbranch/fulcrum/internal/platform/errors"
	"github.com/louisbranch/fulcrum/internal/platform/id"
	"github.com/louisbranch/fulcrum/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
	"github.com/louisbranch/fulcrum/internal/services/story/storage"
	"github.com/louisbranch/fulcrum/internal/services/story/storage/sqlite/migrations"
)

// Store persists encounters in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.EncounterStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite encounter store and applies embedded migrations.
// Transactions take the write lock up front so that a read-modify-write
// never has to upgrade a shared lock.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new active encounter with its turn order fixed by
// initiative.
func (s *Store) Create(ctx context.Context, in storage.NewEncounter) (domain.Encounter, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Encounter{}, err
	}
	if err := in.Validate(); err != nil {
		return domain.Encounter{}, err
	}
	order, err := domain.BuildTurnOrder(in.Participants)
	if err != nil {
		return domain.Encounter{}, err
	}
	encounterID, err := id.NewID()
	if err != nil {
		return domain.Encounter{}, fmt.Errorf("new encounter id: %w", err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	enc := domain.Encounter{
		ID:           encounterID,
		LocationID:   strings.TrimSpace(in.LocationID),
		Status:       domain.StatusActive,
		TurnOrder:    order,
		Participants: append([]domain.Participant(nil), in.Participants...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := enc.Validate(); err != nil {
		return domain.Encounter{}, err
	}

	position := make(map[domain.ActorID]int, len(order))
	for i, actor := range order {
		position[actor] = i
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO encounters (
			   id, location_id, status, current_turn_index, participant_count, created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			enc.ID, enc.LocationID, string(enc.Status), enc.CurrentTurnIndex, len(enc.Participants),
			toMillis(enc.CreatedAt), toMillis(enc.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert encounter: %w", err)
		}
		for _, p := range enc.Participants {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO encounter_participants (
				   encounter_id, actor_id, initiative, joined_at, turn_position
				 ) VALUES (?, ?, ?, ?, ?)`,
				enc.ID, p.ActorID.String(), p.Initiative, p.JoinedAt, position[p.ActorID],
			); err != nil {
				return fmt.Errorf("insert participant %s: %w", p.ActorID, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Encounter{}, err
	}
	return enc, nil
}

// Get returns one encounter.
func (s *Store) Get(ctx context.Context, encounterID string) (domain.Encounter, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Encounter{}, err
	}
	var enc domain.Encounter
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		enc, err = load(ctx, tx, encounterID)
		return err
	})
	return enc, err
}

// Update applies patch atomically and returns the stored result.
func (s *Store) Update(ctx context.Context, encounterID string, patch storage.Patch) (domain.Encounter, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Encounter{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.Encounter{}, err
	}
	var out domain.Encounter
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := load(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		next, err := patch.Apply(current)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
		if _, err := tx.ExecContext(ctx,
			`UPDATE encounters
			    SET status = ?, current_turn_index = ?, updated_at = ?
			  WHERE id = ?`,
			string(next.Status), next.CurrentTurnIndex, toMillis(next.UpdatedAt), next.ID,
		); err != nil {
			return fmt.Errorf("update encounter: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// load reads the encounter row and its participants inside tx, so status
// and turn index always come from the same row version.
func load(ctx context.Context, tx *sql.Tx, encounterID string) (domain.Encounter, error) {
	encounterID = strings.TrimSpace(encounterID)
	if encounterID == "" {
		return domain.Encounter{}, apperrors.New(apperrors.CodeInvalidInput, "encounter id is required")
	}

	var (
		enc       domain.Encounter
		status    string
		count     int
		createdAt int64
		updatedAt int64
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id, location_id, status, current_turn_index, participant_count, created_at, updated_at
		   FROM encounters
		  WHERE id = ?`,
		encounterID,
	).Scan(&enc.ID, &enc.LocationID, &status, &enc.CurrentTurnIndex, &count, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Encounter{}, apperrors.Newf(apperrors.CodeEncounterNotFound, "encounter %s not found", encounterID)
	}
	if err != nil {
		return domain.Encounter{}, fmt.Errorf("get encounter: %w", err)
	}
	enc.Status = domain.Status(status)
	enc.CreatedAt = fromMillis(createdAt)
	enc.UpdatedAt = fromMillis(updatedAt)

	rows, err := tx.QueryContext(ctx,
		`SELECT actor_id, initiative, joined_at, turn_position
		   FROM encounter_participants
		  WHERE encounter_id = ?
		  ORDER BY turn_position`,
		encounterID,
	)
	if err != nil {
		return domain.Encounter{}, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	type seat struct {
		participant domain.Participant
		position    int
	}
	var seats []seat
	for rows.Next() {
		var (
			raw string
			st  seat
		)
		if err := rows.Scan(&raw, &st.participant.Initiative, &st.participant.JoinedAt, &st.position); err != nil {
			return domain.Encounter{}, fmt.Errorf("scan participant: %w", err)
		}
		actor, err := domain.ParseActorID(raw)
		if err != nil {
			return domain.Encounter{}, apperrors.Wrap(apperrors.CodeDataCorruption, "stored actor id", err)
		}
		st.participant.ActorID = actor
		seats = append(seats, st)
	}
	if err := rows.Err(); err != nil {
		return domain.Encounter{}, fmt.Errorf("iterate participants: %w", err)
	}

	for i, st := range seats {
		if st.position != i {
			return domain.Encounter{}, apperrors.Newf(apperrors.CodeDataCorruption, "encounter %s has a gap in turn order at %d", encounterID, i)
		}
		enc.TurnOrder = append(enc.TurnOrder, st.participant.ActorID)
		enc.Participants = append(enc.Participants, st.participant)
	}
	slices.SortStableFunc(enc.Participants, func(a, b domain.Participant) int {
		return cmp.Compare(a.JoinedAt, b.JoinedAt)
	})
	if len(enc.Participants) != count {
		return domain.Encounter{}, apperrors.Newf(apperrors.CodeDataCorruption,
			"encounter %s has %d participants, expected %d", encounterID, len(enc.Participants), count)
	}
	if err := enc.Validate(); err != nil {
		return domain.Encounter{}, apperrors.Wrap(apperrors.CodeDataCorruption, "stored encounter", err)
	}
	return enc, nil
}
