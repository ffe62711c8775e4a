package identify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultSightingLimit = 50
	maxSightingLimit     = 500

	// sightingTimeFormat is fixed-width so that stored timestamps sort
	// lexically in time order.
	sightingTimeFormat = "2006-01-02T15:04:05.000000000Z"
)

// Sighting is the last identification recorded for a client address.
type Sighting struct {
	Address   string    `json:"address"`
	Profile   string    `json:"profile"`
	Method    Method    `json:"method"`
	UserAgent string    `json:"user_agent,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Hits      int       `json:"hits"`
}

// RecordOutcome tells the caller how a recorded sighting relates to the
// previous one for the same address.
type RecordOutcome struct {
	// New is true when the address had never been seen.
	New bool

	// Previous is the profile recorded before this sighting, if any.
	Previous string
}

// Changed reports whether the sighting is new or names a different profile.
func (o RecordOutcome) Changed(profile string) bool {
	return o.New || o.Previous != profile
}

// SightingStore persists sightings.
//
// Implementations must be safe for concurrent use.
type SightingStore interface {
	// Record upserts the sighting for s.Address, bumping its hit count.
	Record(ctx context.Context, s Sighting) (RecordOutcome, error)

	// Get returns the sighting for an address, or ErrSightingNotFound.
	Get(ctx context.Context, address string) (*Sighting, error)

	// List returns sightings newest first. limit is clamped to a sane range.
	List(ctx context.Context, limit int) ([]Sighting, error)
}

// SQLiteSightingStore implements SightingStore on the renderer_sightings
// table.
type SQLiteSightingStore struct {
	db *sql.DB
}

// NewSQLiteSightingStore creates a store over an open, migrated database.
func NewSQLiteSightingStore(db *sql.DB) *SQLiteSightingStore {
	return &SQLiteSightingStore{db: db}
}

// Record implements SightingStore.
func (r *SQLiteSightingStore) Record(ctx context.Context, s Sighting) (RecordOutcome, error) {
	if s.Address == "" {
		return RecordOutcome{}, fmt.Errorf("sighting address is required")
	}
	if s.LastSeen.IsZero() {
		s.LastSeen = time.Now()
	}
	seen := s.LastSeen.UTC().Format(sightingTimeFormat)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var previous string
	err = tx.QueryRowContext(ctx,
		`SELECT profile FROM renderer_sightings WHERE address = ?`, s.Address,
	).Scan(&previous)

	var outcome RecordOutcome
	switch {
	case errors.Is(err, sql.ErrNoRows):
		outcome.New = true
		_, err = tx.ExecContext(ctx, `
			INSERT INTO renderer_sightings (address, profile, method, user_agent, first_seen, last_seen, hits)
			VALUES (?, ?, ?, ?, ?, ?, 1)`,
			s.Address, s.Profile, string(s.Method), s.UserAgent, seen, seen,
		)
	case err != nil:
		return RecordOutcome{}, fmt.Errorf("querying sighting: %w", err)
	default:
		outcome.Previous = previous
		_, err = tx.ExecContext(ctx, `
			UPDATE renderer_sightings
			SET profile = ?, method = ?, user_agent = ?, last_seen = ?, hits = hits + 1
			WHERE address = ?`,
			s.Profile, string(s.Method), s.UserAgent, seen, s.Address,
		)
	}
	if err != nil {
		return RecordOutcome{}, fmt.Errorf("recording sighting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RecordOutcome{}, fmt.Errorf("committing sighting: %w", err)
	}
	return outcome, nil
}

// Get implements SightingStore.
func (r *SQLiteSightingStore) Get(ctx context.Context, address string) (*Sighting, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT address, profile, method, user_agent, first_seen, last_seen, hits
		FROM renderer_sightings WHERE address = ?`, address)

	s, err := scanSighting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSightingNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List implements SightingStore.
func (r *SQLiteSightingStore) List(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = defaultSightingLimit
	}
	limit = min(limit, maxSightingLimit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT address, profile, method, user_agent, first_seen, last_seen, hits
		FROM renderer_sightings
		ORDER BY last_seen DESC, address
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close()

	sightings := []Sighting{}
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, err
		}
		sightings = append(sightings, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sightings: %w", err)
	}
	return sightings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSighting(row rowScanner) (*Sighting, error) {
	var s Sighting
	var method, firstSeen, lastSeen string
	if err := row.Scan(&s.Address, &s.Profile, &method, &s.UserAgent, &firstSeen, &lastSeen, &s.Hits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sighting: %w", err)
	}
	s.Method = Method(method)

	var err error
	if s.FirstSeen, err = time.Parse(sightingTimeFormat, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if s.LastSeen, err = time.Parse(sightingTimeFormat, lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return &s, nil
}
