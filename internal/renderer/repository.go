package renderer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// sourceDatabase marks definitions loaded from the custom profile store.
const sourceDatabase = "database"

// Repository persists operator-defined renderer definitions.
type Repository interface {
	List(ctx context.Context) ([]Definition, error)
	GetByName(ctx context.Context, name string) (*Definition, error)
	Create(ctx context.Context, def Definition) error
	Delete(ctx context.Context, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed definition repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all stored definitions in creation order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Definition, error) {
	const query = `SELECT name, user_agent, headers, properties
		FROM renderer_profiles ORDER BY position, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying renderer profiles: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning renderer profile row: %w", err)
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating renderer profile rows: %w", err)
	}
	return defs, nil
}

// GetByName returns a stored definition, ignoring case.
// Returns ErrProfileNotFound if it does not exist.
func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*Definition, error) {
	const query = `SELECT name, user_agent, headers, properties
		FROM renderer_profiles WHERE name = ?`
	def, err := scanDefinition(r.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting renderer profile %s: %w", name, err)
	}
	return def, nil
}

// Create validates and stores a definition after all existing ones.
// Returns ErrDuplicateProfile if the name is taken, or the NewProfile error
// when the definition does not compile.
func (r *SQLiteRepository) Create(ctx context.Context, def Definition) error {
	def.Name = strings.TrimSpace(def.Name)
	if _, err := NewProfile(def); err != nil {
		return err
	}

	userAgent, err := json.Marshal(nonNil(def.UserAgent))
	if err != nil {
		return fmt.Errorf("encoding user agent patterns: %w", err)
	}
	headers, err := json.Marshal(nonNil(def.Headers))
	if err != nil {
		return fmt.Errorf("encoding header rules: %w", err)
	}
	properties := []byte("{}")
	if def.Properties != nil {
		if properties, err = json.Marshal(def.Properties); err != nil {
			return fmt.Errorf("encoding properties: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM renderer_profiles WHERE name = ?", def.Name,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking renderer profile %s: %w", def.Name, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateProfile, def.Name)
	}

	const query = `INSERT INTO renderer_profiles (name, user_agent, headers, properties, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM renderer_profiles))`
	if _, err := tx.ExecContext(ctx, query,
		def.Name, string(userAgent), string(headers), string(properties)); err != nil {
		return fmt.Errorf("inserting renderer profile %s: %w", def.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing renderer profile %s: %w", def.Name, err)
	}
	return nil
}

// Delete removes a stored definition, ignoring case.
// Returns ErrProfileNotFound if it does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM renderer_profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting renderer profile %s: %w", name, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var (
		def                              Definition
		userAgent, headers, propertiesJS string
	)
	if err := row.Scan(&def.Name, &userAgent, &headers, &propertiesJS); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(userAgent), &def.UserAgent); err != nil {
		return nil, fmt.Errorf("decoding user agent patterns of %s: %w", def.Name, err)
	}
	if err := json.Unmarshal([]byte(headers), &def.Headers); err != nil {
		return nil, fmt.Errorf("decoding header rules of %s: %w", def.Name, err)
	}
	if err := json.Unmarshal([]byte(propertiesJS), &def.Properties); err != nil {
		return nil, fmt.Errorf("decoding properties of %s: %w", def.Name, err)
	}
	def.Source = sourceDatabase
	return &def, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
