package renderer

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the renderer_profiles table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE renderer_profiles (
			name        TEXT PRIMARY KEY COLLATE NOCASE,
			user_agent  TEXT NOT NULL DEFAULT '[]',
			headers     TEXT NOT NULL DEFAULT '[]',
			properties  TEXT NOT NULL DEFAULT '{}',
			position    INTEGER NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLiteRepositoryCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	defs := []Definition{
		{
			Name:       "Living Room TV",
			UserAgent:  []string{`LivingRoomTV/\d+`},
			Properties: map[string]string{"transcode_video": "MPEGTS-H264-AAC"},
		},
		{
			Name:    "Bedroom Box",
			Headers: []HeaderDefinition{{Name: "X-Device", Pattern: "bedroom"}},
		},
	}
	for _, def := range defs {
		if err := repo.Create(ctx, def); err != nil {
			t.Fatalf("Create(%q) error = %v", def.Name, err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	for i := range defs {
		defs[i].Source = "database"
	}
	if diff := cmp.Diff(defs, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteRepositoryCreateRejects(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, Definition{Name: "Box", UserAgent: []string{"box"}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{"duplicate name ignoring case", Definition{Name: "BOX", UserAgent: []string{"other"}}, ErrDuplicateProfile},
		{"invalid pattern", Definition{Name: "Broken", UserAgent: []string{"(open"}}, ErrInvalidPattern},
		{"empty name", Definition{Name: " ", UserAgent: []string{"x"}}, ErrInvalidProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.def); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSQLiteRepositoryGetAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, Definition{Name: "Kitchen Radio", UserAgent: []string{"KitchenRadio"}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	def, err := repo.GetByName(ctx, "kitchen radio")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if def.Name != "Kitchen Radio" || def.Source != "database" {
		t.Errorf("GetByName() = %+v", def)
	}

	if err := repo.Delete(ctx, "KITCHEN RADIO"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "Kitchen Radio"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("second Delete() error = %v, want ErrProfileNotFound", err)
	}
	if _, err := repo.GetByName(ctx, "Kitchen Radio"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetByName() after delete error = %v, want ErrProfileNotFound", err)
	}
}

func TestStoredDefinitionsBuildAfterBuiltins(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, Definition{Name: "Custom XBMC", UserAgent: []string{"XBMC"}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	stored, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	builtin := builtinRegistry(t)
	defs := make([]Definition, 0, builtin.Len()+len(stored))
	for p := range builtin.All() {
		defs = append(defs, p.Definition())
	}
	defs = append(defs, stored...)

	reg, skipped := BuildRegistry(defs, nil)
	if skipped != 0 {
		t.Fatalf("skipped = %d", skipped)
	}

	// Built-ins load first, so the stored definition loses the tie.
	got, _ := NewMatcher(reg).MatchUserAgent("User-Agent: XBMC/12")
	if got.Name() != "XBMC" {
		t.Errorf("MatchUserAgent() = %v, want built-in XBMC", got)
	}
	if p, ok := reg.FindByName("Custom XBMC"); !ok || p.Source() != "database" {
		t.Errorf("FindByName(Custom XBMC) = %v, %v", p, ok)
	}
}
