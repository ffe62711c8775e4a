package identify

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"testing"

	"github.com/nerrad567/gray-media-core/internal/infrastructure/database"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-media-core/internal/renderer"
	_ "github.com/nerrad567/gray-media-core/migrations"
)

// openTestDB returns a migrated in-memory database.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// newResolver builds a resolver over the built-in profiles.
func newResolver(t *testing.T, policy renderer.Policy) *renderer.Resolver {
	t.Helper()
	reg, err := LoadRegistry(context.Background(), ProfileSources{}, nil)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	return renderer.NewResolver(reg, policy)
}

func newService(t *testing.T, deps Deps) *Service {
	t.Helper()
	svc, err := NewService(deps)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

type recordingTelemetry struct {
	mu     sync.Mutex
	points []influxdb.Identification
}

func (r *recordingTelemetry) WriteIdentification(id influxdb.Identification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, id)
}

type recordingHub struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (h *recordingHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels = append(h.channels, channel)
	h.payloads = append(h.payloads, payload)
}

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, fmt.Sprint(append([]any{msg}, args...)...))
}

type failingSightings struct{}

func (failingSightings) Record(context.Context, Sighting) (RecordOutcome, error) {
	return RecordOutcome{}, fmt.Errorf("disk full")
}

func (failingSightings) Get(context.Context, string) (*Sighting, error) {
	return nil, ErrSightingNotFound
}

func (failingSightings) List(context.Context, int) ([]Sighting, error) {
	return nil, fmt.Errorf("disk full")
}

func addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func ptr[T any](v T) *T {
	return &v
}
