package identify

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSightingStoreRecord(t *testing.T) {
	store := NewSQLiteSightingStore(openTestDB(t).DB)
	ctx := context.Background()
	first := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	outcome, err := store.Record(ctx, Sighting{
		Address: "192.168.1.20", Profile: "XBMC", Method: MethodUserAgent, UserAgent: "XBMC/12.0", LastSeen: first,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !outcome.New || !outcome.Changed("XBMC") {
		t.Errorf("first outcome = %+v, want new", outcome)
	}

	second := first.Add(time.Minute)
	outcome, err = store.Record(ctx, Sighting{
		Address: "192.168.1.20", Profile: "XBMC", Method: MethodUserAgent, LastSeen: second,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if outcome.New || outcome.Previous != "XBMC" || outcome.Changed("XBMC") {
		t.Errorf("repeat outcome = %+v, want unchanged", outcome)
	}

	got, err := store.Get(ctx, "192.168.1.20")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Hits != 2 {
		t.Errorf("Hits = %d, want 2", got.Hits)
	}
	if !got.FirstSeen.Equal(first) || !got.LastSeen.Equal(second) {
		t.Errorf("seen = %v..%v, want %v..%v", got.FirstSeen, got.LastSeen, first, second)
	}
}

func TestSightingStoreRecordRequiresAddress(t *testing.T) {
	store := NewSQLiteSightingStore(openTestDB(t).DB)
	if _, err := store.Record(context.Background(), Sighting{Profile: "XBMC"}); err == nil {
		t.Error("Record() without address should fail")
	}
}

func TestSightingStoreGetNotFound(t *testing.T) {
	store := NewSQLiteSightingStore(openTestDB(t).DB)
	if _, err := store.Get(context.Background(), "10.9.9.9"); !errors.Is(err, ErrSightingNotFound) {
		t.Errorf("Get() error = %v, want ErrSightingNotFound", err)
	}
}

func TestSightingStoreListNewestFirst(t *testing.T) {
	store := NewSQLiteSightingStore(openTestDB(t).DB)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	// Sub-second offsets must still order correctly.
	for i, a := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if _, err := store.Record(ctx, Sighting{
			Address:  a,
			Profile:  "XBMC",
			Method:   MethodUserAgent,
			LastSeen: base.Add(time.Duration(i) * 500 * time.Millisecond),
		}); err != nil {
			t.Fatalf("Record(%s) error = %v", a, err)
		}
	}

	list, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Address != "10.0.0.3" || list[1].Address != "10.0.0.2" {
		t.Errorf("List(2) = %+v, want 10.0.0.3 then 10.0.0.2", list)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d, want 3", len(all))
	}
}

func TestSightingStoreListEmpty(t *testing.T) {
	store := NewSQLiteSightingStore(openTestDB(t).DB)
	list, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", list)
	}
}
