package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecentSprints_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []SprintRecord{
		{ID: "sprint-1", CommittedPoints: 20, CompletedPoints: 18, DurationDays: 14, TeamSize: 4, EndedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "sprint-2", CommittedPoints: 22, CompletedPoints: 22, DurationDays: 14, TeamSize: 4, EndedAt: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, rec := range records {
		if err := s.SaveSprintRecord(ctx, rec); err != nil {
			t.Fatalf("SaveSprintRecord(%s): %v", rec.ID, err)
		}
	}

	got, err := s.RecentSprints(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSprints: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	// Newest first.
	if got[0].ID != "sprint-2" || got[1].ID != "sprint-1" {
		t.Fatalf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].CommittedPoints != 20 || got[1].CompletedPoints != 18 ||
		got[1].DurationDays != 14 || got[1].TeamSize != 4 {
		t.Fatalf("fields not preserved: %+v", got[1])
	}
}

func TestSaveSprintRecord_RequiresID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveSprintRecord(context.Background(), SprintRecord{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestSaveSprintRecord_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := SprintRecord{ID: "sprint-1", EndedAt: time.Now()}

	if err := s.SaveSprintRecord(ctx, rec); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveSprintRecord(ctx, rec); err == nil {
		t.Fatal("expected primary key violation on duplicate id")
	}
}

func TestRecentSprints_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := SprintRecord{
			ID:      string(rune('a' + i)),
			EndedAt: base.AddDate(0, 0, i*14),
		}
		if err := s.SaveSprintRecord(ctx, rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := s.RecentSprints(ctx, 3)
	if err != nil {
		t.Fatalf("RecentSprints: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("limit not applied: got %d records", len(got))
	}
}

func TestOutcomes_Shape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := SprintRecord{ID: "s1", CommittedPoints: 20, CompletedPoints: 19, DurationDays: 14, EndedAt: time.Now()}
	if err := s.SaveSprintRecord(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	outcomes, err := s.Outcomes(ctx, 10)
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].CompletedPoints != 19 || outcomes[0].CommittedPoints != 20 {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
}

func TestCompletionStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty table: zero stats, no error.
	stats, err := s.CompletionStats(ctx, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("CompletionStats empty: %v", err)
	}
	if stats.Sprints != 0 || stats.CompletedPoints != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}

	recent := SprintRecord{ID: "new", CommittedPoints: 10, CompletedPoints: 9, EndedAt: time.Now().Add(-24 * time.Hour)}
	old := SprintRecord{ID: "old", CommittedPoints: 10, CompletedPoints: 10, EndedAt: time.Now().Add(-365 * 24 * time.Hour)}
	for _, rec := range []SprintRecord{recent, old} {
		if err := s.SaveSprintRecord(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.ID, err)
		}
	}

	stats, err = s.CompletionStats(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("CompletionStats: %v", err)
	}
	if stats.Sprints != 1 || stats.CommittedPoints != 10 || stats.CompletedPoints != 9 {
		t.Fatalf("window not applied: %+v", stats)
	}
}
