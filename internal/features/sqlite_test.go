package features

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "features.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestObservationRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		obs := Observation{
			UserID:       "u1",
			Mood:         float64(3 + i),
			Stress:       7,
			Energy:       5,
			SleepQuality: 6,
			CreatedAt:    now.Add(time.Duration(i) * 24 * time.Hour),
		}
		if err := store.RecordObservation(ctx, obs); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// Another user's data must not leak in.
	if err := store.RecordObservation(ctx, Observation{UserID: "u2", Mood: 1, CreatedAt: now}); err != nil {
		t.Fatalf("record u2: %v", err)
	}

	latest, err := store.LatestObservation(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Mood != 5 {
		t.Fatalf("latest = %+v, want mood 5", latest)
	}

	window, err := store.Observations(ctx, "u1", now.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window len = %d, want 2", len(window))
	}
	if !window[0].CreatedAt.Before(window[1].CreatedAt) {
		t.Fatal("observations should be ordered oldest first")
	}
}

func TestEmptyResultsAreNotErrors(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	latest, err := store.LatestObservation(ctx, "nobody", time.Time{})
	if err != nil || latest != nil {
		t.Fatalf("latest = %v, %v; want nil, nil", latest, err)
	}
	obs, err := store.Observations(ctx, "nobody", time.Time{})
	if err != nil || len(obs) != 0 {
		t.Fatalf("observations = %v, %v; want empty, nil", obs, err)
	}
	comps, err := store.Completions(ctx, "nobody", time.Time{})
	if err != nil || len(comps) != 0 {
		t.Fatalf("completions = %v, %v; want empty, nil", comps, err)
	}
	last, err := store.LatestCompletion(ctx, "nobody")
	if err != nil || last != nil {
		t.Fatalf("latest completion = %v, %v; want nil, nil", last, err)
	}
}

func TestCompletionQueries(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	tools := []string{"breathing_478", "gratitude_3", "body_scan"}
	for i, tool := range tools {
		c := Completion{UserID: "u1", ToolID: tool, CreatedAt: now.Add(time.Duration(-i) * 24 * time.Hour)}
		if err := store.RecordCompletion(ctx, c); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	last, err := store.LatestCompletion(ctx, "u1")
	if err != nil {
		t.Fatalf("latest completion: %v", err)
	}
	if last == nil || last.ToolID != "breathing_478" {
		t.Fatalf("latest completion = %+v, want breathing_478", last)
	}

	recent, err := store.Completions(ctx, "u1", now.Add(-36*time.Hour))
	if err != nil {
		t.Fatalf("completions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent completions = %d, want 2", len(recent))
	}
	if recent[0].ToolID != "breathing_478" {
		t.Fatal("completions should be ordered newest first")
	}
}
