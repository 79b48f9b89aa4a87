package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Goodman667/NeuraSense/internal/condition"
	"github.com/Goodman667/NeuraSense/internal/decision"
	"github.com/Goodman667/NeuraSense/internal/features"
	"github.com/Goodman667/NeuraSense/internal/rules"
	"github.com/Goodman667/NeuraSense/internal/tailoring"
)

// #region fakes

type emptySource struct{}

func (emptySource) LatestObservation(context.Context, string, time.Time) (*features.Observation, error) {
	return nil, nil
}
func (emptySource) Observations(context.Context, string, time.Time) ([]features.Observation, error) {
	return nil, nil
}
func (emptySource) Completions(context.Context, string, time.Time) ([]features.Completion, error) {
	return nil, nil
}
func (emptySource) LatestCompletion(context.Context, string) (*features.Completion, error) {
	return nil, nil
}

type fixedRules struct{ doc rules.Document }

func (f *fixedRules) Snapshot() *rules.Snapshot { return &rules.Snapshot{Document: f.doc} }

type fakeTracker struct {
	err      error
	lastUser string
	records  int
}

func (f *fakeTracker) Record(_ context.Context, userID string, result decision.Result) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastUser = userID
	f.records++
	ids := make([]string, len(result.Tools))
	for i := range ids {
		ids[i] = "id-" + result.Tools[i].ID
	}
	return ids, nil
}

type fakeIngest struct {
	got *features.Observation
	err error
}

func (f *fakeIngest) RecordObservation(_ context.Context, obs features.Observation) error {
	f.got = &obs
	return f.err
}

// #endregion fakes

func lowMoodDoc() rules.Document {
	return rules.Document{
		Rules: []rules.Rule{{
			RuleID:    "acute_low_mood",
			Tier:      rules.TierAcute,
			Priority:  10,
			Condition: &condition.Node{Field: "checkin.mood", Op: condition.OpLT, Value: 4},
			Actions: []rules.Action{
				{Type: rules.ActionRecommendTool, ToolID: "breathing_478", Reason: "mood is low"},
			},
		}},
		DefaultActions: []rules.Action{
			{Type: rules.ActionRecommendTool, ToolID: "gratitude_3", Reason: "daily practice"},
		},
	}
}

func newTestEngine(doc rules.Document, tracker Tracker) *Engine {
	clock := func() time.Time { return time.Date(2026, 8, 19, 21, 0, 0, 0, time.UTC) }
	builder := tailoring.NewBuilder(emptySource{}, emptySource{}, clock)
	return New(builder, &fixedRules{doc: doc}, nil, tracker)
}

func TestDecideTracksEachTool(t *testing.T) {
	tracker := &fakeTracker{}
	e := newTestEngine(lowMoodDoc(), tracker)

	result, ids, err := e.Decide(context.Background(), "u1", &features.Observation{Mood: 2, Stress: 8}, 2)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].ID != "breathing_478" {
		t.Fatalf("tools wrong: %+v", result.Tools)
	}
	if len(ids) != 1 || ids[0] != "id-breathing_478" {
		t.Fatalf("tracking ids wrong: %v", ids)
	}
	if tracker.lastUser != "u1" {
		t.Fatalf("tracker saw user %q", tracker.lastUser)
	}
}

func TestDecideRequiresUser(t *testing.T) {
	e := newTestEngine(lowMoodDoc(), &fakeTracker{})
	if _, _, err := e.Decide(context.Background(), "", nil, 2); err == nil {
		t.Fatal("empty user_id should be rejected")
	}
}

func TestDecideSurvivesTrackingFailure(t *testing.T) {
	e := newTestEngine(lowMoodDoc(), &fakeTracker{err: errors.New("disk full")})

	result, ids, err := e.Decide(context.Background(), "u1", &features.Observation{Mood: 2}, 2)
	if !errors.Is(err, ErrTrackingUnavailable) {
		t.Fatalf("err = %v, want ErrTrackingUnavailable", err)
	}
	if len(result.Tools) == 0 {
		t.Fatal("decision should still be served when tracking fails")
	}
	if ids != nil {
		t.Fatalf("ids should be empty on tracking failure, got %v", ids)
	}
}

func TestDecideIngestsCheckin(t *testing.T) {
	tracker := &fakeTracker{}
	ingest := &fakeIngest{}
	e := newTestEngine(lowMoodDoc(), tracker).WithIngest(ingest)

	obs := &features.Observation{Mood: 3, Stress: 7}
	if _, _, err := e.Decide(context.Background(), "u1", obs, 2); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if ingest.got == nil || ingest.got.UserID != "u1" || ingest.got.Mood != 3 {
		t.Fatalf("check-in not ingested: %+v", ingest.got)
	}
}

func TestDecideLeavesInputUnmutated(t *testing.T) {
	e := newTestEngine(lowMoodDoc(), &fakeTracker{}).WithIngest(&fakeIngest{})

	obs := &features.Observation{Mood: 3, Stress: 7}
	if _, _, err := e.Decide(context.Background(), "u1", obs, 2); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if obs.UserID != "" {
		t.Fatalf("caller's observation was mutated: UserID = %q", obs.UserID)
	}
}

func TestDecideIngestFailureIsNonFatal(t *testing.T) {
	tracker := &fakeTracker{}
	e := newTestEngine(lowMoodDoc(), tracker).WithIngest(&fakeIngest{err: errors.New("write locked")})

	_, _, err := e.Decide(context.Background(), "u1", &features.Observation{Mood: 2}, 2)
	if err != nil {
		t.Fatalf("ingest failure must not fail the decision: %v", err)
	}
	if tracker.records != 1 {
		t.Fatal("decision was not tracked")
	}
}

func TestQuickRecommendations(t *testing.T) {
	e := newTestEngine(lowMoodDoc(), &fakeTracker{})

	items := e.QuickRecommendations(context.Background(), 2, 8, 3, 4, 2)
	if len(items) != 1 || items[0].ToolID != "breathing_478" {
		t.Fatalf("quick items wrong: %+v", items)
	}
	if items[0].Reason != "mood is low" {
		t.Fatalf("reason missing: %+v", items[0])
	}
}

func TestQuickRecommendationsFallsBackToDefaults(t *testing.T) {
	e := newTestEngine(lowMoodDoc(), &fakeTracker{})

	items := e.QuickRecommendations(context.Background(), 8, 2, 8, 8, 2)
	if len(items) != 1 || items[0].ToolID != "gratitude_3" {
		t.Fatalf("defaults not served: %+v", items)
	}
}
