package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Goodman667/NeuraSense/internal/decision"
	"github.com/Goodman667/NeuraSense/internal/features"
	"github.com/Goodman667/NeuraSense/internal/logging"
	"github.com/Goodman667/NeuraSense/internal/rules"
	"github.com/Goodman667/NeuraSense/internal/tailoring"
)

// #region contracts

// ErrTrackingUnavailable signals that a decision was made but its
// recommendation records could not be written. The decision result is still
// valid and should be served; only status reporting is degraded.
var ErrTrackingUnavailable = errors.New("recommendation tracking unavailable")

// RuleSource yields the current rule snapshot. *rules.Repository satisfies it.
type RuleSource interface {
	Snapshot() *rules.Snapshot
}

// Tracker persists delivered recommendations. *outcome.Tracker satisfies it.
type Tracker interface {
	Record(ctx context.Context, userID string, result decision.Result) ([]string, error)
}

// ObservationRecorder ingests the check-in driving a decision so it feeds
// future trend windows. *features.Store satisfies it.
type ObservationRecorder interface {
	RecordObservation(ctx context.Context, obs features.Observation) error
}

// #endregion contracts

// #region engine

// Engine ties the context builder, rule snapshot, catalog and tracker into
// the decision entrypoints the API exposes.
type Engine struct {
	builder *tailoring.Builder
	rules   RuleSource
	catalog decision.Catalog
	tracker Tracker
	ingest  ObservationRecorder
}

func New(builder *tailoring.Builder, src RuleSource, cat decision.Catalog, tracker Tracker) *Engine {
	return &Engine{builder: builder, rules: src, catalog: cat, tracker: tracker}
}

// WithIngest enables persisting the submitted check-in alongside the
// decision. Ingestion failure is logged and never blocks the decision.
func (e *Engine) WithIngest(rec ObservationRecorder) *Engine {
	e.ingest = rec
	return e
}

// #endregion engine

// #region decide

// Decide runs one decision point for userID. obs is the check-in submitted
// with the request (nil allowed: context falls back to neutral defaults).
// A tracking write failure returns the decision together with
// ErrTrackingUnavailable so the caller can still serve it.
func (e *Engine) Decide(ctx context.Context, userID string, obs *features.Observation, maxResults int) (decision.Result, []string, error) {
	if userID == "" {
		return decision.Result{}, nil, fmt.Errorf("user_id is required")
	}

	if e.ingest != nil && obs != nil {
		// The caller keeps ownership of obs; stamp a copy.
		ingested := *obs
		ingested.UserID = userID
		if err := e.ingest.RecordObservation(ctx, ingested); err != nil {
			logging.Warn().Str("user_id", userID).Err(err).Msg("[ENGINE] check-in ingestion failed")
		}
	}

	tctx := e.builder.Build(ctx, userID, obs)
	snap := e.rules.Snapshot()
	result := decision.Resolve(tctx, &snap.Document, e.catalog, maxResults)

	ids, err := e.tracker.Record(ctx, userID, result)
	if err != nil {
		logging.Error().Str("user_id", userID).Err(err).Msg("[ENGINE] recommendation tracking failed")
		return result, nil, ErrTrackingUnavailable
	}
	return result, ids, nil
}

// #endregion decide

// #region quick

// QuickItem is the minimal shape of an untracked recommendation.
type QuickItem struct {
	ToolID string `json:"tool_id"`
	Reason string `json:"reason"`
}

// QuickRecommendations resolves against the supplied indicators alone, with
// no user history and no tracking. Kept for callers that only have in-hand
// check-in values.
func (e *Engine) QuickRecommendations(ctx context.Context, mood, stress, energy, sleep float64, max int) []QuickItem {
	obs := &features.Observation{Mood: mood, Stress: stress, Energy: energy, SleepQuality: sleep}
	tctx := e.builder.Build(ctx, "", obs)
	snap := e.rules.Snapshot()
	result := decision.Resolve(tctx, &snap.Document, e.catalog, max)

	items := make([]QuickItem, 0, len(result.Tools))
	for _, tool := range result.Tools {
		items = append(items, QuickItem{ToolID: tool.ID, Reason: tool.Reason})
	}
	return items
}

// #endregion quick
