package features

import (
	"context"
	"time"
)

// #region observation

// Observation is one check-in record: the raw material for the checkin and
// trend tailoring namespaces. Indicator fields use the app's 1-10 scales.
type Observation struct {
	UserID       string    `json:"user_id"`
	Mood         float64   `json:"mood"`
	Stress       float64   `json:"stress"`
	Energy       float64   `json:"energy"`
	SleepQuality float64   `json:"sleep_quality"`
	CreatedAt    time.Time `json:"created_at"`
}

// #endregion observation

// #region completion

// Completion is one finished intervention, feeding the engagement namespace.
type Completion struct {
	UserID    string    `json:"user_id"`
	ToolID    string    `json:"tool_id"`
	CreatedAt time.Time `json:"created_at"`
}

// #endregion completion

// #region sources

// ObservationSource is the read contract the context builder consumes for
// check-in data. Implementations return empty results, not errors, when no
// data exists.
type ObservationSource interface {
	// LatestObservation returns the user's most recent observation at or
	// after since, or nil when there is none.
	LatestObservation(ctx context.Context, userID string, since time.Time) (*Observation, error)
	// Observations returns the user's observations at or after since,
	// ordered oldest first.
	Observations(ctx context.Context, userID string, since time.Time) ([]Observation, error)
}

// CompletionSource is the read contract for intervention completions.
type CompletionSource interface {
	// Completions returns the user's completions at or after since, ordered
	// newest first.
	Completions(ctx context.Context, userID string, since time.Time) ([]Completion, error)
	// LatestCompletion returns the user's most recent completion regardless
	// of window, or nil when the user has never completed anything.
	LatestCompletion(ctx context.Context, userID string) (*Completion, error)
}

// #endregion sources
