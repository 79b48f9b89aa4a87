package tailoring

import (
	"context"
	"math"
	"time"

	"github.com/Goodman667/NeuraSense/internal/condition"
	"github.com/Goodman667/NeuraSense/internal/features"
	"github.com/Goodman667/NeuraSense/internal/logging"
)

// #region defaults

const (
	// NeutralScale is the documented default for every checkin indicator
	// (1-10 scales) when no current observation exists.
	NeutralScale = 5.0

	// NoCompletionSentinel is the documented "days since last completion"
	// value when the user has never completed anything, chosen large so
	// between/> comparisons behave predictably.
	NoCompletionSentinel = 999

	// TrendWindow is the trailing window for the trend namespace.
	TrendWindow = 7 * 24 * time.Hour

	// CheckinFreshness bounds how old a stored check-in may be and still
	// stand in for a request that carries none.
	CheckinFreshness = 24 * time.Hour

	// slopeDeadBand is the symmetric band around zero inside which the
	// trend direction reads "stable".
	slopeDeadBand = 0.1
)

// #endregion defaults

// #region builder

// Builder assembles the tailoring-variable context for one decision request.
// The context is rebuilt fresh per request and owned by that request.
type Builder struct {
	observations features.ObservationSource
	completions  features.CompletionSource
	clock        func() time.Time
}

// NewBuilder wires the feature sources. clock may be nil (wall clock); tests
// inject a fixed clock for determinism.
func NewBuilder(obs features.ObservationSource, comps features.CompletionSource, clock func() time.Time) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{observations: obs, completions: comps, clock: clock}
}

// Build produces the full context for userID. current is the observation
// driving this decision point (usually the check-in just submitted); when the
// request carries none, the user's most recent stored check-in within
// CheckinFreshness stands in, and only then do neutral defaults apply.
// Feature-source failures degrade the affected namespace only and never fail
// the build.
func (b *Builder) Build(ctx context.Context, userID string, current *features.Observation) condition.Context {
	now := b.clock()
	if current == nil && userID != "" {
		latest, err := b.observations.LatestObservation(ctx, userID, now.Add(-CheckinFreshness))
		if err != nil {
			logging.Warn().Str("user_id", userID).Err(err).Msg("[TAILOR] latest check-in unavailable, checkin defaults")
		} else {
			current = latest
		}
	}
	return condition.Context{
		"checkin":    checkinVars(current),
		"time":       timeVars(now),
		"trend":      b.trendVars(ctx, userID, now),
		"engagement": b.engagementVars(ctx, userID, now),
	}
}

// #endregion builder

// #region checkin

func checkinVars(obs *features.Observation) map[string]any {
	if obs == nil {
		return map[string]any{
			"mood":          NeutralScale,
			"stress":        NeutralScale,
			"energy":        NeutralScale,
			"sleep_quality": NeutralScale,
		}
	}
	return map[string]any{
		"mood":          obs.Mood,
		"stress":        obs.Stress,
		"energy":        obs.Energy,
		"sleep_quality": obs.SleepQuality,
	}
}

// #endregion checkin

// #region time

// timeVars is a pure function of the clock. Period boundaries: morning at 5,
// afternoon at 12, evening at 18, late_night at 23.
func timeVars(now time.Time) map[string]any {
	hour := now.Hour()

	var period string
	switch {
	case hour >= 5 && hour < 12:
		period = "morning"
	case hour >= 12 && hour < 18:
		period = "afternoon"
	case hour >= 18 && hour < 23:
		period = "evening"
	default:
		period = "late_night"
	}

	// Monday = 0 .. Sunday = 6.
	dayOfWeek := (int(now.Weekday()) + 6) % 7

	return map[string]any{
		"hour":        hour,
		"period":      period,
		"day_of_week": dayOfWeek,
		"is_weekend":  dayOfWeek >= 5,
	}
}

// #endregion time

// #region trend

func defaultTrend() map[string]any {
	return map[string]any{
		"mood_avg_7d":   NeutralScale,
		"stress_avg_7d": NeutralScale,
		"mood_slope":    0.0,
		"direction":     "stable",
	}
}

// trendVars computes rolling means and a coarse slope over the trailing
// 7 days. The slope compares the mean of the second half of the window to
// the first half, normalized by 10; fewer than four observations yield a
// slope of exactly 0 and direction "stable" (documented default, not an
// error).
func (b *Builder) trendVars(ctx context.Context, userID string, now time.Time) map[string]any {
	if userID == "" {
		return defaultTrend()
	}
	records, err := b.observations.Observations(ctx, userID, now.Add(-TrendWindow))
	if err != nil {
		logging.Warn().Str("user_id", userID).Err(err).Msg("[TAILOR] observation history unavailable, trend defaults")
		return defaultTrend()
	}
	if len(records) == 0 {
		return defaultTrend()
	}

	var moodSum, stressSum float64
	for _, r := range records {
		moodSum += r.Mood
		stressSum += r.Stress
	}
	n := len(records)
	moodAvg := moodSum / float64(n)
	stressAvg := stressSum / float64(n)

	slope := 0.0
	if n >= 4 {
		mid := n / 2
		var firstSum, secondSum float64
		for _, r := range records[:mid] {
			firstSum += r.Mood
		}
		for _, r := range records[mid:] {
			secondSum += r.Mood
		}
		slope = (secondSum/float64(n-mid) - firstSum/float64(mid)) / 10
	}

	direction := "stable"
	if slope < -slopeDeadBand {
		direction = "worsening"
	} else if slope > slopeDeadBand {
		direction = "improving"
	}

	return map[string]any{
		"mood_avg_7d":   round1(moodAvg),
		"stress_avg_7d": round1(stressAvg),
		"mood_slope":    round3(slope),
		"direction":     direction,
	}
}

// #endregion trend

// #region engagement

func defaultEngagement() map[string]any {
	return map[string]any{
		"days_since_last_completion": NoCompletionSentinel,
		"tools_completed_7d":         0,
		"last_tool_id":               nil,
		"last_tool_status":           nil,
	}
}

func (b *Builder) engagementVars(ctx context.Context, userID string, now time.Time) map[string]any {
	if userID == "" {
		return defaultEngagement()
	}
	last, err := b.completions.LatestCompletion(ctx, userID)
	if err != nil {
		logging.Warn().Str("user_id", userID).Err(err).Msg("[TAILOR] completion history unavailable, engagement defaults")
		return defaultEngagement()
	}
	if last == nil {
		return defaultEngagement()
	}

	recent, err := b.completions.Completions(ctx, userID, now.Add(-TrendWindow))
	if err != nil {
		logging.Warn().Str("user_id", userID).Err(err).Msg("[TAILOR] windowed completions unavailable, engagement defaults")
		return defaultEngagement()
	}

	daysSince := int(now.Sub(last.CreatedAt).Hours() / 24)
	if daysSince < 0 {
		daysSince = 0
	}

	return map[string]any{
		"days_since_last_completion": daysSince,
		"tools_completed_7d":         len(recent),
		"last_tool_id":               last.ToolID,
		"last_tool_status":           "completed",
	}
}

// #endregion engagement

// #region helpers

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// #endregion helpers
