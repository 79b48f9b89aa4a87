package outcome

import (
	"time"

	"github.com/Goodman667/NeuraSense/internal/rules"
)

// #region status

// Status is the proximal-outcome state of a recommendation record.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusOpened    Status = "opened"
	StatusCompleted Status = "completed"
	StatusDismissed Status = "dismissed"
	StatusAbandoned Status = "abandoned"
)

// terminalStatuses are the four mutually exclusive end states, each
// reachable only from delivered.
var terminalStatuses = map[Status]bool{
	StatusOpened:    true,
	StatusCompleted: true,
	StatusDismissed: true,
	StatusAbandoned: true,
}

// Terminal reports whether s is a valid client-reported end state.
func (s Status) Terminal() bool {
	return terminalStatuses[s]
}

// #endregion status

// #region extras

// allowedExtras is the fixed allow-list of extra fields accepted on a status
// update. Unknown keys are dropped, not stored.
var allowedExtras = map[string]bool{
	"duration_sec": true,
	"post_mood":    true,
	"helpfulness":  true,
}

// filterExtras keeps only allow-listed numeric extras.
func filterExtras(extra map[string]any) map[string]float64 {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]float64)
	for k, v := range extra {
		if !allowedExtras[k] {
			continue
		}
		switch x := v.(type) {
		case float64:
			out[k] = x
		case float32:
			out[k] = float64(x)
		case int:
			out[k] = float64(x)
		case int64:
			out[k] = float64(x)
		}
	}
	return out
}

// #endregion extras

// #region record

// Record is one delivered recommendation and its proximal outcome.
// Records are append-only per user and mutated only by the tracker.
type Record struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	RuleID      string     `json:"rule_id"`
	ToolID      string     `json:"tool_id"`
	Tier        rules.Tier `json:"tier"`
	Priority    int        `json:"priority"`
	ContextJSON string     `json:"context_snapshot,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	EventAt     *time.Time `json:"event_at,omitempty"`
	DurationSec *float64   `json:"duration_sec,omitempty"`
	PostMood    *float64   `json:"post_mood,omitempty"`
	Helpfulness *float64   `json:"helpfulness,omitempty"`
}

// #endregion record

// #region stats

// Stats aggregates proximal outcomes for model evaluation.
type Stats struct {
	Total          int      `json:"total"`
	Resolved       int      `json:"resolved"` // records that left delivered
	Completed      int      `json:"completed"`
	Dismissed      int      `json:"dismissed"`
	CompletionRate float64  `json:"completion_rate"`
	AvgPostMood    *float64 `json:"avg_post_mood,omitempty"`
}

// #endregion stats
