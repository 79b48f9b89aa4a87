package outcome

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Goodman667/NeuraSense/internal/decision"
	"github.com/Goodman667/NeuraSense/internal/rules"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS recommendation_log (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	rule_id       TEXT NOT NULL,
	tool_id       TEXT NOT NULL,
	tier          TEXT NOT NULL,
	priority      INTEGER NOT NULL,
	context_json  TEXT,
	status        TEXT NOT NULL DEFAULT 'delivered',
	created_at    TEXT NOT NULL,
	event_at      TEXT,
	duration_sec  REAL,
	post_mood     REAL,
	helpfulness   REAL
);

CREATE INDEX IF NOT EXISTS idx_recommendation_log_user
ON recommendation_log(user_id, created_at);
`

// #endregion schema

// #region tracker

// Tracker persists delivered recommendations and their proximal outcomes.
type Tracker struct {
	db  *sql.DB
	now func() time.Time
}

// NewTracker initializes the recommendation_log table on an open database.
func NewTracker(db *sql.DB) (*Tracker, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate recommendation log: %w", err)
	}
	return &Tracker{db: db, now: time.Now}, nil
}

// WithClock injects a deterministic clock for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// #endregion tracker

// #region record

// Record persists one delivered recommendation per selected action and
// returns the freshly minted identifiers, in result order.
func (t *Tracker) Record(ctx context.Context, userID string, result decision.Result) ([]string, error) {
	contextJSON, err := json.Marshal(result.ContextSnapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal context snapshot: %w", err)
	}
	now := t.now().UTC()

	ids := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		id := uuid.New().String()
		_, err := t.db.ExecContext(ctx,
			`INSERT INTO recommendation_log
			 (id, user_id, rule_id, tool_id, tier, priority, context_json, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, userID, tool.RuleID, tool.ID, string(tool.Tier), tool.Priority,
			string(contextJSON), string(StatusDelivered), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return ids, fmt.Errorf("insert recommendation: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// #endregion record

// #region update-status

// UpdateStatus moves a delivered record into one of the four terminal
// states, stamping the event time and storing allow-listed extras. An
// unknown id, a record owned by another user, or a record no longer in
// delivered state is a silent no-op: callers cannot distinguish those cases
// from success, by contract. Only an unrecognized status value is an error.
func (t *Tracker) UpdateStatus(ctx context.Context, id, userID string, status Status, extra map[string]any) error {
	if !status.Terminal() {
		return fmt.Errorf("unrecognized status %q", status)
	}

	extras := filterExtras(extra)
	var durationSec, postMood, helpfulness any
	if v, ok := extras["duration_sec"]; ok {
		durationSec = v
	}
	if v, ok := extras["post_mood"]; ok {
		postMood = v
	}
	if v, ok := extras["helpfulness"]; ok {
		helpfulness = v
	}

	_, err := t.db.ExecContext(ctx,
		`UPDATE recommendation_log
		 SET status = ?,
		     event_at = ?,
		     duration_sec = COALESCE(?, duration_sec),
		     post_mood = COALESCE(?, post_mood),
		     helpfulness = COALESCE(?, helpfulness)
		 WHERE id = ? AND user_id = ? AND status = ?`,
		string(status), t.now().UTC().Format(time.RFC3339Nano),
		durationSec, postMood, helpfulness,
		id, userID, string(StatusDelivered),
	)
	if err != nil {
		return fmt.Errorf("update recommendation status: %w", err)
	}
	return nil
}

// #endregion update-status

// #region queries

// Get fetches a single record by id, regardless of owner. Internal use and
// tests; the HTTP surface never exposes it.
func (t *Tracker) Get(ctx context.Context, id string) (*Record, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT id, user_id, rule_id, tool_id, tier, priority, context_json, status,
		        created_at, event_at, duration_sec, post_mood, helpfulness
		 FROM recommendation_log WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation: %w", err)
	}
	return &rec, nil
}

// History returns the user's most recent records, newest first.
func (t *Tracker) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, user_id, rule_id, tool_id, tier, priority, context_json, status,
		        created_at, event_at, duration_sec, post_mood, helpfulness
		 FROM recommendation_log
		 WHERE user_id = ?
		 ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats aggregates proximal outcomes; an empty userID aggregates all users.
func (t *Tracker) Stats(ctx context.Context, userID string) (Stats, error) {
	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status != 'delivered' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'dismissed' THEN 1 ELSE 0 END),
			AVG(CASE WHEN status = 'completed' THEN post_mood END)
		FROM recommendation_log`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}

	var s Stats
	var resolved, completed, dismissed sql.NullInt64
	var avgPostMood sql.NullFloat64
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Total, &resolved, &completed, &dismissed, &avgPostMood,
	); err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	s.Resolved = int(resolved.Int64)
	s.Completed = int(completed.Int64)
	s.Dismissed = int(dismissed.Int64)
	if s.Resolved > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Resolved)
	}
	if avgPostMood.Valid {
		v := avgPostMood.Float64
		s.AvgPostMood = &v
	}
	return s, nil
}

// #endregion queries

// #region scan

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var tier, status, createdStr string
	var contextJSON, eventStr sql.NullString
	var durationSec, postMood, helpfulness sql.NullFloat64

	if err := row.Scan(&rec.ID, &rec.UserID, &rec.RuleID, &rec.ToolID, &tier, &rec.Priority,
		&contextJSON, &status, &createdStr, &eventStr, &durationSec, &postMood, &helpfulness); err != nil {
		return Record{}, err
	}
	rec.Tier = rules.Tier(tier)
	rec.Status = Status(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if contextJSON.Valid {
		rec.ContextJSON = contextJSON.String
	}
	if eventStr.Valid {
		et, _ := time.Parse(time.RFC3339Nano, eventStr.String)
		rec.EventAt = &et
	}
	if durationSec.Valid {
		v := durationSec.Float64
		rec.DurationSec = &v
	}
	if postMood.Valid {
		v := postMood.Float64
		rec.PostMood = &v
	}
	if helpfulness.Valid {
		v := helpfulness.Float64
		rec.Helpfulness = &v
	}
	return rec, nil
}

// #endregion scan
