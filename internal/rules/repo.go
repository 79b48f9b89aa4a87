package rules

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Goodman667/NeuraSense/internal/logging"
)

// #region skipped

// Skipped records one rule rejected during a load, for logging and rulecheck.
type Skipped struct {
	RuleID string // may be empty when the id itself failed to decode
	Index  int
	Reason string
}

// #endregion skipped

// #region decode

// rawDocument defers per-rule decoding so one malformed rule cannot fail the
// whole document.
type rawDocument struct {
	Rules          []yaml.Node `yaml:"rules"`
	DefaultActions []Action    `yaml:"default_actions"`
	DefaultTask    *Task       `yaml:"default_task"`
}

// Decode parses a rule document, skipping individually malformed rules.
// The returned Document keeps source order for the rules that survived.
func Decode(data []byte) (Document, []Skipped, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, nil, fmt.Errorf("parse rule document: %w", err)
	}

	doc := Document{
		Rules:          make([]Rule, 0, len(raw.Rules)),
		DefaultActions: raw.DefaultActions,
		DefaultTask:    raw.DefaultTask,
	}
	var skipped []Skipped

	for i := range raw.Rules {
		var r Rule
		if err := raw.Rules[i].Decode(&r); err != nil {
			skipped = append(skipped, Skipped{Index: i, Reason: err.Error()})
			continue
		}
		if err := validateRule(&r); err != nil {
			skipped = append(skipped, Skipped{RuleID: r.RuleID, Index: i, Reason: err.Error()})
			continue
		}
		doc.Rules = append(doc.Rules, r)
	}

	return doc, skipped, nil
}

// validateRule enforces the structural invariants a rule must satisfy to be
// evaluable. Tier may be empty (treated as DEFAULT) but not unknown.
func validateRule(r *Rule) error {
	if r.RuleID == "" {
		return fmt.Errorf("missing rule_id")
	}
	if r.Tier == "" {
		r.Tier = TierDefault
	}
	if !r.Tier.Valid() {
		return fmt.Errorf("unknown tier %q", r.Tier)
	}
	if r.Condition == nil {
		return fmt.Errorf("missing condition")
	}
	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	for i := range r.Actions {
		if r.Actions[i].Type == "" {
			r.Actions[i].Type = ActionRecommendTool
		}
		if r.Actions[i].Type == ActionRecommendTool && r.Actions[i].ToolID == "" {
			return fmt.Errorf("action %d missing tool_id", i)
		}
	}
	return nil
}

// #endregion decode

// #region repository

// Snapshot is one fully parsed state of the rule source. Snapshots are
// immutable once published.
type Snapshot struct {
	Document
	ModTime  time.Time
	LoadedAt time.Time
}

// Repository serves parsed rule snapshots and hot-reloads the backing file
// when its modification time changes. Readers always see a complete
// snapshot; a stale read during refresh is acceptable, a partial one is not.
type Repository struct {
	path string

	snap      atomic.Pointer[Snapshot]
	refreshMu sync.Mutex
}

// NewRepository creates a repository over the given rules file and performs
// the initial load. A missing or unparseable file is not fatal: the
// repository starts with an empty document and keeps retrying on Snapshot.
func NewRepository(path string) *Repository {
	r := &Repository{path: path}
	if err := r.refresh(); err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("[RULES] initial load failed, starting empty")
		r.snap.Store(&Snapshot{LoadedAt: time.Now()})
	}
	return r
}

// Snapshot returns the current parsed document, refreshing first when the
// file's mtime has moved. Refresh errors keep the previous snapshot.
func (r *Repository) Snapshot() *Snapshot {
	cur := r.snap.Load()

	info, err := os.Stat(r.path)
	if err != nil {
		return cur
	}
	if cur != nil && info.ModTime().Equal(cur.ModTime) {
		return cur
	}

	if err := r.refresh(); err != nil {
		logging.Warn().Str("path", r.path).Err(err).Msg("[RULES] refresh failed, serving stale snapshot")
		return r.snap.Load()
	}
	return r.snap.Load()
}

// refresh re-reads and re-parses the file, then swaps the snapshot pointer.
// Serialized so concurrent decision requests trigger at most one parse.
func (r *Repository) refresh() error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("stat rules file: %w", err)
	}
	// Another request may have refreshed while we waited on the lock.
	if cur := r.snap.Load(); cur != nil && info.ModTime().Equal(cur.ModTime) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	doc, skipped, err := Decode(data)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logging.Warn().
			Str("rule_id", s.RuleID).
			Int("index", s.Index).
			Str("reason", s.Reason).
			Msg("[RULES] skipped malformed rule")
	}

	r.snap.Store(&Snapshot{
		Document: doc,
		ModTime:  info.ModTime(),
		LoadedAt: time.Now(),
	})
	logging.Info().
		Int("rules", len(doc.Rules)).
		Int("skipped", len(skipped)).
		Str("path", r.path).
		Msg("[RULES] loaded rule document")
	return nil
}

// #endregion repository
