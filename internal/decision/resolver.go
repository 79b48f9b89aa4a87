package decision

import (
	"sort"

	"github.com/Goodman667/NeuraSense/internal/catalog"
	"github.com/Goodman667/NeuraSense/internal/condition"
	"github.com/Goodman667/NeuraSense/internal/rules"
)

// #region types

// DefaultMaxResults is the result cap when the caller does not specify one.
const DefaultMaxResults = 2

// SelectedAction is one surfaced intervention with its provenance.
type SelectedAction struct {
	ID       string     `json:"id"`
	Reason   string     `json:"reason"`
	Name     string     `json:"name"`
	Icon     string     `json:"icon"`
	Category string     `json:"category"`
	RuleID   string     `json:"rule_id"`
	Tier     rules.Tier `json:"tier"`
	Priority int        `json:"priority"`
}

// Result is the full outcome of one decision point. Ephemeral: returned to
// the caller, with each selected action seeding a recommendation record.
type Result struct {
	Tools           []SelectedAction `json:"tools"`
	Task            *rules.Task      `json:"task,omitempty"`
	MatchedRules    []string         `json:"matched_rules"`
	ContextSnapshot map[string]any   `json:"context_snapshot"`
}

// Catalog resolves catalog identifiers to display metadata.
// *catalog.Repository satisfies it; a nil Catalog degrades to identifiers.
type Catalog interface {
	Lookup(id string) catalog.Entry
}

// #endregion types

// #region resolve

// candidate pairs a recommend action with its originating rule.
type candidate struct {
	action rules.Action
	rule   *rules.Rule
}

// Resolve runs every enabled rule against the context and selects up to
// maxResults distinct actions by (tier rank ascending, priority descending).
// With zero matches it substitutes the document's default action set and
// task. The sort is stable, so output order is deterministic for a fixed
// document and context; relative order of rules with identical tier and
// priority is unspecified across document edits.
func Resolve(ctx condition.Context, doc *rules.Document, cat Catalog, maxResults int) Result {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	var candidates []candidate
	for i := range doc.Rules {
		rule := &doc.Rules[i]
		if !rule.IsEnabled() {
			continue
		}
		if !condition.Evaluate(rule.Condition, ctx) {
			continue
		}
		for _, action := range rule.Actions {
			if action.Type != rules.ActionRecommendTool {
				continue
			}
			candidates = append(candidates, candidate{action: action, rule: rule})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].rule, candidates[j].rule
		if ri.Tier.Rank() != rj.Tier.Rank() {
			return ri.Tier.Rank() < rj.Tier.Rank()
		}
		return ri.Priority > rj.Priority
	})

	result := Result{
		MatchedRules:    []string{},
		ContextSnapshot: snapshotContext(ctx),
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		// The companion task comes from the first matching rule in sorted
		// order that specifies one, independent of action de-duplication.
		if result.Task == nil && c.rule.Task != nil {
			result.Task = c.rule.Task
		}
		if len(result.Tools) >= maxResults {
			continue
		}
		if seen[c.action.ToolID] {
			continue
		}
		seen[c.action.ToolID] = true

		result.Tools = append(result.Tools, selected(c.action, cat, c.rule.RuleID, c.rule.Tier, c.rule.Priority))
		if !contains(result.MatchedRules, c.rule.RuleID) {
			result.MatchedRules = append(result.MatchedRules, c.rule.RuleID)
		}
	}

	// Default path: only when nothing at all was collected.
	if len(result.Tools) == 0 {
		for _, da := range doc.DefaultActions {
			if len(result.Tools) >= maxResults {
				break
			}
			result.Tools = append(result.Tools, selected(da, cat, "default", rules.TierDefault, 0))
		}
		result.Task = doc.DefaultTask
	}

	return result
}

// #endregion resolve

// #region helpers

func selected(a rules.Action, cat Catalog, ruleID string, tier rules.Tier, priority int) SelectedAction {
	entry := catalog.Entry{ID: a.ToolID, Title: a.ToolID}
	if cat != nil {
		entry = cat.Lookup(a.ToolID)
	}
	return SelectedAction{
		ID:       a.ToolID,
		Reason:   a.Reason,
		Name:     entry.Title,
		Icon:     entry.Icon,
		Category: entry.Category,
		RuleID:   ruleID,
		Tier:     tier,
		Priority: priority,
	}
}

// snapshotContext keeps the audit subset of the context persisted with each
// recommendation record.
func snapshotContext(ctx condition.Context) map[string]any {
	snap := map[string]any{}
	if checkin, ok := ctx["checkin"]; ok {
		snap["checkin"] = checkin
	}
	if trend, ok := ctx["trend"]; ok {
		snap["trend_direction"] = trend["direction"]
	}
	if tv, ok := ctx["time"]; ok {
		snap["hour"] = tv["hour"]
		snap["period"] = tv["period"]
	}
	return snap
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// #endregion helpers
