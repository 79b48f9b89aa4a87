package rules

import (
	"github.com/Goodman667/NeuraSense/internal/condition"
)

// #region tier

// Tier is the fixed urgency class used as the primary rule-priority axis,
// ordered most to least urgent.
type Tier string

const (
	TierCrisis      Tier = "CRISIS"
	TierAcute       Tier = "ACUTE"
	TierPreventive  Tier = "PREVENTIVE"
	TierMaintenance Tier = "MAINTENANCE"
	TierDefault     Tier = "DEFAULT"
)

// tierRank maps tiers to sort rank; CRISIS outranks everything.
var tierRank = map[Tier]int{
	TierCrisis:      0,
	TierAcute:       1,
	TierPreventive:  2,
	TierMaintenance: 3,
	TierDefault:     4,
}

// Rank returns the tier's urgency rank, lower = more urgent.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return tierRank[TierDefault]
}

// Valid reports whether t is one of the five known tiers.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// #endregion tier

// #region action

// ActionRecommendTool is the action type that surfaces a catalog entry.
// Other action types are carried through the document but produce no
// candidates at resolution.
const ActionRecommendTool = "recommend_tool"

// Action is one candidate a rule recommends when its condition matches.
type Action struct {
	Type   string `yaml:"type" json:"type"`
	ToolID string `yaml:"tool_id" json:"tool_id"`
	Reason string `yaml:"reason" json:"reason"`
}

// #endregion action

// #region task

// Task is an optional companion micro-task attached to a rule.
type Task struct {
	Text   string `yaml:"text" json:"text"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// #endregion task

// #region rule

// Rule is one declarative decision rule from the rule source. Rules are
// read-only at decision time.
type Rule struct {
	RuleID    string          `yaml:"rule_id" json:"rule_id"`
	Enabled   *bool           `yaml:"enabled" json:"enabled"`
	Tier      Tier            `yaml:"tier" json:"tier"`
	Priority  int             `yaml:"priority" json:"priority"`
	Condition *condition.Node `yaml:"condition" json:"condition"`
	Actions   []Action        `yaml:"actions" json:"actions"`
	Task      *Task           `yaml:"task,omitempty" json:"task,omitempty"`
}

// IsEnabled treats an absent enabled flag as true.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// #endregion rule

// #region document

// Document is the full parsed rule source: the ordered rule list plus the
// fallback action set and task used when nothing matches.
type Document struct {
	Rules          []Rule   `yaml:"rules"`
	DefaultActions []Action `yaml:"default_actions"`
	DefaultTask    *Task    `yaml:"default_task"`
}

// #endregion document
