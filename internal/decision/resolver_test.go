package decision

import (
	"testing"

	"github.com/Goodman667/NeuraSense/internal/catalog"
	"github.com/Goodman667/NeuraSense/internal/condition"
	"github.com/Goodman667/NeuraSense/internal/rules"
)

func leaf(field string, op condition.Op, value any) *condition.Node {
	return &condition.Node{Field: field, Op: op, Value: value}
}

func rule(id string, tier rules.Tier, priority int, cond *condition.Node, toolIDs ...string) rules.Rule {
	actions := make([]rules.Action, len(toolIDs))
	for i, tid := range toolIDs {
		actions[i] = rules.Action{Type: rules.ActionRecommendTool, ToolID: tid, Reason: "because " + id}
	}
	return rules.Rule{RuleID: id, Tier: tier, Priority: priority, Condition: cond, Actions: actions}
}

func lateNightContext() condition.Context {
	return condition.Context{
		"checkin": {"mood": 2.0, "stress": 8.0},
		"time":    {"period": "late_night", "hour": 1},
		"trend":   {"direction": "stable"},
	}
}

var alwaysTrue = leaf("checkin.mood", condition.OpGE, 0)

func defaultDoc(ruleList ...rules.Rule) *rules.Document {
	return &rules.Document{
		Rules: ruleList,
		DefaultActions: []rules.Action{
			{Type: rules.ActionRecommendTool, ToolID: "breathing_478", Reason: "always available"},
			{Type: rules.ActionRecommendTool, ToolID: "gratitude_3", Reason: "always available"},
			{Type: rules.ActionRecommendTool, ToolID: "body_scan", Reason: "always available"},
		},
		DefaultTask: &rules.Task{Text: "note one good thing"},
	}
}

func TestTierOutranksPriority(t *testing.T) {
	doc := defaultDoc(
		rule("default_gratitude", rules.TierDefault, 100, alwaysTrue, "gratitude_3"),
		rule("acute_breathing", rules.TierAcute, 1,
			&condition.Node{All: []condition.Node{
				*leaf("checkin.mood", condition.OpLT, 3),
				*leaf("time.period", condition.OpEQ, "late_night"),
			}},
			"breathing_478"),
	)

	result := Resolve(lateNightContext(), doc, nil, 2)
	if len(result.Tools) != 2 {
		t.Fatalf("tools = %d, want 2", len(result.Tools))
	}
	if result.Tools[0].ID != "breathing_478" {
		t.Fatalf("ACUTE match must outrank DEFAULT regardless of priority, got %s first", result.Tools[0].ID)
	}
	if result.Tools[1].ID != "gratitude_3" {
		t.Fatalf("second tool = %s, want gratitude_3", result.Tools[1].ID)
	}
	if len(result.MatchedRules) != 2 {
		t.Fatalf("matched rules = %v", result.MatchedRules)
	}
}

func TestPriorityBreaksTiesWithinTier(t *testing.T) {
	doc := defaultDoc(
		rule("low", rules.TierPreventive, 1, alwaysTrue, "tool_low"),
		rule("high", rules.TierPreventive, 9, alwaysTrue, "tool_high"),
	)
	result := Resolve(lateNightContext(), doc, nil, 2)
	if result.Tools[0].ID != "tool_high" || result.Tools[1].ID != "tool_low" {
		t.Fatalf("priority ordering wrong: %+v", result.Tools)
	}
}

func TestDisabledRuleIsIgnored(t *testing.T) {
	disabled := false
	r := rule("off", rules.TierCrisis, 100, alwaysTrue, "crisis_tool")
	r.Enabled = &disabled
	doc := defaultDoc(r)

	result := Resolve(lateNightContext(), doc, nil, 2)
	for _, tool := range result.Tools {
		if tool.ID == "crisis_tool" {
			t.Fatal("disabled rule produced a candidate")
		}
	}
	if len(result.MatchedRules) != 0 {
		t.Fatalf("disabled rule recorded as matched: %v", result.MatchedRules)
	}
}

func TestDeDuplicationAcrossRules(t *testing.T) {
	doc := defaultDoc(
		rule("r1", rules.TierAcute, 5, alwaysTrue, "breathing_478"),
		rule("r2", rules.TierPreventive, 5, alwaysTrue, "breathing_478", "gratitude_3"),
	)
	result := Resolve(lateNightContext(), doc, nil, 5)

	seen := map[string]int{}
	for _, tool := range result.Tools {
		seen[tool.ID]++
	}
	if seen["breathing_478"] != 1 {
		t.Fatalf("duplicate catalog id in result: %+v", result.Tools)
	}
	// The surviving entry must carry the winning (more urgent) rule.
	if result.Tools[0].RuleID != "r1" || result.Tools[0].Tier != rules.TierAcute {
		t.Fatalf("winner provenance wrong: %+v", result.Tools[0])
	}
}

func TestMaxResultsCap(t *testing.T) {
	doc := defaultDoc(
		rule("r1", rules.TierAcute, 3, alwaysTrue, "a", "b", "c", "d"),
	)
	result := Resolve(lateNightContext(), doc, nil, 2)
	if len(result.Tools) != 2 {
		t.Fatalf("tools = %d, want capped at 2", len(result.Tools))
	}
}

func TestEmptyMatchYieldsDefaults(t *testing.T) {
	doc := defaultDoc(
		rule("never", rules.TierCrisis, 100, leaf("checkin.mood", condition.OpLT, -1), "crisis_tool"),
	)
	result := Resolve(lateNightContext(), doc, nil, 2)

	if len(result.Tools) != 2 {
		t.Fatalf("default tools = %d, want 2 (capped)", len(result.Tools))
	}
	if result.Tools[0].ID != "breathing_478" || result.Tools[1].ID != "gratitude_3" {
		t.Fatalf("default actions wrong: %+v", result.Tools)
	}
	if result.Tools[0].RuleID != "default" || result.Tools[0].Tier != rules.TierDefault {
		t.Fatalf("default provenance wrong: %+v", result.Tools[0])
	}
	if result.Task == nil || result.Task.Text != "note one good thing" {
		t.Fatalf("default task wrong: %+v", result.Task)
	}
	if len(result.MatchedRules) != 0 {
		t.Fatalf("matched rules should be empty, got %v", result.MatchedRules)
	}
}

func TestEmptyRuleSetYieldsDefaultsExactly(t *testing.T) {
	doc := defaultDoc()
	result := Resolve(lateNightContext(), doc, nil, 3)
	if len(result.Tools) != 3 {
		t.Fatalf("tools = %d, want full default set", len(result.Tools))
	}
	want := []string{"breathing_478", "gratitude_3", "body_scan"}
	for i, id := range want {
		if result.Tools[i].ID != id {
			t.Fatalf("default order wrong at %d: %+v", i, result.Tools)
		}
	}
}

func TestTaskFromFirstSortedMatchingRule(t *testing.T) {
	r1 := rule("acute", rules.TierAcute, 1, alwaysTrue, "a")
	r2 := rule("maintenance", rules.TierMaintenance, 9, alwaysTrue, "b")
	r2.Task = &rules.Task{Text: "maintenance task"}
	r3 := rule("crisis", rules.TierCrisis, 1, alwaysTrue, "c")
	r3.Task = &rules.Task{Text: "crisis task"}
	doc := defaultDoc(r1, r2, r3)

	result := Resolve(lateNightContext(), doc, nil, 1)
	if result.Task == nil || result.Task.Text != "crisis task" {
		t.Fatalf("task should come from the most urgent matching rule with one, got %+v", result.Task)
	}
}

func TestMatchedRuleListedOnlyWhenActionSurvives(t *testing.T) {
	doc := defaultDoc(
		rule("winner", rules.TierAcute, 5, alwaysTrue, "breathing_478"),
		rule("shadowed", rules.TierDefault, 5, alwaysTrue, "breathing_478"),
	)
	result := Resolve(lateNightContext(), doc, nil, 2)
	for _, id := range result.MatchedRules {
		if id == "shadowed" {
			t.Fatal("rule whose only action was de-duplicated away should not be listed")
		}
	}
	if !contains(result.MatchedRules, "winner") {
		t.Fatalf("winner missing from matched rules: %v", result.MatchedRules)
	}
}

type fakeCatalog map[string]catalog.Entry

func (f fakeCatalog) Lookup(id string) catalog.Entry {
	if e, ok := f[id]; ok {
		return e
	}
	return catalog.Entry{ID: id, Title: id}
}

func TestCatalogMetadataAndDegradation(t *testing.T) {
	cat := fakeCatalog{
		"breathing_478": {ID: "breathing_478", Title: "4-7-8 Breathing", Category: "relaxation", Icon: "wind"},
	}
	doc := defaultDoc(
		rule("r1", rules.TierAcute, 1, alwaysTrue, "breathing_478", "uncatalogued"),
	)
	result := Resolve(lateNightContext(), doc, cat, 2)

	if result.Tools[0].Name != "4-7-8 Breathing" || result.Tools[0].Icon != "wind" {
		t.Fatalf("catalog metadata missing: %+v", result.Tools[0])
	}
	if result.Tools[1].ID != "uncatalogued" || result.Tools[1].Name != "uncatalogued" {
		t.Fatalf("missing catalog entry should degrade to the id: %+v", result.Tools[1])
	}
}

func TestContextSnapshot(t *testing.T) {
	result := Resolve(lateNightContext(), defaultDoc(), nil, 2)
	snap := result.ContextSnapshot
	if snap["period"] != "late_night" || snap["hour"] != 1 {
		t.Fatalf("snapshot time fields wrong: %+v", snap)
	}
	if snap["trend_direction"] != "stable" {
		t.Fatalf("snapshot trend wrong: %+v", snap)
	}
	if _, ok := snap["checkin"]; !ok {
		t.Fatal("snapshot should carry the checkin namespace")
	}
}

func TestDeterministicOutput(t *testing.T) {
	doc := defaultDoc(
		rule("a", rules.TierPreventive, 5, alwaysTrue, "t1"),
		rule("b", rules.TierPreventive, 5, alwaysTrue, "t2"),
		rule("c", rules.TierAcute, 1, alwaysTrue, "t3"),
	)
	first := Resolve(lateNightContext(), doc, nil, 3)
	for i := 0; i < 10; i++ {
		again := Resolve(lateNightContext(), doc, nil, 3)
		if len(again.Tools) != len(first.Tools) {
			t.Fatal("non-deterministic result size")
		}
		for j := range again.Tools {
			if again.Tools[j].ID != first.Tools[j].ID {
				t.Fatalf("non-deterministic order on run %d: %+v vs %+v", i, again.Tools, first.Tools)
			}
		}
	}
}
