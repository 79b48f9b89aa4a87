package condition

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// #region op

// Op enumerates the comparison operators a leaf condition may use.
type Op string

const (
	OpLT      Op = "<"
	OpLE      Op = "<="
	OpGT      Op = ">"
	OpGE      Op = ">="
	OpEQ      Op = "=="
	OpNE      Op = "!="
	OpIn      Op = "in"
	OpBetween Op = "between"
)

// knownOps is the closed set of operators accepted at load time.
var knownOps = map[Op]bool{
	OpLT: true, OpLE: true, OpGT: true, OpGE: true,
	OpEQ: true, OpNE: true, OpIn: true, OpBetween: true,
}

// UnmarshalYAML rejects unknown operator strings when a rule document is
// decoded, so a typo in rule authoring fails the rule at load rather than
// silently matching nothing at decision time.
func (o *Op) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	op := Op(s)
	if !knownOps[op] {
		return fmt.Errorf("unknown operator %q", s)
	}
	*o = op
	return nil
}

// #endregion op

// #region context

// Context is the two-level tailoring-variable mapping conditions evaluate
// against: namespace ("checkin", "trend", "time", "engagement") to named
// scalar or boolean values.
type Context map[string]map[string]any

// #endregion context

// #region node

// Node is one node of an immutable condition expression tree: exactly one of
// All, Any, Not, or the leaf triple (Field, Op, Value) should be set. An
// empty-but-present all/any list is a valid combinator (vacuously true for
// all, false for any), so combinator detection is nil-ness, not length.
type Node struct {
	All []Node `yaml:"all,omitempty" json:"all,omitempty"`
	Any []Node `yaml:"any,omitempty" json:"any,omitempty"`
	Not *Node  `yaml:"not,omitempty" json:"not,omitempty"`

	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Op    Op     `yaml:"op,omitempty" json:"op,omitempty"`
	Value any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// IsLeaf reports whether the node is a field comparison rather than a combinator.
func (n *Node) IsLeaf() bool {
	return n.All == nil && n.Any == nil && n.Not == nil
}

// #endregion node

// #region validate

// MaxDepth bounds condition tree nesting, both at load time and as a
// defense-in-depth guard during evaluation.
const MaxDepth = 20

// Validate checks the tree structurally: leaf completeness, between/in value
// shapes, NOT arity, and the depth cap. A rule whose condition fails
// validation is skipped at load.
func (n *Node) Validate() error {
	return n.validate(0)
}

func (n *Node) validate(depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("condition exceeds max depth %d", MaxDepth)
	}

	combinators := 0
	if n.All != nil {
		combinators++
	}
	if n.Any != nil {
		combinators++
	}
	if n.Not != nil {
		combinators++
	}
	if combinators > 1 {
		return fmt.Errorf("node mixes combinators")
	}

	if combinators == 1 {
		if n.Field != "" || n.Op != "" || n.Value != nil {
			return fmt.Errorf("combinator node carries leaf fields")
		}
		for i := range n.All {
			if err := n.All[i].validate(depth + 1); err != nil {
				return err
			}
		}
		for i := range n.Any {
			if err := n.Any[i].validate(depth + 1); err != nil {
				return err
			}
		}
		if n.Not != nil {
			return n.Not.validate(depth + 1)
		}
		return nil
	}

	// Leaf node.
	if n.Field == "" {
		return fmt.Errorf("leaf condition missing field")
	}
	if n.Op == "" {
		return fmt.Errorf("leaf condition on %q missing op", n.Field)
	}
	if !knownOps[n.Op] {
		return fmt.Errorf("leaf condition on %q has unknown op %q", n.Field, n.Op)
	}
	switch n.Op {
	case OpBetween:
		pair, ok := n.Value.([]any)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("between on %q requires a two-element value", n.Field)
		}
	case OpIn:
		if _, ok := n.Value.([]any); !ok {
			return fmt.Errorf("in on %q requires a list value", n.Field)
		}
	default:
		if n.Value == nil {
			return fmt.Errorf("leaf condition on %q missing value", n.Field)
		}
	}
	return nil
}

// #endregion validate
