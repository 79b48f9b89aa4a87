package condition

import "strings"

// #region evaluate

// Evaluate walks the condition tree against the context. It never fails:
// unresolvable fields, unknown operators, type mismatches, and over-deep
// trees all evaluate false. Pure function, safe for concurrent use.
func Evaluate(n *Node, ctx Context) bool {
	v, ok := evaluate(n, ctx, 0)
	return v && ok
}

// evaluate returns the node's value plus whether evaluation stayed inside the
// depth guard. A tripped guard poisons the whole tree to false; it must not
// be folded into the boolean, or a NOT above the cut would invert it back to
// true.
func evaluate(n *Node, ctx Context, depth int) (value, withinDepth bool) {
	if n == nil {
		return false, true
	}
	if depth > MaxDepth {
		return false, false
	}

	// AND is vacuously true over an empty list, OR vacuously false. Presence
	// of the list (non-nil, even when empty) marks the combinator.
	if n.All != nil {
		for i := range n.All {
			v, ok := evaluate(&n.All[i], ctx, depth+1)
			if !ok {
				return false, false
			}
			if !v {
				return false, true
			}
		}
		return true, true
	}
	if n.Any != nil {
		for i := range n.Any {
			v, ok := evaluate(&n.Any[i], ctx, depth+1)
			if !ok {
				return false, false
			}
			if v {
				return true, true
			}
		}
		return false, true
	}
	if n.Not != nil {
		v, ok := evaluate(n.Not, ctx, depth+1)
		if !ok {
			return false, false
		}
		return !v, true
	}

	// Leaf comparison.
	if n.Field == "" || n.Op == "" {
		return false, true
	}
	actual, found := resolveField(ctx, n.Field)
	if !found || actual == nil {
		return false, true
	}
	return compare(actual, n.Op, n.Value), true
}

// #endregion evaluate

// #region resolve-field

// resolveField walks a dotted path ("checkin.mood") through the context.
// Any absent segment resolves to (nil, false).
func resolveField(ctx Context, field string) (any, bool) {
	parts := strings.Split(field, ".")
	if len(parts) < 2 {
		return nil, false
	}
	ns, ok := ctx[parts[0]]
	if !ok {
		return nil, false
	}
	var cur any
	cur, ok = ns[parts[1]]
	if !ok {
		return nil, false
	}
	for _, p := range parts[2:] {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// #endregion resolve-field

// #region compare

// compare applies op to the resolved context value and the rule literal.
func compare(actual any, op Op, value any) bool {
	switch op {
	case OpLT, OpLE, OpGT, OpGE:
		a, aok := toFloat(actual)
		b, bok := toFloat(value)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpLT:
			return a < b
		case OpLE:
			return a <= b
		case OpGT:
			return a > b
		default:
			return a >= b
		}
	case OpEQ:
		return equalValues(actual, value)
	case OpNE:
		return !equalValues(actual, value)
	case OpIn:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if equalValues(actual, item) {
				return true
			}
		}
		return false
	case OpBetween:
		pair, ok := value.([]any)
		if !ok || len(pair) != 2 {
			return false
		}
		a, aok := toFloat(actual)
		lo, lok := toFloat(pair[0])
		hi, hok := toFloat(pair[1])
		if !aok || !lok || !hok {
			return false
		}
		return lo <= a && a <= hi
	default:
		return false
	}
}

// equalValues compares numerically when both sides are numbers, otherwise by
// direct equality, so a rule literal 5 matches a context value 5.0.
func equalValues(a, b any) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return a == b
}

// toFloat normalizes the numeric types produced by YAML decoding, JSON
// decoding, and context construction.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}

// #endregion compare
