package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// ConditionEvaluator decides branch and loop conditions from the active
// flow's slot values. A custom evaluator can be injected via
// WithConditionEvaluator; the default covers slot truthiness, negation,
// equality against literals, and numeric comparisons.
type ConditionEvaluator func(condition string, slots map[string]any) (bool, error)

var comparisonOps = []string{"==", "!=", "<=", ">=", "<", ">"}

// defaultEvaluator evaluates conditions of the form:
//
//	slot            truthy check
//	!slot           negated truthy check
//	slot == value   equality (string, number, bool literals)
//	slot != value
//	slot <  value   numeric comparison
//	slot <= value, slot > value, slot >= value
func defaultEvaluator(condition string, slots map[string]any) (bool, error) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return false, fmt.Errorf("empty condition")
	}

	for _, op := range comparisonOps {
		idx := strings.Index(cond, op)
		if idx < 0 {
			continue
		}
		lhs := strings.TrimSpace(cond[:idx])
		rhs := strings.TrimSpace(cond[idx+len(op):])
		if lhs == "" || rhs == "" {
			return false, fmt.Errorf("malformed condition %q", condition)
		}
		return compare(slots[lhs], parseLiteral(rhs), op)
	}

	if name, negated := strings.CutPrefix(cond, "!"); negated {
		return !truthy(slots[strings.TrimSpace(name)]), nil
	}
	return truthy(slots[cond]), nil
}

func compare(left, right any, op string) (bool, error) {
	switch op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return false, fmt.Errorf("operator %q requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// looseEqual compares across the value kinds a slot can hold after a
// JSON round trip: numbers compare numerically, everything else by
// string rendering.
func looseEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseLiteral(raw string) any {
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1]
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
