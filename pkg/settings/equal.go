package settings

import "reflect"

// DeepEqual compares two setting values. Booleans, strings and numbers
// compare by value (numbers across int/float representations, since
// values round-trip through JSON), objects compare recursively with
// order-independent keys, slices element-wise. nil only equals nil, so
// an undetermined value never equals false.
func DeepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !DeepEqual(ae, be) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// MatchesType reports whether a runtime value satisfies a declared
// setting type. nil passes for every type: it is the explicit
// "undetermined" marker produced by heuristic extraction.
func MatchesType(t Type, v any) bool {
	if v == nil {
		return true
	}
	switch t {
	case TypeToggle:
		_, ok := v.(bool)
		return ok
	case TypeRadio, TypeSelect, TypeText:
		_, ok := v.(string)
		return ok
	}
	return false
}
