package arm

import (
	"fmt"
	"strconv"
)

// toInt64 coerces a database-side value to an integer. Drivers hand back
// int64 for integer columns, but []byte and string appear with some
// configurations.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		return toInt64(string(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// valueEq compares two database-side values after normalizing the
// representations different drivers use for the same column value.
func valueEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	na, nb := normalizeValue(a), normalizeValue(b)
	if na == nb {
		return true
	}
	// Cross-kind numeric comparison (e.g. int64 vs "42" from a text scan).
	if ia, aok := na.(int64); aok {
		if sb, bok := nb.(string); bok {
			return strconv.FormatInt(ia, 10) == sb
		}
	}
	if ib, bok := nb.(int64); bok {
		if sa, aok := na.(string); aok {
			return strconv.FormatInt(ib, 10) == sa
		}
	}
	return false
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case bool:
		if n {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

// keyString renders a primary-key value the way the translations table
// stores it.
func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.Itoa(k)
	}
	return fmt.Sprint(v)
}
