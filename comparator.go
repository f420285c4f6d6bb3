package lokidb

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ordering is the three-way result of Compare, the single source of truth
// for every sorted structure in the package (BinaryIndex, simplesort,
// compoundsort, and plain sort all derive lt/gt/aeq from it).
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// tier buckets a value into the coarse ordering required by spec §4.1:
// undefined/null < NaN < false < true < "" < everything else.
func tier(v interface{}) int {
	if v == nil {
		return 0
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return 1
	}
	if f, ok := v.(float32); ok && math.IsNaN(float64(f)) {
		return 1
	}
	if b, ok := v.(bool); ok {
		if !b {
			return 2
		}
		return 3
	}
	if s, ok := v.(string); ok && s == "" {
		return 4
	}
	return 5
}

// Compare implements the total order over heterogeneous values described in
// spec §4.1. It is deterministic and must be the only comparison primitive
// used by inserts, updates, removes and queries, or indices will drift out
// of sync with the data they describe.
func Compare(a, b interface{}) Ordering {
	ta, tb := tier(a), tier(b)
	if ta != tb {
		if ta < tb {
			return Less
		}
		return Greater
	}

	switch ta {
	case 0, 1, 2, 3, 4:
		// Same tier among the edge values is always equal: both null-like,
		// both NaN, both the same bool, or both the empty string.
		return Equal
	}

	if na, oka := toFiniteNumber(a); oka {
		if nb, okb := toFiniteNumber(b); okb {
			switch {
			case na < nb:
				return Less
			case na > nb:
				return Greater
			default:
				return Equal
			}
		}
	}

	sa, sb := toComparableString(a), toComparableString(b)
	switch {
	case sa < sb:
		return Less
	case sa > sb:
		return Greater
	default:
		return Equal
	}
}

// Lt reports whether a < b (eq == false) or a <= b (eq == true).
func Lt(a, b interface{}, eq bool) bool {
	c := Compare(a, b)
	if eq {
		return c != Greater
	}
	return c == Less
}

// Gt reports whether a > b (eq == false) or a >= b (eq == true).
func Gt(a, b interface{}, eq bool) bool {
	c := Compare(a, b)
	if eq {
		return c != Less
	}
	return c == Greater
}

// Aeq reports abstract equality: values that Compare treats as
// indistinguishable under the total order.
func Aeq(a, b interface{}) bool {
	return Compare(a, b) == Equal
}

// toFiniteNumber coerces a value to a finite float64, mirroring the
// "numeric coercion first" rule. Dates coerce through their Unix nanosecond
// value so chronological order falls out of the same numeric compare.
func toFiniteNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case time.Time:
		return float64(n.UnixNano()), true
	case primitive.DateTime:
		return float64(n.Time().UnixNano()), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			return f, !math.IsNaN(f) && !math.IsInf(f, 0)
		}
		return 0, false
	}
}

// toComparableString is the lexicographic fallback for values that cannot
// both coerce to a finite number, including ObjectIDs (compared through
// their hex form, which preserves byte order) and arbitrary structs.
func toComparableString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case primitive.ObjectID:
		return s.Hex()
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	case primitive.DateTime:
		return s.Time().UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
