package lokidb

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OpTag identifies one member of the closed set of query operators from
// spec §4.2. It is a tagged variant, not a runtime-resolvable callable
// table: evalOp dispatches on it with a switch so the query compiler can
// statically decide index eligibility (see IndexEligible).
type OpTag string

const (
	OpEq            OpTag = "$eq"
	OpAeq           OpTag = "$aeq"
	OpNe            OpTag = "$ne"
	OpDteq          OpTag = "$dteq"
	OpGt            OpTag = "$gt"
	OpGte           OpTag = "$gte"
	OpLt            OpTag = "$lt"
	OpLte           OpTag = "$lte"
	OpJgt           OpTag = "$jgt"
	OpJgte          OpTag = "$jgte"
	OpJlt           OpTag = "$jlt"
	OpJlte          OpTag = "$jlte"
	OpBetween       OpTag = "$between"
	OpJbetween      OpTag = "$jbetween"
	OpIn            OpTag = "$in"
	OpNin           OpTag = "$nin"
	OpKeyin         OpTag = "$keyin"
	OpNkeyin        OpTag = "$nkeyin"
	OpDefinedin     OpTag = "$definedin"
	OpUndefinedin   OpTag = "$undefinedin"
	OpRegex         OpTag = "$regex"
	OpContainsStr   OpTag = "$containsString"
	OpContains      OpTag = "$contains"
	OpContainsAny   OpTag = "$containsAny"
	OpContainsNone  OpTag = "$containsNone"
	OpElemMatch     OpTag = "$elemMatch"
	OpType          OpTag = "$type"
	OpFinite        OpTag = "$finite"
	OpSize          OpTag = "$size"
	OpLen           OpTag = "$len"
	OpWhere         OpTag = "$where"
	OpExists        OpTag = "$exists"
	OpNot           OpTag = "$not"
	OpAnd           OpTag = "$and"
	OpOr            OpTag = "$or"
)

// indexEligibleOps is the subset of operators the query planner may service
// straight from a BinaryIndex via calculateRange, per spec §4.2.
var indexEligibleOps = map[OpTag]bool{
	OpEq: true, OpAeq: true, OpDteq: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpBetween: true,
}

// IndexEligible reports whether op may be serviced from a BinaryIndex.
func IndexEligible(op OpTag) bool {
	return indexEligibleOps[op]
}

// evalOp evaluates a leaf (non-clause) operator against a single document
// value. Clause-level constructs ($not, $and, $or, $where, $elemMatch's
// outer wiring) live in query.go, since they operate over nested clauses
// or whole records rather than a single scalar.
func evalOp(op OpTag, value, query interface{}) bool {
	switch op {
	case OpEq, OpAeq:
		return Aeq(value, query)
	case OpNe:
		return !Aeq(value, query)
	case OpDteq:
		return Aeq(toTime(value), toTime(query))
	case OpGt:
		return Gt(value, query, false)
	case OpGte:
		return Gt(value, query, true)
	case OpLt:
		return Lt(value, query, false)
	case OpLte:
		return Lt(value, query, true)
	case OpJgt:
		return jcompare(value, query) > 0
	case OpJgte:
		return jcompare(value, query) >= 0
	case OpJlt:
		return jcompare(value, query) < 0
	case OpJlte:
		return jcompare(value, query) <= 0
	case OpBetween:
		lo, hi, ok := betweenBounds(query)
		return ok && Gt(value, lo, true) && Lt(value, hi, true)
	case OpJbetween:
		lo, hi, ok := betweenBounds(query)
		return ok && jcompare(value, lo) >= 0 && jcompare(value, hi) <= 0
	case OpIn:
		for _, v := range toSlice(query) {
			if Aeq(value, v) {
				return true
			}
		}
		return false
	case OpNin:
		for _, v := range toSlice(query) {
			if Aeq(value, v) {
				return false
			}
		}
		return true
	case OpKeyin:
		return keyLookup(query, value, true)
	case OpNkeyin:
		return !keyLookup(query, value, true)
	case OpDefinedin:
		return keyLookup(query, value, true)
	case OpUndefinedin:
		return keyLookup(query, value, false)
	case OpRegex:
		return matchRegex(value, query)
	case OpContainsStr:
		s, ok := value.(string)
		sub, ok2 := query.(string)
		return ok && ok2 && strings.Contains(s, sub)
	case OpContains:
		return contains(value, query)
	case OpContainsAny:
		for _, v := range toSlice(query) {
			if contains(value, v) {
				return true
			}
		}
		return false
	case OpContainsNone:
		for _, v := range toSlice(query) {
			if contains(value, v) {
				return false
			}
		}
		return true
	case OpType:
		return bsonTypeName(value) == query
	case OpFinite:
		_, ok := toFiniteNumber(value)
		want, _ := query.(bool)
		return ok == want
	case OpSize:
		n, ok := sliceLen(value)
		return ok && int64(n) == toInt64(query)
	case OpLen:
		s, ok := value.(string)
		return ok && int64(len(s)) == toInt64(query)
	case OpExists:
		want, _ := query.(bool)
		return (value != nil) == want
	}
	return false
}

// betweenBounds extracts the [lo, hi] pair from a $between/$jbetween query
// value, which may be a two-element slice or array.
func betweenBounds(query interface{}) (lo, hi interface{}, ok bool) {
	s := toSlice(query)
	if len(s) != 2 {
		return nil, nil, false
	}
	return s[0], s[1], true
}

// keyLookup implements $keyin/$nkeyin/$definedin/$undefinedin: value is
// used as a key into the query map/array, reporting whether it is present
// (wantDefined == true) or absent.
func keyLookup(query, value interface{}, wantDefined bool) bool {
	key, ok := value.(string)
	if !ok {
		return !wantDefined
	}
	switch q := query.(type) {
	case bson.M:
		_, present := q[key]
		return present == wantDefined
	case map[string]interface{}:
		_, present := q[key]
		return present == wantDefined
	case []interface{}:
		for _, v := range q {
			if s, ok := v.(string); ok && s == key {
				return wantDefined
			}
		}
		return !wantDefined
	}
	return !wantDefined
}

func matchRegex(value, query interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	var pattern string
	switch q := query.(type) {
	case string:
		pattern = q
	case *regexp.Regexp:
		return q.MatchString(s)
	default:
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// contains implements $contains for both strings (substring/element) and
// arrays (element membership using abstract equality).
func contains(value, needle interface{}) bool {
	switch v := value.(type) {
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(v, s)
	default:
		for _, v := range toSlice(value) {
			if Aeq(v, needle) {
				return true
			}
		}
		return false
	}
}

func toSlice(v interface{}) []interface{} {
	switch s := v.(type) {
	case []interface{}:
		return s
	case primitive.A:
		return []interface{}(s)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return []interface{}{v}
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
}

func sliceLen(v interface{}) (int, bool) {
	switch s := v.(type) {
	case []interface{}:
		return len(s), true
	case primitive.A:
		return len(s), true
	case string:
		return len(s), true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return rv.Len(), true
		}
		return 0, false
	}
}

func toInt64(v interface{}) int64 {
	n, _ := toFiniteNumber(v)
	return int64(n)
}

func toTime(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	default:
		return v
	}
}

// jcompare implements the $j* family without Compare's tiered ordering:
// two values that toFiniteNumber accepts (numeric strings included) compare
// numerically, two strings compare lexically, and any other pair is equal.
func jcompare(a, b interface{}) int {
	if fa, oka := toFiniteNumber(a); oka {
		if fb, okb := toFiniteNumber(b); okb {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb)
	}
	return 0
}

// bsonTypeName classifies value the way $type expects: "null", "boolean",
// "number", "string", "array", "object", "date".
func bsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case bson.M, map[string]interface{}:
		return "object"
	case []interface{}, primitive.A:
		return "array"
	case primitive.DateTime, time.Time:
		return "date"
	default:
		if _, ok := toFiniteNumber(v); ok {
			return "number"
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return "array"
		case reflect.Map, reflect.Struct:
			return "object"
		}
		return "unknown"
	}
}
