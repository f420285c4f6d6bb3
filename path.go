package lokidb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Path is a dot-notation property path compiled once at query-construction
// time into its segments, per spec §9 ("Dot-notation paths: compile once...
// cache the compiled form on the Resultset").
type Path struct {
	raw      string
	segments []string
}

// CompilePath splits "a.b.c" into its segments. A path with no dots
// compiles to a single segment, which is the common case and stays cheap.
func CompilePath(dotted string) Path {
	return Path{raw: dotted, segments: strings.Split(dotted, ".")}
}

func (p Path) String() string { return p.raw }

// Match implements the recursive array-aware sub-scan from spec §4.5: for
// each path element, if the current value is an array, the predicate is
// satisfied if any element's sub-scan succeeds.
func (p Path) Match(doc interface{}, pred func(v interface{}) bool) bool {
	return evalPath(doc, p.segments, pred)
}

// Value resolves the path to a single representative value, used by
// sort/simplesort/compoundsort where a single ordering key is required. An
// array met before the last segment resolves through its first element; an
// array at the end of the path is returned whole.
func (p Path) Value(doc interface{}) interface{} {
	return valueAt(doc, p.segments)
}

func evalPath(v interface{}, segments []string, pred func(interface{}) bool) bool {
	if len(segments) == 0 {
		return pred(v)
	}
	switch t := v.(type) {
	case bson.M:
		return evalPath(t[segments[0]], segments[1:], pred)
	case map[string]interface{}:
		return evalPath(t[segments[0]], segments[1:], pred)
	case []interface{}:
		for _, elem := range t {
			if evalPath(elem, segments, pred) {
				return true
			}
		}
		return false
	case primitive.A:
		for _, elem := range t {
			if evalPath(elem, segments, pred) {
				return true
			}
		}
		return false
	default:
		return pred(nil)
	}
}

func valueAt(v interface{}, segments []string) interface{} {
	if len(segments) == 0 {
		return v
	}
	switch t := v.(type) {
	case bson.M:
		return valueAt(t[segments[0]], segments[1:])
	case map[string]interface{}:
		return valueAt(t[segments[0]], segments[1:])
	case []interface{}:
		if len(t) == 0 {
			return nil
		}
		return valueAt(t[0], segments)
	case primitive.A:
		if len(t) == 0 {
			return nil
		}
		return valueAt(t[0], segments)
	default:
		return nil
	}
}
