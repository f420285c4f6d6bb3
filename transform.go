package lokidb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// transformTokenPrefix marks a parameterized placeholder inside a stored
// transform's query, per spec §5: "[%lktxp]name" in a transform step's
// query value is substituted with params["name"] at application time.
const transformTokenPrefix = "[%lktxp]"

// TransformStepKind identifies one stage of a named transform, per spec
// §4.4's full step list: find, where, simplesort, compoundsort, sort,
// limit, offset, map, eqJoin, mapReduce, update, remove.
type TransformStepKind string

const (
	TransformFind         TransformStepKind = "find"
	TransformWhere        TransformStepKind = "where"
	TransformSimpleSort   TransformStepKind = "simplesort"
	TransformCompoundSort TransformStepKind = "compoundsort"
	TransformSort         TransformStepKind = "sort"
	TransformLimit        TransformStepKind = "limit"
	TransformOffset       TransformStepKind = "offset"
	TransformMap          TransformStepKind = "map"
	TransformEqJoin       TransformStepKind = "eqJoin"
	TransformMapReduce    TransformStepKind = "mapReduce"
	TransformUpdate       TransformStepKind = "update"
	TransformRemove       TransformStepKind = "remove"
)

// TransformStep is one stage of a named transform chain, stored on a
// Collection by AddTransform and replayed by ApplyTransform. map, eqJoin
// and mapReduce steps terminate the chain: they produce a value that is no
// longer a Resultset, so any step that follows them is never reached.
type TransformStep struct {
	Kind TransformStepKind

	Query Document // TransformFind

	Where func(Document) bool // TransformWhere

	Property   string // TransformSimpleSort
	Descending bool

	Criteria []SortCriterion // TransformCompoundSort

	Less func(a, b Document) bool // TransformSort

	N int // TransformLimit / TransformOffset

	MapFn func(Document) Document // TransformMap

	JoinWith          *Resultset // TransformEqJoin
	LeftKey, RightKey string
	JoinFn            func(left, right Document) Document

	ReduceMapFn func(Document) interface{}   // TransformMapReduce
	ReduceFn    func([]interface{}) interface{}

	UpdateFn func(Document) Document // TransformUpdate
}

// AddTransform registers a named, parameterizable sequence of Resultset
// operations, per spec §5.
func (c *Collection) AddTransform(name string, steps []TransformStep) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transforms[name] = steps
}

// RemoveTransform unregisters a named transform.
func (c *Collection) RemoveTransform(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.transforms, name)
}

// ApplyTransform replays the named transform against a fresh Chain(),
// substituting any "[%lktxp]<key>" token found in a TransformFind step's
// query with params[<key>]. The return value is a *Resultset for every
// step kind except map, eqJoin and mapReduce, which terminate the chain
// and return their own result type ([]Document or the reduced value)
// directly.
func (c *Collection) ApplyTransform(name string, params map[string]interface{}) (interface{}, error) {
	c.mu.RLock()
	steps, ok := c.transforms[name]
	c.mu.RUnlock()
	if !ok {
		return nil, wrapErr(ErrTransformError, "collection %q has no transform %q", c.name, name)
	}

	rs := c.Chain()
	for _, step := range steps {
		switch step.Kind {
		case TransformFind:
			q := substituteTokens(step.Query, params).(Document)
			rs = rs.Find(q, false)
		case TransformWhere:
			if step.Where == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: where step has no predicate", name)
			}
			rs = rs.Where(step.Where)
		case TransformSimpleSort:
			rs = rs.SimpleSort(step.Property, step.Descending)
		case TransformCompoundSort:
			rs = rs.CompoundSort(step.Criteria)
		case TransformSort:
			if step.Less == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: sort step has no comparator", name)
			}
			rs = rs.Sort(step.Less)
		case TransformLimit:
			rs = rs.Limit(step.N)
		case TransformOffset:
			rs = rs.Offset(step.N)
		case TransformUpdate:
			if step.UpdateFn == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: update step has no update function", name)
			}
			if err := rs.Update(step.UpdateFn); err != nil {
				return nil, err
			}
		case TransformRemove:
			if err := rs.Remove(); err != nil {
				return nil, err
			}
		case TransformMap:
			if step.MapFn == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: map step has no map function", name)
			}
			return rs.Map(step.MapFn), nil
		case TransformEqJoin:
			if step.JoinWith == nil || step.JoinFn == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: eqJoin step missing join target or join function", name)
			}
			return rs.EqJoin(step.JoinWith, step.LeftKey, step.RightKey, step.JoinFn), nil
		case TransformMapReduce:
			if step.ReduceMapFn == nil || step.ReduceFn == nil {
				return nil, wrapErr(ErrTransformError, "transform %q: mapReduce step missing map or reduce function", name)
			}
			return MapReduce(rs, step.ReduceMapFn, step.ReduceFn), nil
		default:
			return nil, wrapErr(ErrInvalidArgument, "transform %q: unknown step kind %q", name, step.Kind)
		}
	}
	return rs, nil
}

// substituteTokens walks v, replacing any string of the form
// "[%lktxp]<key>" with params[<key>].
func substituteTokens(v interface{}, params map[string]interface{}) interface{} {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, transformTokenPrefix) {
			key := strings.TrimPrefix(t, transformTokenPrefix)
			if val, ok := params[key]; ok {
				return val
			}
			return nil
		}
		return t
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = substituteTokens(val, params)
		}
		return out
	case map[string]interface{}:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = substituteTokens(val, params)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = substituteTokens(val, params)
		}
		return out
	default:
		return v
	}
}
