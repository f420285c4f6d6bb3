package lokidb

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Clause is a compiled predicate over a whole document. Resultset.find and
// DynamicView filters both evaluate a Clause tree; it is compiled once at
// query-construction time (spec §9) and reused for every subsequent
// incremental re-evaluation.
type Clause interface {
	Match(doc bson.M) bool
}

// fieldClause applies a single operator to the value(s) found at a dot path.
type fieldClause struct {
	path Path
	op   OpTag
	val  interface{}
}

func (c fieldClause) Match(doc bson.M) bool {
	return c.path.Match(doc, func(v interface{}) bool {
		return evalOp(c.op, v, c.val)
	})
}

// SinglePropertyEligible reports whether this clause is a single
// {property: {op: value}} test on a one-segment path, returning the
// property, operator and comparison value when it is. It does not check
// whether op is index-eligible; callers test that with IndexEligible.
func SinglePropertyEligible(c Clause) (path string, op OpTag, val interface{}, ok bool) {
	fc, isField := c.(fieldClause)
	if !isField || len(fc.path.segments) != 1 {
		return "", "", nil, false
	}
	return fc.path.raw, fc.op, fc.val, true
}

type andClause struct{ clauses []Clause }

func (c andClause) Match(doc bson.M) bool {
	for _, sub := range c.clauses {
		if !sub.Match(doc) {
			return false
		}
	}
	return true
}

type orClause struct{ clauses []Clause }

func (c orClause) Match(doc bson.M) bool {
	for _, sub := range c.clauses {
		if sub.Match(doc) {
			return true
		}
	}
	return false
}

type notClause struct{ inner Clause }

func (c notClause) Match(doc bson.M) bool {
	return !c.inner.Match(doc)
}

// elemMatchClause recurses the inner clause over each element of the array
// found at path, per spec §4.2 ("$elemMatch recursively composes over
// arrays").
type elemMatchClause struct {
	path  Path
	inner Clause
}

func (c elemMatchClause) Match(doc bson.M) bool {
	return c.path.Match(doc, func(v interface{}) bool {
		for _, elem := range toSlice(v) {
			if sub, ok := elem.(bson.M); ok {
				if c.inner.Match(sub) {
					return true
				}
				continue
			}
			if m, ok := elem.(map[string]interface{}); ok {
				if c.inner.Match(bson.M(m)) {
					return true
				}
			}
		}
		return false
	})
}

// whereClause applies an arbitrary user predicate to the whole document,
// as used by both {$where: fn} query clauses and Resultset.where.
type whereClause struct{ fn func(doc bson.M) bool }

func (c whereClause) Match(doc bson.M) bool { return c.fn(doc) }

// CompileQuery normalizes and compiles a MongoDB-style query expression
// into a Clause tree, per spec §4.2:
//   - shorthand {field: V} (V not an operator object) means {field: {$eq: V}}
//   - a multi-field top-level object is an implicit $and of single-field
//     sub-queries
func CompileQuery(query bson.M) Clause {
	if len(query) == 0 {
		return whereClause{fn: func(bson.M) bool { return true }}
	}
	if len(query) == 1 {
		for k, v := range query {
			return compileField(k, v)
		}
	}
	clauses := make([]Clause, 0, len(query))
	for k, v := range query {
		clauses = append(clauses, compileField(k, v))
	}
	return andClause{clauses: clauses}
}

func compileField(key string, v interface{}) Clause {
	switch key {
	case string(OpAnd):
		return andClause{clauses: compileClauseList(v)}
	case string(OpOr):
		return orClause{clauses: compileClauseList(v)}
	case string(OpNot):
		return notClause{inner: compileOperand(v)}
	case string(OpWhere):
		if fn, ok := v.(func(bson.M) bool); ok {
			return whereClause{fn: fn}
		}
		return whereClause{fn: func(bson.M) bool { return false }}
	}

	opMap, isOpMap := asOperatorMap(v)
	if !isOpMap {
		return fieldClause{path: CompilePath(key), op: OpEq, val: v}
	}

	clauses := make([]Clause, 0, len(opMap))
	for opName, opVal := range opMap {
		switch OpTag(opName) {
		case OpElemMatch:
			clauses = append(clauses, elemMatchClause{path: CompilePath(key), inner: compileOperand(opVal)})
		case OpNot:
			// opVal is itself a nested operator object (or a literal, meaning
			// $eq); compile it the same way a normal {field: opVal} entry
			// would be, then negate the result, so {$not: {$gt: 5}} excludes
			// "> 5" rather than testing equality against the literal map.
			clauses = append(clauses, notClause{inner: compileField(key, opVal)})
		default:
			clauses = append(clauses, fieldClause{path: CompilePath(key), op: OpTag(opName), val: opVal})
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return andClause{clauses: clauses}
}

func compileClauseList(v interface{}) []Clause {
	items := toSlice(v)
	out := make([]Clause, 0, len(items))
	for _, item := range items {
		out = append(out, compileOperand(item))
	}
	return out
}

func compileOperand(v interface{}) Clause {
	switch m := v.(type) {
	case bson.M:
		return CompileQuery(m)
	case map[string]interface{}:
		return CompileQuery(bson.M(m))
	default:
		return whereClause{fn: func(bson.M) bool { return false }}
	}
}

// asOperatorMap reports whether v is a query operator object such as
// {$gt: 5}, as opposed to a literal value to be matched with $eq. Dates are
// treated as literal values even though they are structs, per spec §4.2.
func asOperatorMap(v interface{}) (bson.M, bool) {
	var m bson.M
	switch t := v.(type) {
	case bson.M:
		m = t
	case map[string]interface{}:
		m = bson.M(t)
	default:
		return nil, false
	}
	for k := range m {
		if len(k) == 0 || k[0] != '$' {
			return nil, false
		}
	}
	return m, len(m) > 0
}
