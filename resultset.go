package lokidb

import (
	"sort"
)

// Resultset is the chainable query pipeline described in spec §5: filter
// and sort calls return the same *Resultset and Limit/Offset return a copy,
// so operations compose as
// coll.Chain().Find(q).SimpleSort("age").Limit(10).Data(). The
// initialized flag distinguishes "no filter has run yet" (operate over
// the whole collection) from "the last filter matched zero documents"
// (initialized is true and positions is empty).
type Resultset struct {
	coll        *Collection
	positionsV  []int
	initialized bool
}

func newResultset(c *Collection) *Resultset {
	return &Resultset{coll: c}
}

// currentPositions resolves the working position set, materializing
// "uninitialized" into every position in the collection.
func (r *Resultset) currentPositions() []int {
	if r.initialized {
		return r.positionsV
	}
	out := make([]int, len(r.coll.data))
	for i := range out {
		out[i] = i
	}
	return out
}

// Find narrows the resultset to documents matching query. When
// firstOnly is true, the result set is narrowed to at most one match,
// per spec §5 findOne semantics.
func (r *Resultset) Find(query Document, firstOnly bool) *Resultset {
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()

	clause := CompileQuery(query)
	positions := r.filterLocked(clause, firstOnly)
	r.positionsV = positions
	r.initialized = true
	return r
}

// filterLocked evaluates clause against the current working set, taking
// the BinaryIndex fast path for a single-property index-eligible clause
// evaluated against the whole collection (spec §5: "the planner only
// attempts the index fast path when the filter is unconstrained").
func (r *Resultset) filterLocked(clause Clause, firstOnly bool) []int {
	if !r.initialized {
		if path, op, val, ok := SinglePropertyEligible(clause); ok && IndexEligible(op) {
			if idx, exists := r.coll.binaryIndices[path]; exists {
				idx.ensureFresh(r.coll.data)
				positions := idx.Positions(r.coll.data, op, val)
				sort.Ints(positions)
				if firstOnly && len(positions) > 1 {
					positions = positions[:1]
				}
				return positions
			}
		}
	}

	base := r.currentPositions()
	out := make([]int, 0, len(base))
	for _, pos := range base {
		if clause.Match(r.coll.data[pos]) {
			out = append(out, pos)
			if firstOnly {
				break
			}
		}
	}
	return out
}

// Where narrows the resultset to documents satisfying an arbitrary
// predicate, bypassing query compilation entirely.
func (r *Resultset) Where(fn func(Document) bool) *Resultset {
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	base := r.currentPositions()
	out := make([]int, 0, len(base))
	for _, pos := range base {
		if fn(r.coll.data[pos]) {
			out = append(out, pos)
		}
	}
	r.positionsV = out
	r.initialized = true
	return r
}

// FindOr narrows the resultset to documents matching any of queries.
func (r *Resultset) FindOr(queries []Document) *Resultset {
	clauses := make([]Clause, len(queries))
	for i, q := range queries {
		clauses[i] = CompileQuery(q)
	}
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	r.positionsV = r.filterLocked(orClause{clauses: clauses}, false)
	r.initialized = true
	return r
}

// FindAnd narrows the resultset to documents matching every query.
func (r *Resultset) FindAnd(queries []Document) *Resultset {
	clauses := make([]Clause, len(queries))
	for i, q := range queries {
		clauses[i] = CompileQuery(q)
	}
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	r.positionsV = r.filterLocked(andClause{clauses: clauses}, false)
	r.initialized = true
	return r
}

// Sort reorders the working set with an arbitrary comparator.
func (r *Resultset) Sort(less func(a, b Document) bool) *Resultset {
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	positions := append([]int(nil), r.currentPositions()...)
	sort.SliceStable(positions, func(i, j int) bool {
		return less(r.coll.data[positions[i]], r.coll.data[positions[j]])
	})
	r.positionsV = positions
	r.initialized = true
	return r
}

// SimpleSort reorders the working set by a single dot-path property, per
// spec §5. Idempotent: simplesort(p).simplesort(p) yields the same order
// as a single call.
func (r *Resultset) SimpleSort(property string, descending bool) *Resultset {
	path := CompilePath(property)
	return r.Sort(func(a, b Document) bool {
		c := Compare(path.Value(a), path.Value(b))
		if descending {
			return c == Greater
		}
		return c == Less
	})
}

// SortCriterion is one (property, descending) pair in a CompoundSort.
type SortCriterion struct {
	Property   string
	Descending bool
}

// CompoundSort reorders the working set by multiple properties in
// priority order, falling through to the next criterion on a tie.
func (r *Resultset) CompoundSort(criteria []SortCriterion) *Resultset {
	paths := make([]Path, len(criteria))
	for i, c := range criteria {
		paths[i] = CompilePath(c.Property)
	}
	return r.Sort(func(a, b Document) bool {
		for i, c := range criteria {
			cmp := Compare(paths[i].Value(a), paths[i].Value(b))
			if cmp == Equal {
				continue
			}
			if c.Descending {
				return cmp == Greater
			}
			return cmp == Less
		}
		return false
	})
}

// Limit returns a copy of the resultset narrowed to its first n positions,
// per spec §4.5: the receiver is left untouched so further chains can
// branch off the same upstream set (e.g. one limit(10) and one offset(10)
// derived independently from the same rs).
func (r *Resultset) Limit(n int) *Resultset {
	positions := r.currentPositions()
	if n < len(positions) {
		positions = positions[:n]
	}
	return &Resultset{coll: r.coll, positionsV: positions, initialized: true}
}

// Offset returns a copy of the resultset with the first n positions
// dropped, per spec §4.5; see Limit for why it does not mutate r.
func (r *Resultset) Offset(n int) *Resultset {
	positions := r.currentPositions()
	if n >= len(positions) {
		positions = nil
	} else {
		positions = positions[n:]
	}
	return &Resultset{coll: r.coll, positionsV: positions, initialized: true}
}

// EqJoin performs an equi-join against another resultset's data, per spec
// §5: for every document in r, every document in joinData sharing
// leftKey/rightKey's value is combined by mapFn into the output.
func (r *Resultset) EqJoin(joinData *Resultset, leftKey, rightKey string, mapFn func(left, right Document) Document) []Document {
	leftPath := CompilePath(leftKey)
	rightPath := CompilePath(rightKey)

	left := r.Data()
	right := joinData.Data()

	byKey := map[interface{}][]Document{}
	for _, doc := range right {
		k := rightPath.Value(doc)
		byKey[k] = append(byKey[k], doc)
	}

	out := make([]Document, 0, len(left))
	for _, l := range left {
		k := leftPath.Value(l)
		for _, rr := range byKey[k] {
			out = append(out, mapFn(l, rr))
		}
	}
	return out
}

// Map projects every document in the working set through fn.
func (r *Resultset) Map(fn func(Document) Document) []Document {
	data := r.Data()
	out := make([]Document, len(data))
	for i, doc := range data {
		out[i] = fn(doc)
	}
	return out
}

// MapReduce applies mapFn to every document, then reduceFn to the
// resulting slice, per spec §5.
func MapReduce[T any](r *Resultset, mapFn func(Document) T, reduceFn func([]T) interface{}) interface{} {
	data := r.Data()
	mapped := make([]T, len(data))
	for i, doc := range data {
		mapped[i] = mapFn(doc)
	}
	return reduceFn(mapped)
}

// Update applies fn to every document in the working set and writes the
// result back through Collection.Update.
func (r *Resultset) Update(fn func(Document) Document) error {
	data := r.Data()
	for _, doc := range data {
		updated := fn(cloneDocument(doc))
		updated["$id"] = doc["$id"]
		if _, err := r.coll.Update(updated); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes every document currently in the working set.
func (r *Resultset) Remove() error {
	r.coll.mu.RLock()
	positions := append([]int(nil), r.currentPositions()...)
	r.coll.mu.RUnlock()
	return r.coll.RemoveBatchByPositions(positions)
}

// Data materializes the working set as a document slice, in its current
// order.
func (r *Resultset) Data() []Document {
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	positions := r.currentPositions()
	out := make([]Document, len(positions))
	for i, pos := range positions {
		out[i] = r.coll.data[pos]
	}
	return out
}

// Count returns the size of the working set without materializing it.
func (r *Resultset) Count() int {
	r.coll.mu.RLock()
	defer r.coll.mu.RUnlock()
	return len(r.currentPositions())
}

// Branch copies the resultset so further chaining on the copy does not
// affect the original, per spec §5's branch() operation.
func (r *Resultset) Branch() *Resultset {
	return &Resultset{coll: r.coll, positionsV: append([]int(nil), r.positionsV...), initialized: r.initialized}
}
