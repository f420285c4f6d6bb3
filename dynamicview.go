package lokidb

import "sort"

type dvFilterKind int

const (
	dvFind dvFilterKind = iota
	dvWhere
)

type dvFilter struct {
	kind   dvFilterKind
	clause Clause
	fn     func(Document) bool
}

// DynamicView is an incrementally maintained filtered projection over a
// Collection, per spec §6: every insert/update/remove notifies every view
// registered on its collection so the view's membership stays correct
// without a full rescan. Sort order, when configured, is re-derived at
// read time rather than maintained incrementally — a document's rank
// among its neighbours can change on almost any update, so resorting on
// read is both simpler and no more expensive than eager resort-on-write.
type DynamicView struct {
	coll *Collection
	name string

	filters []dvFilter

	simpleSortProp string
	simpleSortDesc bool
	hasSimpleSort  bool

	compoundSort    []SortCriterion
	hasCompoundSort bool

	customSort func(a, b Document) bool

	positions []int // ascending data positions currently matching every filter
}

// DynamicViewOptions configures a DynamicView at creation time.
type DynamicViewOptions struct {
	// Persistent is accepted for symmetry with spec §6 and has no effect:
	// Database.Serialize records no view definitions, and loading a
	// database does not recreate views.
	Persistent bool
}

func newDynamicView(c *Collection, name string, opts DynamicViewOptions) *DynamicView {
	return &DynamicView{coll: c, name: name}
}

// Name returns the view's name.
func (v *DynamicView) Name() string { return v.name }

// ApplyFind adds a query-based filter stage and rebuilds the view.
func (v *DynamicView) ApplyFind(query Document) *DynamicView {
	v.filters = append(v.filters, dvFilter{kind: dvFind, clause: CompileQuery(query)})
	v.rebuild()
	return v
}

// ApplyWhere adds a predicate-based filter stage and rebuilds the view.
func (v *DynamicView) ApplyWhere(fn func(Document) bool) *DynamicView {
	v.filters = append(v.filters, dvFilter{kind: dvWhere, fn: fn})
	v.rebuild()
	return v
}

// RemoveFilters clears every filter stage, so the view matches the whole
// collection again.
func (v *DynamicView) RemoveFilters() *DynamicView {
	v.filters = nil
	v.rebuild()
	return v
}

// ApplySimpleSort configures the view's read-time sort to a single
// property, clearing any other sort configuration.
func (v *DynamicView) ApplySimpleSort(property string, descending bool) *DynamicView {
	v.simpleSortProp, v.simpleSortDesc, v.hasSimpleSort = property, descending, true
	v.hasCompoundSort = false
	v.customSort = nil
	return v
}

// ApplyCompoundSort configures the view's read-time sort to a priority
// list of properties.
func (v *DynamicView) ApplyCompoundSort(criteria []SortCriterion) *DynamicView {
	v.compoundSort, v.hasCompoundSort = criteria, true
	v.hasSimpleSort = false
	v.customSort = nil
	return v
}

// ApplySort configures the view's read-time sort to an arbitrary
// comparator.
func (v *DynamicView) ApplySort(less func(a, b Document) bool) *DynamicView {
	v.customSort = less
	v.hasSimpleSort = false
	v.hasCompoundSort = false
	return v
}

func (v *DynamicView) matchesAllFilters(doc Document) bool {
	for _, f := range v.filters {
		if f.kind == dvFind {
			if !f.clause.Match(doc) {
				return false
			}
			continue
		}
		if !f.fn(doc) {
			return false
		}
	}
	return true
}

// rebuild rescans the whole collection, used after the filter pipeline
// itself changes shape.
func (v *DynamicView) rebuild() {
	v.positions = v.positions[:0]
	for pos, doc := range v.coll.data {
		if v.matchesAllFilters(doc) {
			v.positions = append(v.positions, pos)
		}
	}
}

func (v *DynamicView) findPos(pos int) (int, bool) {
	i := sort.SearchInts(v.positions, pos)
	return i, i < len(v.positions) && v.positions[i] == pos
}

// evaluateDocument re-tests the document at pos against every filter and
// inserts/removes it from the view's membership as needed. Called by
// Collection on every insert and update.
func (v *DynamicView) evaluateDocument(pos int, isNew bool) {
	doc := v.coll.data[pos]
	matches := v.matchesAllFilters(doc)
	i, found := v.findPos(pos)
	switch {
	case matches && !found:
		v.positions = append(v.positions, 0)
		copy(v.positions[i+1:], v.positions[i:])
		v.positions[i] = pos
	case !matches && found:
		v.positions = append(v.positions[:i], v.positions[i+1:]...)
	}
}

// removeDocuments drops every position in removed from the view and
// shifts the remaining positions to match the collection's post-compaction
// layout. Must be called before Collection compacts its data slice.
func (v *DynamicView) removeDocuments(removed []int) {
	removedSet := make(map[int]bool, len(removed))
	for _, p := range removed {
		removedSet[p] = true
	}
	oldLen := len(v.coll.data)
	shift := make([]int, oldLen+1)
	count := 0
	for i := 0; i < oldLen; i++ {
		shift[i] = count
		if removedSet[i] {
			count++
		}
	}

	out := v.positions[:0]
	for _, p := range v.positions {
		if removedSet[p] {
			continue
		}
		out = append(out, p-shift[p])
	}
	v.positions = out
}

// Data materializes the view's current membership in its configured sort
// order (insertion/filter order if no sort was configured).
func (v *DynamicView) Data() []Document {
	v.coll.mu.RLock()
	defer v.coll.mu.RUnlock()

	out := make([]Document, len(v.positions))
	for i, pos := range v.positions {
		out[i] = v.coll.data[pos]
	}

	switch {
	case v.customSort != nil:
		sort.SliceStable(out, func(i, j int) bool { return v.customSort(out[i], out[j]) })
	case v.hasCompoundSort:
		paths := make([]Path, len(v.compoundSort))
		for i, c := range v.compoundSort {
			paths[i] = CompilePath(c.Property)
		}
		sort.SliceStable(out, func(i, j int) bool {
			for k, c := range v.compoundSort {
				cmp := Compare(paths[k].Value(out[i]), paths[k].Value(out[j]))
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
	case v.hasSimpleSort:
		path := CompilePath(v.simpleSortProp)
		sort.SliceStable(out, func(i, j int) bool {
			cmp := Compare(path.Value(out[i]), path.Value(out[j]))
			if v.simpleSortDesc {
				return cmp == Greater
			}
			return cmp == Less
		})
	}
	return out
}

// Count returns the view's current membership size.
func (v *DynamicView) Count() int {
	v.coll.mu.RLock()
	defer v.coll.mu.RUnlock()
	return len(v.positions)
}
