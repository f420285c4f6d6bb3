package lokidb

import "sort"

// BinaryIndex is a sorted permutation of data positions enabling
// logarithmic range queries on a property, per spec §3/§4.3.
//
// Invariant (when dirty == false): values is a permutation of
// [0, len(data)) and (data[values[i]].property)_i is non-decreasing under
// Compare.
type BinaryIndex struct {
	property string
	path     Path
	values   []int
	dirty    bool
	adaptive bool
}

func newBinaryIndex(property string, adaptive bool) *BinaryIndex {
	return &BinaryIndex{property: property, path: CompilePath(property), adaptive: adaptive, dirty: true}
}

// rebuild sorts [0, len(data)) by Compare on data[i].property. This is the
// lazy-mode maintenance path, also used to materialize an adaptive index
// for the first time or after ensureIndex(force).
func (b *BinaryIndex) rebuild(data []Document) {
	values := make([]int, len(data))
	for i := range values {
		values[i] = i
	}
	sort.SliceStable(values, func(i, j int) bool {
		vi := b.path.Value(data[values[i]])
		vj := b.path.Value(data[values[j]])
		return Compare(vi, vj) == Less
	})
	b.values = values
	b.dirty = false
}

func (b *BinaryIndex) ensureFresh(data []Document) {
	if b.dirty {
		b.rebuild(data)
	}
}

// insertAdaptive binary-searches the sort position for data[pos] and
// splices pos into values there, per spec §4.3 adaptive insert.
func (b *BinaryIndex) insertAdaptive(data []Document, pos int) {
	if b.dirty {
		return
	}
	v := b.path.Value(data[pos])
	at := sort.Search(len(b.values), func(i int) bool {
		return Compare(b.path.Value(data[b.values[i]]), v) != Less
	})
	b.values = append(b.values, 0)
	copy(b.values[at+1:], b.values[at:])
	b.values[at] = pos
}

// removeAdaptive binary-searches the value, linear-scans the equal range to
// find the exact data position, splices it out, then decrements every
// stored position greater than the removed one (spec §4.3 adaptive remove).
func (b *BinaryIndex) removeAdaptive(data []Document, pos int) {
	if b.dirty {
		return
	}
	v := b.path.Value(data[pos])
	lo := sort.Search(len(b.values), func(i int) bool {
		return Compare(b.path.Value(data[b.values[i]]), v) != Less
	})
	idx := -1
	for i := lo; i < len(b.values) && Aeq(b.path.Value(data[b.values[i]]), v); i++ {
		if b.values[i] == pos {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Fell out of sync; resync rather than leave values inconsistent.
		b.dirty = true
		return
	}
	b.values = append(b.values[:idx], b.values[idx+1:]...)
	for i, p := range b.values {
		if p > pos {
			b.values[i] = p - 1
		}
	}
}

// removeBatchAdaptive performs a single-pass filter over values plus a
// linearly computed shift for each surviving position, used for batch
// removes (spec §4.3).
func (b *BinaryIndex) removeBatchAdaptive(removedPositions map[int]bool, oldLen int) {
	if b.dirty {
		return
	}
	shift := make([]int, oldLen+1)
	count := 0
	for i := 0; i < oldLen; i++ {
		shift[i] = count
		if removedPositions[i] {
			count++
		}
	}
	shift[oldLen] = count

	out := b.values[:0]
	for _, p := range b.values {
		if removedPositions[p] {
			continue
		}
		out = append(out, p-shift[p])
	}
	b.values = out
}

// calculateRangeStart returns the first index i in values such that
// data[values[i]].property satisfies Gt(v, target, eq) — i.e. the lower
// bound for the run of keys equal to target when eq is true ("first v >=
// target"), or the first index strictly past target when eq is false
// ("first v > target"), which for an absent target (a "hole") is also the
// correct insertion point since no equal keys exist to skip.
func (b *BinaryIndex) calculateRangeStart(data []Document, target interface{}, eq bool) int {
	return sort.Search(len(b.values), func(i int) bool {
		v := b.path.Value(data[b.values[i]])
		return Gt(v, target, eq)
	})
}

// calculateRangeEnd mirrors calculateRangeStart from the high side: the
// first index whose value is strictly greater than target (eq==true) or
// greater-or-equal (eq==false), minus one giving the inclusive upper
// bound.
func (b *BinaryIndex) calculateRangeEnd(data []Document, target interface{}, eq bool) int {
	idx := sort.Search(len(b.values), func(i int) bool {
		v := b.path.Value(data[b.values[i]])
		if eq {
			return Gt(v, target, false)
		}
		return Gt(v, target, true)
	})
	return idx - 1
}

// hasKey reports whether target is present anywhere in the index, used to
// distinguish a "found key" from a "hole" when applying the edge policies
// in spec §4.4.
func (b *BinaryIndex) hasKey(data []Document, target interface{}) bool {
	lo := b.calculateRangeStart(data, target, true)
	return lo < len(b.values) && Aeq(b.path.Value(data[b.values[lo]]), target)
}

// CalculateRange computes the [lo, hi] inclusive position range into
// values for an index-eligible operator, per spec §4.4. Returns [0, -1]
// for an empty range. $in is the exception: it returns the matching data
// positions themselves as a flat, unordered list (empty when none match).
func (b *BinaryIndex) CalculateRange(data []Document, op OpTag, value interface{}) []int {
	b.ensureFresh(data)
	if len(b.values) == 0 {
		return []int{0, -1}
	}

	minVal := b.path.Value(data[b.values[0]])
	maxVal := b.path.Value(data[b.values[len(b.values)-1]])

	switch op {
	case OpEq, OpAeq, OpDteq:
		if Lt(value, minVal, false) || Gt(value, maxVal, false) {
			return []int{0, -1}
		}
		lo := b.calculateRangeStart(data, value, true)
		hi := b.calculateRangeEnd(data, value, true)
		if lo > hi {
			return []int{0, -1}
		}
		return []int{lo, hi}
	case OpGt:
		if Gt(value, maxVal, false) {
			return []int{0, -1}
		}
		if Lt(value, minVal, false) {
			return []int{0, len(b.values) - 1}
		}
		if b.hasKey(data, value) {
			return []int{b.calculateRangeEnd(data, value, true) + 1, len(b.values) - 1}
		}
		return []int{b.calculateRangeStart(data, value, false), len(b.values) - 1}
	case OpGte:
		if Lt(value, minVal, false) {
			return []int{0, len(b.values) - 1}
		}
		if Gt(value, maxVal, false) {
			return []int{0, -1}
		}
		if b.hasKey(data, value) {
			return []int{b.calculateRangeStart(data, value, true), len(b.values) - 1}
		}
		return []int{b.calculateRangeStart(data, value, false), len(b.values) - 1}
	case OpLt:
		if Lt(value, minVal, false) {
			return []int{0, -1}
		}
		if Gt(value, maxVal, false) {
			return []int{0, len(b.values) - 1}
		}
		if b.hasKey(data, value) {
			return []int{0, b.calculateRangeStart(data, value, true) - 1}
		}
		return []int{0, b.calculateRangeStart(data, value, false) - 1}
	case OpLte:
		if Gt(value, maxVal, false) {
			return []int{0, len(b.values) - 1}
		}
		if Lt(value, minVal, false) {
			return []int{0, -1}
		}
		if b.hasKey(data, value) {
			return []int{0, b.calculateRangeEnd(data, value, true)}
		}
		return []int{0, b.calculateRangeStart(data, value, false) - 1}
	case OpBetween:
		lo, hi, ok := betweenBounds(value)
		if !ok {
			return []int{0, -1}
		}
		loRange := b.CalculateRange(data, OpGte, lo)
		hiRange := b.CalculateRange(data, OpLte, hi)
		if loRange[0] > loRange[1] || hiRange[0] > hiRange[1] {
			return []int{0, -1}
		}
		start, end := loRange[0], hiRange[1]
		if start > end {
			return []int{0, -1}
		}
		return []int{start, end}
	case OpIn:
		positions := map[int]bool{}
		for _, v := range toSlice(value) {
			r := b.CalculateRange(data, OpEq, v)
			for i := r[0]; i <= r[1]; i++ {
				positions[b.values[i]] = true
			}
		}
		out := make([]int, 0, len(positions))
		for p := range positions {
			out = append(out, p)
		}
		return out
	}
	return []int{0, -1}
}

// Positions resolves a CalculateRange result into the underlying data
// positions it names. $in returns a flat position list rather than a
// [lo, hi] pair, so callers route through this helper uniformly.
func (b *BinaryIndex) Positions(data []Document, op OpTag, value interface{}) []int {
	r := b.CalculateRange(data, op, value)
	if op == OpIn {
		return r
	}
	if len(r) != 2 || r[0] > r[1] {
		return nil
	}
	out := make([]int, 0, r[1]-r[0]+1)
	for i := r[0]; i <= r[1]; i++ {
		out = append(out, b.values[i])
	}
	return out
}

// Check validates monotonic non-decrease, either over the whole sequence
// or over samplingFactor*len(values) random adjacent pairs, per spec §4.4
// checkIndex. A dirty index is reported valid without being examined.
func (b *BinaryIndex) Check(data []Document, randomSampling bool, samplingFactor float64, rnd func(int) int) bool {
	if b.dirty {
		return true
	}
	if len(b.values) < 2 {
		return true
	}
	if !randomSampling {
		for i := 0; i < len(b.values)-1; i++ {
			if !b.adjacentOK(data, i) {
				return false
			}
		}
		return true
	}
	samples := int(samplingFactor * float64(len(b.values)))
	if samples < 1 {
		samples = 1
	}
	for s := 0; s < samples; s++ {
		i := rnd(len(b.values) - 1)
		if !b.adjacentOK(data, i) {
			return false
		}
	}
	return true
}

func (b *BinaryIndex) adjacentOK(data []Document, i int) bool {
	return Lt(b.path.Value(data[b.values[i]]), b.path.Value(data[b.values[i+1]]), true)
}
