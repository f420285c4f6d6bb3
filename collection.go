package lokidb

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection owns a document vector, its $id index, every binary/unique/
// exact index defined on it, its named transforms and its dynamic views,
// per spec §3/§4.4. All mutation and query entry points take the
// collection-wide lock described in spec §5.
type Collection struct {
	mu sync.RWMutex

	name string
	db   *Database // optional back-reference, set by Database.AddCollection

	data    []Document
	idIndex []int64
	maxID   int64

	binaryIndices     map[string]*BinaryIndex
	uniqueConstraints map[string]*UniqueIndex
	exactConstraints  map[string]*ExactIndex
	transforms        map[string][]TransformStep
	dynamicViews      []*DynamicView

	adaptiveBinaryIndices bool
	cloneOnInsert         bool
	changesAPI            bool
	deltaChanges          bool
	changes               []Change

	ttl *ttlConfig

	txn *txnSnapshot

	log *logrus.Entry
}

// CollectionOptions configures a Collection at creation time.
type CollectionOptions struct {
	// AdaptiveBinaryIndices maintains every BinaryIndex incrementally on
	// every mutation instead of flagging it dirty for lazy rebuild.
	AdaptiveBinaryIndices bool
	// CloneOnInsert returns a deep copy from Insert/Update instead of the
	// collection-owned reference, per the immutable-documents note (§9).
	CloneOnInsert bool
	// ChangesAPI appends a Change record for every insert/update/remove.
	ChangesAPI bool
	// DeltaChanges additionally records the changed fields on update.
	DeltaChanges bool
}

func newCollection(name string, opts CollectionOptions) *Collection {
	return &Collection{
		name:                  name,
		binaryIndices:         map[string]*BinaryIndex{},
		uniqueConstraints:     map[string]*UniqueIndex{},
		exactConstraints:      map[string]*ExactIndex{},
		transforms:            map[string][]TransformStep{},
		adaptiveBinaryIndices: opts.AdaptiveBinaryIndices,
		cloneOnInsert:         opts.CloneOnInsert,
		changesAPI:            opts.ChangesAPI,
		deltaChanges:          opts.DeltaChanges,
		log:                   logrus.WithField("collection", name),
	}
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of documents currently stored.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// EnsureUniqueIndex creates a UniqueIndex on field, rebuilding it from the
// current data and failing with ErrDuplicateKey if a conflict exists.
func (c *Collection) EnsureUniqueIndex(field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := newUniqueIndex(field)
	if err := idx.rebuild(c.data); err != nil {
		return err
	}
	c.uniqueConstraints[field] = idx
	return nil
}

// EnsureExactIndex creates an ExactIndex on field.
func (c *Collection) EnsureExactIndex(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := newExactIndex(field)
	idx.rebuild(c.data)
	c.exactConstraints[field] = idx
}

// EnsureIndex creates or rebuilds a BinaryIndex on property, per spec
// §4.4. If the index exists and is not dirty (lazy mode) or already
// present (adaptive mode), and force is false, this is a no-op.
func (c *Collection) EnsureIndex(property string, force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureIndexLocked(property, force)
}

func (c *Collection) ensureIndexLocked(property string, force bool) *BinaryIndex {
	idx, exists := c.binaryIndices[property]
	if exists {
		if force {
			idx.rebuild(c.data)
			return idx
		}
		if !c.adaptiveBinaryIndices {
			idx.ensureFresh(c.data)
		}
		return idx
	}
	idx = newBinaryIndex(property, c.adaptiveBinaryIndices)
	idx.rebuild(c.data)
	c.binaryIndices[property] = idx
	return idx
}

// CheckIndexOptions configures CheckIndex's validation strategy.
type CheckIndexOptions struct {
	RandomSampling bool
	SamplingFactor float64
	Repair         bool
	Rand           func(n int) int // defaults to a fixed pseudo-random source
}

// CheckIndex validates that the named BinaryIndex is monotonic, optionally
// repairing it on failure (spec §4.4).
func (c *Collection) CheckIndex(property string, opts CheckIndexOptions) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.binaryIndices[property]
	if !ok {
		return false, wrapErr(ErrInvalidIndex, "collection %q has no index on %q", c.name, property)
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = defaultRand
	}
	factor := opts.SamplingFactor
	if factor <= 0 {
		factor = 1
	}
	ok2 := idx.Check(c.data, opts.RandomSampling, factor, rnd)
	if !ok2 && opts.Repair {
		idx.rebuild(c.data)
		return true, nil
	}
	return ok2, nil
}

// defaultRand is a tiny deterministic generator so CheckIndex's random
// sampling mode does not require seeding math/rand from callers that don't
// care about reproducibility.
func defaultRand(n int) int {
	if n <= 0 {
		return 0
	}
	defaultRandState = (defaultRandState*1103515245 + 12345) & 0x7fffffff
	return int(defaultRandState) % n
}

var defaultRandState int64 = 42

// Insert adds a single document, assigning it a fresh $id and meta block,
// updating every index and notifying every dynamic view, per spec §4.4.
func (c *Collection) Insert(doc Document) (Document, error) {
	if doc == nil {
		return nil, wrapErr(ErrInvalidArgument, "insert: nil document")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := c.insertLocked(doc)
	if err != nil {
		c.log.WithError(err).Warn("insert failed")
		return nil, err
	}
	if c.cloneOnInsert {
		return cloneDocument(stored), nil
	}
	return stored, nil
}

// InsertMany inserts every document. Adaptive binary indices are still
// maintained per document; lazy indices left dirty by the inserts are
// rebuilt once at the end.
func (c *Collection) InsertMany(docs []Document) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			return nil, wrapErr(ErrInvalidArgument, "insertMany: nil document")
		}
		stored, err := c.insertLocked(doc)
		if err != nil {
			return nil, err
		}
		if c.cloneOnInsert {
			stored = cloneDocument(stored)
		}
		out = append(out, stored)
	}
	c.rebuildDirtyIndices()
	return out, nil
}

func (c *Collection) insertLocked(doc Document) (stored Document, err error) {
	snap := c.snapshot()
	defer func() {
		if err != nil {
			c.restore(snap)
		}
	}()

	stored = cloneValue(doc).(Document)
	c.maxID++
	id := c.maxID
	stored["$id"] = id
	setMeta(stored, newMeta(time.Now()))

	c.log.WithField("op", "pre-insert").WithField("id", id).Debug("pre-insert")

	for field, idx := range c.uniqueConstraints {
		if e := idx.set(stored); e != nil {
			return nil, wrapErr(ErrDuplicateKey, "collection %q unique field %q: %v", c.name, field, e)
		}
	}

	pos := len(c.data)
	c.data = append(c.data, stored)
	c.idIndex = append(c.idIndex, id)

	for _, idx := range c.exactConstraints {
		idx.insert(stored)
	}
	for _, idx := range c.binaryIndices {
		if idx.adaptive {
			idx.insertAdaptive(c.data, pos)
		} else {
			idx.dirty = true
		}
	}

	for _, v := range c.dynamicViews {
		v.evaluateDocument(pos, true)
	}

	if c.changesAPI {
		c.changes = append(c.changes, Change{Collection: c.name, Kind: ChangeInsert, ID: id})
	}

	c.log.WithField("op", "insert").WithField("id", id).Debug("insert")
	return stored, nil
}

func (c *Collection) rebuildDirtyIndices() {
	for _, idx := range c.binaryIndices {
		if idx.dirty {
			idx.rebuild(c.data)
		}
	}
}

// getPositionByID binary-searches idIndex for id. Valid because $id is
// never reused and documents are only ever appended or removed in place,
// so idIndex stays sorted ascending (spec §9 Open Question, decision a).
func (c *Collection) getPositionByID(id int64) (int, bool) {
	i := sort.Search(len(c.idIndex), func(i int) bool { return c.idIndex[i] >= id })
	if i < len(c.idIndex) && c.idIndex[i] == id {
		return i, true
	}
	return 0, false
}

// Get returns the document with the given $id, or (nil, 0, false).
func (c *Collection) Get(id int64) (Document, int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.getPositionByID(id)
	if !ok {
		return nil, 0, false
	}
	return c.data[pos], pos, true
}

// Update replaces the stored document sharing doc["$id"] with doc, per
// spec §4.4. doc must carry a $id already present in the collection.
func (c *Collection) Update(doc Document) (Document, error) {
	id, ok := doc["$id"].(int64)
	if !ok {
		return nil, wrapErr(ErrUnsyncedDocument, "update: document has no $id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := c.updateLocked(id, doc)
	if err != nil {
		c.log.WithError(err).Warn("update failed")
		return nil, err
	}
	if c.cloneOnInsert {
		return cloneDocument(stored), nil
	}
	return stored, nil
}

func (c *Collection) updateLocked(id int64, doc Document) (stored Document, err error) {
	pos, ok := c.getPositionByID(id)
	if !ok {
		return nil, wrapErr(ErrNotFound, "collection %q: no document with $id %d", c.name, id)
	}

	snap := c.snapshot()
	defer func() {
		if err != nil {
			c.restore(snap)
		}
	}()

	c.log.WithField("op", "pre-update").WithField("id", id).Debug("pre-update")

	old := c.data[pos]
	newDoc := cloneValue(doc).(Document)
	newDoc["$id"] = id

	oldMeta := asMeta(old)
	newMetaBlock := oldMeta
	newMetaBlock.Revision++
	newMetaBlock.Updated = time.Now()
	if newMetaBlock.Created.IsZero() {
		newMetaBlock.Created = newMetaBlock.Updated
	}
	setMeta(newDoc, newMetaBlock)

	for field, idx := range c.uniqueConstraints {
		if e := idx.update(id, newDoc); e != nil {
			return nil, wrapErr(ErrDuplicateKey, "collection %q unique field %q: %v", c.name, field, e)
		}
	}

	for _, idx := range c.exactConstraints {
		idx.update(old, newDoc)
	}

	c.data[pos] = newDoc

	for _, idx := range c.binaryIndices {
		if idx.adaptive && !idx.dirty {
			// The document keeps its data position, so take pos out of
			// values without shifting the others, then re-insert it at its
			// new sort position.
			for i, p := range idx.values {
				if p == pos {
					idx.values = append(idx.values[:i], idx.values[i+1:]...)
					break
				}
			}
			idx.insertAdaptive(c.data, pos)
		} else {
			idx.dirty = true
		}
	}

	for _, v := range c.dynamicViews {
		v.evaluateDocument(pos, false)
	}

	if c.changesAPI {
		ch := Change{Collection: c.name, Kind: ChangeUpdate, ID: id}
		if c.deltaChanges {
			ch.Delta = deltaOf(old, newDoc)
		}
		c.changes = append(c.changes, ch)
	}

	c.log.WithField("op", "update").WithField("id", id).Debug("update")
	return newDoc, nil
}

// deltaOf computes a shallow field-level delta between old and updated,
// used by the Changes API when delta tracking is enabled.
func deltaOf(old, updated Document) Document {
	delta := bson.M{}
	for k, v := range updated {
		if ov, ok := old[k]; !ok || !Aeq(ov, v) {
			delta[k] = v
		}
	}
	return delta
}

// Remove deletes the document(s) named by selector, which may be a
// Document (matched by $id), an int64 id, or a []int64 of ids, per spec
// §4.4.
func (c *Collection) Remove(selector interface{}) error {
	ids, err := normalizeIDs(selector)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeByIDsLocked(ids)
}

func normalizeIDs(selector interface{}) ([]int64, error) {
	switch s := selector.(type) {
	case Document:
		id, ok := s["$id"].(int64)
		if !ok {
			return nil, wrapErr(ErrUnsyncedDocument, "remove: document has no $id")
		}
		return []int64{id}, nil
	case int64:
		return []int64{s}, nil
	case int:
		return []int64{int64(s)}, nil
	case []int64:
		return s, nil
	default:
		return nil, wrapErr(ErrInvalidArgument, "remove: unsupported selector %T", selector)
	}
}

func (c *Collection) removeByIDsLocked(ids []int64) (err error) {
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		if pos, ok := c.getPositionByID(id); ok {
			positions = append(positions, pos)
		} else {
			return wrapErr(ErrNotFound, "collection %q: no document with $id %d", c.name, id)
		}
	}
	return c.removeBatchByPositionsLocked(positions)
}

// RemoveBatchByPositions removes the documents at the given data
// positions, compensating every index and dynamic view. Resultset.remove()
// is the usual caller.
func (c *Collection) RemoveBatchByPositions(positions []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeBatchByPositionsLocked(positions)
}

func (c *Collection) removeBatchByPositionsLocked(positions []int) (err error) {
	if len(positions) == 0 {
		return nil
	}
	snap := c.snapshot()
	defer func() {
		if err != nil {
			c.restore(snap)
		}
	}()

	removedSet := make(map[int]bool, len(positions))
	for _, p := range positions {
		removedSet[p] = true
	}

	removedDocs := make([]Document, 0, len(positions))
	for p := range removedSet {
		removedDocs = append(removedDocs, c.data[p])
	}

	for _, idx := range c.uniqueConstraints {
		for _, doc := range removedDocs {
			id, _ := doc["$id"].(int64)
			idx.remove(id)
		}
	}
	for _, idx := range c.exactConstraints {
		for _, doc := range removedDocs {
			idx.remove(doc)
		}
	}

	// Dynamic views see the full position set before any index compaction,
	// per spec §5 batch-remove ordering guarantee.
	for _, v := range c.dynamicViews {
		v.removeDocuments(positions)
	}

	oldLen := len(c.data)
	for _, idx := range c.binaryIndices {
		if idx.adaptive {
			idx.removeBatchAdaptive(removedSet, oldLen)
		} else {
			idx.dirty = true
		}
	}

	newData := make([]Document, 0, oldLen-len(removedSet))
	newIDIndex := make([]int64, 0, oldLen-len(removedSet))
	for i, doc := range c.data {
		if removedSet[i] {
			continue
		}
		newData = append(newData, doc)
		newIDIndex = append(newIDIndex, c.idIndex[i])
	}
	c.data = newData
	c.idIndex = newIDIndex

	if c.changesAPI {
		for _, doc := range removedDocs {
			id, _ := doc["$id"].(int64)
			c.changes = append(c.changes, Change{Collection: c.name, Kind: ChangeRemove, ID: id})
		}
	}

	c.log.WithField("op", "delete").WithField("count", len(removedDocs)).Debug("delete")
	return nil
}

// Chain starts a fresh Resultset pipeline bound to this collection.
func (c *Collection) Chain() *Resultset {
	return newResultset(c)
}

// Find is shorthand for Chain().Find(query).
func (c *Collection) Find(query Document) *Resultset {
	return c.Chain().Find(query, false)
}

// By performs a direct unique-index lookup, bypassing the Resultset
// pipeline entirely.
func (c *Collection) By(field string, value interface{}) (Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.uniqueConstraints[field]
	if !ok {
		return nil, false
	}
	return idx.get(value)
}

// AddDynamicView creates and registers a new DynamicView on this
// collection.
func (c *Collection) AddDynamicView(name string, opts DynamicViewOptions) *DynamicView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := newDynamicView(c, name, opts)
	c.dynamicViews = append(c.dynamicViews, v)
	return v
}

// RemoveDynamicView unregisters the named view.
func (c *Collection) RemoveDynamicView(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.dynamicViews {
		if v.name == name {
			c.dynamicViews = append(c.dynamicViews[:i], c.dynamicViews[i+1:]...)
			return
		}
	}
}

// CalculateRange resolves the data positions satisfying {property: {op:
// value}} directly from property's BinaryIndex (building it on demand),
// per spec §4.4.
func (c *Collection) CalculateRange(op OpTag, property string, value interface{}) ([]int, error) {
	if !IndexEligible(op) {
		return nil, wrapErr(ErrInvalidArgument, "operator %q is not index-eligible", op)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.ensureIndexLocked(property, false)
	return idx.Positions(c.data, op, value), nil
}

// Changes returns every recorded Change since the Changes API was
// enabled, or since the last ClearChanges call.
func (c *Collection) Changes() []Change {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Change(nil), c.changes...)
}

// ClearChanges discards every recorded Change.
func (c *Collection) ClearChanges() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = nil
}

// instanceID returns a fresh UUID string; snapshot() stamps every
// txnSnapshot with one. The id is not written to the log or the change log.
func instanceID() string { return uuid.NewString() }
