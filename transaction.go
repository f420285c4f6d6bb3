package lokidb

import "github.com/google/uuid"

// txnSnapshot captures enough of a Collection's state to roll back a
// failed mutation or an explicitly started transaction, per spec §4.4.
// BinaryIndex/UniqueIndex/ExactIndex are snapshotted by shallow-copying
// their internal maps/slices, which is sufficient because every mutation
// path replaces rather than mutates-in-place the map entries or slice
// elements it touches.
type txnSnapshot struct {
	id      string
	data    []Document
	idIndex []int64
	maxID   int64

	binaryIndices     map[string]*BinaryIndex
	uniqueConstraints map[string]*UniqueIndex
	exactConstraints  map[string]*ExactIndex
}

// snapshot captures the collection's current state. Called internally by
// every mutating operation so it can restore on a mid-operation failure
// (e.g. a unique-constraint violation discovered after the binary indices
// were already touched).
func (c *Collection) snapshot() *txnSnapshot {
	snap := &txnSnapshot{
		id:                instanceID(),
		data:              append([]Document(nil), c.data...),
		idIndex:           append([]int64(nil), c.idIndex...),
		maxID:             c.maxID,
		binaryIndices:     make(map[string]*BinaryIndex, len(c.binaryIndices)),
		uniqueConstraints: make(map[string]*UniqueIndex, len(c.uniqueConstraints)),
		exactConstraints:  make(map[string]*ExactIndex, len(c.exactConstraints)),
	}
	for k, idx := range c.binaryIndices {
		cp := *idx
		cp.values = append([]int(nil), idx.values...)
		snap.binaryIndices[k] = &cp
	}
	for k, idx := range c.uniqueConstraints {
		cp := *idx
		cp.keyMap = make(map[interface{}]Document, len(idx.keyMap))
		for kk, vv := range idx.keyMap {
			cp.keyMap[kk] = vv
		}
		cp.idMap = make(map[int64]interface{}, len(idx.idMap))
		for kk, vv := range idx.idMap {
			cp.idMap[kk] = vv
		}
		snap.uniqueConstraints[k] = &cp
	}
	for k, idx := range c.exactConstraints {
		cp := *idx
		cp.table = make(map[interface{}][]Document, len(idx.table))
		for kk, vv := range idx.table {
			cp.table[kk] = append([]Document(nil), vv...)
		}
		snap.exactConstraints[k] = &cp
	}
	return snap
}

// restore reverts the collection to a previously captured snapshot.
func (c *Collection) restore(snap *txnSnapshot) {
	c.data = snap.data
	c.idIndex = snap.idIndex
	c.maxID = snap.maxID
	c.binaryIndices = snap.binaryIndices
	c.uniqueConstraints = snap.uniqueConstraints
	c.exactConstraints = snap.exactConstraints
	for _, v := range c.dynamicViews {
		v.rebuild()
	}
}

// Transaction is a handle returned by StartTransaction, committed or
// rolled back explicitly by the caller, per spec §4.4's transaction
// support (distinct from the implicit per-operation snapshot/restore used
// to keep a single mutation atomic against its own index updates).
type Transaction struct {
	id   string
	coll *Collection
	snap *txnSnapshot
	done bool
}

// StartTransaction snapshots the collection and returns a handle that must
// be Committed or RolledBack.
func (c *Collection) StartTransaction() *Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Transaction{id: uuid.NewString(), coll: c, snap: c.snapshot()}
}

// Commit discards the snapshot, keeping whatever mutations happened on the
// collection since StartTransaction.
func (t *Transaction) Commit() {
	if t.done {
		return
	}
	t.done = true
}

// Rollback restores the collection to the state captured at
// StartTransaction, discarding every mutation made since.
func (t *Transaction) Rollback() {
	if t.done {
		return
	}
	t.coll.mu.Lock()
	defer t.coll.mu.Unlock()
	t.coll.restore(t.snap)
	t.done = true
}
