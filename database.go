package lokidb

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Database is the top-level container described in spec §7: a named set
// of collections plus an optional persistence boundary. Persistence
// itself is deliberately out of scope beyond the StorageAdapter contract;
// Database only orchestrates format selection and save coalescing.
type Database struct {
	mu          sync.RWMutex
	name        string
	collections map[string]*Collection
	order       []string // insertion order, used by ListCollections and Clone

	adapter StorageAdapter
	format  SerializeFormat

	saveGroup singleflight.Group // coalesces concurrent SaveDatabase calls

	log *logrus.Entry
}

// DatabaseOptions configures a Database at creation time.
type DatabaseOptions struct {
	Adapter StorageAdapter
	Format  SerializeFormat
}

// NewDatabase creates an empty, named Database.
func NewDatabase(name string, opts DatabaseOptions) *Database {
	return &Database{
		name:        name,
		collections: map[string]*Collection{},
		adapter:     opts.Adapter,
		format:      opts.Format,
		log:         logrus.WithField("database", name),
	}
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// AddCollection creates and registers a new, empty Collection.
func (db *Database) AddCollection(name string, opts CollectionOptions) *Collection {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.addCollectionLocked(name, opts)
}

func (db *Database) addCollectionLocked(name string, opts CollectionOptions) *Collection {
	if c, ok := db.collections[name]; ok {
		return c
	}
	c := newCollection(name, opts)
	c.db = db
	db.collections[name] = c
	db.order = append(db.order, name)
	return c
}

// GetCollection returns the named collection, or (nil, false).
func (db *Database) GetCollection(name string) (*Collection, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.collections[name]
	return c, ok
}

// RemoveCollection unregisters and discards the named collection.
func (db *Database) RemoveCollection(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.collections, name)
	for i, n := range db.order {
		if n == name {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
}

// RenameCollection renames a collection in place, preserving its data,
// indices and dynamic views. Supplements the distilled spec, which names
// collections only at creation time.
func (db *Database) RenameCollection(oldName, newName string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.collections[oldName]
	if !ok {
		return wrapErr(ErrNotFound, "database %q: no collection %q", db.name, oldName)
	}
	if _, exists := db.collections[newName]; exists {
		return wrapErr(ErrDuplicateKey, "database %q: collection %q already exists", db.name, newName)
	}
	delete(db.collections, oldName)
	c.mu.Lock()
	c.name = newName
	c.log = logrus.WithField("collection", newName)
	c.mu.Unlock()
	db.collections[newName] = c
	for i, n := range db.order {
		if n == oldName {
			db.order[i] = newName
			break
		}
	}
	return nil
}

// CopyCollection duplicates srcName's entire contents (data, indices and
// transforms, but not dynamic views) under dstName, returning the new
// collection. Supplements the distilled spec's collection lifecycle.
func (db *Database) CopyCollection(srcName, dstName string) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	src, ok := db.collections[srcName]
	if !ok {
		return nil, wrapErr(ErrNotFound, "database %q: no collection %q", db.name, srcName)
	}
	if _, exists := db.collections[dstName]; exists {
		return nil, wrapErr(ErrDuplicateKey, "database %q: collection %q already exists", db.name, dstName)
	}

	src.mu.RLock()
	docs := make([]Document, len(src.data))
	for i, d := range src.data {
		docs[i] = cloneDocument(d)
	}
	maxID := src.maxID
	uniqueFields := make([]string, 0, len(src.uniqueConstraints))
	for f := range src.uniqueConstraints {
		uniqueFields = append(uniqueFields, f)
	}
	exactFields := make([]string, 0, len(src.exactConstraints))
	for f := range src.exactConstraints {
		exactFields = append(exactFields, f)
	}
	binaryFields := make([]string, 0, len(src.binaryIndices))
	for f := range src.binaryIndices {
		binaryFields = append(binaryFields, f)
	}
	transforms := make(map[string][]TransformStep, len(src.transforms))
	for k, v := range src.transforms {
		transforms[k] = v
	}
	opts := CollectionOptions{
		AdaptiveBinaryIndices: src.adaptiveBinaryIndices,
		CloneOnInsert:         src.cloneOnInsert,
		ChangesAPI:            src.changesAPI,
		DeltaChanges:          src.deltaChanges,
	}
	src.mu.RUnlock()

	dst := db.addCollectionLocked(dstName, opts)
	dst.replaceData(docs, maxID)
	for _, f := range uniqueFields {
		dst.mu.Lock()
		idx := newUniqueIndex(f)
		idx.rebuild(dst.data)
		dst.uniqueConstraints[f] = idx
		dst.mu.Unlock()
	}
	for _, f := range exactFields {
		dst.EnsureExactIndex(f)
	}
	for _, f := range binaryFields {
		dst.EnsureIndex(f, true)
	}
	dst.mu.Lock()
	dst.transforms = transforms
	dst.mu.Unlock()

	return dst, nil
}

// ListCollections returns every collection name in creation order.
func (db *Database) ListCollections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.order...)
}

// Clone deep-copies every collection's data, $id counter and options into
// a new database under a new name. Indices, transforms and dynamic views
// are not copied. Supplements the distilled spec's persistence boundary
// with an in-process snapshot primitive.
func (db *Database) Clone(newName string) (*Database, error) {
	db.mu.RLock()
	names := append([]string(nil), db.order...)
	db.mu.RUnlock()

	clone := NewDatabase(newName, DatabaseOptions{Adapter: db.adapter, Format: db.format})
	for _, name := range names {
		if _, err := db.CopyCollectionInto(clone, name, name); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// CopyCollectionInto copies srcName's documents, $id counter and options
// from db into dst under dstName, used by Clone and available directly for
// cross-database duplication. Indices, transforms and dynamic views are not
// copied.
func (db *Database) CopyCollectionInto(dst *Database, srcName, dstName string) (*Collection, error) {
	db.mu.RLock()
	src, ok := db.collections[srcName]
	db.mu.RUnlock()
	if !ok {
		return nil, wrapErr(ErrNotFound, "database %q: no collection %q", db.name, srcName)
	}

	src.mu.RLock()
	docs := make([]Document, len(src.data))
	for i, d := range src.data {
		docs[i] = cloneDocument(d)
	}
	maxID := src.maxID
	opts := CollectionOptions{
		AdaptiveBinaryIndices: src.adaptiveBinaryIndices,
		CloneOnInsert:         src.cloneOnInsert,
		ChangesAPI:            src.changesAPI,
		DeltaChanges:          src.deltaChanges,
	}
	src.mu.RUnlock()

	dst.mu.Lock()
	c := dst.addCollectionLocked(dstName, opts)
	dst.mu.Unlock()
	c.replaceData(docs, maxID)
	return c, nil
}

// Serialize renders the whole database in the requested format.
func (db *Database) Serialize(format SerializeFormat) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	switch format {
	case FormatPretty:
		return db.serializePretty()
	case FormatDestructured:
		export, err := db.serializeDestructured()
		if err != nil {
			return nil, err
		}
		return marshalDestructured(export)
	default:
		return db.serializeNormal()
	}
}

// LoadJSON merges a Normal/Pretty export into the database.
func (db *Database) LoadJSON(raw []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.loadNormal(raw)
}

// LoadDestructured merges a FormatDestructured export into the database.
func (db *Database) LoadDestructured(raw []byte) error {
	export, err := unmarshalDestructured(raw)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.loadDestructured(export)
}

// SaveDatabase serializes the database with its configured format and
// hands the bytes to its adapter. Concurrent SaveDatabase calls for the
// same database are coalesced into a single adapter write via
// singleflight, per spec §7's throttled save queue.
func (db *Database) SaveDatabase(ctx context.Context) error {
	if db.adapter == nil {
		return wrapErr(ErrAdapterError, "database %q has no storage adapter configured", db.name)
	}
	_, err, _ := db.saveGroup.Do(db.name, func() (interface{}, error) {
		serialized, err := db.Serialize(db.format)
		if err != nil {
			return nil, err
		}
		if err := db.adapter.SaveDatabase(ctx, db.name, serialized); err != nil {
			return nil, wrapErr(ErrAdapterError, "save database %q: %v", db.name, err)
		}
		return nil, nil
	})
	if err != nil {
		db.log.WithError(err).Warn("save failed")
	}
	return err
}

// LoadDatabase retrieves and merges the database's persisted bytes
// through its adapter.
func (db *Database) LoadDatabase(ctx context.Context) error {
	if db.adapter == nil {
		return wrapErr(ErrAdapterError, "database %q has no storage adapter configured", db.name)
	}
	raw, err := db.adapter.LoadDatabase(ctx, db.name)
	if err != nil {
		return wrapErr(ErrAdapterError, "load database %q: %v", db.name, err)
	}
	if db.format == FormatDestructured {
		return db.LoadDestructured(raw)
	}
	return db.LoadJSON(raw)
}

// DeleteDatabase removes the database's persisted bytes through its
// adapter, without affecting the in-memory collections.
func (db *Database) DeleteDatabase(ctx context.Context) error {
	if db.adapter == nil {
		return wrapErr(ErrAdapterError, "database %q has no storage adapter configured", db.name)
	}
	if err := db.adapter.DeleteDatabase(ctx, db.name); err != nil {
		return wrapErr(ErrAdapterError, "delete database %q: %v", db.name, err)
	}
	return nil
}

// Close stops every collection's TTL sweep goroutine. It does not persist
// or discard data.
func (db *Database) Close() {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, c := range db.collections {
		c.DisableTTL()
	}
}
