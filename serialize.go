package lokidb

import "encoding/json"

// SerializeFormat selects one of the three on-disk shapes described in
// spec §7.
type SerializeFormat int

const (
	// FormatNormal is a single compact JSON document: the whole database,
	// every collection and every document inline.
	FormatNormal SerializeFormat = iota
	// FormatPretty is FormatNormal indented for human inspection.
	FormatPretty
	// FormatDestructured splits each collection's documents into their own
	// named chunk, so a StorageAdapter can persist/replace collections
	// independently instead of rewriting the whole database on every save.
	FormatDestructured
)

// CurrentDatabaseVersion is stamped into every serialized database. Load
// does not compare it; instead replaceData backfills a meta block on any
// loaded document that arrives without one.
const CurrentDatabaseVersion = 1.5

// dbExport is the Normal/Pretty on-wire shape of an entire Database.
type dbExport struct {
	Name        string            `json:"name"`
	Version     float64           `json:"databaseVersion"`
	MaxID       map[string]int64  `json:"maxId"`
	Collections map[string][]Document `json:"collections"`
}

// serializeNormal renders the whole database as one compact JSON document.
func (db *Database) serializeNormal() ([]byte, error) {
	return json.Marshal(db.export())
}

// serializePretty renders the whole database as one indented JSON
// document.
func (db *Database) serializePretty() ([]byte, error) {
	return json.MarshalIndent(db.export(), "", "  ")
}

func (db *Database) export() dbExport {
	exp := dbExport{
		Name:        db.name,
		Version:     CurrentDatabaseVersion,
		MaxID:       map[string]int64{},
		Collections: map[string][]Document{},
	}
	for name, c := range db.collections {
		c.mu.RLock()
		exp.MaxID[name] = c.maxID
		docs := make([]Document, len(c.data))
		copy(docs, c.data)
		c.mu.RUnlock()
		exp.Collections[name] = docs
	}
	return exp
}

// DestructuredExport is the FormatDestructured on-wire shape: a small
// manifest plus one independently (de)serializable chunk per collection.
type DestructuredExport struct {
	Manifest []byte
	Chunks   map[string][]byte // collection name -> JSON array of its documents
}

type destructuredManifest struct {
	Name    string           `json:"name"`
	Version float64          `json:"databaseVersion"`
	MaxID   map[string]int64 `json:"maxId"`
	Names   []string         `json:"collections"`
}

func (db *Database) serializeDestructured() (DestructuredExport, error) {
	manifest := destructuredManifest{Name: db.name, Version: CurrentDatabaseVersion, MaxID: map[string]int64{}}
	chunks := map[string][]byte{}
	for name, c := range db.collections {
		c.mu.RLock()
		manifest.MaxID[name] = c.maxID
		docs := make([]Document, len(c.data))
		copy(docs, c.data)
		c.mu.RUnlock()

		manifest.Names = append(manifest.Names, name)
		chunk, err := json.Marshal(docs)
		if err != nil {
			return DestructuredExport{}, wrapErr(ErrAdapterError, "serialize collection %q: %v", name, err)
		}
		chunks[name] = chunk
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return DestructuredExport{}, wrapErr(ErrAdapterError, "serialize manifest: %v", err)
	}
	return DestructuredExport{Manifest: manifestBytes, Chunks: chunks}, nil
}

// loadNormal replaces every collection's contents from a Normal/Pretty
// export, rebuilding every index. Collections present in db but absent
// from the export are left untouched, matching spec §7's "load merges,
// it does not replace collections wholesale" note.
func (db *Database) loadNormal(raw []byte) error {
	var exp dbExport
	if err := json.Unmarshal(raw, &exp); err != nil {
		return wrapErr(ErrAdapterError, "loadJSON: %v", err)
	}
	for name, docs := range exp.Collections {
		c, ok := db.collections[name]
		if !ok {
			c = db.addCollectionLocked(name, CollectionOptions{})
		}
		c.replaceData(docs, exp.MaxID[name])
	}
	return nil
}

// marshalDestructured and unmarshalDestructured wrap a DestructuredExport
// into a single []byte envelope so it can flow through the same generic
// StorageAdapter contract as Normal/Pretty payloads; Manifest and each
// Chunks entry round-trip as base64 strings under the hood via
// encoding/json's []byte handling.
func marshalDestructured(exp DestructuredExport) ([]byte, error) {
	return json.Marshal(exp)
}

func unmarshalDestructured(raw []byte) (DestructuredExport, error) {
	var exp DestructuredExport
	if err := json.Unmarshal(raw, &exp); err != nil {
		return DestructuredExport{}, wrapErr(ErrAdapterError, "unmarshal destructured export: %v", err)
	}
	return exp, nil
}

func (db *Database) loadDestructured(exp DestructuredExport) error {
	var manifest destructuredManifest
	if err := json.Unmarshal(exp.Manifest, &manifest); err != nil {
		return wrapErr(ErrAdapterError, "loadDestructured: manifest: %v", err)
	}
	for _, name := range manifest.Names {
		chunk, ok := exp.Chunks[name]
		if !ok {
			continue
		}
		var docs []Document
		if err := json.Unmarshal(chunk, &docs); err != nil {
			return wrapErr(ErrAdapterError, "loadDestructured: collection %q: %v", name, err)
		}
		c, ok := db.collections[name]
		if !ok {
			c = db.addCollectionLocked(name, CollectionOptions{})
		}
		c.replaceData(docs, manifest.MaxID[name])
	}
	return nil
}

// replaceData swaps in docs as the collection's entire content and
// rebuilds every index from scratch, used by load paths.
func (c *Collection) replaceData(docs []Document, maxID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = docs
	c.idIndex = make([]int64, len(docs))
	highest := maxID
	for i, doc := range docs {
		// $id round-trips through JSON as float64; normalize back to the
		// int64 every other code path expects.
		id := toInt64(doc["$id"])
		doc["$id"] = id
		c.idIndex[i] = id
		if id > highest {
			highest = id
		}
		if _, hasMeta := doc["meta"]; !hasMeta {
			// Exported without a meta block: backfill one so TTL/changes/
			// update bookkeeping has something to work from.
			setMeta(doc, newMeta(asMeta(doc).Created))
		}
	}
	c.maxID = highest

	for _, idx := range c.uniqueConstraints {
		idx.rebuild(c.data)
	}
	for _, idx := range c.exactConstraints {
		idx.rebuild(c.data)
	}
	for _, idx := range c.binaryIndices {
		idx.rebuild(c.data)
	}
	for _, v := range c.dynamicViews {
		v.rebuild()
	}
}
