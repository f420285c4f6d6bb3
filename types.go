// Package lokidb implements an in-memory, schemaless document database
// with sorted and exact-match indices, MongoDB-style queries, a chainable
// result pipeline and incrementally maintained dynamic views. Persistence
// is optional and delegated to a small StorageAdapter boundary (storage.go)
// rather than baked into the engine itself.
package lokidb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is a schemaless record. The reserved "$id" field holds a
// monotonically assigned int64 unique within its collection; "meta" holds
// bookkeeping (created/updated/revision/version) maintained by Collection.
type Document = bson.M

// Meta is the bookkeeping block stored under doc["meta"].
type Meta struct {
	Created  time.Time `bson:"created"`
	Updated  time.Time `bson:"updated"`
	Revision int64     `bson:"revision"`
	Version  int       `bson:"version"`
}

func newMeta(now time.Time) Meta {
	return Meta{Created: now, Updated: now, Revision: 0, Version: 0}
}

// ChangeKind identifies a Changes API record (spec §4.4): insert, update,
// or remove.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "I"
	ChangeUpdate ChangeKind = "U"
	ChangeRemove ChangeKind = "R"
)

// Change is one entry of a collection's change log, appended when the
// Changes API is enabled.
type Change struct {
	Collection string
	Kind       ChangeKind
	ID         int64
	Delta      Document // populated for ChangeUpdate when delta tracking is enabled
}

// asMeta extracts the meta block from a document, tolerating a missing or
// malformed block by returning the zero value.
func asMeta(doc Document) Meta {
	raw, ok := doc["meta"]
	if !ok {
		return Meta{}
	}
	switch m := raw.(type) {
	case Meta:
		return m
	case bson.M:
		return metaFromMap(m)
	case map[string]interface{}:
		return metaFromMap(m)
	default:
		return Meta{}
	}
}

// metaFromMap reads a meta block that may have round-tripped through
// JSON, where time.Time values arrive back as RFC3339Nano strings rather
// than time.Time.
func metaFromMap(m map[string]interface{}) Meta {
	meta := Meta{}
	meta.Created = metaTime(m["created"])
	meta.Updated = metaTime(m["updated"])
	if r, ok := m["revision"]; ok {
		meta.Revision = toInt64(r)
	}
	if v, ok := m["version"]; ok {
		meta.Version = int(toInt64(v))
	}
	return meta
}

func metaTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func setMeta(doc Document, m Meta) {
	doc["meta"] = bson.M{
		"created":  m.Created,
		"updated":  m.Updated,
		"revision": m.Revision,
		"version":  m.Version,
	}
}

// cloneDocument deep-copies a document so that callers who receive it
// cannot mutate collection-owned state, per the "frozen documents" note in
// spec §9: documents become immutable after insert, and mutation produces
// a new document that replaces the slot.
func cloneDocument(doc Document) Document {
	return cloneValue(doc).(Document)
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
