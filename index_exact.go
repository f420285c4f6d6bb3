package lokidb

// ExactIndex provides bag semantics (duplicates allowed) for equality
// lookup on field without requiring a sort, per spec §4.3.
type ExactIndex struct {
	field string
	path  Path
	table map[interface{}][]Document
}

func newExactIndex(field string) *ExactIndex {
	return &ExactIndex{field: field, path: CompilePath(field), table: map[interface{}][]Document{}}
}

func (e *ExactIndex) insert(doc Document) {
	v := e.path.Value(doc)
	if v == nil {
		return
	}
	e.table[v] = append(e.table[v], doc)
}

func (e *ExactIndex) remove(doc Document) {
	v := e.path.Value(doc)
	id, _ := doc["$id"].(int64)
	bucket := e.table[v]
	for i, d := range bucket {
		if did, _ := d["$id"].(int64); did == id {
			e.table[v] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(e.table[v]) == 0 {
		delete(e.table, v)
	}
}

func (e *ExactIndex) update(oldDoc, newDoc Document) {
	e.remove(oldDoc)
	e.insert(newDoc)
}

func (e *ExactIndex) Get(value interface{}) []Document {
	return e.table[value]
}

func (e *ExactIndex) rebuild(data []Document) {
	e.table = map[interface{}][]Document{}
	for _, doc := range data {
		e.insert(doc)
	}
}
