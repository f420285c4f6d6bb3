package lokidb

// UniqueIndex enforces a uniqueness constraint on field, mapping a field
// value to the owning document reference and back from $id to value, per
// spec §3/§4.3.
type UniqueIndex struct {
	field string
	path  Path
	keyMap map[interface{}]Document
	idMap  map[int64]interface{}
}

func newUniqueIndex(field string) *UniqueIndex {
	return &UniqueIndex{
		field:  field,
		path:   CompilePath(field),
		keyMap: map[interface{}]Document{},
		idMap:  map[int64]interface{}{},
	}
}

// set registers doc's value for field, returning ErrDuplicateKey if a
// different document already owns that (non-null) value.
func (u *UniqueIndex) set(doc Document) error {
	v := u.path.Value(doc)
	if v == nil {
		return nil
	}
	id, _ := doc["$id"].(int64)
	if existing, ok := u.keyMap[v]; ok {
		if eid, _ := existing["$id"].(int64); eid != id {
			return wrapErr(ErrDuplicateKey, "field %q value %v", u.field, v)
		}
	}
	u.keyMap[v] = doc
	u.idMap[id] = v
	return nil
}

// update replaces the mapping for id's old value with newDoc's value,
// enforcing uniqueness against the new value.
func (u *UniqueIndex) update(id int64, newDoc Document) error {
	oldVal, hadOld := u.idMap[id]
	newVal := u.path.Value(newDoc)

	if newVal != nil {
		if existing, ok := u.keyMap[newVal]; ok {
			if eid, _ := existing["$id"].(int64); eid != id {
				return wrapErr(ErrDuplicateKey, "field %q value %v", u.field, newVal)
			}
		}
	}
	if hadOld && oldVal != newVal {
		delete(u.keyMap, oldVal)
	}
	if newVal != nil {
		u.keyMap[newVal] = newDoc
		u.idMap[id] = newVal
	} else {
		delete(u.idMap, id)
	}
	return nil
}

// remove clears both maps for id.
func (u *UniqueIndex) remove(id int64) {
	if v, ok := u.idMap[id]; ok {
		delete(u.keyMap, v)
		delete(u.idMap, id)
	}
}

// get looks up the document owning value, or nil.
func (u *UniqueIndex) get(value interface{}) (Document, bool) {
	d, ok := u.keyMap[value]
	return d, ok
}

// rebuild recomputes both maps from scratch by scanning data, used on
// reload (spec §4.3).
func (u *UniqueIndex) rebuild(data []Document) error {
	u.keyMap = map[interface{}]Document{}
	u.idMap = map[int64]interface{}{}
	for _, doc := range data {
		if err := u.set(doc); err != nil {
			return err
		}
	}
	return nil
}
