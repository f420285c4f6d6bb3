package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUniqueIndexSetAndGet(t *testing.T) {
	idx := newUniqueIndex("email")
	doc := bson.M{"$id": int64(1), "email": "a@example.com"}
	assert.NoError(t, idx.set(doc))
	found, ok := idx.get("a@example.com")
	assert.True(t, ok)
	assert.Equal(t, doc, found)
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	idx := newUniqueIndex("email")
	assert.NoError(t, idx.set(bson.M{"$id": int64(1), "email": "a@example.com"}))
	err := idx.set(bson.M{"$id": int64(2), "email": "a@example.com"})
	assert.Error(t, err)
}

func TestUniqueIndexUpdate(t *testing.T) {
	idx := newUniqueIndex("email")
	assert.NoError(t, idx.set(bson.M{"$id": int64(1), "email": "old@example.com"}))
	assert.NoError(t, idx.update(1, bson.M{"$id": int64(1), "email": "new@example.com"}))
	_, ok := idx.get("old@example.com")
	assert.False(t, ok)
	found, ok := idx.get("new@example.com")
	assert.True(t, ok)
	assert.Equal(t, "new@example.com", found["email"])
}

func TestUniqueIndexUpdateConflict(t *testing.T) {
	idx := newUniqueIndex("email")
	assert.NoError(t, idx.set(bson.M{"$id": int64(1), "email": "a@example.com"}))
	assert.NoError(t, idx.set(bson.M{"$id": int64(2), "email": "b@example.com"}))
	err := idx.update(2, bson.M{"$id": int64(2), "email": "a@example.com"})
	assert.Error(t, err)
}

func TestUniqueIndexRemove(t *testing.T) {
	idx := newUniqueIndex("email")
	assert.NoError(t, idx.set(bson.M{"$id": int64(1), "email": "a@example.com"}))
	idx.remove(1)
	_, ok := idx.get("a@example.com")
	assert.False(t, ok)
}
