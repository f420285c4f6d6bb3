package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestCollection() *Collection {
	return newCollection("widgets", CollectionOptions{})
}

func TestInsertAssignsIncreasingID(t *testing.T) {
	c := newTestCollection()
	a, err := c.Insert(bson.M{"name": "a"})
	require.NoError(t, err)
	b, err := c.Insert(bson.M{"name": "b"})
	require.NoError(t, err)
	assert.Less(t, a["$id"].(int64), b["$id"].(int64))
	assert.Equal(t, 2, c.Count())
}

func TestInsertStampsMeta(t *testing.T) {
	c := newTestCollection()
	doc, err := c.Insert(bson.M{"name": "a"})
	require.NoError(t, err)
	m := asMeta(doc)
	assert.False(t, m.Created.IsZero())
	assert.Equal(t, int64(0), m.Revision)
}

func TestGetByID(t *testing.T) {
	c := newTestCollection()
	doc, _ := c.Insert(bson.M{"name": "a"})
	id := doc["$id"].(int64)
	got, _, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "a", got["name"])
	_, _, ok = c.Get(id + 999)
	assert.False(t, ok)
}

func TestUpdateBumpsRevision(t *testing.T) {
	c := newTestCollection()
	doc, _ := c.Insert(bson.M{"name": "a"})
	doc["name"] = "b"
	updated, err := c.Update(doc)
	require.NoError(t, err)
	assert.Equal(t, "b", updated["name"])
	assert.Equal(t, int64(1), asMeta(updated).Revision)
}

func TestUpdateWithoutIDFails(t *testing.T) {
	c := newTestCollection()
	_, err := c.Update(bson.M{"name": "a"})
	assert.ErrorIs(t, err, ErrUnsyncedDocument)
}

func TestRemoveByID(t *testing.T) {
	c := newTestCollection()
	doc, _ := c.Insert(bson.M{"name": "a"})
	id := doc["$id"].(int64)
	require.NoError(t, c.Remove(id))
	assert.Equal(t, 0, c.Count())
	_, _, ok := c.Get(id)
	assert.False(t, ok)
}

func TestRemoveThenInsertIdentity(t *testing.T) {
	c := newTestCollection()
	doc, _ := c.Insert(bson.M{"name": "a"})
	require.NoError(t, c.Remove(doc))
	doc2, _ := c.Insert(bson.M{"name": "a"})
	assert.Equal(t, "a", doc2["name"])
	assert.Equal(t, 1, c.Count())
}

func TestUniqueIndexEnforced(t *testing.T) {
	c := newTestCollection()
	require.NoError(t, c.EnsureUniqueIndex("email"))
	_, err := c.Insert(bson.M{"email": "a@example.com"})
	require.NoError(t, err)
	_, err = c.Insert(bson.M{"email": "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestEnsureIndexAndCalculateRange(t *testing.T) {
	c := newTestCollection()
	for _, age := range []int{30, 10, 20} {
		_, err := c.Insert(bson.M{"age": age})
		require.NoError(t, err)
	}
	c.EnsureIndex("age", false)
	positions, err := c.CalculateRange(OpGte, "age", 20)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestCheckIndexReportsDirtyIndexValid(t *testing.T) {
	c := newTestCollection()
	c.EnsureIndex("age", false)
	_, _ = c.Insert(bson.M{"age": 5})
	ok, err := c.CheckIndex("age", CheckIndexOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestByUniqueLookup(t *testing.T) {
	c := newTestCollection()
	require.NoError(t, c.EnsureUniqueIndex("email"))
	_, _ = c.Insert(bson.M{"email": "a@example.com"})
	doc, ok := c.By("email", "a@example.com")
	assert.True(t, ok)
	assert.Equal(t, "a@example.com", doc["email"])
}

func TestTransactionRollback(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(bson.M{"name": "a"})
	txn := c.StartTransaction()
	_, _ = c.Insert(bson.M{"name": "b"})
	assert.Equal(t, 2, c.Count())
	txn.Rollback()
	assert.Equal(t, 1, c.Count())
}

func TestTransactionCommitKeepsChanges(t *testing.T) {
	c := newTestCollection()
	txn := c.StartTransaction()
	_, _ = c.Insert(bson.M{"name": "a"})
	txn.Commit()
	assert.Equal(t, 1, c.Count())
}

func TestInsertManyBatchesIndexRebuild(t *testing.T) {
	c := newTestCollection()
	c.EnsureIndex("age", false)
	docs, err := c.InsertMany([]Document{
		{"age": 3}, {"age": 1}, {"age": 2},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	positions, err := c.CalculateRange(OpGte, "age", 2)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestChangesAPIRecordsMutations(t *testing.T) {
	c := newCollection("widgets", CollectionOptions{ChangesAPI: true})
	doc, _ := c.Insert(bson.M{"name": "a"})
	doc["name"] = "b"
	_, _ = c.Update(doc)
	_ = c.Remove(doc["$id"])
	changes := c.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeInsert, changes[0].Kind)
	assert.Equal(t, ChangeUpdate, changes[1].Kind)
	assert.Equal(t, ChangeRemove, changes[2].Kind)
}
