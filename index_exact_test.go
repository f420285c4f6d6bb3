package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExactIndexBagSemantics(t *testing.T) {
	idx := newExactIndex("category")
	a := bson.M{"$id": int64(1), "category": "fruit"}
	b := bson.M{"$id": int64(2), "category": "fruit"}
	idx.insert(a)
	idx.insert(b)
	assert.Len(t, idx.Get("fruit"), 2)
}

func TestExactIndexRemove(t *testing.T) {
	idx := newExactIndex("category")
	a := bson.M{"$id": int64(1), "category": "fruit"}
	idx.insert(a)
	idx.remove(a)
	assert.Empty(t, idx.Get("fruit"))
}

func TestExactIndexUpdate(t *testing.T) {
	idx := newExactIndex("category")
	a := bson.M{"$id": int64(1), "category": "fruit"}
	idx.insert(a)
	b := bson.M{"$id": int64(1), "category": "vegetable"}
	idx.update(a, b)
	assert.Empty(t, idx.Get("fruit"))
	assert.Len(t, idx.Get("vegetable"), 1)
}
