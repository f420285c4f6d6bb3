package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestApplyTransformWithTokenSubstitution(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(bson.M{"name": "a", "dept": "eng"})
	_, _ = c.Insert(bson.M{"name": "b", "dept": "sales"})

	c.AddTransform("byDept", []TransformStep{
		{Kind: TransformFind, Query: bson.M{"dept": "[%lktxp]dept"}},
		{Kind: TransformSimpleSort, Property: "name"},
	})

	result, err := c.ApplyTransform("byDept", map[string]interface{}{"dept": "eng"})
	require.NoError(t, err)
	rs, ok := result.(*Resultset)
	require.True(t, ok)
	data := rs.Data()
	require.Len(t, data, 1)
	assert.Equal(t, "a", data[0]["name"])
}

func TestApplyTransformUnknownName(t *testing.T) {
	c := newTestCollection()
	_, err := c.ApplyTransform("missing", nil)
	assert.ErrorIs(t, err, ErrTransformError)
}

func TestApplyTransformLimitOffset(t *testing.T) {
	c := newTestCollection()
	for i := 0; i < 5; i++ {
		_, _ = c.Insert(bson.M{"n": i})
	}
	c.AddTransform("page", []TransformStep{
		{Kind: TransformSimpleSort, Property: "n"},
		{Kind: TransformOffset, N: 1},
		{Kind: TransformLimit, N: 2},
	})
	result, err := c.ApplyTransform("page", nil)
	require.NoError(t, err)
	rs, ok := result.(*Resultset)
	require.True(t, ok)
	data := rs.Data()
	require.Len(t, data, 2)
	assert.Equal(t, 1, data[0]["n"])
	assert.Equal(t, 2, data[1]["n"])
}

func TestApplyTransformMapStepTerminatesChain(t *testing.T) {
	c := newTestCollection()
	for i := 0; i < 3; i++ {
		_, _ = c.Insert(bson.M{"n": i})
	}
	c.AddTransform("doubled", []TransformStep{
		{Kind: TransformSimpleSort, Property: "n"},
		{Kind: TransformMap, MapFn: func(d Document) Document {
			return bson.M{"n": d["n"].(int) * 2}
		}},
	})
	result, err := c.ApplyTransform("doubled", nil)
	require.NoError(t, err)
	docs, ok := result.([]Document)
	require.True(t, ok)
	require.Len(t, docs, 3)
	assert.Equal(t, 0, docs[0]["n"])
	assert.Equal(t, 2, docs[1]["n"])
	assert.Equal(t, 4, docs[2]["n"])
}

func TestApplyTransformMapReduceStep(t *testing.T) {
	c := newTestCollection()
	for i := 1; i <= 4; i++ {
		_, _ = c.Insert(bson.M{"n": i})
	}
	c.AddTransform("sum", []TransformStep{
		{
			Kind: TransformMapReduce,
			ReduceMapFn: func(d Document) interface{} { return d["n"].(int) },
			ReduceFn: func(vals []interface{}) interface{} {
				total := 0
				for _, v := range vals {
					total += v.(int)
				}
				return total
			},
		},
	})
	result, err := c.ApplyTransform("sum", nil)
	require.NoError(t, err)
	assert.Equal(t, 10, result)
}

func TestApplyTransformEqJoinStep(t *testing.T) {
	users := newTestCollection()
	_, _ = users.Insert(bson.M{"userID": 1, "name": "alice"})
	orders := newTestCollection()
	_, _ = orders.Insert(bson.M{"ownerID": 1, "item": "widget"})

	users.AddTransform("withOrders", []TransformStep{
		{
			Kind:      TransformEqJoin,
			JoinWith:  orders.Chain(),
			LeftKey:   "userID",
			RightKey:  "ownerID",
			JoinFn: func(left, right Document) Document {
				return bson.M{"name": left["name"], "item": right["item"]}
			},
		},
	})
	result, err := users.ApplyTransform("withOrders", nil)
	require.NoError(t, err)
	docs, ok := result.([]Document)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, "alice", docs[0]["name"])
	assert.Equal(t, "widget", docs[0]["item"])
}

func TestApplyTransformUpdateStep(t *testing.T) {
	c := newTestCollection()
	inserted, _ := c.Insert(bson.M{"n": 1})
	id := inserted["$id"].(int64)
	c.AddTransform("bump", []TransformStep{
		{Kind: TransformUpdate, UpdateFn: func(d Document) Document {
			d["n"] = d["n"].(int) + 1
			return d
		}},
	})
	result, err := c.ApplyTransform("bump", nil)
	require.NoError(t, err)
	_, ok := result.(*Resultset)
	require.True(t, ok)
	doc, _, found := c.Get(id)
	require.True(t, found)
	assert.Equal(t, 2, doc["n"])
}
