package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDynamicViewTracksInserts(t *testing.T) {
	c := newTestCollection()
	view := c.AddDynamicView("eng-only", DynamicViewOptions{})
	view.ApplyFind(bson.M{"dept": "eng"})

	_, _ = c.Insert(bson.M{"name": "a", "dept": "eng"})
	_, _ = c.Insert(bson.M{"name": "b", "dept": "sales"})

	assert.Equal(t, 1, view.Count())
	data := view.Data()
	require.Len(t, data, 1)
	assert.Equal(t, "a", data[0]["name"])
}

func TestDynamicViewTracksUpdates(t *testing.T) {
	c := newTestCollection()
	view := c.AddDynamicView("eng-only", DynamicViewOptions{})
	view.ApplyFind(bson.M{"dept": "eng"})

	doc, _ := c.Insert(bson.M{"name": "a", "dept": "sales"})
	assert.Equal(t, 0, view.Count())

	doc["dept"] = "eng"
	_, err := c.Update(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Count())
}

func TestDynamicViewTracksRemoves(t *testing.T) {
	c := newTestCollection()
	view := c.AddDynamicView("all", DynamicViewOptions{})
	doc, _ := c.Insert(bson.M{"name": "a"})
	_, _ = c.Insert(bson.M{"name": "b"})
	assert.Equal(t, 2, view.Count())

	require.NoError(t, c.Remove(doc))
	assert.Equal(t, 1, view.Count())
	assert.Equal(t, "b", view.Data()[0]["name"])
}

func TestDynamicViewSimpleSort(t *testing.T) {
	c := newTestCollection()
	view := c.AddDynamicView("sorted", DynamicViewOptions{})
	view.ApplySimpleSort("age", false)

	_, _ = c.Insert(bson.M{"age": 30})
	_, _ = c.Insert(bson.M{"age": 10})
	_, _ = c.Insert(bson.M{"age": 20})

	data := view.Data()
	require.Len(t, data, 3)
	assert.Equal(t, 10, data[0]["age"])
	assert.Equal(t, 20, data[1]["age"])
	assert.Equal(t, 30, data[2]["age"])
}

func TestDynamicViewRemoveFilters(t *testing.T) {
	c := newTestCollection()
	view := c.AddDynamicView("eng-only", DynamicViewOptions{})
	view.ApplyFind(bson.M{"dept": "eng"})
	_, _ = c.Insert(bson.M{"dept": "sales"})
	assert.Equal(t, 0, view.Count())
	view.RemoveFilters()
	assert.Equal(t, 1, view.Count())
}
