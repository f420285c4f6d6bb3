package lokidb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSerializeNormalRoundTrip(t *testing.T) {
	db := NewDatabase("test", DatabaseOptions{})
	c := db.AddCollection("widgets", CollectionOptions{})
	_, _ = c.Insert(bson.M{"name": "a", "age": 30})
	_, _ = c.Insert(bson.M{"name": "b", "age": 40})

	raw, err := db.Serialize(FormatNormal)
	require.NoError(t, err)

	db2 := NewDatabase("test", DatabaseOptions{})
	require.NoError(t, db2.LoadJSON(raw))

	c2, ok := db2.GetCollection("widgets")
	require.True(t, ok)
	assert.Equal(t, 2, c2.Count())

	orig := c.Chain().SimpleSort("name", false).Data()
	loaded := c2.Chain().SimpleSort("name", false).Data()
	require.Len(t, loaded, len(orig))
	for i := range orig {
		if diff := cmp.Diff(orig[i]["name"], loaded[i]["name"]); diff != "" {
			t.Errorf("document %d name mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestSerializePrettyIsIndented(t *testing.T) {
	db := NewDatabase("test", DatabaseOptions{})
	db.AddCollection("widgets", CollectionOptions{})
	raw, err := db.Serialize(FormatPretty)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n")
}

func TestSerializeDestructuredRoundTrip(t *testing.T) {
	db := NewDatabase("test", DatabaseOptions{})
	c := db.AddCollection("widgets", CollectionOptions{})
	_, _ = c.Insert(bson.M{"name": "a"})

	raw, err := db.Serialize(FormatDestructured)
	require.NoError(t, err)

	db2 := NewDatabase("test", DatabaseOptions{})
	require.NoError(t, db2.LoadDestructured(raw))
	c2, ok := db2.GetCollection("widgets")
	require.True(t, ok)
	assert.Equal(t, 1, c2.Count())
}
