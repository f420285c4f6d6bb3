package lokidb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestChunkAdapterSaveLoadDestructured(t *testing.T) {
	ctx := context.Background()
	adapter := NewChunkAdapter(nil)

	db := NewDatabase("widgets-db", DatabaseOptions{Adapter: adapter, Format: FormatDestructured})
	c := db.AddCollection("widgets", CollectionOptions{})
	_, _ = c.Insert(bson.M{"name": "a"})
	_, _ = c.Insert(bson.M{"name": "b"})

	require.NoError(t, db.SaveDatabase(ctx))

	db2 := NewDatabase("widgets-db", DatabaseOptions{Adapter: adapter, Format: FormatDestructured})
	require.NoError(t, db2.LoadDatabase(ctx))
	c2, ok := db2.GetCollection("widgets")
	require.True(t, ok)
	assert.Equal(t, 2, c2.Count())
}

func TestChunkAdapterSaveLoadNormal(t *testing.T) {
	ctx := context.Background()
	adapter := NewChunkAdapter(nil)

	db := NewDatabase("normal-db", DatabaseOptions{Adapter: adapter, Format: FormatNormal})
	c := db.AddCollection("widgets", CollectionOptions{})
	_, _ = c.Insert(bson.M{"name": "a"})

	require.NoError(t, db.SaveDatabase(ctx))

	db2 := NewDatabase("normal-db", DatabaseOptions{Adapter: adapter, Format: FormatNormal})
	require.NoError(t, db2.LoadDatabase(ctx))
	c2, ok := db2.GetCollection("widgets")
	require.True(t, ok)
	assert.Equal(t, 1, c2.Count())
}

func TestChunkAdapterLoadMissingDatabase(t *testing.T) {
	ctx := context.Background()
	adapter := NewChunkAdapter(nil)
	_, err := adapter.LoadDatabase(ctx, "nope")
	assert.Error(t, err)
}

func TestChunkAdapterDeleteDatabase(t *testing.T) {
	ctx := context.Background()
	adapter := NewChunkAdapter(nil)
	db := NewDatabase("to-delete", DatabaseOptions{Adapter: adapter, Format: FormatDestructured})
	db.AddCollection("widgets", CollectionOptions{})
	require.NoError(t, db.SaveDatabase(ctx))
	require.NoError(t, db.DeleteDatabase(ctx))
	_, err := adapter.LoadDatabase(ctx, "to-delete")
	assert.Error(t, err)
}
