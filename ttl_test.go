package lokidb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRemoveExpiredSweepsOldDocuments(t *testing.T) {
	c := newTestCollection()
	doc, err := c.Insert(bson.M{"name": "stale"})
	require.NoError(t, err)

	m := asMeta(doc)
	m.Updated = time.Now().Add(-time.Hour)
	m.Created = m.Updated
	setMeta(doc, m)

	_, err = c.Insert(bson.M{"name": "fresh"})
	require.NoError(t, err)

	removed := c.RemoveExpired(time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Count())
	remaining := c.Chain().Data()
	assert.Equal(t, "fresh", remaining[0]["name"])
}

func TestEnableAndDisableTTL(t *testing.T) {
	c := newTestCollection()
	c.EnableTTL(time.Millisecond, 5*time.Millisecond)
	_, err := c.Insert(bson.M{"name": "a"})
	require.NoError(t, err)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && c.Count() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, c.Count())
	c.DisableTTL()
}
