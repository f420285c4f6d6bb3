package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPathValueNested(t *testing.T) {
	doc := bson.M{"a": bson.M{"b": bson.M{"c": 42}}}
	p := CompilePath("a.b.c")
	assert.Equal(t, 42, p.Value(doc))
}

func TestPathValueMissing(t *testing.T) {
	doc := bson.M{"a": bson.M{}}
	p := CompilePath("a.b.c")
	assert.Nil(t, p.Value(doc))
}

func TestPathMatchArraySubScan(t *testing.T) {
	doc := bson.M{"items": []interface{}{
		bson.M{"tag": "red"},
		bson.M{"tag": "blue"},
	}}
	p := CompilePath("items.tag")
	found := p.Match(doc, func(v interface{}) bool {
		s, ok := v.(string)
		return ok && s == "blue"
	})
	assert.True(t, found)

	notFound := p.Match(doc, func(v interface{}) bool {
		s, ok := v.(string)
		return ok && s == "green"
	})
	assert.False(t, notFound)
}

func TestPathValueLeafArrayReturnedWhole(t *testing.T) {
	doc := bson.M{"items": []interface{}{10, 20, 30}}
	p := CompilePath("items")
	assert.Equal(t, []interface{}{10, 20, 30}, p.Value(doc))
}
