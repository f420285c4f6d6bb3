package lokidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCompileQueryShorthand(t *testing.T) {
	clause := CompileQuery(bson.M{"name": "alice"})
	assert.True(t, clause.Match(bson.M{"name": "alice"}))
	assert.False(t, clause.Match(bson.M{"name": "bob"}))
}

func TestCompileQueryImplicitAnd(t *testing.T) {
	clause := CompileQuery(bson.M{"name": "alice", "age": bson.M{"$gte": 18}})
	assert.True(t, clause.Match(bson.M{"name": "alice", "age": 30}))
	assert.False(t, clause.Match(bson.M{"name": "alice", "age": 10}))
	assert.False(t, clause.Match(bson.M{"name": "bob", "age": 30}))
}

func TestCompileQueryAndOr(t *testing.T) {
	q := bson.M{"$or": []interface{}{
		bson.M{"status": "active"},
		bson.M{"status": "pending"},
	}}
	clause := CompileQuery(q)
	assert.True(t, clause.Match(bson.M{"status": "active"}))
	assert.True(t, clause.Match(bson.M{"status": "pending"}))
	assert.False(t, clause.Match(bson.M{"status": "closed"}))
}

func TestCompileQueryAndEquivalence(t *testing.T) {
	implicit := CompileQuery(bson.M{"a": 1, "b": 2})
	explicit := CompileQuery(bson.M{"$and": []interface{}{
		bson.M{"a": 1}, bson.M{"b": 2},
	}})
	doc := bson.M{"a": 1, "b": 2}
	assert.Equal(t, implicit.Match(doc), explicit.Match(doc))
}

func TestSinglePropertyEligible(t *testing.T) {
	clause := CompileQuery(bson.M{"age": bson.M{"$gt": 18}})
	path, op, val, ok := SinglePropertyEligible(clause)
	assert.True(t, ok)
	assert.Equal(t, "age", path)
	assert.Equal(t, OpGt, op)
	assert.Equal(t, 18, val)
}

func TestSinglePropertyNotEligibleForMultiField(t *testing.T) {
	clause := CompileQuery(bson.M{"age": bson.M{"$gt": 18}, "name": "a"})
	_, _, _, ok := SinglePropertyEligible(clause)
	assert.False(t, ok)
}

func TestFieldNotWithNestedOperator(t *testing.T) {
	clause := CompileQuery(bson.M{"age": bson.M{"$not": bson.M{"$gt": 5}}})
	assert.True(t, clause.Match(bson.M{"age": 3}))
	assert.True(t, clause.Match(bson.M{"age": 5}))
	assert.False(t, clause.Match(bson.M{"age": 10}))
}

func TestFieldNotWithLiteral(t *testing.T) {
	clause := CompileQuery(bson.M{"status": bson.M{"$not": "closed"}})
	assert.True(t, clause.Match(bson.M{"status": "open"}))
	assert.False(t, clause.Match(bson.M{"status": "closed"}))
}

func TestElemMatch(t *testing.T) {
	q := bson.M{"items": bson.M{"$elemMatch": bson.M{"qty": bson.M{"$gt": 5}}}}
	clause := CompileQuery(q)
	doc := bson.M{"items": []interface{}{
		bson.M{"qty": 2}, bson.M{"qty": 10},
	}}
	assert.True(t, clause.Match(doc))
	doc2 := bson.M{"items": []interface{}{bson.M{"qty": 1}}}
	assert.False(t, clause.Match(doc2))
}
