package lokidb

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareTierOrdering(t *testing.T) {
	values := []interface{}{nil, math.NaN(), false, true, "", "a"}
	for i := 0; i < len(values)-1; i++ {
		assert.Equal(t, Less, Compare(values[i], values[i+1]), "index %d vs %d", i, i+1)
		assert.Equal(t, Greater, Compare(values[i+1], values[i]))
	}
}

func TestCompareNumeric(t *testing.T) {
	assert.Equal(t, Less, Compare(1, 2))
	assert.Equal(t, Equal, Compare(2, 2.0))
	assert.Equal(t, Greater, Compare(3, int64(2)))
	assert.Equal(t, Equal, Compare("10", 10))
}

func TestCompareDates(t *testing.T) {
	a := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, Less, Compare(a, b))
	assert.True(t, Lt(a, b, false))
	assert.True(t, Gt(b, a, false))
}

func TestAeq(t *testing.T) {
	assert.True(t, Aeq(1, 1.0))
	assert.True(t, Aeq(nil, nil))
	assert.False(t, Aeq(1, 2))
}

func TestLtGtInclusive(t *testing.T) {
	assert.True(t, Lt(5, 5, true))
	assert.False(t, Lt(5, 5, false))
	assert.True(t, Gt(5, 5, true))
	assert.False(t, Gt(5, 5, false))
}
