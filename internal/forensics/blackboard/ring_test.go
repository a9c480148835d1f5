package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEvictsFromFrontAtCapacity(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	assert.Equal(t, []int{1, 2, 3}, r.Items)

	r.Push(4)
	assert.Equal(t, []int{2, 3, 4}, r.Items)

	r.Push(5)
	assert.Equal(t, []int{3, 4, 5}, r.Items)
}

func TestRingZeroCapacityNeverGrows(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Empty(t, r.Items)
}

func TestRingRespectsCapacityAtExactly200(t *testing.T) {
	r := NewRing[float64](200)
	for i := 0; i < 250; i++ {
		r.Push(float64(i))
	}
	assert.Len(t, r.Items, 200)
	assert.Equal(t, float64(50), r.Items[0])
	assert.Equal(t, float64(249), r.Items[199])
}
