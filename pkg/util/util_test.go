package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseG(t *testing.T) {
	arr := []int64{1, 2, 3, 4}
	rev := ReverseG(arr)

	assert.Equal(t, []int64{4, 3, 2, 1}, rev)
	assert.Equal(t, []int64{1, 2, 3, 4}, arr)
}

func TestSortedUnion(t *testing.T) {
	got := SortedUnion([]string{"residential", "primary"}, []string{"primary", "Intersection"})
	assert.Equal(t, []string{"Intersection", "primary", "residential"}, got)
}

func TestSetEqual(t *testing.T) {
	assert.True(t, SetEqual([]int64{1, 2}, []int64{2, 1}))
	assert.False(t, SetEqual([]int64{1, 2}, []int64{1, 3}))
	assert.False(t, SetEqual([]int64{1}, []int64{1, 3}))
}

func TestHasDuplicates(t *testing.T) {
	assert.False(t, HasDuplicates([]int64{1, 2, 3}))
	assert.True(t, HasDuplicates([]int64{1, 2, 1}))
}

func TestRoundFloat(t *testing.T) {
	assert.Equal(t, 1.23, RoundFloat(1.2345, 2))
	assert.Equal(t, 0.5, Clip(0.5, -1, 1))
	assert.Equal(t, 1.0, Clip(1.0000001, -1, 1))
}
