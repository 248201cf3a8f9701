package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) int64 { return v }

func TestCut_HasNext(t *testing.T) {
	p := Cut([]int64{1, 2, 3}, 2, id)
	assert.Equal(t, []int64{1, 2}, p.Items)
	assert.True(t, p.HasNext)
	require.NotNil(t, p.NextCursor)
	assert.Equal(t, int64(2), *p.NextCursor)
}

func TestCut_LastPage(t *testing.T) {
	p := Cut([]int64{3}, 2, id)
	assert.Equal(t, []int64{3}, p.Items)
	assert.False(t, p.HasNext)
	assert.Nil(t, p.NextCursor)
}

func TestCut_ExactlyFull(t *testing.T) {
	p := Cut([]int64{4, 5}, 2, id)
	assert.Len(t, p.Items, 2)
	assert.False(t, p.HasNext)
	assert.Nil(t, p.NextCursor)
}

func TestCut_EmptyIsNotNil(t *testing.T) {
	p := Cut[int64](nil, 5, id)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}

func TestSize(t *testing.T) {
	assert.Equal(t, 10, Size(0, 10, 100))
	assert.Equal(t, 10, Size(-3, 10, 100))
	assert.Equal(t, 25, Size(25, 10, 100))
	assert.Equal(t, 100, Size(500, 10, 100))
	assert.Equal(t, 10, Size(0, 0, 0))
}
