package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueWrapsAround(t *testing.T) {
	rq := NewRingQueue[int](3)
	assert.True(t, rq.IsEmpty())

	for round := 0; round < 4; round++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, rq.Enqueue(round*10+i))
		}
		assert.True(t, rq.IsFull())
		assert.ErrorIs(t, rq.Enqueue(99), ErrQueueFull)

		head, err := rq.Peek()
		require.NoError(t, err)
		assert.Equal(t, round*10, head)

		for i := 0; i < 3; i++ {
			v, err := rq.Dequeue()
			require.NoError(t, err)
			assert.Equal(t, round*10+i, v)
		}
	}

	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.Zero(t, rq.Len())
}

func TestRingQueueMinimumSize(t *testing.T) {
	rq := NewRingQueue[string](0)
	assert.Equal(t, 1, rq.Cap())
	require.NoError(t, rq.Enqueue("a"))
	assert.True(t, rq.IsFull())
}
