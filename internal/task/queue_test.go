package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_CapacityAndFree(t *testing.T) {
	q := NewQueue(2, discardLogger())
	assert.Equal(t, 2, q.Cap())
	assert.Equal(t, 2, q.Free())

	require.NoError(t, q.Enqueue(newFakeTask(nil)))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Free())

	require.NoError(t, q.Enqueue(newFakeTask(nil)))
	err := q.Enqueue(newFakeTask(nil))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Zero(t, q.Free())

	<-q.Tasks()
	assert.Equal(t, 1, q.Free())
	assert.NoError(t, q.Enqueue(newFakeTask(nil)))
}

func TestQueue_NonPositiveCapacity(t *testing.T) {
	q := NewQueue(0, nil)
	assert.Equal(t, 1, q.Cap())
	assert.NoError(t, q.Enqueue(newFakeTask(nil)))
}

func TestQueue_CloseKeepsBufferedTasks(t *testing.T) {
	q := NewQueue(4, discardLogger())
	first := newFakeTask(nil)
	require.NoError(t, q.Enqueue(first))

	q.Close()
	assert.NotPanics(t, q.Close)
	assert.ErrorIs(t, q.Enqueue(newFakeTask(nil)), ErrQueueClosed)

	got := <-q.Tasks()
	assert.Equal(t, first.ID(), got.ID())

	select {
	case _, ok := <-q.Tasks():
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel not closed")
	}
}

func TestQueue_EnqueueRacingClose(t *testing.T) {
	q := NewQueue(1000, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := q.Enqueue(newFakeTask(nil)); err != nil {
					assert.ErrorIs(t, err, ErrQueueClosed)
				}
			}
		}()
	}
	q.Close()
	wg.Wait()
}
