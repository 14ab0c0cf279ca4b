package queue_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/engine/queue"
)

const queueTimeout = 3 * time.Second

func TestQueueOrdered(t *testing.T) {
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	q := queue.New("ordered", func(batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		for _, v := range batch {
			order = append(order, v)
			if v == 3 {
				close(done)
			}
		}
		return nil
	}, queue.Config{BatchSize: 128})
	q.Start()
	t.Cleanup(q.Flush)

	for i := 1; i <= 3; i++ {
		assert.NoError(t, q.Enqueue(i))
	}

	select {
	case <-done:
	case <-time.After(queueTimeout):
		assert.Fail(t, "timed out waiting for items")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestQueueWorkers(t *testing.T) {
	var handled atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	q := queue.New("workers", func(batch []int) error {
		started <- struct{}{}
		<-release
		handled.Add(int32(len(batch)))
		return nil
	}, queue.Config{Workers: 4})
	q.Start()

	for i := range 4 {
		assert.NoError(t, q.Enqueue(i))
	}
	for range 4 {
		select {
		case <-started:
		case <-time.After(queueTimeout):
			t.Fatal("workers did not run concurrently")
		}
	}
	close(release)
	q.Flush()
	assert.Equal(t, int32(4), handled.Load())
}

func TestQueueHandlerError(t *testing.T) {
	done := make(chan struct{})
	var calls atomic.Int32

	q := queue.New("retry", func([]string) error {
		if calls.Add(1) == 1 {
			return errors.New("handler error")
		}
		close(done)
		return nil
	}, queue.Config{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start()
	t.Cleanup(q.Flush)

	assert.NoError(t, q.Enqueue("one"))

	select {
	case <-done:
	case <-time.After(queueTimeout):
		assert.Fail(t, "timed out waiting for retry")
	}
}

func TestQueueHandlerPanic(t *testing.T) {
	done := make(chan struct{})
	var calls atomic.Int32

	q := queue.New("panic", func([]string) error {
		if calls.Add(1) == 1 {
			panic("test panic")
		}
		close(done)
		return nil
	}, queue.Config{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start()
	t.Cleanup(q.Flush)

	assert.NoError(t, q.Enqueue("one"))

	select {
	case <-done:
	case <-time.After(queueTimeout):
		assert.Fail(t, "timed out waiting for recovery")
	}
}

func TestQueueFlushCloses(t *testing.T) {
	var handled atomic.Int32

	q := queue.New("flush", func(batch []int) error {
		handled.Add(int32(len(batch)))
		return nil
	}, queue.Config{BatchSize: 2})
	q.Start()

	for i := range 5 {
		assert.NoError(t, q.Enqueue(i))
	}
	assert.Eventually(t, func() bool {
		return handled.Load() == 5
	}, queueTimeout, 10*time.Millisecond)

	q.Flush()
	q.Flush()
	assert.ErrorIs(t, q.Enqueue(6), queue.ErrQueueClosed)
}

func TestQueueCancel(t *testing.T) {
	handled := make(chan struct{}, 1)

	q := queue.New("cancel", func([]int) error {
		handled <- struct{}{}
		return nil
	}, queue.Config{})
	q.Start()

	q.Cancel()
	q.Cancel()
	assert.ErrorIs(t, q.Enqueue(1), queue.ErrQueueClosed)

	select {
	case <-handled:
		t.Fatal("unexpected item handled after cancel")
	default:
	}
}
