package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/quarry/pkg/log"
)

type (
	// Queue hands enqueued items to a pool of workers in bounded batches.
	// Items are never processed on the goroutine that enqueued them
	Queue[T any] struct {
		prod        topic.Producer[T]
		cons        topic.Consumer[T]
		handler     Handler[T]
		stop        chan struct{}
		name        string
		cfg         Config
		wg          sync.WaitGroup
		mu          sync.RWMutex
		closed      bool
		startOnce   sync.Once
		stopOnce    sync.Once
		cleanupOnce sync.Once
	}

	// Handler processes a batch of items in a single execution
	Handler[T any] func([]T) error

	// Config sizes a queue's worker pool and retry policy
	Config struct {
		Workers    int
		BatchSize  int
		MaxRetries int
		RetryDelay time.Duration
	}
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 100 * time.Millisecond
)

var (
	ErrHandlerPanicked = errors.New("queue handler panicked")
	ErrQueueClosed     = errors.New("queue closed")
)

// New creates a queue whose batches are processed by handler
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.BatchSize = max(cfg.BatchSize, 1)
	cfg.MaxRetries = max(cfg.MaxRetries, 1)
	t := caravan.NewTopic[T]()
	return &Queue[T]{
		prod:    t.NewProducer(),
		cons:    t.NewConsumer(),
		handler: handler,
		stop:    make(chan struct{}),
		name:    name,
		cfg:     cfg,
	}
}

// Start launches the queue's workers
func (q *Queue[T]) Start() {
	q.startOnce.Do(func() {
		for range q.cfg.Workers {
			q.wg.Go(q.work)
		}
	})
}

// Enqueue adds an item to the queue. Items enqueued after the queue has
// been flushed or cancelled are rejected
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("%w: %s", ErrQueueClosed, q.name)
	}
	q.prod.Send() <- item
	return nil
}

// Flush stops the workers, then processes whatever remains queued on the
// calling goroutine before closing the queue
func (q *Queue[T]) Flush() {
	q.halt()
	q.cleanupOnce.Do(q.drain)
}

// Cancel stops the workers and discards whatever remains queued
func (q *Queue[T]) Cancel() {
	q.halt()
	q.cleanupOnce.Do(q.close)
}

func (q *Queue[T]) halt() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}

func (q *Queue[T]) work() {
	for {
		select {
		case <-q.stop:
			return
		case item, ok := <-q.cons.Receive():
			if !ok {
				return
			}
			q.handleBatch(q.collectBatch(item))
		}
	}
}

func (q *Queue[T]) collectBatch(first T) []T {
	batch := []T{first}
	for len(batch) < q.cfg.BatchSize {
		select {
		case item, ok := <-q.cons.Receive():
			if !ok {
				return batch
			}
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue[T]) drain() {
	for {
		select {
		case item, ok := <-q.cons.Receive():
			if !ok {
				q.close()
				return
			}
			q.handleBatch(q.collectBatch(item))
		default:
			q.close()
			return
		}
	}
}

func (q *Queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.prod.Close()
	q.cons.Close()
}

func (q *Queue[T]) handleBatch(batch []T) {
	for attempt := range q.cfg.MaxRetries {
		err := q.tryHandleBatch(batch)
		if err == nil {
			return
		}
		slog.Error("Queue batch failed",
			slog.String("queue", q.name),
			slog.Int("batch_size", len(batch)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", q.cfg.MaxRetries),
			log.Error(err))
		if attempt < q.cfg.MaxRetries-1 {
			time.Sleep(q.cfg.RetryDelay)
		}
	}
	slog.Error("Queue batch permanently failed",
		slog.String("queue", q.name),
		slog.Int("batch_size", len(batch)))
}

func (q *Queue[T]) tryHandleBatch(batch []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return q.handler(batch)
}
