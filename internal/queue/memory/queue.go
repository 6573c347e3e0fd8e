// Package memory provides the bounded in-memory run queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marketops/stock-harvester/internal/harvest"
)

// Queue is a bounded in-memory queue with context-aware operations.
// Its capacity backs the "queue or reject" contract: trigger requests
// beyond the runner pool's capacity wait here or time out.
type Queue struct {
	ch      chan harvest.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan harvest.QueueItem, capacity),
	}
}

// Enqueue pushes a run into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item harvest.QueueItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next run, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (harvest.QueueItem, error) {
	select {
	case <-ctx.Done():
		return harvest.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return harvest.QueueItem{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
