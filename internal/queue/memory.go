package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue struct {
	items  chan interface{}
	mu     sync.RWMutex
	closed bool
	config *Config
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	capacity := config.Capacity
	if capacity <= 0 {
		capacity = config.BatchSize * 10
	}

	return &MemoryQueue{
		items:  make(chan interface{}, capacity),
		config: config,
	}
}

// Enqueue adds an item without blocking
func (q *MemoryQueue) Enqueue(ctx context.Context, item interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue retrieves items from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	return q.dequeue(ctx, maxItems, nil)
}

// DequeueWithTimeout retrieves items with a timeout
func (q *MemoryQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.dequeue(ctx, maxItems, timer.C)
}

func (q *MemoryQueue) dequeue(ctx context.Context, maxItems int, deadline <-chan time.Time) ([]interface{}, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	items := q.items
	q.mu.RUnlock()

	var batch []interface{}

	select {
	case item, ok := <-items:
		if !ok {
			return nil, ErrQueueClosed
		}
		batch = append(batch, item)
	case <-deadline:
		return []interface{}{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(batch) < maxItems {
		select {
		case item, ok := <-items:
			if !ok {
				return batch, nil
			}
			batch = append(batch, item)
		default:
			return batch, nil
		}
	}

	return batch, nil
}

// Length returns the current queue length
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.items), nil
}

// Close shuts down the queue. Items still buffered are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue using in-memory storage
type MemoryDeadLetterQueue struct {
	items  []DeadLetterItem
	mu     sync.RWMutex
	closed bool
}

// NewMemoryDeadLetterQueue creates a new in-memory dead letter queue
func NewMemoryDeadLetterQueue() *MemoryDeadLetterQueue {
	return &MemoryDeadLetterQueue{
		items: make([]DeadLetterItem, 0),
	}
}

// Add adds a failed item to the dead letter queue
func (q *MemoryDeadLetterQueue) Add(ctx context.Context, item interface{}, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(item, err))
	return nil
}

// List returns up to maxItems dead letters, oldest first. maxItems <= 0 means all.
func (q *MemoryDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}

	result := make([]DeadLetterItem, maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

// Remove removes an item from the dead letter queue
func (q *MemoryDeadLetterQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}

	return ErrItemNotFound
}

// Close shuts down the dead letter queue
func (q *MemoryDeadLetterQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetterItem(item interface{}, err error) DeadLetterItem {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DeadLetterItem{
		ID:        uuid.NewString(),
		Item:      item,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}
