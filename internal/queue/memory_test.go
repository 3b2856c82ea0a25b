package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"ai_chat/internal/models"
)

func newRecord(provider string) *models.DispatchRecord {
	return &models.DispatchRecord{ID: uuid.New(), Provider: provider, Attempts: 1}
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	record := newRecord("openai")

	if err := q.Enqueue(ctx, record); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if got := items[0].(*models.DispatchRecord); got.ID != record.ID {
		t.Errorf("Expected record %s, got %s", record.ID, got.ID)
	}
}

func TestMemoryQueue_MultipleBatch(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, newRecord("openai")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	items, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}

	items, err = q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	start := time.Now()
	items, err := q.DequeueWithTimeout(ctx, 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Returned before timeout: %v", elapsed)
	}

	_ = q.Enqueue(ctx, newRecord("fallback"))
	items, err = q.DequeueWithTimeout(ctx, 10, time.Second)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 1 // capacity 10
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, newRecord("openai")); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	if err := q.Enqueue(ctx, newRecord("openai")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	length, _ := q.Length(ctx)
	if length != 10 {
		t.Errorf("Expected length 10, got %d", length)
	}
}

func TestMemoryQueue_Concurrent(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < 5; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = q.Enqueue(ctx, newRecord("openai"))
			}
		}()
	}
	wg.Wait()

	total := 0
	for total < 100 {
		items, err := q.DequeueWithTimeout(ctx, 30, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if len(items) == 0 {
			break
		}
		total += len(items)
	}
	if total != 100 {
		t.Errorf("Expected 100 items, got %d", total)
	}
}

func TestMemoryQueue_ClosedQueue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	q.Close()

	ctx := context.Background()
	if err := q.Enqueue(ctx, newRecord("openai")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on enqueue, got %v", err)
	}
	if _, err := q.Dequeue(ctx, 1); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on dequeue, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}

func TestMemoryQueue_ContextCancelled(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := dlq.Add(ctx, newRecord("openai"), errors.New("insert failed")); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	items, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Error != "insert failed" {
		t.Errorf("Unexpected error text %q", items[0].Error)
	}
	if items[0].ID == items[1].ID {
		t.Errorf("Dead letter ids must be unique")
	}

	limited, _ := dlq.List(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 items, got %d", len(limited))
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	remaining, _ := dlq.List(ctx, 0)
	if len(remaining) != 2 {
		t.Errorf("Expected 2 remaining items, got %d", len(remaining))
	}

	dlq.Close()
	if err := dlq.Add(ctx, newRecord("openai"), errors.New("x")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	q, dlq, err := Open(DefaultConfig("dispatch"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer q.Close()
	defer dlq.Close()

	if _, ok := q.(*MemoryQueue); !ok {
		t.Errorf("Expected *MemoryQueue, got %T", q)
	}
	if _, ok := dlq.(*MemoryDeadLetterQueue); !ok {
		t.Errorf("Expected *MemoryDeadLetterQueue, got %T", dlq)
	}
}
