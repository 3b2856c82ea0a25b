package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai_chat/internal/logging"
	"ai_chat/internal/models"
	"ai_chat/internal/queue"
)

// DispatchRecordStore is where the worker writes records
type DispatchRecordStore interface {
	Create(ctx context.Context, record *models.DispatchRecord) error
	CreateBatch(ctx context.Context, records []*models.DispatchRecord) error
}

// Archiver receives every batch after it was stored
type Archiver interface {
	WriteBatch(ctx context.Context, records []*models.DispatchRecord) (string, error)
}

// DispatchQueueName names the queue (and dead letter queue) shared by the
// server and operator tooling
const DispatchQueueName = "dispatch"

const drainTimeout = 100 * time.Millisecond

// DispatchQueueWorker persists dispatch records asynchronously
type DispatchQueueWorker struct {
	queue       queue.Queue
	dlq         queue.DeadLetterQueue
	store       DispatchRecordStore
	archiver    Archiver
	config      *queue.Config
	logger      *logging.Logger
	cancel      context.CancelFunc
	stopChan    chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
}

// NewDispatchQueueWorker creates a new worker. store may be nil when only an
// archiver is configured.
func NewDispatchQueueWorker(q queue.Queue, dlq queue.DeadLetterQueue, store DispatchRecordStore, config *queue.Config) *DispatchQueueWorker {
	if config == nil {
		config = queue.DefaultConfig(DispatchQueueName)
	}

	return &DispatchQueueWorker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		config:      config,
		logger:      logging.NewLogger("dispatch-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// WithArchiver attaches an archive sink such as the S3 writer
func (w *DispatchQueueWorker) WithArchiver(a Archiver) *DispatchQueueWorker {
	w.archiver = a
	return w
}

// Start starts the worker goroutine
func (w *DispatchQueueWorker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(runCtx)
}

// Stop interrupts the pending dequeue, drains what is already queued, then
// stops the worker
func (w *DispatchQueueWorker) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.cancel()
	})
	<-w.stoppedChan
	return nil
}

func (w *DispatchQueueWorker) stopping() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// Record enqueues a dispatch record. It never blocks on a full queue.
func (w *DispatchQueueWorker) Record(ctx context.Context, record *models.DispatchRecord) error {
	return w.queue.Enqueue(ctx, record)
}

func (w *DispatchQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		if w.stopping() {
			w.logger.Info("Dispatch worker stopping, draining queue")
			w.drain()
			return
		}
		if ctx.Err() != nil {
			if w.stopping() {
				w.drain()
			} else {
				w.logger.Info("Dispatch worker context cancelled")
			}
			return
		}
		if _, err := w.processBatch(ctx, w.config.BatchTimeout); err != nil && ctx.Err() == nil {
			if !errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Error("Failed to dequeue dispatch records", "error", err)
			}
			w.sleep(ctx, time.Second) // Back off on error
		}
	}
}

func (w *DispatchQueueWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		n, err := w.processBatch(ctx, drainTimeout)
		if err != nil || n == 0 {
			return
		}
	}
}

// processBatch handles one batch and returns the number of items dequeued.
// The error is the dequeue error; storage failures are handled here.
func (w *DispatchQueueWorker) processBatch(ctx context.Context, timeout time.Duration) (int, error) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, timeout)
	if err != nil {
		return 0, err
	}

	if len(items) == 0 {
		return 0, nil
	}

	w.logger.Debug("Processing dispatch batch", "count", len(items))

	records := make([]*models.DispatchRecord, 0, len(items))
	for _, item := range items {
		record, err := decodeRecord(item)
		if err != nil {
			w.logger.Error("Failed to decode dispatch record", "error", err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return len(items), nil
	}

	// Writes finish even when the dequeue context is cancelled by Stop
	ctx = context.WithoutCancel(ctx)

	if w.store != nil {
		if err := w.store.CreateBatch(ctx, records); err != nil {
			w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err)
			for _, record := range records {
				if err := w.processItem(ctx, record); err != nil {
					w.logger.Error("Failed to process dispatch record", "id", record.ID.String(), "error", err)
				}
			}
		}
	}

	if w.archiver != nil {
		if _, err := w.archiver.WriteBatch(ctx, records); err != nil {
			w.logger.Warn("Failed to archive dispatch batch", "count", len(records), "error", err)
		}
	}

	return len(items), nil
}

// processItem inserts a single record with retries, then dead-letters it
func (w *DispatchQueueWorker) processItem(ctx context.Context, record *models.DispatchRecord) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying dispatch record", "attempt", attempt, "backoff", backoff)
			w.sleep(ctx, backoff)
		}

		if err := w.store.Create(ctx, record); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, record, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Dispatch record moved to DLQ", "id", record.ID.String(), "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (w *DispatchQueueWorker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// decodeRecord accepts records from either queue backend
func decodeRecord(item interface{}) (*models.DispatchRecord, error) {
	switch v := item.(type) {
	case *models.DispatchRecord:
		return v, nil
	case models.DispatchRecord:
		return &v, nil
	case json.RawMessage:
		var record models.DispatchRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return nil, err
		}
		return &record, nil
	default:
		// Dead letters read back from Redis arrive as generic maps
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}
		var record models.DispatchRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
		return &record, nil
	}
}

// GetQueueLength returns the current queue length
func (w *DispatchQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *DispatchQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead-lettered record
func (w *DispatchQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
