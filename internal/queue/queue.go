// Package queue buffers dispatch records between the chat path and the
// worker that persists them. Two backends exist:
//
//   - Memory: a bounded channel. Nothing survives a restart; suited to a
//     single process without Redis.
//   - Redis: a list per queue plus a hash for dead letters, shared by every
//     replica pointing at the same Redis.
//
// Enqueue never blocks the caller on a full memory queue; it returns
// ErrQueueFull so a reply is never held up by bookkeeping.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item interface{}) error

	// Dequeue blocks until at least one item is available, then returns up to maxItems
	Dequeue(ctx context.Context, maxItems int) ([]interface{}, error)

	// DequeueWithTimeout returns an empty slice if nothing arrives before timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue holds items the worker gave up on
type DeadLetterQueue interface {
	Add(ctx context.Context, item interface{}, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string
	Item      interface{}
	Error     string
	Timestamp time.Time
	Retries   int
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// Capacity bounds the memory backend; 0 means ten batches
	Capacity int

	// UseRedis selects the Redis backend
	UseRedis bool

	// RedisAddr, RedisPassword and RedisDB are used when no client is supplied
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}

// Open builds the queue pair selected by config. client may be nil, in which
// case a Redis backend dials config.RedisAddr itself.
func Open(config *Config, client *redis.Client) (Queue, DeadLetterQueue, error) {
	if config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	if !config.UseRedis {
		return NewMemoryQueue(config), NewMemoryDeadLetterQueue(), nil
	}

	if client == nil {
		var err error
		client, err = dial(config)
		if err != nil {
			return nil, nil, err
		}
	}

	return NewRedisQueueWithClient(client, config), NewRedisDeadLetterQueueWithClient(client, config), nil
}
