package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue using a Redis list
type RedisQueue struct {
	client *redis.Client
	owned  bool
	qKey   string
}

func dial(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue dials Redis and creates a queue that owns the connection
func NewRedisQueue(config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	client, err := dial(config)
	if err != nil {
		return nil, err
	}
	q := NewRedisQueueWithClient(client, config)
	q.owned = true
	return q, nil
}

// NewRedisQueueWithClient creates a queue on a shared client. Close leaves
// the client open.
func NewRedisQueueWithClient(client *redis.Client, config *Config) *RedisQueue {
	return &RedisQueue{
		client: client,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}
}

// Enqueue adds an item to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, item interface{}) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// Dequeue retrieves items from the queue. Items come back as json.RawMessage.
func (q *RedisQueue) Dequeue(ctx context.Context, maxItems int) ([]interface{}, error) {
	result, err := q.client.BLPop(ctx, 0, q.qKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}
	return q.drain(ctx, result[1], maxItems), nil
}

// DequeueWithTimeout retrieves items with a timeout
func (q *RedisQueue) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]interface{}, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if errors.Is(err, redis.Nil) {
		return []interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}
	return q.drain(ctx, result[1], maxItems), nil
}

// drain collects up to maxItems without blocking, starting with first
func (q *RedisQueue) drain(ctx context.Context, first string, maxItems int) []interface{} {
	items := []interface{}{json.RawMessage(first)}
	for len(items) < maxItems {
		result, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			break
		}
		items = append(items, json.RawMessage(result))
	}
	return items
}

// Length returns the current queue length
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close releases the connection if the queue dialed it
func (q *RedisQueue) Close() error {
	if q.owned {
		return q.client.Close()
	}
	return nil
}

// RedisDeadLetterQueue implements DeadLetterQueue using a Redis hash
type RedisDeadLetterQueue struct {
	client *redis.Client
	owned  bool
	dlKey  string
}

// NewRedisDeadLetterQueue dials Redis and creates a dead letter queue
func NewRedisDeadLetterQueue(config *Config) (*RedisDeadLetterQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	client, err := dial(config)
	if err != nil {
		return nil, err
	}
	q := NewRedisDeadLetterQueueWithClient(client, config)
	q.owned = true
	return q, nil
}

// NewRedisDeadLetterQueueWithClient creates a dead letter queue on a shared client
func NewRedisDeadLetterQueueWithClient(client *redis.Client, config *Config) *RedisDeadLetterQueue {
	return &RedisDeadLetterQueue{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}
}

// Add adds a failed item to the dead letter queue
func (q *RedisDeadLetterQueue) Add(ctx context.Context, item interface{}, err error) error {
	dlItem := newDeadLetterItem(item, err)

	data, marshalErr := json.Marshal(dlItem)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", marshalErr)
	}

	if err := q.client.HSet(ctx, q.dlKey, dlItem.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}

	return nil
}

// List returns up to maxItems dead letters, oldest first
func (q *RedisDeadLetterQueue) List(ctx context.Context, maxItems int) ([]DeadLetterItem, error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem, 0, len(results))
	for _, data := range results {
		var dlItem DeadLetterItem
		if err := json.Unmarshal([]byte(data), &dlItem); err != nil {
			continue // Skip malformed items
		}
		items = append(items, dlItem)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})

	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// Remove removes an item from the dead letter queue
func (q *RedisDeadLetterQueue) Remove(ctx context.Context, id string) error {
	removed, err := q.client.HDel(ctx, q.dlKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	if removed == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Close releases the connection if the queue dialed it
func (q *RedisDeadLetterQueue) Close() error {
	if q.owned {
		return q.client.Close()
	}
	return nil
}
