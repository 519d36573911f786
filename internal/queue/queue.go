package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// PunchEvent is the fanout payload published after every successful punch.
type PunchEvent struct {
	RecordID string `json:"record_id"`
	Kind     string `json:"kind"`
	UserID   string `json:"user_id"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt PunchEvent) error
	Consume(ctx context.Context) (<-chan PunchEvent, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan PunchEvent
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan PunchEvent, size)}
}

// Publish enqueues an event.
func (q *InMemory) Publish(ctx context.Context, evt PunchEvent) error {
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan PunchEvent, error) {
	out := make(chan PunchEvent)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-q.ch:
				out <- evt
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "punchclock:punches"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event as JSON.
func (q *RedisQueue) Publish(ctx context.Context, evt PunchEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume streams events using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan PunchEvent, error) {
	out := make(chan PunchEvent)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var evt PunchEvent
				if err := json.Unmarshal([]byte(res[1]), &evt); err == nil {
					out <- evt
				}
			}
		}
	}()
	return out, nil
}
