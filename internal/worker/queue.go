// Package worker runs background tasks: queued jobs such as outbound email
// and search reindexing, plus periodic maintenance on a cron schedule.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Task kinds handled by the dispatcher.
const (
	TaskSendEmail     = "send_email"
	TaskReindexAll    = "reindex_all"
	TaskIndexBenefit  = "index_benefit"
	TaskIndexUser     = "index_user"
	TaskRemoveBenefit = "remove_benefit"
	TaskRemoveUser    = "remove_user"
	TaskSweepSessions = "sweep_sessions"
)

// Task is one queued unit of work. Payload shape depends on Kind.
type Task struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewTask builds a task with a fresh ID.
func NewTask(kind string, payload map[string]string) Task {
	return Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Queue hands tasks from the API process to the worker process.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue blocks up to timeout for the next task. ok is false when the
	// timeout elapsed with no task available.
	Dequeue(ctx context.Context, timeout time.Duration) (t Task, ok bool, err error)
}

const queueKey = "tasks:pending"

// RedisQueue is a Redis list used as a FIFO task queue.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue on the given client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Enqueue pushes the task onto the head of the list.
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue pops the oldest task, blocking until one arrives or timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("dequeue task: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return Task{}, false, fmt.Errorf("dequeue task: unexpected reply length %d", len(res))
	}
	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return Task{}, false, fmt.Errorf("decode task: %w", err)
	}
	return t, true, nil
}

// MemoryQueue is a buffered in-process queue used when Redis is disabled.
// Tasks only reach a worker running in the same process.
type MemoryQueue struct {
	ch chan Task
}

// NewMemoryQueue creates a queue with a fixed buffer.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan Task, size)}
}

// Enqueue adds the task, failing when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case q.ch <- t:
		return nil
	default:
		return fmt.Errorf("task queue full")
	}
}

// Dequeue waits up to timeout for the next task.
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (Task, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case t := <-q.ch:
		return t, true, nil
	case <-timer.C:
		return Task{}, false, nil
	case <-ctx.Done():
		return Task{}, false, ctx.Err()
	}
}
