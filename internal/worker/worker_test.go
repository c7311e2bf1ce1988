package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	task := NewTask(TaskSendEmail, map[string]string{"to": "ivan@corp.com"})
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Dequeue failed: ok=%v err=%v", ok, err)
	}
	if got.ID != task.ID || got.Kind != TaskSendEmail {
		t.Errorf("unexpected task %+v", got)
	}
	if got.Payload["to"] != "ivan@corp.com" {
		t.Errorf("payload lost in transit: %+v", got.Payload)
	}
}

func TestMemoryQueueTimeout(t *testing.T) {
	q := NewMemoryQueue(1)
	_, ok, err := q.Dequeue(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if ok {
		t.Error("expected timeout with no task")
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, NewTask(TaskSendEmail, nil)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, NewTask(TaskSendEmail, nil)); err == nil {
		t.Error("expected error when buffer is full")
	}
}

func TestWorkerDispatch(t *testing.T) {
	q := NewMemoryQueue(4)
	w := NewWorker(q, nil)

	var (
		mu   sync.Mutex
		seen []string
	)
	w.Handle(TaskSendEmail, func(ctx context.Context, task Task) error {
		mu.Lock()
		seen = append(seen, task.Payload["to"])
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(context.Background())

	if err := q.Enqueue(ctx, NewTask(TaskSendEmail, map[string]string{"to": "a@corp.com"})); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, NewTask(TaskSendEmail, map[string]string{"to": "b@corp.com"})); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 handled tasks, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerRetriesThenDrops(t *testing.T) {
	q := NewMemoryQueue(8)
	w := NewWorker(q, nil)

	var (
		mu       sync.Mutex
		attempts int
	)
	w.Handle(TaskIndexUser, func(ctx context.Context, task Task) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("index down")
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop(context.Background())

	if err := q.Enqueue(ctx, NewTask(TaskIndexUser, map[string]string{"id": "u1"})); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := attempts
		mu.Unlock()
		if n >= maxRetries {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d attempts, got %d", maxRetries, n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Let any stray redelivery land, then confirm the task was dropped.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	final := attempts
	mu.Unlock()
	if final != maxRetries {
		t.Errorf("expected exactly %d attempts, got %d", maxRetries, final)
	}
}

func TestWorkerStopIsIdempotent(t *testing.T) {
	w := NewWorker(NewMemoryQueue(1), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}
