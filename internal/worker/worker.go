package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/metrics"
	"github.com/cafeteria-hr/service_layer/internal/system"
)

// maxRetries bounds redelivery of failing tasks.
const maxRetries = 3

// Handler executes one kind of task.
type Handler func(ctx context.Context, t Task) error

// Worker drains the queue and dispatches tasks to registered handlers.
type Worker struct {
	queue    Queue
	handlers map[string]Handler
	log      *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Worker)(nil)

// NewWorker creates a worker on the given queue.
func NewWorker(queue Queue, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.NewDefault("worker")
	}
	return &Worker{
		queue:    queue,
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Handle registers the handler for a task kind. Must be called before Start.
func (w *Worker) Handle(kind string, h Handler) {
	w.handlers[kind] = h
}

func (w *Worker) Name() string { return "task-worker" }

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			task, ok, err := w.queue.Dequeue(runCtx, 5*time.Second)
			if err != nil {
				if runCtx.Err() != nil {
					return
				}
				w.log.WithError(err).Warn("dequeue failed")
				time.Sleep(time.Second)
				continue
			}
			if !ok {
				continue
			}
			w.dispatch(runCtx, task)
		}
	}()

	w.log.Info("task worker started")
	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, t Task) {
	handler, ok := w.handlers[t.Kind]
	if !ok {
		w.log.WithField("kind", t.Kind).Warn("no handler for task kind")
		metrics.RecordTask(t.Kind, 0, false)
		return
	}

	start := time.Now()
	err := handler(ctx, t)
	metrics.RecordTask(t.Kind, time.Since(start), err == nil)
	if err == nil {
		w.log.WithField("task_id", t.ID).WithField("kind", t.Kind).Debug("task done")
		return
	}

	w.log.WithError(err).
		WithField("task_id", t.ID).
		WithField("kind", t.Kind).
		Warn("task failed")
	w.retry(ctx, t)
}

// retry re-enqueues a failed task until maxRetries is exhausted. The retry
// count travels in the payload so it survives the queue round-trip.
func (w *Worker) retry(ctx context.Context, t Task) {
	attempts := 0
	if t.Payload != nil {
		attempts, _ = strconv.Atoi(t.Payload["retries"])
	}
	if attempts+1 >= maxRetries {
		w.log.WithField("task_id", t.ID).WithField("kind", t.Kind).Error("task dropped after retries")
		return
	}
	if t.Payload == nil {
		t.Payload = make(map[string]string)
	}
	t.Payload["retries"] = fmt.Sprintf("%d", attempts+1)
	if err := w.queue.Enqueue(ctx, t); err != nil {
		w.log.WithError(err).WithField("task_id", t.ID).Error("re-enqueue failed")
	}
}
