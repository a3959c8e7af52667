package tasks

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/metrics"
)

// HandlerFunc executes one task payload. Handlers must be idempotent:
// delivery is at-least-once and failed jobs are re-enqueued with backoff.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

const (
	defaultMaxAttempts = 5
	handlerTimeout     = 60 * time.Second
	dequeueWait        = time.Second
	promoteInterval    = time.Second
)

// Worker consumes jobs from the queue and dispatches them to registered
// handlers. A second loop promotes due scheduled jobs every second.
type Worker struct {
	queue       Consumer
	handlers    map[string]HandlerFunc
	log         *zap.Logger
	stop        chan struct{}
	maxAttempts int
}

// NewWorker creates a worker over the given queue.
func NewWorker(queue Consumer, log *zap.Logger) *Worker {
	return &Worker{
		queue:       queue,
		handlers:    make(map[string]HandlerFunc),
		log:         log,
		stop:        make(chan struct{}),
		maxAttempts: defaultMaxAttempts,
	}
}

// Handle registers the handler for a task name. Not safe to call after Start.
func (w *Worker) Handle(name string, fn HandlerFunc) {
	w.handlers[name] = fn
}

// Start launches the consume and scheduler loops.
func (w *Worker) Start() {
	go w.consumeLoop()
	go w.promoteLoop()
}

// Stop signals both loops to exit.
func (w *Worker) Stop() {
	close(w.stop)
}

func (w *Worker) consumeLoop() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), dequeueWait+5*time.Second)
		job, err := w.queue.Dequeue(ctx, dequeueWait)
		cancel()
		if err != nil {
			w.log.Error("task dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.process(job)
	}
}

func (w *Worker) promoteLoop() {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := w.queue.PromoteDue(ctx, time.Now()); err != nil {
				w.log.Error("scheduled task promotion failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (w *Worker) process(job *Job) {
	handler, ok := w.handlers[job.Name]
	if !ok {
		w.log.Error("no handler registered for task", zap.String("name", job.Name), zap.String("id", job.ID))
		metrics.TaskRuns.WithLabelValues(job.Name, "unhandled").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	err := handler(ctx, job.Payload)
	cancel()

	if err == nil {
		metrics.TaskRuns.WithLabelValues(job.Name, "ok").Inc()
		return
	}
	metrics.TaskRuns.WithLabelValues(job.Name, "error").Inc()

	if job.Attempts+1 >= w.maxAttempts {
		w.log.Error("task failed permanently",
			zap.String("name", job.Name), zap.String("id", job.ID),
			zap.Int("attempts", job.Attempts+1), zap.Error(err))
		return
	}

	w.log.Warn("task failed, scheduling retry",
		zap.String("name", job.Name), zap.String("id", job.ID),
		zap.Int("attempts", job.Attempts+1), zap.Error(err))
	retry := *job
	retry.Attempts++
	rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer rcancel()
	if err := w.queue.RequeueIn(rctx, nextBackoff(retry.Attempts), &retry); err != nil {
		w.log.Error("task retry enqueue failed", zap.String("id", job.ID), zap.Error(err))
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
