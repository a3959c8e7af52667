package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWorkerProcessSuccess(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, zap.NewNop())

	var got string
	w.Handle("greet", func(ctx context.Context, payload json.RawMessage) error {
		got = string(payload)
		return nil
	})

	w.process(&Job{ID: "j1", Name: "greet", Payload: json.RawMessage(`"hello"`)})
	if got != `"hello"` {
		t.Errorf("handler saw payload %q; want \"hello\"", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d; successful jobs must not be requeued", q.Len())
	}
}

func TestWorkerProcessRetriesWithBackoff(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, zap.NewNop())
	w.Handle("flaky", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("downstream unavailable")
	})

	w.process(&Job{ID: "j1", Name: "flaky", Attempts: 0})

	// The retry sits on the schedule; nothing is immediately runnable.
	if q.Len() != 0 {
		t.Fatalf("queue length = %d; retry must be scheduled, not immediate", q.Len())
	}
	if _, err := q.PromoteDue(context.Background(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("PromoteDue error: %v", err)
	}
	job, err := q.Dequeue(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if job == nil {
		t.Fatal("no retry job scheduled")
	}
	if job.Attempts != 1 {
		t.Errorf("retry attempts = %d; want 1", job.Attempts)
	}
}

func TestWorkerProcessGivesUpAfterMaxAttempts(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, zap.NewNop())
	w.Handle("flaky", func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("still broken")
	})

	w.process(&Job{ID: "j1", Name: "flaky", Attempts: w.maxAttempts - 1})

	if _, err := q.PromoteDue(context.Background(), time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("PromoteDue error: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d; exhausted jobs must not be requeued", q.Len())
	}
}

func TestWorkerProcessUnhandledJob(t *testing.T) {
	q := NewMemoryQueue()
	w := NewWorker(q, zap.NewNop())

	// No handler registered: the job is dropped, not retried forever.
	w.process(&Job{ID: "j1", Name: "nobody-home"})
	if _, err := q.PromoteDue(context.Background(), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("PromoteDue error: %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d; want 0", q.Len())
	}
}

func TestNextBackoff(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
		{20, 1024 * time.Second}, // attempt count is capped at 10
	}
	for _, tc := range cases {
		if got := nextBackoff(tc.attempts); got != tc.want {
			t.Errorf("nextBackoff(%d) = %v; want %v", tc.attempts, got, tc.want)
		}
	}
}
