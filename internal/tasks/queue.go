package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task names dispatched through the queue.
const (
	JobCreateDelivery = "delivery.create"
	JobWebhookEvent   = "webhook.event"
)

// CreateDeliveryPayload is the payload of a JobCreateDelivery task.
type CreateDeliveryPayload struct {
	OrderID string `json:"order_id"`
}

// Job is one unit of background work. Delivery is at-least-once; handlers
// must be idempotent.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is the submission side of the task queue. Enqueue returns as soon as
// the job is durably queued; execution happens later in a worker context.
type Queue interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
	EnqueueIn(ctx context.Context, delay time.Duration, name string, payload any) (string, error)
}

// Consumer is the worker side of the queue.
type Consumer interface {
	Queue
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// RequeueIn puts an already-built job (attempt count included) back on
	// the schedule for a retry.
	RequeueIn(ctx context.Context, delay time.Duration, job *Job) error
}

const (
	listKey      = "uberdirect:tasks"
	scheduledKey = "uberdirect:tasks:scheduled"
)

// RedisQueue implements Consumer on a Redis list plus a sorted set of
// delayed jobs scored by their due time.
type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func newJob(name string, payload any) (*Job, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("tasks: marshal payload for %s: %w", name, err)
	}
	job := &Job{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("tasks: marshal job %s: %w", name, err)
	}
	return job, data, nil
}

// Enqueue pushes a job for immediate execution.
func (q *RedisQueue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	job, data, err := newJob(name, payload)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, listKey, data).Err(); err != nil {
		return "", fmt.Errorf("tasks: enqueue %s: %w", name, err)
	}
	return job.ID, nil
}

// EnqueueIn schedules a job for execution after the delay. A scheduler tick
// promotes due jobs onto the main list.
func (q *RedisQueue) EnqueueIn(ctx context.Context, delay time.Duration, name string, payload any) (string, error) {
	job, data, err := newJob(name, payload)
	if err != nil {
		return "", err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, scheduledKey, redis.Z{Score: due, Member: data}).Err(); err != nil {
		return "", fmt.Errorf("tasks: schedule %s: %w", name, err)
	}
	return job.ID, nil
}

// RequeueIn schedules an existing job for another attempt after the delay.
func (q *RedisQueue) RequeueIn(ctx context.Context, delay time.Duration, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("tasks: marshal job %s: %w", job.Name, err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, scheduledKey, redis.Z{Score: due, Member: data}).Err(); err != nil {
		return fmt.Errorf("tasks: requeue %s: %w", job.Name, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. Returns (nil, nil) when the
// queue stays empty.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, listKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("tasks: dequeue: %w", err)
	}
	// BRPop returns [key, value].
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("tasks: decode job: %w", err)
	}
	return &job, nil
}

// PromoteDue moves scheduled jobs whose due time has passed onto the main
// list. ZRem before LPush keeps a job from being promoted twice when
// multiple workers tick at once.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("tasks: promote due: %w", err)
	}

	moved := 0
	for _, member := range members {
		removed, err := q.rdb.ZRem(ctx, scheduledKey, member).Result()
		if err != nil {
			return moved, fmt.Errorf("tasks: promote due: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, listKey, member).Err(); err != nil {
			return moved, fmt.Errorf("tasks: promote due: %w", err)
		}
		moved++
	}
	return moved, nil
}

// MemoryQueue is an in-process Consumer used by tests and as a fallback when
// Redis is not configured.
type MemoryQueue struct {
	mu        sync.Mutex
	jobs      []*Job
	scheduled []scheduledJob
}

type scheduledJob struct {
	job *Job
	due time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	job, _, err := newJob(name, payload)
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return job.ID, nil
}

func (q *MemoryQueue) EnqueueIn(ctx context.Context, delay time.Duration, name string, payload any) (string, error) {
	job, _, err := newJob(name, payload)
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	q.scheduled = append(q.scheduled, scheduledJob{job: job, due: time.Now().Add(delay)})
	q.mu.Unlock()
	return job.ID, nil
}

func (q *MemoryQueue) RequeueIn(ctx context.Context, delay time.Duration, job *Job) error {
	q.mu.Lock()
	q.scheduled = append(q.scheduled, scheduledJob{job: job, due: time.Now().Add(delay)})
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	moved := 0
	remaining := q.scheduled[:0]
	for _, s := range q.scheduled {
		if !s.due.After(now) {
			q.jobs = append(q.jobs, s.job)
			moved++
		} else {
			remaining = append(remaining, s)
		}
	}
	q.scheduled = remaining
	return moved, nil
}

// Len reports how many jobs are waiting for immediate execution.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
