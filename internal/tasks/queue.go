package tasks

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when no more tasks can be buffered.
	ErrQueueFull = stdErrors.New("task queue full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = stdErrors.New("task queue closed")
)

// ProgressFunc is handed to a job so it can publish progress.
type ProgressFunc func(Progress)

// Job is the unit of background work. Its result is stored as JSON.
type Job func(ctx context.Context, progress ProgressFunc) (any, error)

// Recorder persists status snapshots. It may be nil.
type Recorder interface {
	SaveTask(ctx context.Context, status Status) error
	LoadTask(ctx context.Context, id string) (Status, error)
}

type task struct {
	status Status
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// DefaultRetention is how long a finished task stays in memory.
const DefaultRetention = time.Hour

// Queue runs jobs on a fixed pool of workers.
type Queue struct {
	mu        sync.RWMutex
	tasks     map[string]*task
	pending   chan *task
	workers   int
	recorder  Recorder
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	now       func() time.Time
	retention time.Duration
}

// Option is a functional option for configuring the Queue.
type Option func(*Queue)

// WithRetention sets how long finished tasks are kept in memory. Older ones are
// answered from the recorder. Non-positive values are ignored.
func WithRetention(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retention = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue starts workers goroutines consuming a buffer of capacity tasks.
func NewQueue(workers, capacity int, recorder Recorder, opts ...Option) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if capacity <= 0 {
		capacity = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		tasks:     make(map[string]*task),
		pending:   make(chan *task, capacity),
		workers:   workers,
		recorder:  recorder,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

// Submit queues a job and returns its handle.
func (q *Queue) Submit(kind string, job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrQueueClosed
	}

	now := q.now()
	q.evictLocked(now)

	ctx, cancel := context.WithCancel(q.ctx)
	t := &task{
		status: Status{
			ID:        uuid.New().String(),
			Kind:      kind,
			State:     StatePending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		job:    job,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	select {
	case q.pending <- t:
	default:
		cancel()
		return "", ErrQueueFull
	}

	q.tasks[t.status.ID] = t
	q.persist(t.status)
	metrics.IncTaskSubmitted(kind)
	slog.Debug("Task queued", "id", t.status.ID, "kind", kind)
	return t.status.ID, nil
}

// evictLocked drops finished tasks older than the retention window.
func (q *Queue) evictLocked(now time.Time) {
	cutoff := now.Add(-q.retention)
	for id, t := range q.tasks {
		if t.status.State.Terminal() && t.status.UpdatedAt.Before(cutoff) {
			delete(q.tasks, id)
		}
	}
}

// Status returns the latest snapshot of a task, falling back to the recorder
// for tasks this process does not know about.
func (q *Queue) Status(ctx context.Context, id string) (Status, error) {
	q.mu.RLock()
	t, ok := q.tasks[id]
	var status Status
	if ok {
		status = t.status
	}
	q.mu.RUnlock()

	if ok {
		return status, nil
	}
	if q.recorder != nil {
		return q.recorder.LoadTask(ctx, id)
	}
	return Status{}, errors.NewNotFoundError("tasks", id)
}

// Wait blocks until the task reaches a terminal state or ctx is done.
// An evicted task is answered from the recorder.
func (q *Queue) Wait(ctx context.Context, id string) (Status, error) {
	q.mu.RLock()
	t, ok := q.tasks[id]
	q.mu.RUnlock()
	if !ok {
		status, err := q.Status(ctx, id)
		if err != nil {
			return Status{}, err
		}
		if !status.State.Terminal() {
			return Status{}, errors.NewNotFoundError("tasks", id)
		}
		return status, nil
	}

	select {
	case <-t.done:
		return q.Status(ctx, id)
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Cancel cancels a task's context. A pending task fails without running;
// a running job sees the cancellation and decides how to stop.
func (q *Queue) Cancel(id string) error {
	q.mu.RLock()
	t, ok := q.tasks[id]
	q.mu.RUnlock()
	if !ok {
		return errors.NewNotFoundError("tasks", id)
	}

	t.cancel()
	slog.Info("Task cancel requested", "id", id)
	return nil
}

// Close stops accepting work, cancels everything still queued or running
// and waits for the workers to return.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.pending)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for t := range q.pending {
		q.run(t)
	}
	slog.Debug("Task worker stopped", "worker", id)
}

func (q *Queue) run(t *task) {
	defer close(t.done)
	defer t.cancel()

	if err := t.ctx.Err(); err != nil {
		q.finish(t, nil, fmt.Errorf("cancelled before start: %w", err))
		return
	}

	q.update(t, func(s *Status) { s.State = StateRunning })
	started := q.now()

	result, err := q.invoke(t)

	metrics.ObserveTaskDuration(t.status.Kind, time.Since(started))
	q.finish(t, result, err)
}

// invoke runs the job, turning a panic into an error.
func (q *Queue) invoke(t *task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return t.job(t.ctx, func(p Progress) {
		q.update(t, func(s *Status) { s.Progress = p })
	})
}

func (q *Queue) finish(t *task, result any, err error) {
	var encoded json.RawMessage
	if result != nil {
		data, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			err = stdErrors.Join(err, fmt.Errorf("encoding task result: %w", marshalErr))
		} else {
			encoded = data
		}
	}

	q.update(t, func(s *Status) {
		s.Result = encoded
		if err != nil {
			s.State = StateFailed
			s.Error = err.Error()
		} else {
			s.State = StateSucceeded
		}
	})

	if err != nil {
		metrics.IncTaskFailed(t.status.Kind)
		slog.Warn("Task failed", "id", t.status.ID, "kind", t.status.Kind, "error", err)
		return
	}
	metrics.IncTaskSucceeded(t.status.Kind)
	slog.Info("Task completed", "id", t.status.ID, "kind", t.status.Kind)
}

func (q *Queue) update(t *task, mutate func(*Status)) {
	q.mu.Lock()
	mutate(&t.status)
	t.status.UpdatedAt = q.now()
	snapshot := t.status
	q.mu.Unlock()

	q.persist(snapshot)
}

func (q *Queue) persist(status Status) {
	if q.recorder == nil {
		return
	}
	// Status writes must land even while the task itself is being cancelled.
	ctx := context.WithoutCancel(q.ctx)
	if err := q.recorder.SaveTask(ctx, status); err != nil {
		slog.Warn("Failed to persist task status", "id", status.ID, "error", err)
	}
}
