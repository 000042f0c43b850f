package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/ratelimit"
	"github.com/Monsterkot/diplom/internal/retry"
	"github.com/Monsterkot/diplom/internal/tasks"
)

// KindBulkImport is the task kind of a queued batch.
const KindBulkImport = "bulk_import"

// Submitter queues background work. tasks.Queue implements it.
type Submitter interface {
	Submit(kind string, job tasks.Job) (string, error)
}

// BulkExecutor imports many items, isolating each item's failure.
type BulkExecutor struct {
	orchestrator     *Orchestrator
	throttle         *ratelimit.Set
	queue            Submitter
	asyncThreshold   int
	backgroundPolicy *retry.Policy
}

// BulkOption is a functional option for configuring the BulkExecutor.
type BulkOption func(*BulkExecutor)

// WithQueue lets Run hand batches larger than threshold to queue.
func WithQueue(queue Submitter, threshold int) BulkOption {
	return func(b *BulkExecutor) {
		b.queue = queue
		b.asyncThreshold = threshold
	}
}

// WithBackgroundPolicy sets the retry policy used for queued batches.
func WithBackgroundPolicy(policy retry.Policy) BulkOption {
	return func(b *BulkExecutor) {
		b.backgroundPolicy = &policy
	}
}

// NewBulkExecutor creates a BulkExecutor that spaces calls to one catalog by throttle.
func NewBulkExecutor(orchestrator *Orchestrator, throttle time.Duration, opts ...BulkOption) *BulkExecutor {
	b := &BulkExecutor{
		orchestrator: orchestrator,
		throttle:     ratelimit.NewSet(throttle),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunResult is either a finished report or the handle of a queued batch.
type RunResult struct {
	Report *book.Report `json:"report,omitempty"`
	TaskID string       `json:"task_id,omitempty"`
}

// Run imports small batches synchronously and queues batches larger than the
// async threshold, returning their handle.
func (b *BulkExecutor) Run(ctx context.Context, items []Request, actorID string, progress tasks.ProgressFunc) (RunResult, error) {
	if b.queue != nil && len(items) > b.asyncThreshold {
		id, err := b.Submit(items, actorID)
		if err != nil {
			return RunResult{}, err
		}
		return RunResult{TaskID: id}, nil
	}

	report := b.ImportMany(ctx, items, actorID, progress)
	return RunResult{Report: &report}, nil
}

// Submit queues the batch regardless of its size.
func (b *BulkExecutor) Submit(items []Request, actorID string) (string, error) {
	if b.queue == nil {
		return "", fmt.Errorf("bulk import: no task queue configured")
	}

	executor := b
	if b.backgroundPolicy != nil {
		c := *b
		c.orchestrator = b.orchestrator.WithPolicy(*b.backgroundPolicy)
		executor = &c
	}

	batch := append([]Request(nil), items...)
	id, err := b.queue.Submit(KindBulkImport, func(ctx context.Context, progress tasks.ProgressFunc) (any, error) {
		report := executor.ImportMany(ctx, batch, actorID, progress)
		return report, nil
	})
	if err != nil {
		return "", fmt.Errorf("bulk import: %w", err)
	}
	slog.Info("Bulk import queued", "task", id, "items", len(batch))
	return id, nil
}

// ImportMany imports every item and reports one outcome per item in input order.
// Items of different catalogs run concurrently; items of one catalog run in order,
// spaced by the throttle. Failures never abort the batch. Items not yet started when
// ctx is cancelled are reported as cancelled.
func (b *BulkExecutor) ImportMany(ctx context.Context, items []Request, actorID string, progress tasks.ProgressFunc) book.Report {
	outcomes := make([]book.Outcome, len(items))
	tracker := newProgressTracker(len(items), progress)
	tracker.publish()

	var (
		order      []book.Source
		partitions = make(map[book.Source][]int)
	)
	for i, item := range items {
		if _, ok := partitions[item.Source]; !ok {
			order = append(order, item.Source)
		}
		partitions[item.Source] = append(partitions[item.Source], i)
	}

	var g errgroup.Group
	for _, source := range order {
		indexes := partitions[source]
		limiter := b.throttle.For(string(source))

		g.Go(func() error {
			for n, idx := range indexes {
				err := ctx.Err()
				if err == nil {
					err = limiter.Wait(ctx)
				}
				if err != nil {
					for _, rest := range indexes[n:] {
						outcomes[rest] = book.Failed(items[rest].Key(), MessageCancelled, err)
						tracker.add(outcomes[rest])
					}
					return nil
				}

				outcomes[idx] = b.importItem(ctx, items[idx], actorID)
				tracker.add(outcomes[idx])
			}
			return nil
		})
	}
	_ = g.Wait()

	report := book.NewReport(outcomes)
	slog.Info("Bulk import finished", "total", report.Total, "successful", report.Successful, "failed", report.Failed)
	return report
}

// importItem never panics and never returns an error; both become a failed outcome.
func (b *BulkExecutor) importItem(ctx context.Context, item Request, actorID string) (outcome book.Outcome) {
	key := item.Key()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Import panicked", "key", key.String(), "panic", r)
			outcome = book.Failed(key, MessageImportFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	outcome, err := b.orchestrator.ImportOne(ctx, item, actorID)
	if err != nil {
		message := MessageImportFailed
		if errors.IsValidationError(err) {
			message = MessageInvalid
		}
		return book.Failed(key, message, err)
	}
	return outcome
}

type progressTracker struct {
	mu       sync.Mutex
	progress tasks.Progress
	publishF tasks.ProgressFunc
}

func newProgressTracker(total int, publish tasks.ProgressFunc) *progressTracker {
	return &progressTracker{
		progress: tasks.Progress{Total: total},
		publishF: publish,
	}
}

func (t *progressTracker) add(outcome book.Outcome) {
	t.mu.Lock()
	t.progress.Current++
	if outcome.Success {
		t.progress.Successful++
	} else {
		t.progress.Failed++
	}
	snapshot := t.progress
	if t.publishF != nil {
		t.publishF(snapshot)
	}
	t.mu.Unlock()
}

func (t *progressTracker) publish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.publishF != nil {
		t.publishF(t.progress)
	}
}
