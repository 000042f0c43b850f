// Package scheduler periodically re-fetches imported records whose catalog data has gone stale.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/metrics"
	"github.com/Monsterkot/diplom/internal/tasks"
)

// KindRefresh is the task kind of one queued record refresh.
const KindRefresh = "refresh"

// StaleFinder selects imported records last fetched before cutoff.
type StaleFinder interface {
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]book.Key, error)
}

// Refresher re-fetches one record. The orchestrator implements it.
type Refresher interface {
	Refresh(ctx context.Context, key book.Key) (book.Outcome, error)
}

// Submitter queues background work.
type Submitter interface {
	Submit(kind string, job tasks.Job) (string, error)
}

// TickReport summarises one scheduling pass.
type TickReport struct {
	Total   int      `json:"total"`
	Queued  int      `json:"queued"`
	Failed  int      `json:"failed"`
	Handles []string `json:"handles"`
}

// Scheduler queues a refresh task for every stale record.
type Scheduler struct {
	finder    StaleFinder
	refresher Refresher
	queue     Submitter
	maxAge    time.Duration
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithMaxAge sets how old last_fetched_at may get before a record is stale.
func WithMaxAge(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithBatchSize caps how many records one tick queues.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithInterval sets the time between ticks in Run.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the time source used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scheduler. Defaults: 7 day max age, batches of 50, daily ticks.
func New(finder StaleFinder, refresher Refresher, queue Submitter, opts ...Option) *Scheduler {
	s := &Scheduler{
		finder:    finder,
		refresher: refresher,
		queue:     queue,
		maxAge:    7 * 24 * time.Hour,
		batchSize: 50,
		interval:  24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick selects stale records and queues one refresh task per record.
// A record that cannot be queued is counted as failed and the rest still run.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	cutoff := s.now().Add(-s.maxAge)
	keys, err := s.finder.FindStale(ctx, cutoff, s.batchSize)
	if err != nil {
		return TickReport{}, fmt.Errorf("selecting stale records: %w", err)
	}

	report := TickReport{Total: len(keys), Handles: []string{}}
	for _, key := range keys {
		id, err := s.queue.Submit(KindRefresh, s.refreshJob(key))
		if err != nil {
			report.Failed++
			slog.Warn("Failed to queue refresh", "key", key.String(), "error", err)
			continue
		}
		report.Queued++
		report.Handles = append(report.Handles, id)
	}

	metrics.AddStaleQueued(report.Queued)
	slog.Info("Staleness tick", "cutoff", cutoff, "stale", report.Total, "queued", report.Queued, "failed", report.Failed)
	return report, nil
}

func (s *Scheduler) refreshJob(key book.Key) tasks.Job {
	return func(ctx context.Context, progress tasks.ProgressFunc) (any, error) {
		progress(tasks.Progress{Total: 1})
		outcome, err := s.refresher.Refresh(ctx, key)

		done := tasks.Progress{Current: 1, Total: 1}
		if err != nil {
			done.Failed = 1
		} else {
			done.Successful = 1
		}
		progress(done)
		return outcome, err
	}
}

// Run ticks once immediately and then every interval until ctx is cancelled.
// A failed tick is logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Staleness tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Staleness scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
