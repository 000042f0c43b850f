package cmd

import (
	"fmt"

	"github.com/Monsterkot/diplom/internal/aggregator"
	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/config"
	"github.com/Monsterkot/diplom/internal/importer"
	"github.com/Monsterkot/diplom/internal/ratelimit"
	"github.com/Monsterkot/diplom/internal/retry"
	"github.com/Monsterkot/diplom/internal/scheduler"
	"github.com/Monsterkot/diplom/internal/sources/googlebooks"
	"github.com/Monsterkot/diplom/internal/sources/openlibrary"
	"github.com/Monsterkot/diplom/internal/store"
	"github.com/Monsterkot/diplom/internal/tasks"
)

// App wires the pipeline components for one command invocation.
type App struct {
	Config     config.Config
	Store      *store.Store
	Registry   *book.Registry
	Aggregator *aggregator.Aggregator
	Importer   *importer.Orchestrator
	Refresher  *importer.Orchestrator
	Bulk       *importer.BulkExecutor
	Queue      *tasks.Queue
	Scheduler  *scheduler.Scheduler
}

// openApp is replaced in tests to inject fake catalogs.
var openApp = func(cfg config.Config) (*App, error) {
	return newApp(cfg, defaultAdapters(cfg)...)
}

func defaultAdapters(cfg config.Config) []book.Adapter {
	limiter := func(name string) *ratelimit.Limiter {
		if cfg.Sources.RequestsPerSecond == 0 {
			return nil
		}
		return ratelimit.New(name, cfg.Sources.RequestsPerSecond)
	}

	return []book.Adapter{
		googlebooks.NewClient(cfg.Sources.GoogleBooksAPIKey,
			googlebooks.WithBaseURL(cfg.Sources.GoogleBooksBaseURL),
			googlebooks.WithTimeout(cfg.Sources.HTTPTimeout),
			googlebooks.WithRateLimiter(limiter("GoogleBooks")),
		),
		openlibrary.NewClient(
			openlibrary.WithBaseURL(cfg.Sources.OpenLibraryBaseURL),
			openlibrary.WithTimeout(cfg.Sources.HTTPTimeout),
			openlibrary.WithRateLimiter(limiter("OpenLibrary")),
		),
	}
}

func newApp(cfg config.Config, adapters ...book.Adapter) (*App, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry := book.NewRegistry(adapters...)
	queue := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.Capacity, st, tasks.WithRetention(cfg.Tasks.Retention))

	interactive := importer.NewOrchestrator(registry, st, policyFrom("interactive", cfg.Retry.Interactive))
	refresher := interactive.WithPolicy(policyFrom("refresh", cfg.Retry.Refresh))

	return &App{
		Config:     cfg,
		Store:      st,
		Registry:   registry,
		Aggregator: aggregator.New(registry, aggregator.WithRecorder(st)),
		Importer:   interactive,
		Refresher:  refresher,
		Bulk: importer.NewBulkExecutor(interactive, cfg.Bulk.Throttle,
			importer.WithQueue(queue, cfg.Bulk.AsyncThreshold),
			importer.WithBackgroundPolicy(policyFrom("bulk", cfg.Retry.Bulk)),
		),
		Queue: queue,
		Scheduler: scheduler.New(st, refresher, queue,
			scheduler.WithMaxAge(cfg.Staleness.MaxAge),
			scheduler.WithBatchSize(cfg.Staleness.BatchSize),
			scheduler.WithInterval(cfg.Staleness.Interval),
		),
	}, nil
}

func policyFrom(name string, p config.PolicyConfig) retry.Policy {
	return retry.New(name, p.MaxRetries, p.BaseDelay)
}

// Close stops the task queue and closes the store.
func (a *App) Close() error {
	a.Queue.Close()
	return a.Store.Close()
}
