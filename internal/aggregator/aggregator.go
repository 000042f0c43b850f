// Package aggregator fans a search out to several catalogs at once.
package aggregator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/metrics"
)

// Recorder caches results seen during a search. It is optional.
type Recorder interface {
	UpsertSeen(ctx context.Context, result book.Result) (int64, error)
}

// Aggregator runs one search against several catalogs concurrently.
type Aggregator struct {
	registry *book.Registry
	recorder Recorder
}

// Option is a functional option for configuring the Aggregator.
type Option func(*Aggregator)

// WithRecorder caches every successfully returned item.
func WithRecorder(recorder Recorder) Option {
	return func(a *Aggregator) {
		a.recorder = recorder
	}
}

// New creates an Aggregator over the registry's adapters.
func New(registry *book.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{registry: registry}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SearchAll searches every requested source (all registered ones when none are given)
// and returns one SearchResult per source. A failing source contributes an empty
// result rather than an error; the only error is a ValidationError for an empty
// query or an unknown source.
func (a *Aggregator) SearchAll(ctx context.Context, query string, perSourceLimit int, sources ...book.Source) (map[book.Source]book.SearchResult, error) {
	return a.Search(ctx, book.Query{Text: query, MaxResults: perSourceLimit}, sources...)
}

// Search is SearchAll with the full query, including page token and language.
func (a *Aggregator) Search(ctx context.Context, query book.Query, sources ...book.Source) (map[book.Source]book.SearchResult, error) {
	query.Text = strings.TrimSpace(query.Text)
	if query.Text == "" {
		return nil, errors.NewValidationError("query", "must not be empty")
	}
	if len(sources) == 0 {
		sources = a.registry.Sources()
	}

	adapters := make([]book.Adapter, 0, len(sources))
	seen := make(map[book.Source]bool, len(sources))
	for _, source := range sources {
		if seen[source] {
			continue
		}
		seen[source] = true

		adapter, err := a.registry.Get(source)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	var (
		mu      sync.Mutex
		results = make(map[book.Source]book.SearchResult, len(adapters))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range adapters {
		g.Go(func() error {
			result := a.searchOne(gctx, adapter, query)

			mu.Lock()
			results[adapter.Source()] = result
			mu.Unlock()
			// Never fail the group: a failing source must not cancel its siblings.
			return nil
		})
	}
	_ = g.Wait()

	a.record(ctx, results)
	return results, nil
}

func (a *Aggregator) searchOne(ctx context.Context, adapter book.Adapter, query book.Query) book.SearchResult {
	source := adapter.Source()
	started := time.Now()

	result, err := adapter.Search(ctx, query)
	metrics.ObserveSearchDuration(string(source), time.Since(started))
	if err != nil {
		metrics.IncSearch(string(source), outcomeLabel(err))
		slog.Warn("Source search failed, returning empty result", "source", source, "query", query.Text, "error", err)
		return book.EmptySearchResult(source, query.Text)
	}

	metrics.IncSearch(string(source), "ok")
	if result.Items == nil {
		result.Items = []book.Result{}
	}
	return result
}

func (a *Aggregator) record(ctx context.Context, results map[book.Source]book.SearchResult) {
	if a.recorder == nil {
		return
	}
	for _, result := range results {
		for _, item := range result.Items {
			if _, err := a.recorder.UpsertSeen(ctx, item); err != nil {
				slog.Warn("Failed to cache search result", "key", item.Key().String(), "error", err)
			}
		}
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.IsRateLimitError(err):
		return "rate_limited"
	case errors.IsAdapterUnavailableError(err):
		return "unavailable"
	default:
		return "error"
	}
}
