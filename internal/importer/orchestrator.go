// Package importer turns catalog entries into imported records, one at a time or in bulk.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/metrics"
	"github.com/Monsterkot/diplom/internal/retry"
	"github.com/Monsterkot/diplom/internal/store"
)

// Outcome messages.
const (
	MessageImported        = "imported"
	MessageAlreadyImported = "already imported"
	MessageRefreshed       = "refreshed"
	MessageFetchFailed     = "failed to fetch book details"
	MessageImportFailed    = "import failed"
	MessageInvalid         = "invalid request"
	MessageCancelled       = "cancelled"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	FindByKey(ctx context.Context, key book.Key) (*book.Record, error)
	UpsertSeen(ctx context.Context, result book.Result) (int64, error)
	ClaimImport(ctx context.Context, result book.Result, meta store.ImportMeta) (int64, bool, error)
	Refresh(ctx context.Context, result book.Result, publishedYear *int) (int64, error)
}

// Request identifies one catalog entry to import, with optional overrides.
type Request struct {
	Source     book.Source `json:"source" yaml:"source"`
	ExternalID string      `json:"external_id" yaml:"external_id"`

	book.Overrides `yaml:",inline"`
}

// Key returns the request's key as given. The orchestrator canonicalises it
// through the registry before any lookup.
func (r Request) Key() book.Key {
	return book.Key{Source: r.Source, ExternalID: strings.TrimSpace(r.ExternalID)}
}

// Orchestrator imports single items idempotently.
type Orchestrator struct {
	registry *book.Registry
	store    Store
	policy   retry.Policy
}

// NewOrchestrator creates an Orchestrator that fetches details through policy.
func NewOrchestrator(registry *book.Registry, st Store, policy retry.Policy) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    st,
		policy:   policy,
	}
}

// WithPolicy returns a copy of the orchestrator bound to another retry policy.
func (o *Orchestrator) WithPolicy(policy retry.Policy) *Orchestrator {
	c := *o
	c.policy = policy
	return &c
}

// Policy returns the retry policy detail fetches go through.
func (o *Orchestrator) Policy() retry.Policy {
	return o.policy
}

// resolve returns the adapter for key and the canonical form of key.
func (o *Orchestrator) resolve(key book.Key) (book.Adapter, book.Key, error) {
	canonical, err := o.registry.Key(key.Source, key.ExternalID)
	if err != nil {
		return nil, key, err
	}
	adapter, err := o.registry.Get(canonical.Source)
	if err != nil {
		return nil, key, err
	}
	return adapter, canonical, nil
}

// ImportOne imports one catalog entry. An entry that is already imported is
// reported as a success without calling the catalog. Catalog and store failures
// come back as a failed outcome; the error return is only for invalid requests.
// Once started, the import runs to completion even if ctx is cancelled.
func (o *Orchestrator) ImportOne(ctx context.Context, req Request, actorID string) (book.Outcome, error) {
	adapter, key, err := o.resolve(req.Key())
	if err != nil {
		return book.Outcome{}, err
	}

	ctx = context.WithoutCancel(ctx)
	source := string(key.Source)

	existing, err := o.store.FindByKey(ctx, key)
	if err != nil {
		metrics.IncImport(source, "failed")
		return book.Failed(key, MessageImportFailed, err), nil
	}
	if existing != nil && existing.IsImported {
		metrics.IncImport(source, "already_imported")
		slog.Debug("Skipping already imported record", "key", key.String(), "id", existing.ID)
		return book.Succeeded(key, existing.ID, MessageAlreadyImported), nil
	}

	details, err := o.fetch(ctx, adapter, key)
	if err != nil {
		metrics.IncImport(source, "failed")
		slog.Warn("Failed to fetch book details", "key", key.String(), "policy", o.policy.Name, "error", err)
		return book.Failed(key, MessageFetchFailed, err), nil
	}

	result := req.Overrides.Apply(*details)
	meta := store.ImportMeta{
		ActorID:       actorID,
		PublishedYear: book.ParseYear(derefString(result.PublishedDate)),
	}

	id, already, err := o.store.ClaimImport(ctx, result, meta)
	if err != nil {
		metrics.IncImport(source, "failed")
		slog.Error("Failed to store imported record", "key", key.String(), "error", err)
		return book.Failed(key, MessageImportFailed, err), nil
	}
	if already {
		metrics.IncImport(source, "already_imported")
		return book.Succeeded(key, id, MessageAlreadyImported), nil
	}

	metrics.IncImport(source, "imported")
	slog.Info("Imported book", "key", key.String(), "id", id, "title", result.Title, "actor", actorID)
	return book.Succeeded(key, id, MessageImported), nil
}

// Refresh re-fetches a record from its catalog and overwrites the catalog-owned fields.
func (o *Orchestrator) Refresh(ctx context.Context, key book.Key) (book.Outcome, error) {
	adapter, key, err := o.resolve(key)
	if err != nil {
		return book.Outcome{}, err
	}

	source := string(key.Source)
	details, err := o.fetch(ctx, adapter, key)
	if err != nil {
		metrics.IncRefresh(source, "failed")
		return book.Failed(key, MessageFetchFailed, err), fmt.Errorf("refresh %s: %w", key, err)
	}

	id, err := o.store.Refresh(context.WithoutCancel(ctx), *details, book.ParseYear(derefString(details.PublishedDate)))
	if err != nil {
		metrics.IncRefresh(source, "failed")
		return book.Failed(key, MessageImportFailed, err), fmt.Errorf("refresh %s: %w", key, err)
	}

	metrics.IncRefresh(source, "refreshed")
	slog.Info("Refreshed book", "key", key.String(), "id", id)
	return book.Succeeded(key, id, MessageRefreshed), nil
}

// Lookup is a live catalog record annotated with its cached import state.
type Lookup struct {
	book.Result
	RecordID       int64  `json:"record_id"`
	IsImported     bool   `json:"is_imported"`
	ImportedBookID *int64 `json:"imported_book_id,omitempty"`
}

// Lookup fetches one record live from its catalog and caches it as seen. An imported
// record keeps its stored fields; the live data is returned either way.
// Catalog failures are returned as errors.
func (o *Orchestrator) Lookup(ctx context.Context, key book.Key) (*Lookup, error) {
	adapter, key, err := o.resolve(key)
	if err != nil {
		return nil, err
	}

	details, err := o.fetch(ctx, adapter, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	id, err := o.store.UpsertSeen(ctx, *details)
	if err != nil {
		return nil, err
	}
	lookup := &Lookup{Result: *details, RecordID: id}

	record, err := o.store.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil {
		lookup.IsImported = record.IsImported
		lookup.ImportedBookID = record.ImportedBookID
	}
	return lookup, nil
}

// fetch calls GetDetails under the retry policy and pins the result to key.
func (o *Orchestrator) fetch(ctx context.Context, adapter book.Adapter, key book.Key) (*book.Result, error) {
	details, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*book.Result, error) {
		return adapter.GetDetails(ctx, key.ExternalID)
	})
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, errors.NewNotFoundError(string(key.Source), key.ExternalID)
	}

	result := *details
	result.Source = key.Source
	result.ExternalID = key.ExternalID
	if result.Title == "" {
		result.Title = book.UnknownTitle
	}
	return &result, nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
