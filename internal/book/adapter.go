// Package book defines the canonical book model shared by the catalog adapters,
// the aggregator and the import pipeline.
package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/Monsterkot/diplom/internal/errors"
)

// Adapter defines the interface every external catalog implements.
// Each implementation handles its own transport, throttling and mapping into Result.
type Adapter interface {
	// Source returns the catalog this adapter talks to.
	Source() Source

	// Search runs a free-text query. Zero matches is an empty result, not an error.
	Search(ctx context.Context, query Query) (SearchResult, error)

	// GetDetails fetches one record by its external id.
	// A missing record is a NotFoundError; throttling is a RateLimitError;
	// any other transport or decode failure is an AdapterUnavailableError.
	GetDetails(ctx context.Context, externalID string) (*Result, error)
}

// IDNormalizer is implemented by adapters that accept more than one spelling of an id.
// NormalizeID returns the spelling used as the dedup key.
type IDNormalizer interface {
	NormalizeID(externalID string) string
}

// Registry maps each Source to its Adapter.
type Registry struct {
	adapters map[Source]Adapter
	order    []Source
}

// NewRegistry creates a registry from the given adapters. A later adapter for the same
// source replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Source]Adapter, len(adapters))}
	for _, adapter := range adapters {
		if _, exists := r.adapters[adapter.Source()]; !exists {
			r.order = append(r.order, adapter.Source())
		}
		r.adapters[adapter.Source()] = adapter
	}
	return r
}

// Get returns the adapter for source, or a ValidationError when none is registered.
func (r *Registry) Get(source Source) (Adapter, error) {
	adapter, ok := r.adapters[source]
	if !ok {
		return nil, errors.NewValidationError("source", fmt.Sprintf("unknown source %q", source))
	}
	return adapter, nil
}

// Key returns the canonical dedup key for externalID in source. An unknown source
// or an empty id is a ValidationError.
func (r *Registry) Key(source Source, externalID string) (Key, error) {
	adapter, err := r.Get(source)
	if err != nil {
		return Key{}, err
	}

	id := strings.TrimSpace(externalID)
	if normalizer, ok := adapter.(IDNormalizer); ok {
		id = strings.TrimSpace(normalizer.NormalizeID(id))
	}
	if id == "" {
		return Key{}, errors.NewValidationError("external_id", "must not be empty")
	}
	return Key{Source: source, ExternalID: id}, nil
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.order))
	copy(out, r.order)
	return out
}
