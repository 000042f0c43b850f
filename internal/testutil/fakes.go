package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
)

// FakeAdapter is an in-memory book.Adapter with scriptable failures.
type FakeAdapter struct {
	source book.Source

	mu          sync.Mutex
	books       map[string]book.Result
	queued      map[string][]error
	always      map[string]error
	detailCalls map[string]int
	searchCalls int

	// SearchFunc replaces the default title-substring search when set.
	SearchFunc func(ctx context.Context, query book.Query) (book.SearchResult, error)
	// DetailsHook runs at the start of every GetDetails call.
	DetailsHook func(ctx context.Context, externalID string)
}

// Compile-time check that FakeAdapter implements book.Adapter.
var _ book.Adapter = (*FakeAdapter)(nil)

// NewFakeAdapter creates an empty fake for source.
func NewFakeAdapter(source book.Source) *FakeAdapter {
	return &FakeAdapter{
		source:      source,
		books:       make(map[string]book.Result),
		queued:      make(map[string][]error),
		always:      make(map[string]error),
		detailCalls: make(map[string]int),
	}
}

// WithBook adds a book the fake can return.
func (f *FakeAdapter) WithBook(result book.Result) *FakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()

	result.Source = f.source
	f.books[result.ExternalID] = result
	return f
}

// FailNext makes the next len(errs) GetDetails calls for id return errs in order.
func (f *FakeAdapter) FailNext(id string, errs ...error) *FakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queued[id] = append(f.queued[id], errs...)
	return f
}

// FailAlways makes every GetDetails call for id return err.
func (f *FakeAdapter) FailAlways(id string, err error) *FakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.always[id] = err
	return f
}

// Source returns the fake's source.
func (f *FakeAdapter) Source() book.Source {
	return f.source
}

// Search returns every book whose title contains the query, case-insensitively.
func (f *FakeAdapter) Search(ctx context.Context, query book.Query) (book.SearchResult, error) {
	f.mu.Lock()
	f.searchCalls++
	searchFunc := f.SearchFunc
	f.mu.Unlock()

	if searchFunc != nil {
		return searchFunc(ctx, query)
	}
	if strings.TrimSpace(query.Text) == "" {
		return book.SearchResult{}, errors.NewValidationError("query", "must not be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	result := book.EmptySearchResult(f.source, query.Text)
	needle := strings.ToLower(query.Text)
	for _, b := range f.books {
		if strings.Contains(strings.ToLower(b.Title), needle) {
			result.Items = append(result.Items, b)
		}
	}
	result.TotalItems = len(result.Items)
	if query.MaxResults > 0 && len(result.Items) > query.MaxResults {
		result.Items = result.Items[:query.MaxResults]
	}
	return result, nil
}

// GetDetails returns the stored book, a scripted error, or a NotFoundError.
func (f *FakeAdapter) GetDetails(ctx context.Context, externalID string) (*book.Result, error) {
	if f.DetailsHook != nil {
		f.DetailsHook(ctx, externalID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.detailCalls[externalID]++

	if errs := f.queued[externalID]; len(errs) > 0 {
		f.queued[externalID] = errs[1:]
		return nil, errs[0]
	}
	if err, ok := f.always[externalID]; ok {
		return nil, err
	}
	b, ok := f.books[externalID]
	if !ok {
		return nil, errors.NewNotFoundError(string(f.source), externalID)
	}
	return &b, nil
}

// DetailCalls returns how many times GetDetails was called for id.
func (f *FakeAdapter) DetailCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[id]
}

// TotalDetailCalls returns the number of GetDetails calls across all ids.
func (f *FakeAdapter) TotalDetailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.detailCalls {
		total += n
	}
	return total
}

// SearchCalls returns how many times Search was called.
func (f *FakeAdapter) SearchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

// NewBook builds a minimal result for tests.
func NewBook(source book.Source, id, title string) book.Result {
	return book.Result{
		ExternalID:    id,
		Source:        source,
		Title:         title,
		Authors:       []string{"Test Author"},
		Categories:    []string{},
		PublishedDate: book.OptionalString("1997-06-26"),
	}
}
