package aggregator

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/testutil"
)

type recordingRecorder struct {
	mu   sync.Mutex
	keys []book.Key
	err  error
}

func (r *recordingRecorder) UpsertSeen(_ context.Context, result book.Result) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, result.Key())
	return int64(len(r.keys)), r.err
}

func twoSources() (*testutil.FakeAdapter, *testutil.FakeAdapter) {
	google := testutil.NewFakeAdapter(book.GoogleBooks).
		WithBook(testutil.NewBook(book.GoogleBooks, "g1", "Dune")).
		WithBook(testutil.NewBook(book.GoogleBooks, "g2", "Dune Messiah"))
	openLibrary := testutil.NewFakeAdapter(book.OpenLibrary).
		WithBook(testutil.NewBook(book.OpenLibrary, "OL1W", "Dune"))
	return google, openLibrary
}

func TestSearchAllQueriesEverySource(t *testing.T) {
	google, openLibrary := twoSources()
	agg := New(book.NewRegistry(google, openLibrary))

	results, err := agg.SearchAll(context.Background(), "dune", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[book.GoogleBooks].TotalItems)
	assert.Len(t, results[book.OpenLibrary].Items, 1)
	assert.Equal(t, 1, google.SearchCalls())
	assert.Equal(t, 1, openLibrary.SearchCalls())
}

func TestSearchAllIsolatesFailingSource(t *testing.T) {
	for _, failure := range []error{
		errors.NewRateLimitError("open_library", ""),
		errors.NewAdapterUnavailableError("open_library", 503, stdErrors.New("down")),
		stdErrors.New("unexpected"),
	} {
		t.Run(failure.Error(), func(t *testing.T) {
			google, openLibrary := twoSources()
			openLibrary.SearchFunc = func(context.Context, book.Query) (book.SearchResult, error) {
				return book.SearchResult{}, failure
			}
			agg := New(book.NewRegistry(google, openLibrary))

			results, err := agg.SearchAll(context.Background(), "dune", 10)
			require.NoError(t, err)

			failed, ok := results[book.OpenLibrary]
			require.True(t, ok, "failing source must still have a slot")
			assert.Equal(t, 0, failed.TotalItems)
			assert.NotNil(t, failed.Items)
			assert.Empty(t, failed.Items)
			assert.Equal(t, int64(0), failed.ElapsedMs)

			assert.Len(t, results[book.GoogleBooks].Items, 2)
		})
	}
}

func TestSearchAllRunsSourcesConcurrently(t *testing.T) {
	google, openLibrary := twoSources()

	var arrived sync.WaitGroup
	arrived.Add(2)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	barrier := func(source book.Source) func(context.Context, book.Query) (book.SearchResult, error) {
		return func(ctx context.Context, q book.Query) (book.SearchResult, error) {
			arrived.Done()
			select {
			case <-allArrived:
				result := book.EmptySearchResult(source, q.Text)
				result.Items = append(result.Items, testutil.NewBook(source, "x", "Dune"))
				result.TotalItems = 1
				return result, nil
			case <-time.After(2 * time.Second):
				return book.SearchResult{}, stdErrors.New("searches did not overlap")
			}
		}
	}
	google.SearchFunc = barrier(book.GoogleBooks)
	openLibrary.SearchFunc = barrier(book.OpenLibrary)

	agg := New(book.NewRegistry(google, openLibrary))
	results, err := agg.SearchAll(context.Background(), "dune", 5)
	require.NoError(t, err)

	assert.Len(t, results[book.GoogleBooks].Items, 1)
	assert.Len(t, results[book.OpenLibrary].Items, 1)
}

func TestSearchAllValidation(t *testing.T) {
	google, openLibrary := twoSources()
	agg := New(book.NewRegistry(google))

	_, err := agg.SearchAll(context.Background(), "   ", 10)
	assert.True(t, errors.IsValidationError(err))

	_, err = agg.SearchAll(context.Background(), "dune", 10, openLibrary.Source())
	assert.True(t, errors.IsValidationError(err))
	assert.Equal(t, 0, google.SearchCalls())
}

func TestSearchAllSubsetAndDuplicates(t *testing.T) {
	google, openLibrary := twoSources()
	agg := New(book.NewRegistry(google, openLibrary))

	results, err := agg.SearchAll(context.Background(), "dune", 10, book.GoogleBooks, book.GoogleBooks)
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, 1, google.SearchCalls())
	assert.Equal(t, 0, openLibrary.SearchCalls())
}

func TestSearchAllRecordsSeenItems(t *testing.T) {
	google, openLibrary := twoSources()
	recorder := &recordingRecorder{err: stdErrors.New("disk full")}
	agg := New(book.NewRegistry(google, openLibrary), WithRecorder(recorder))

	results, err := agg.SearchAll(context.Background(), "dune", 10)
	require.NoError(t, err, "recorder failures are never surfaced")
	assert.Len(t, results, 2)
	assert.Len(t, recorder.keys, 3)
}

func TestSearchAllWithStore(t *testing.T) {
	google, openLibrary := twoSources()
	s := testutil.NewTestStore(t)
	agg := New(book.NewRegistry(google, openLibrary), WithRecorder(s))

	_, err := agg.SearchAll(context.Background(), "dune", 10)
	require.NoError(t, err)

	record, err := s.FindByKey(context.Background(), book.Key{Source: book.OpenLibrary, ExternalID: "OL1W"})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.IsImported)
}
