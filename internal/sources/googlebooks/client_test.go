package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duneVolume = `{
  "kind": "books#volume",
  "id": "B1hSG45JCX4C",
  "etag": "abc123",
  "selfLink": "https://www.googleapis.com/books/v1/volumes/B1hSG45JCX4C",
  "volumeInfo": {
    "title": "Dune",
    "authors": ["Frank Herbert"],
    "publisher": "Penguin",
    "publishedDate": "1965-08-01",
    "description": "Set on the desert planet Arrakis.",
    "industryIdentifiers": [
      {"type": "OTHER", "identifier": "UOM:39015"},
      {"type": "ISBN_13", "identifier": "9780441013593"},
      {"type": "ISBN_10", "identifier": "0441013597"},
      {"type": "ISBN_13", "identifier": "9999999999999"}
    ],
    "pageCount": 896,
    "categories": ["Fiction", "Fiction"],
    "averageRating": 4.5,
    "ratingsCount": 120,
    "maturityRating": "NOT_MATURE",
    "imageLinks": {
      "smallThumbnail": "http://books.google.com/small",
      "thumbnail": "http://books.google.com/thumb",
      "medium": "http://books.google.com/medium"
    },
    "language": "en",
    "previewLink": "http://books.google.com/preview",
    "infoLink": "http://books.google.com/info"
  },
  "saleInfo": {"country": "FI"}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithRateLimiter(nil)}, opts...)
	return NewClient("", opts...)
}

func TestGetDetailsMapsVolume(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes/B1hSG45JCX4C", r.URL.Path)
		_, _ = w.Write([]byte(duneVolume))
	})

	result, err := client.GetDetails(context.Background(), "B1hSG45JCX4C")
	require.NoError(t, err)

	assert.Equal(t, "B1hSG45JCX4C", result.ExternalID)
	assert.Equal(t, book.GoogleBooks, result.Source)
	assert.Equal(t, "Dune", result.Title)
	assert.Equal(t, []string{"Frank Herbert"}, result.Authors)
	assert.Equal(t, "9780441013593", *result.ISBN13, "first ISBN_13 wins")
	assert.Equal(t, "0441013597", *result.ISBN10)
	assert.Equal(t, "1965-08-01", *result.PublishedDate)
	assert.Equal(t, 896, *result.PageCount)
	assert.Equal(t, []string{"Fiction", "Fiction"}, result.Categories)
	assert.Equal(t, "https://books.google.com/medium", *result.ThumbnailURL, "largest image, rewritten to https")
	assert.Equal(t, 4.5, *result.AverageRating)
	assert.Equal(t, 120, *result.RatingsCount)
	assert.Equal(t, "NOT_MATURE", *result.MaturityRating)

	assert.Equal(t, "abc123", result.RawMetadata["etag"])
	assert.Equal(t, map[string]any{"country": "FI"}, result.RawMetadata["saleInfo"])
	assert.Equal(t, map[string]any{}, result.RawMetadata["accessInfo"])
}

func TestGetDetailsMissingFieldsAreNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x1","volumeInfo":{}}`))
	})

	result, err := client.GetDetails(context.Background(), "x1")
	require.NoError(t, err)

	assert.Equal(t, book.UnknownTitle, result.Title)
	assert.Empty(t, result.Authors)
	assert.Nil(t, result.Description)
	assert.Nil(t, result.ISBN10)
	assert.Nil(t, result.ISBN13)
	assert.Nil(t, result.ThumbnailURL)
	assert.Nil(t, result.PageCount)
	assert.Nil(t, result.AverageRating)
}

func TestGetDetailsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{name: "not found", status: http.StatusNotFound, check: errors.IsNotFoundError},
		{name: "rate limited", status: http.StatusTooManyRequests, check: errors.IsRateLimitError},
		{name: "server error", status: http.StatusServiceUnavailable, check: errors.IsAdapterUnavailableError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.GetDetails(context.Background(), "missing")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := client.GetDetails(context.Background(), "gone")
	assert.EqualError(t, err, "google_books: gone not found")

	_, err = client.GetDetails(context.Background(), "  ")
	assert.True(t, errors.IsValidationError(err))
}

func TestSearchBuildsQueryAndPaginates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "dune", q.Get("q"))
		assert.Equal(t, "40", q.Get("maxResults"), "page size is clamped")
		assert.Equal(t, "10", q.Get("startIndex"))
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "en", q.Get("langRestrict"))
		_, _ = w.Write([]byte(`{"totalItems": 57, "items": [` + duneVolume + `, {"volumeInfo": {"title": "no id"}}]}`))
	}, func(c *Client) { c.apiKey = "secret" })

	result, err := client.Search(context.Background(), book.Query{Text: " dune ", MaxResults: 100, PageToken: "10", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, book.GoogleBooks, result.Source)
	assert.Equal(t, "dune", result.Query)
	assert.Equal(t, 57, result.TotalItems)
	require.Len(t, result.Items, 1, "items without an id are skipped")
	assert.Equal(t, "Dune", result.Items[0].Title)
	assert.Equal(t, "12", result.NextPageToken)
}

func TestSearchEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kind":"books#volumes","totalItems":0}`))
	})

	result, err := client.Search(context.Background(), book.Query{Text: "zzzzqqq", MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalItems)
	assert.NotNil(t, result.Items)
	assert.Empty(t, result.Items)
	assert.Empty(t, result.NextPageToken)
}

func TestSearchValidation(t *testing.T) {
	client := NewClient("", WithRateLimiter(nil))

	_, err := client.Search(context.Background(), book.Query{Text: "   "})
	assert.True(t, errors.IsValidationError(err))

	_, err = client.Search(context.Background(), book.Query{Text: "dune", PageToken: "abc"})
	assert.True(t, errors.IsValidationError(err))
}

func TestSearchNotFoundIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Search(context.Background(), book.Query{Text: "dune"})
	require.Error(t, err)
	assert.True(t, errors.IsAdapterUnavailableError(err))
	assert.False(t, errors.IsNotFoundError(err))
}

func TestDescribeReportsKey(t *testing.T) {
	assert.False(t, NewClient("").Describe().HasAPIKey)
	info := NewClient("k").Describe()
	assert.True(t, info.HasAPIKey)
	assert.Equal(t, book.GoogleBooks, info.ID)
	assert.Equal(t, "Google Books", info.Name)
}
