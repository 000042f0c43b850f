// Package googlebooks is the catalog adapter for the Google Books volume API.
package googlebooks

import (
	"strings"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/ratelimit"
	"github.com/Monsterkot/diplom/internal/sources"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultRatePerSecond = 1
)

// Client is a Google Books API client.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  sources.HTTPDoer
	rateLimiter *ratelimit.Limiter
}

// Compile-time check that Client implements book.Adapter.
var _ book.Adapter = (*Client)(nil)

// NewClient creates a new Google Books client. apiKey may be empty.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		httpClient:  sources.NewHTTPClient(sources.DefaultTimeout),
		rateLimiter: ratelimit.New("GoogleBooks", defaultRatePerSecond),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c sources.HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.httpClient = sources.NewHTTPClient(timeout)
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRateLimiter sets the limiter applied before every request. nil disables throttling.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = limiter
	}
}

// Source returns book.GoogleBooks.
func (c *Client) Source() book.Source {
	return book.GoogleBooks
}

// Describe returns the catalogue entry for this source.
func (c *Client) Describe() book.SourceInfo {
	return book.SourceInfo{
		ID:          book.GoogleBooks,
		Name:        book.GoogleBooks.DisplayName(),
		Description: "Search millions of books from Google's index",
		Features:    []string{"search", "details", "preview", "thumbnails"},
		RateLimit:   "1000 requests/day (without API key)",
		HasAPIKey:   c.apiKey != "",
	}
}
