// Package openlibrary is the catalog adapter for the Open Library work and search API.
package openlibrary

import (
	"strings"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/ratelimit"
	"github.com/Monsterkot/diplom/internal/sources"
)

const (
	defaultBaseURL       = "https://openlibrary.org"
	defaultCoversURL     = "https://covers.openlibrary.org"
	defaultRatePerSecond = 1
	maxCategories        = 5
)

// Client is an Open Library API client.
type Client struct {
	baseURL     string
	coversURL   string
	httpClient  sources.HTTPDoer
	rateLimiter *ratelimit.Limiter
}

// Compile-time check that Client implements book.Adapter.
var _ book.Adapter = (*Client)(nil)

// NewClient creates a new Open Library client. The API needs no key.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:     defaultBaseURL,
		coversURL:   defaultCoversURL,
		httpClient:  sources.NewHTTPClient(sources.DefaultTimeout),
		rateLimiter: ratelimit.New("OpenLibrary", defaultRatePerSecond),
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

// Source returns book.OpenLibrary.
func (c *Client) Source() book.Source {
	return book.OpenLibrary
}

// Describe returns the catalogue entry for this source.
func (c *Client) Describe() book.SourceInfo {
	return book.SourceInfo{
		ID:          book.OpenLibrary,
		Name:        book.OpenLibrary.DisplayName(),
		Description: "Free, editable library catalog from Internet Archive",
		Features:    []string{"search", "details", "thumbnails", "full_text"},
		RateLimit:   "No strict limit",
		HasAPIKey:   true,
	}
}
