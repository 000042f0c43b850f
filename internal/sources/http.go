// Package sources holds the transport shared by the catalog adapters.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/ratelimit"
)

const (
	// UserAgent is sent with every catalog request.
	UserAgent = "LiteratureAggregator/1.0"
	// DefaultTimeout bounds a single catalog request.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient returns the default client used by the adapters.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// GetJSON performs a GET against endpoint and decodes the JSON body into target.
//
// Failures are classified for the retry policy: 404 becomes a NotFoundError without an id,
// 429 a RateLimitError, and everything else that is not a 2xx response
// (including transport and decode errors) an AdapterUnavailableError.
func GetJSON(ctx context.Context, doer HTTPDoer, limiter *ratelimit.Limiter, source book.Source, endpoint string, target any) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return errors.NewAdapterUnavailableError(string(source), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFoundError(string(source), "")
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		slog.Warn("Catalog rate limited", "source", source, "retry_after", retryAfter)
		return errors.NewRateLimitErrorWithRetry(string(source), "rate limited", retryAfter)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.NewAdapterUnavailableError(string(source), resp.StatusCode,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errors.NewAdapterUnavailableError(string(source), resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// HTTPS rewrites an http:// URL to https://.
func HTTPS(rawURL string) string {
	if strings.HasPrefix(rawURL, "http://") {
		return "https://" + strings.TrimPrefix(rawURL, "http://")
	}
	return rawURL
}

// ClampMaxResults keeps a requested page size within [1, 40].
func ClampMaxResults(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 40:
		return 40
	default:
		return n
	}
}
