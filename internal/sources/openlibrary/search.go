package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/sources"
)

// Search runs a search.json query. PageToken is the 1-based page number.
func (c *Client) Search(ctx context.Context, query book.Query) (book.SearchResult, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return book.SearchResult{}, errors.NewValidationError("query", "must not be empty")
	}

	page := 1
	if query.PageToken != "" {
		parsed, err := strconv.Atoi(query.PageToken)
		if err != nil || parsed < 1 {
			return book.SearchResult{}, errors.NewValidationError("page_token", fmt.Sprintf("invalid page %q", query.PageToken))
		}
		page = parsed
	}
	limit := sources.ClampMaxResults(query.MaxResults)

	params := url.Values{}
	params.Set("q", text)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))

	start := time.Now()

	var resp searchResponse
	err := sources.GetJSON(ctx, c.httpClient, c.rateLimiter, book.OpenLibrary, c.baseURL+"/search.json?"+params.Encode(), &resp)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return book.SearchResult{}, errors.NewAdapterUnavailableError(string(book.OpenLibrary), 404, fmt.Errorf("search endpoint not found"))
		}
		return book.SearchResult{}, fmt.Errorf("searching open library: %w", err)
	}

	items := make([]book.Result, 0, len(resp.Docs))
	for _, raw := range resp.Docs {
		result, err := c.parseSearchDoc(raw)
		if err != nil {
			slog.Debug("Skipping unparseable search doc", "error", err)
			continue
		}
		items = append(items, *result)
	}

	result := book.SearchResult{
		Source:     book.OpenLibrary,
		Query:      text,
		TotalItems: resp.NumFound,
		Items:      items,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	if len(resp.Docs) > 0 && page*limit < resp.NumFound {
		result.NextPageToken = strconv.Itoa(page + 1)
	}

	slog.Debug("Open Library search completed", "query", text, "total", resp.NumFound, "returned", len(items))
	return result, nil
}

func (c *Client) parseSearchDoc(raw json.RawMessage) (*book.Result, error) {
	var doc searchDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding search doc: %w", err)
	}
	workKey := strings.TrimPrefix(doc.Key, "/works/")
	if workKey == "" {
		return nil, fmt.Errorf("search doc without key")
	}

	var rawDoc map[string]any
	if err := json.Unmarshal(raw, &rawDoc); err != nil {
		return nil, fmt.Errorf("decoding raw search doc: %w", err)
	}

	result := &book.Result{
		ExternalID:    workKey,
		Source:        book.OpenLibrary,
		Title:         doc.Title,
		Authors:       firstN(doc.AuthorName, len(doc.AuthorName)),
		PageCount:     book.OptionalInt(doc.NumberOfPagesMedian),
		Categories:    firstN(doc.Subject, maxCategories),
		InfoLink:      book.OptionalString(c.workURL(workKey)),
		AverageRating: doc.RatingsAverage,
		RatingsCount:  doc.RatingsCount,
		ThumbnailURL:  book.OptionalString(c.coverURL(doc.CoverID)),
		RawMetadata:   rawDoc,
	}
	if result.Title == "" {
		result.Title = book.UnknownTitle
	}
	if len(doc.Publisher) > 0 {
		result.Publisher = book.OptionalString(doc.Publisher[0])
	}
	if len(doc.Language) > 0 {
		result.Language = book.OptionalString(doc.Language[0])
	}
	if doc.FirstPublishYear > 0 {
		result.PublishedDate = book.OptionalString(strconv.Itoa(doc.FirstPublishYear))
	}

	for _, isbn := range doc.ISBN {
		switch {
		case len(isbn) == 10 && result.ISBN10 == nil:
			result.ISBN10 = book.OptionalString(isbn)
		case len(isbn) == 13 && result.ISBN13 == nil:
			result.ISBN13 = book.OptionalString(isbn)
		}
	}

	return result, nil
}

func (c *Client) coverURL(coverID int) string {
	if coverID <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-L.jpg", c.coversURL, coverID)
}

func (c *Client) workURL(workKey string) string {
	return fmt.Sprintf("%s/works/%s", defaultBaseURL, workKey)
}
