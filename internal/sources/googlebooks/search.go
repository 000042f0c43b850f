package googlebooks

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

// Search runs a volume search. PageToken is the start index of the page.
func (c *Client) Search(ctx context.Context, query book.Query) (book.SearchResult, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return book.SearchResult{}, errors.NewValidationError("query", "must not be empty")
	}

	startIndex := 0
	if query.PageToken != "" {
		parsed, err := strconv.Atoi(query.PageToken)
		if err != nil || parsed < 0 {
			return book.SearchResult{}, errors.NewValidationError("page_token", fmt.Sprintf("invalid start index %q", query.PageToken))
		}
		startIndex = parsed
	}

	params := url.Values{}
	params.Set("q", text)
	params.Set("maxResults", strconv.Itoa(sources.ClampMaxResults(query.MaxResults)))
	params.Set("startIndex", strconv.Itoa(startIndex))
	if query.Language != "" {
		params.Set("langRestrict", query.Language)
	}
	c.addKey(params)

	start := time.Now()

	var resp volumesResponse
	err := sources.GetJSON(ctx, c.httpClient, c.rateLimiter, book.GoogleBooks, c.baseURL+"/volumes?"+params.Encode(), &resp)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return book.SearchResult{}, errors.NewAdapterUnavailableError(string(book.GoogleBooks), 404, fmt.Errorf("search endpoint not found"))
		}
		return book.SearchResult{}, fmt.Errorf("searching google books: %w", err)
	}

	items := make([]book.Result, 0, len(resp.Items))
	for _, raw := range resp.Items {
		result, err := parseVolume(raw)
		if err != nil {
			slog.Debug("Skipping unparseable volume", "error", err)
			continue
		}
		items = append(items, *result)
	}

	result := book.SearchResult{
		Source:     book.GoogleBooks,
		Query:      text,
		TotalItems: resp.TotalItems,
		Items:      items,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}
	if next := startIndex + len(resp.Items); len(resp.Items) > 0 && next < resp.TotalItems {
		result.NextPageToken = strconv.Itoa(next)
	}

	slog.Debug("Google Books search completed", "query", text, "total", resp.TotalItems, "returned", len(items))
	return result, nil
}

func (c *Client) addKey(params url.Values) {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
}

// parseVolume maps one volume resource into the canonical result.
func parseVolume(raw json.RawMessage) (*book.Result, error) {
	var vol volume
	if err := json.Unmarshal(raw, &vol); err != nil {
		return nil, fmt.Errorf("decoding volume: %w", err)
	}
	if vol.ID == "" {
		return nil, fmt.Errorf("volume without id")
	}

	var extra rawVolume
	if err := json.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("decoding raw volume: %w", err)
	}

	info := vol.VolumeInfo
	result := &book.Result{
		ExternalID:     vol.ID,
		Source:         book.GoogleBooks,
		Title:          info.Title,
		Authors:        nonNil(info.Authors),
		Description:    book.OptionalString(info.Description),
		Publisher:      book.OptionalString(info.Publisher),
		PublishedDate:  book.OptionalString(info.PublishedDate),
		PageCount:      book.OptionalInt(info.PageCount),
		Categories:     nonNil(info.Categories),
		Language:       book.OptionalString(info.Language),
		PreviewLink:    book.OptionalString(info.PreviewLink),
		InfoLink:       book.OptionalString(info.InfoLink),
		AverageRating:  info.AverageRating,
		RatingsCount:   info.RatingsCount,
		MaturityRating: book.OptionalString(info.MaturityRating),
		RawMetadata: map[string]any{
			"etag":       extra.ETag,
			"selfLink":   extra.SelfLink,
			"volumeInfo": nonNilMap(extra.VolumeInfo),
			"saleInfo":   nonNilMap(extra.SaleInfo),
			"accessInfo": nonNilMap(extra.AccessInfo),
			"searchInfo": nonNilMap(extra.SearchInfo),
		},
	}
	if result.Title == "" {
		result.Title = book.UnknownTitle
	}

	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			if result.ISBN10 == nil {
				result.ISBN10 = book.OptionalString(id.Identifier)
			}
		case "ISBN_13":
			if result.ISBN13 == nil {
				result.ISBN13 = book.OptionalString(id.Identifier)
			}
		}
	}

	if thumbnail := info.ImageLinks.largest(); thumbnail != "" {
		result.ThumbnailURL = book.OptionalString(sources.HTTPS(thumbnail))
	}

	return result, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}
