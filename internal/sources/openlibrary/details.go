package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/sources"
)

// NormalizeID strips the /works/ prefix so both spellings of a work key share one record.
func (c *Client) NormalizeID(externalID string) string {
	return strings.TrimPrefix(strings.TrimSpace(externalID), "/works/")
}

// GetDetails fetches a work by key (with or without the /works/ prefix)
// and resolves its author names with one request per author.
func (c *Client) GetDetails(ctx context.Context, externalID string) (*book.Result, error) {
	workKey := c.NormalizeID(externalID)
	if workKey == "" {
		return nil, errors.NewValidationError("external_id", "must not be empty")
	}

	var raw json.RawMessage
	endpoint := fmt.Sprintf("%s/works/%s.json", c.baseURL, url.PathEscape(workKey))
	if err := sources.GetJSON(ctx, c.httpClient, c.rateLimiter, book.OpenLibrary, endpoint, &raw); err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError(string(book.OpenLibrary), workKey)
		}
		return nil, fmt.Errorf("fetching work %s: %w", workKey, err)
	}

	var w work
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errors.NewAdapterUnavailableError(string(book.OpenLibrary), 200, fmt.Errorf("decoding work: %w", err))
	}
	var rawWork map[string]any
	if err := json.Unmarshal(raw, &rawWork); err != nil {
		return nil, errors.NewAdapterUnavailableError(string(book.OpenLibrary), 200, fmt.Errorf("decoding work: %w", err))
	}

	result := &book.Result{
		ExternalID:  workKey,
		Source:      book.OpenLibrary,
		Title:       w.Title,
		Authors:     c.resolveAuthors(ctx, w.Authors),
		Description: book.OptionalString(extractDescription(w.Description)),
		Categories:  firstN(w.Subjects, maxCategories),
		InfoLink:    book.OptionalString(c.workURL(workKey)),
		RawMetadata: rawWork,
	}
	if result.Title == "" {
		result.Title = book.UnknownTitle
	}
	if len(w.Covers) > 0 {
		result.ThumbnailURL = book.OptionalString(c.coverURL(w.Covers[0]))
	}

	return result, nil
}

// resolveAuthors looks up each author's name. A failed lookup drops that author only.
func (c *Client) resolveAuthors(ctx context.Context, refs []workAuthor) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		key := ref.Author.Key
		if key == "" {
			continue
		}
		if !strings.HasPrefix(key, "/") {
			key = "/" + key
		}

		var a author
		if err := sources.GetJSON(ctx, c.httpClient, c.rateLimiter, book.OpenLibrary, c.baseURL+key+".json", &a); err != nil {
			slog.Debug("Dropping author after failed lookup", "author", key, "error", err)
			continue
		}
		if a.Name == "" {
			a.Name = "Unknown"
		}
		names = append(names, a.Name)
	}
	return names
}
