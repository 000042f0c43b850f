package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/sources"
)

// GetDetails fetches a single volume by id.
func (c *Client) GetDetails(ctx context.Context, externalID string) (*book.Result, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, errors.NewValidationError("external_id", "must not be empty")
	}

	endpoint := fmt.Sprintf("%s/volumes/%s", c.baseURL, url.PathEscape(externalID))
	params := url.Values{}
	c.addKey(params)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var raw json.RawMessage
	if err := sources.GetJSON(ctx, c.httpClient, c.rateLimiter, book.GoogleBooks, endpoint, &raw); err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError(string(book.GoogleBooks), externalID)
		}
		return nil, fmt.Errorf("fetching volume %s: %w", externalID, err)
	}

	result, err := parseVolume(raw)
	if err != nil {
		return nil, errors.NewAdapterUnavailableError(string(book.GoogleBooks), 200, err)
	}
	return result, nil
}
