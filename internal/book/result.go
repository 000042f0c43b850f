package book

// Result is the canonical shape every catalog adapter maps its response into.
// Pointer fields distinguish "not provided upstream" from an empty value.
type Result struct {
	// ExternalID is the catalog's own id (volume id, or work key without the /works/ prefix).
	ExternalID string `json:"external_id"`

	// Source is the catalog the result came from.
	Source Source `json:"source"`

	// Title is never empty; adapters substitute UnknownTitle.
	Title string `json:"title"`

	// Authors keeps the upstream order.
	Authors []string `json:"authors"`

	Description *string `json:"description,omitempty"`
	ISBN10      *string `json:"isbn_10,omitempty"`
	ISBN13      *string `json:"isbn_13,omitempty"`
	Publisher   *string `json:"publisher,omitempty"`

	// PublishedDate is kept as free text ("1997", "1997-06", "June 1997").
	PublishedDate *string `json:"published_date,omitempty"`

	PageCount *int `json:"page_count,omitempty"`

	// Categories keeps the upstream order and is not deduplicated.
	Categories []string `json:"categories"`

	Language *string `json:"language,omitempty"`

	// ThumbnailURL is always https.
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
	PreviewLink  *string `json:"preview_link,omitempty"`
	InfoLink     *string `json:"info_link,omitempty"`

	AverageRating  *float64 `json:"average_rating,omitempty"`
	RatingsCount   *int     `json:"ratings_count,omitempty"`
	MaturityRating *string  `json:"maturity_rating,omitempty"`

	// RawMetadata is the relevant part of the upstream payload, passed through untouched.
	RawMetadata map[string]any `json:"raw_metadata,omitempty"`
}

// UnknownTitle is used when the upstream record has no title.
const UnknownTitle = "Unknown Title"

// Key returns the dedup key of the result.
func (r Result) Key() Key {
	return Key{Source: r.Source, ExternalID: r.ExternalID}
}

// Query is a search request against a single catalog.
type Query struct {
	Text       string
	MaxResults int
	// PageToken continues a previous search; empty starts at the first page.
	PageToken string
	// Language optionally restricts results to an ISO-639-1 language, where the catalog supports it.
	Language string
}

// SearchResult is one catalog's answer to a Query.
type SearchResult struct {
	Source        Source   `json:"source"`
	Query         string   `json:"query"`
	TotalItems    int      `json:"total_items"`
	Items         []Result `json:"items"`
	ElapsedMs     int64    `json:"elapsed_ms"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// EmptySearchResult is what a failed or empty catalog contributes to an aggregated search.
func EmptySearchResult(source Source, query string) SearchResult {
	return SearchResult{
		Source: source,
		Query:  query,
		Items:  []Result{},
	}
}

// OptionalString returns nil for an empty string and a pointer to s otherwise.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// OptionalInt returns nil for non-positive values.
func OptionalInt(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
