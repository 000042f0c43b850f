package book

import "time"

// Record is a cached external result as persisted by the import store.
type Record struct {
	ID int64 `json:"id"`
	Result

	PublishedYear *int `json:"published_year,omitempty"`

	IsImported bool `json:"is_imported"`
	// ImportedBookID links to a local catalog entry. It is only recorded, never dereferenced.
	ImportedBookID *int64 `json:"imported_book_id,omitempty"`
	// ImportedByID is the actor that imported the record.
	ImportedByID *string    `json:"imported_by_id,omitempty"`
	ImportedAt   *time.Time `json:"imported_at,omitempty"`

	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Overrides are caller-supplied values that win over the adapter's during an import.
type Overrides struct {
	Title       *string `json:"title,omitempty" yaml:"title,omitempty"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	Language    *string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Apply returns a copy of r with the overrides applied.
func (o Overrides) Apply(r Result) Result {
	if o.Title != nil && *o.Title != "" {
		r.Title = *o.Title
	}
	if o.Description != nil {
		r.Description = o.Description
	}
	if o.Language != nil {
		r.Language = o.Language
	}
	return r
}
