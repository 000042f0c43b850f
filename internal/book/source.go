package book

import (
	"strings"

	"github.com/Monsterkot/diplom/internal/errors"
)

// Source identifies an external catalog.
type Source string

const (
	// GoogleBooks is the Google Books volume API.
	GoogleBooks Source = "google_books"
	// OpenLibrary is the Open Library work/search API.
	OpenLibrary Source = "open_library"
)

// KnownSources lists every catalog the pipeline can talk to, in display order.
var KnownSources = []Source{GoogleBooks, OpenLibrary}

func (s Source) String() string {
	return string(s)
}

// DisplayName returns the human-readable catalog name.
func (s Source) DisplayName() string {
	switch s {
	case GoogleBooks:
		return "Google Books"
	case OpenLibrary:
		return "Open Library"
	default:
		return string(s)
	}
}

// ParseSource converts a source identifier into a Source.
// Unknown identifiers are a ValidationError.
func ParseSource(value string) (Source, error) {
	candidate := Source(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range KnownSources {
		if candidate == known {
			return known, nil
		}
	}
	return "", errors.NewValidationError("source", "unknown source \""+value+"\"")
}

// Key is the dedup key of a record: one external record per (source, external id).
type Key struct {
	Source     Source `json:"source" yaml:"source"`
	ExternalID string `json:"external_id" yaml:"external_id"`
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.ExternalID
}

// SourceInfo describes a catalog for the sources listing.
type SourceInfo struct {
	ID          Source   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	RateLimit   string   `json:"rate_limit"`
	HasAPIKey   bool     `json:"has_api_key"`
}

// Describer is implemented by adapters that can describe their catalog.
type Describer interface {
	Describe() SourceInfo
}
