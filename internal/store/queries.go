package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Monsterkot/diplom/internal/book"
)

// ListFilter narrows List.
type ListFilter struct {
	Source       book.Source // empty means every source
	ImportedOnly bool
	Offset       int
	Limit        int
}

// ListPage is one page of cached records.
type ListPage struct {
	Records []book.Record `json:"records"`
	Total   int           `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"has_more"`
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// List returns cached records newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) (ListPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		conditions []string
		args       []any
	)
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.ImportedOnly {
		conditions = append(conditions, "is_imported = 1")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page := ListPage{Offset: filter.Offset, Limit: filter.Limit, Records: []book.Record{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM external_books`+where, args...).Scan(&page.Total); err != nil {
		return ListPage{}, fmt.Errorf("count records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM external_books`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return ListPage{}, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return ListPage{}, fmt.Errorf("list records: %w", err)
		}
		page.Records = append(page.Records, *record)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, fmt.Errorf("list records: %w", err)
	}

	page.HasMore = filter.Offset+len(page.Records) < page.Total
	return page, nil
}

// FindStale returns imported records last fetched before cutoff, or never fetched.
// Never-fetched records come first, then the oldest.
func (s *Store) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]book.Key, error) {
	if limit <= 0 {
		return []book.Key{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, external_id FROM external_books
		WHERE is_imported = 1 AND (last_fetched_at IS NULL OR last_fetched_at < ?)
		ORDER BY last_fetched_at IS NOT NULL, last_fetched_at, id
		LIMIT ?`, formatTime(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("find stale: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []book.Key{}
	for rows.Next() {
		var source, externalID string
		if err := rows.Scan(&source, &externalID); err != nil {
			return nil, fmt.Errorf("find stale: %w", err)
		}
		keys = append(keys, book.Key{Source: book.Source(source), ExternalID: externalID})
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*book.Record, error) {
	var (
		record         book.Record
		source         string
		authors        string
		categories     string
		rawMetadata    string
		description    sql.NullString
		isbn10         sql.NullString
		isbn13         sql.NullString
		publisher      sql.NullString
		publishedDate  sql.NullString
		publishedYear  sql.NullInt64
		pageCount      sql.NullInt64
		language       sql.NullString
		thumbnailURL   sql.NullString
		previewLink    sql.NullString
		infoLink       sql.NullString
		averageRating  sql.NullFloat64
		ratingsCount   sql.NullInt64
		maturityRating sql.NullString
		importedBookID sql.NullInt64
		importedByID   sql.NullString
		importedAt     sql.NullString
		lastFetchedAt  sql.NullString
		createdAt      string
		updatedAt      sql.NullString
	)

	err := row.Scan(
		&record.ID, &source, &record.ExternalID, &record.Title, &authors, &description, &isbn10, &isbn13, &publisher,
		&publishedDate, &publishedYear, &pageCount, &categories, &language, &thumbnailURL, &previewLink, &infoLink,
		&averageRating, &ratingsCount, &maturityRating, &rawMetadata, &record.IsImported, &importedBookID, &importedByID,
		&importedAt, &lastFetchedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Source = book.Source(source)
	if err := json.Unmarshal([]byte(authors), &record.Authors); err != nil {
		return nil, fmt.Errorf("decoding authors: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &record.Categories); err != nil {
		return nil, fmt.Errorf("decoding categories: %w", err)
	}
	if err := json.Unmarshal([]byte(rawMetadata), &record.RawMetadata); err != nil {
		return nil, fmt.Errorf("decoding raw metadata: %w", err)
	}

	record.Description = nullString(description)
	record.ISBN10 = nullString(isbn10)
	record.ISBN13 = nullString(isbn13)
	record.Publisher = nullString(publisher)
	record.PublishedDate = nullString(publishedDate)
	record.PublishedYear = nullInt(publishedYear)
	record.PageCount = nullInt(pageCount)
	record.Language = nullString(language)
	record.ThumbnailURL = nullString(thumbnailURL)
	record.PreviewLink = nullString(previewLink)
	record.InfoLink = nullString(infoLink)
	record.RatingsCount = nullInt(ratingsCount)
	record.MaturityRating = nullString(maturityRating)
	record.ImportedByID = nullString(importedByID)
	if averageRating.Valid {
		record.AverageRating = &averageRating.Float64
	}
	if importedBookID.Valid {
		record.ImportedBookID = &importedBookID.Int64
	}

	if record.ImportedAt, err = parseTime(importedAt); err != nil {
		return nil, err
	}
	if record.LastFetchedAt, err = parseTime(lastFetchedAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	created, err := parseTime(sql.NullString{String: createdAt, Valid: true})
	if err != nil {
		return nil, err
	}
	if created != nil {
		record.CreatedAt = *created
	}

	return &record, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
