package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Monsterkot/diplom/internal/book"
	"github.com/Monsterkot/diplom/internal/errors"
)

// ImportMeta carries the import-time values that are not part of the catalog record.
type ImportMeta struct {
	ActorID       string
	PublishedYear *int
}

// ImportState is the cached import state of one external id.
type ImportState struct {
	ID         int64 `json:"id"`
	IsImported bool  `json:"is_imported"`
}

// UpsertSeen caches a search or detail result. New rows start as not imported and an
// existing not-yet-imported row has its metadata refreshed. An imported row is left
// untouched; its id is returned either way.
func (s *Store) UpsertSeen(ctx context.Context, result book.Result) (int64, error) {
	args, err := upstreamArgs(result, book.ParseYear(deref(result.PublishedDate)))
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.write(ctx, "upsert seen", func(tx *sql.Tx) error {
		now := s.timestamp()
		query := fmt.Sprintf(`
			INSERT INTO external_books (source, external_id, %s, is_imported, last_fetched_at, created_at)
			VALUES (?, ?, %s, 0, ?, ?)
			ON CONFLICT (source, external_id) DO UPDATE SET
				%s, last_fetched_at = excluded.last_fetched_at, updated_at = excluded.created_at
			WHERE external_books.is_imported = 0
			RETURNING id`,
			strings.Join(upstreamColumns, ", "), placeholders(len(upstreamColumns)), upstreamUpdateSet)

		params := append([]any{string(result.Source), result.ExternalID}, args...)
		params = append(params, now, now)

		err := tx.QueryRowContext(ctx, query, params...).Scan(&id)
		if stdErrors.Is(err, sql.ErrNoRows) {
			// Already imported: the conditional update did not touch the row.
			return tx.QueryRowContext(ctx,
				`SELECT id FROM external_books WHERE source = ? AND external_id = ?`,
				string(result.Source), result.ExternalID).Scan(&id)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("upsert seen %s: %w", result.Key(), err)
	}

	slog.Debug("Cached external record", "key", result.Key().String(), "id", id)
	return id, nil
}

// MarkImported creates or updates the record as imported, stamping the import time and actor.
func (s *Store) MarkImported(ctx context.Context, result book.Result, meta ImportMeta) (int64, error) {
	var id int64
	err := s.write(ctx, "mark imported", func(tx *sql.Tx) error {
		var err error
		id, err = s.markImportedTx(ctx, tx, result, meta)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark imported %s: %w", result.Key(), err)
	}
	return id, nil
}

// ClaimImport marks the record imported unless it already is. The check and the write
// share one transaction, so of two concurrent claims exactly one sees alreadyImported=false.
func (s *Store) ClaimImport(ctx context.Context, result book.Result, meta ImportMeta) (id int64, alreadyImported bool, err error) {
	err = s.write(ctx, "claim import", func(tx *sql.Tx) error {
		var imported bool
		scanErr := tx.QueryRowContext(ctx,
			`SELECT id, is_imported FROM external_books WHERE source = ? AND external_id = ?`,
			string(result.Source), result.ExternalID).Scan(&id, &imported)
		switch {
		case scanErr == nil && imported:
			alreadyImported = true
			return nil
		case scanErr != nil && !stdErrors.Is(scanErr, sql.ErrNoRows):
			return scanErr
		}

		alreadyImported = false
		var err error
		id, err = s.markImportedTx(ctx, tx, result, meta)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("claim import %s: %w", result.Key(), err)
	}
	return id, alreadyImported, nil
}

func (s *Store) markImportedTx(ctx context.Context, tx *sql.Tx, result book.Result, meta ImportMeta) (int64, error) {
	args, err := upstreamArgs(result, meta.PublishedYear)
	if err != nil {
		return 0, err
	}

	now := s.timestamp()
	query := fmt.Sprintf(`
		INSERT INTO external_books (source, external_id, %s, is_imported, imported_by_id, imported_at, last_fetched_at, created_at)
		VALUES (?, ?, %s, 1, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			%s,
			is_imported = 1,
			imported_by_id = excluded.imported_by_id,
			imported_at = excluded.imported_at,
			last_fetched_at = excluded.last_fetched_at,
			updated_at = excluded.created_at
		RETURNING id`,
		strings.Join(upstreamColumns, ", "), placeholders(len(upstreamColumns)), upstreamUpdateSet)

	params := append([]any{string(result.Source), result.ExternalID}, args...)
	params = append(params, nullableString(meta.ActorID), now, now, now)

	var id int64
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&id); err != nil {
		return 0, err
	}
	slog.Debug("Marked external record imported", "key", result.Key().String(), "id", id, "actor", meta.ActorID)
	return id, nil
}

// Refresh overwrites the catalog-owned fields of an existing record and stamps
// last_fetched_at. Import state, time and actor are never touched.
func (s *Store) Refresh(ctx context.Context, result book.Result, publishedYear *int) (int64, error) {
	args, err := upstreamArgs(result, publishedYear)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.write(ctx, "refresh", func(tx *sql.Tx) error {
		now := s.timestamp()
		query := fmt.Sprintf(`
			UPDATE external_books SET %s, last_fetched_at = ?, updated_at = ?
			WHERE source = ? AND external_id = ?
			RETURNING id`, upstreamAssignSet)

		params := append(args, now, now, string(result.Source), result.ExternalID)
		err := tx.QueryRowContext(ctx, query, params...).Scan(&id)
		if stdErrors.Is(err, sql.ErrNoRows) {
			return errors.NewNotFoundError(string(result.Source), result.ExternalID)
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", result.Key(), err)
	}
	return id, nil
}

// FindByKey returns the record for key, or nil when it has never been seen.
func (s *Store) FindByKey(ctx context.Context, key book.Key) (*book.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM external_books WHERE source = ? AND external_id = ?`,
		string(key.Source), key.ExternalID)
	record, err := scanRecord(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return record, nil
}

// GetByID returns the record with the given id or a NotFoundError.
func (s *Store) GetByID(ctx context.Context, id int64) (*book.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM external_books WHERE id = ?`, id)
	record, err := scanRecord(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("store", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return record, nil
}

// LinkLocalBook records the local catalog entry an imported record became.
func (s *Store) LinkLocalBook(ctx context.Context, id, localBookID int64) error {
	return s.write(ctx, "link local book", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE external_books SET imported_book_id = ?, updated_at = ? WHERE id = ?`,
			localBookID, s.timestamp(), id)
		if err != nil {
			return err
		}
		return requireAffected(res, id)
	})
}

// Delete removes a cached record. It is an administrative action; the pipeline never deletes.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.write(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM external_books WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := requireAffected(res, id); err != nil {
			return err
		}
		slog.Debug("Deleted external record", "id", id)
		return nil
	})
}

// ImportStates returns the cached state of the given external ids of one source.
// Ids that were never seen are absent from the map.
func (s *Store) ImportStates(ctx context.Context, source book.Source, externalIDs []string) (map[string]ImportState, error) {
	states := make(map[string]ImportState, len(externalIDs))
	if len(externalIDs) == 0 {
		return states, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, 0, len(externalIDs)+1)
	args = append(args, string(source))
	for _, id := range externalIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, is_imported FROM external_books WHERE source = ? AND external_id IN (`+placeholders(len(externalIDs))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("import states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			externalID string
			state      ImportState
		)
		if err := rows.Scan(&state.ID, &externalID, &state.IsImported); err != nil {
			return nil, fmt.Errorf("import states: %w", err)
		}
		states[externalID] = state
	}
	return states, rows.Err()
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("store", fmt.Sprintf("%d", id))
	}
	return nil
}

// upstreamArgs returns the values for upstreamColumns, in order.
func upstreamArgs(r book.Result, publishedYear *int) ([]any, error) {
	authors, err := json.Marshal(nonNil(r.Authors))
	if err != nil {
		return nil, fmt.Errorf("encoding authors: %w", err)
	}
	categories, err := json.Marshal(nonNil(r.Categories))
	if err != nil {
		return nil, fmt.Errorf("encoding categories: %w", err)
	}
	raw := r.RawMetadata
	if raw == nil {
		raw = map[string]any{}
	}
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding raw metadata: %w", err)
	}

	title := r.Title
	if title == "" {
		title = book.UnknownTitle
	}

	return []any{
		title,
		string(authors),
		nullable(r.Description),
		nullable(r.ISBN10),
		nullable(r.ISBN13),
		nullable(r.Publisher),
		nullable(r.PublishedDate),
		nullable(publishedYear),
		nullable(r.PageCount),
		string(categories),
		nullable(r.Language),
		nullable(r.ThumbnailURL),
		nullable(r.PreviewLink),
		nullable(r.InfoLink),
		nullable(r.AverageRating),
		nullable(r.RatingsCount),
		nullable(r.MaturityRating),
		string(rawJSON),
	}, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
