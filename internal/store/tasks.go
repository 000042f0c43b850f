package store

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"

	"github.com/Monsterkot/diplom/internal/errors"
	"github.com/Monsterkot/diplom/internal/tasks"
)

// Compile-time check that Store persists task status.
var _ tasks.Recorder = (*Store)(nil)

// SaveTask upserts a task status snapshot. A terminal snapshot is never
// replaced by a late non-terminal one.
func (s *Store) SaveTask(ctx context.Context, status tasks.Status) error {
	var result any
	if len(status.Result) > 0 {
		result = string(status.Result)
	}

	return s.write(ctx, "save task", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, kind, state, progress_current, progress_total, progress_successful,
				progress_failed, result, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				state = excluded.state,
				progress_current = excluded.progress_current,
				progress_total = excluded.progress_total,
				progress_successful = excluded.progress_successful,
				progress_failed = excluded.progress_failed,
				result = excluded.result,
				error = excluded.error,
				updated_at = excluded.updated_at
			WHERE tasks.state NOT IN ('succeeded', 'failed')`,
			status.ID, status.Kind, string(status.State),
			status.Progress.Current, status.Progress.Total, status.Progress.Successful, status.Progress.Failed,
			result, nullableString(status.Error),
			formatTime(status.CreatedAt), formatTime(status.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save task %s: %w", status.ID, err)
		}
		return nil
	})
}

// LoadTask reads a task status snapshot.
func (s *Store) LoadTask(ctx context.Context, id string) (tasks.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		status             tasks.Status
		state              string
		result, errText    sql.NullString
		createdAt, updated sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, state, progress_current, progress_total, progress_successful, progress_failed,
			result, error, created_at, updated_at
		FROM tasks WHERE id = ?`, id).Scan(
		&status.ID, &status.Kind, &state,
		&status.Progress.Current, &status.Progress.Total, &status.Progress.Successful, &status.Progress.Failed,
		&result, &errText, &createdAt, &updated,
	)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return tasks.Status{}, errors.NewNotFoundError("tasks", id)
	}
	if err != nil {
		return tasks.Status{}, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	status.State = tasks.State(state)
	if result.Valid {
		status.Result = []byte(result.String)
	}
	status.Error = errText.String

	created, err := parseTime(createdAt)
	if err != nil {
		return tasks.Status{}, err
	}
	if created != nil {
		status.CreatedAt = *created
	}
	updatedAt, err := parseTime(updated)
	if err != nil {
		return tasks.Status{}, err
	}
	if updatedAt != nil {
		status.UpdatedAt = *updatedAt
	}
	return status, nil
}
