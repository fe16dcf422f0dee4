package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/texflow/internal/apperr"
	"github.com/starford/texflow/internal/models"
)

// ListRecords returns a single snapshot of all live records in a project.
// Content is left empty; use GetRecord to read a file.
func (db *DB) ListRecords(ctx context.Context, projectID string) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, project_id, parent_id, name, kind, checksum, created_at, modified_at
		FROM records
		WHERE project_id = ? AND deleted = 0
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		var (
			r      models.Record
			parent sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &parent, &r.Name, &r.Kind, &r.Checksum, &r.CreatedAt, &r.ModifiedAt); err != nil {
			return nil, err
		}
		r.ParentID = parent.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRecord returns a live record with its content, or apperr.ErrNotFound.
func (db *DB) GetRecord(ctx context.Context, projectID, id string) (models.Record, error) {
	var (
		r      models.Record
		parent sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, project_id, parent_id, name, kind, content, checksum, created_at, modified_at
		FROM records
		WHERE project_id = ? AND id = ? AND deleted = 0
	`, projectID, id).Scan(&r.ID, &r.ProjectID, &parent, &r.Name, &r.Kind, &r.Content, &r.Checksum, &r.CreatedAt, &r.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("store: record %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("store: get record: %w", err)
	}
	r.ParentID = parent.String
	return r, nil
}

// InsertRecord stores a new record.
func (db *DB) InsertRecord(ctx context.Context, r models.Record) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (id, project_id, parent_id, name, kind, content, checksum, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.ProjectID, nullable(r.ParentID), r.Name, string(r.Kind), r.Content, r.Checksum, r.CreatedAt, r.ModifiedAt)
		if err != nil {
			return fmt.Errorf("store: insert record: %w", err)
		}
		if err := ftsSync(ctx, tx, r.ID); err != nil {
			return err
		}
		return touchProject(ctx, tx, r.ProjectID, r.ModifiedAt)
	})
}

// UpdateContent replaces a file's content and checksum.
func (db *DB) UpdateContent(ctx context.Context, projectID, id, content, sum string, at time.Time) error {
	return db.update(ctx, projectID, id, at,
		`UPDATE records SET content = ?, checksum = ?, modified_at = ? WHERE project_id = ? AND id = ? AND deleted = 0`,
		content, sum, at, projectID, id)
}

// RenameRecord changes a record's name.
func (db *DB) RenameRecord(ctx context.Context, projectID, id, name string, at time.Time) error {
	return db.update(ctx, projectID, id, at,
		`UPDATE records SET name = ?, modified_at = ? WHERE project_id = ? AND id = ? AND deleted = 0`,
		name, at, projectID, id)
}

// MoveRecord writes the new parent and modification time of an approved move.
func (db *DB) MoveRecord(ctx context.Context, projectID, id, parentID string, at time.Time) error {
	return db.update(ctx, projectID, id, at,
		`UPDATE records SET parent_id = ?, modified_at = ? WHERE project_id = ? AND id = ? AND deleted = 0`,
		nullable(parentID), at, projectID, id)
}

// SoftDelete flags every record in ids as deleted in one transaction.
func (db *DB) SoftDelete(ctx context.Context, projectID string, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.inTx(ctx, func(tx *sql.Tx) error {
		args := make([]any, 0, len(ids)+2)
		args = append(args, at, projectID)
		for _, id := range ids {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		_, err := tx.ExecContext(ctx,
			`UPDATE records SET deleted = 1, modified_at = ? WHERE project_id = ? AND id IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("store: soft delete: %w", err)
		}
		for _, id := range ids {
			if err := ftsSync(ctx, tx, id); err != nil {
				return err
			}
		}
		return touchProject(ctx, tx, projectID, at)
	})
}

// update runs a single-row UPDATE and maps "no row touched" to ErrNotFound.
func (db *DB) update(ctx context.Context, projectID, id string, at time.Time, query string, args ...any) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("store: update record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("store: record %s: %w", id, apperr.ErrNotFound)
		}
		if err := ftsSync(ctx, tx, id); err != nil {
			return err
		}
		return touchProject(ctx, tx, projectID, at)
	})
}

// nullable stores the root parent as NULL.
func nullable(parentID string) sql.NullString {
	return sql.NullString{String: parentID, Valid: parentID != models.RootID}
}
