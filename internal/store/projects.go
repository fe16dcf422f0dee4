package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/texflow/internal/apperr"
	"github.com/starford/texflow/internal/models"
)

// CreateProject inserts a new project row.
func (db *DB) CreateProject(ctx context.Context, p models.Project) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.OwnerID, p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create project: %w", err)
	}
	return nil
}

// GetProject returns a single project or apperr.ErrNotFound.
func (db *DB) GetProject(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("store: project %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("store: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns the projects owned by ownerID, most recently updated
// first.
func (db *DB) ListProjects(ctx context.Context, ownerID string) ([]models.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects WHERE owner_id = ?
		ORDER BY updated_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// touchProject bumps the project's updated_at inside an open transaction.
func touchProject(ctx context.Context, tx *sql.Tx, projectID string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, at, projectID); err != nil {
		return fmt.Errorf("store: touch project: %w", err)
	}
	return nil
}
