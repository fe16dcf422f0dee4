//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search scans records.content with LIKE.
	return nil
}

func ftsSync(_ context.Context, _ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// Every term must occur in the file name or content.
func (db *DB) Search(ctx context.Context, projectID, query string, limit int) ([]SearchHit, error) {
	out := []SearchHit{}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return out, nil
	}

	var where strings.Builder
	args := []any{terms[0], projectID}
	for _, t := range terms {
		like := "%" + t + "%"
		where.WriteString(` AND (name LIKE ? OR content LIKE ?)`)
		args = append(args, like, like)
	}
	args = append(args, clampLimit(limit))

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, substr(content, max(1, instr(lower(content), lower(?)) - 60), 160)
		FROM records
		WHERE project_id = ? AND kind = 'file' AND deleted = 0`+where.String()+`
		ORDER BY name, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.RecordID, &h.Name, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
