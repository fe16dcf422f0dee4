//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			record_id UNINDEXED,
			project_id UNINDEXED,
			name,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// ftsSync re-indexes one record from its row; deleted records and folders
// drop out of the index.
func ftsSync(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM records_fts WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("store: fts delete: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records_fts (record_id, project_id, name, content)
		SELECT id, project_id, name, content FROM records
		WHERE id = ? AND kind = 'file' AND deleted = 0
	`, id)
	if err != nil {
		return fmt.Errorf("store: fts upsert: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over a project's files.
func (db *DB) Search(ctx context.Context, projectID, query string, limit int) ([]SearchHit, error) {
	out := []SearchHit{}
	q := ftsQuery(query)
	if q == "" {
		return out, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT records_fts.record_id,
		       records.name,
		       snippet(records_fts, 3, '', '', '...', 16)
		FROM records_fts
		JOIN records ON records.id = records_fts.record_id
		WHERE records_fts MATCH ? AND records_fts.project_id = ? AND records.deleted = 0
		ORDER BY bm25(records_fts)
		LIMIT ?
	`, q, projectID, clampLimit(limit))
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
