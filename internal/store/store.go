package store

import (
	"context"
	"time"

	"github.com/starford/texflow/internal/models"
)

// RecordStore is the persistence contract of the project service.
// Consumers should depend on this interface rather than on *DB.
type RecordStore interface {
	CreateProject(ctx context.Context, p models.Project) error
	GetProject(ctx context.Context, id string) (models.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]models.Project, error)

	// ListRecords returns every non-deleted record of a project without
	// file content.
	ListRecords(ctx context.Context, projectID string) ([]models.Record, error)
	GetRecord(ctx context.Context, projectID, id string) (models.Record, error)
	InsertRecord(ctx context.Context, r models.Record) error
	UpdateContent(ctx context.Context, projectID, id, content, sum string, at time.Time) error
	RenameRecord(ctx context.Context, projectID, id, name string, at time.Time) error
	MoveRecord(ctx context.Context, projectID, id, parentID string, at time.Time) error
	SoftDelete(ctx context.Context, projectID string, ids []string, at time.Time) error

	// Search returns live files whose name or content match every term of
	// query, best match first when FTS5 is available.
	Search(ctx context.Context, projectID, query string, limit int) ([]SearchHit, error)

	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies RecordStore at compile time.
var _ RecordStore = (*DB)(nil)
