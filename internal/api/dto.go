package api

import (
	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/projectservice"
)

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name string `json:"name" example:"Thesis" validate:"required"`
}

// ProjectListResponse wraps the caller's projects.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects" validate:"required"`
}

// TreeResponse is a snapshot of a project's file tree.
type TreeResponse struct {
	ProjectID string           `json:"projectId" validate:"required"`
	Tree      []*filetree.Node `json:"tree" validate:"required"`
}

// CreateRecordRequest is the request body for creating a file or folder.
type CreateRecordRequest struct {
	Name     string      `json:"name" example:"intro.tex" validate:"required"`
	Kind     models.Kind `json:"kind" example:"file" validate:"required"`
	ParentID string      `json:"parentId,omitempty" example:""`
	Content  string      `json:"content,omitempty" example:"\\section{Intro}"`
}

// UpdateContentRequest is the request body for replacing file content.
// Content is a pointer so an empty document can be told apart from a
// missing field.
type UpdateContentRequest struct {
	Content *string `json:"content" validate:"required"`
}

// RenameRequest is the request body for renaming a record.
type RenameRequest struct {
	Name string `json:"name" example:"chapter1.tex" validate:"required"`
}

// MoveRequest is the request body for re-parenting a record. An empty
// parentId moves the record to the project root.
type MoveRequest struct {
	ParentID string `json:"parentId"`
}

// MoveResponse reports whether a move changed anything.
type MoveResponse struct {
	Moved bool `json:"moved"`
}

// CompileRequest is the body of POST /api/compile.
type CompileRequest struct {
	Source *string `json:"source"`
}

// CompileResponse is returned by POST /api/compile.
type CompileResponse struct {
	Success     bool   `json:"success"`
	HTMLPreview string `json:"htmlPreview"`
}

// UploadResponse is returned after a successful source upload.
type UploadResponse struct {
	Record models.Record `json:"record"`
	Size   int64         `json:"size" example:"1234"`
}

// SearchResponse is returned by GET /api/projects/{projectID}/search.
type SearchResponse struct {
	Query   string                        `json:"query"`
	Results []projectservice.SearchResult `json:"results"`
}
