// Package models defines the domain types for texflow.
package models

import "time"

// Kind distinguishes files from folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// RootID is the ParentID of records placed at the project root.
const RootID = ""

// Record is the flat, persisted representation of a file or folder.
// ParentID links it to its containing folder; RootID means top level.
type Record struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	ParentID   string    `json:"parentId,omitempty"`
	Content    string    `json:"content,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	Deleted    bool      `json:"deleted,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// IsFolder reports whether r is a folder.
func (r Record) IsFolder() bool { return r.Kind == KindFolder }

// Project groups the records edited together.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
