// Package storage defines the file-system abstraction used to mirror a
// project to and from a local directory.
package storage

import (
	"path"
	"strings"
	"time"
)

// SourceExtensions lists the text formats treated as project sources.
var SourceExtensions = []string{".tex", ".bib", ".sty", ".cls", ".bst", ".txt"}

// IsSource reports whether name carries one of SourceExtensions.
func IsSource(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FileMeta describes one source file on disk. Path is slash-separated and
// relative to the provider root.
type FileMeta struct {
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the interface for directory file operations.
type Provider interface {
	// List returns metadata for every source file under dir (relative to root).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Mkdir creates the directory at path and any missing parents.
	Mkdir(path string) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Dir returns the absolute directory path, for watchers.
	Dir() string
}
