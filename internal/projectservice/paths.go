package projectservice

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/starford/texflow/internal/apperr"
	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/models"
)

// cleanPath normalises a slash-separated project path. "" and "." name the
// root.
func cleanPath(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
	if p == "" {
		return "."
	}
	return p
}

// ResolvePath looks up a record by its slash-separated tree path.
func (s *Service) ResolvePath(ctx context.Context, projectID, p string) (models.Record, error) {
	clean := cleanPath(p)
	records, err := s.Records(ctx, projectID)
	if err != nil {
		return models.Record{}, err
	}
	r, ok := filetree.PathIndex(records)[clean]
	if !ok {
		return models.Record{}, fmt.Errorf("path %s: %w", clean, apperr.ErrNotFound)
	}
	return s.GetRecord(ctx, projectID, r.ID)
}

// EnsureFolder returns the ID of the folder at dir, creating it and every
// missing ancestor. The count of folders created is returned alongside.
func (s *Service) EnsureFolder(ctx context.Context, projectID, dir string) (string, int, error) {
	clean := cleanPath(dir)
	if clean == "." {
		return models.RootID, 0, nil
	}
	records, err := s.Records(ctx, projectID)
	if err != nil {
		return "", 0, err
	}
	index := filetree.PathIndex(records)

	parentID := models.RootID
	created := 0
	walked := ""
	for _, name := range strings.Split(clean, "/") {
		walked = path.Join(walked, name)
		if r, ok := index[walked]; ok {
			if !r.IsFolder() {
				return "", created, fmt.Errorf("%s is a file: %w", walked, apperr.ErrInvalidInput)
			}
			parentID = r.ID
			continue
		}
		r, err := s.CreateRecord(ctx, projectID, NewRecord{Name: name, Kind: models.KindFolder, ParentID: parentID})
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Lost a race with another writer; take theirs.
			r, err = s.ResolvePath(ctx, projectID, walked)
			if err == nil && !r.IsFolder() {
				err = fmt.Errorf("%s is a file: %w", walked, apperr.ErrInvalidInput)
			}
			if err != nil {
				return "", created, err
			}
		} else if err != nil {
			return "", created, err
		} else {
			created++
		}
		index[walked] = r
		parentID = r.ID
	}
	return parentID, created, nil
}

// CreateFileAt creates a file at a slash-separated path, creating missing
// folders on the way.
func (s *Service) CreateFileAt(ctx context.Context, projectID, p, content string) (models.Record, error) {
	clean := cleanPath(p)
	if clean == "." {
		return models.Record{}, fmt.Errorf("path is required: %w", apperr.ErrInvalidInput)
	}
	parentID, _, err := s.EnsureFolder(ctx, projectID, path.Dir(clean))
	if err != nil {
		return models.Record{}, err
	}
	return s.CreateRecord(ctx, projectID, NewRecord{
		Name:     path.Base(clean),
		Kind:     models.KindFile,
		ParentID: parentID,
		Content:  content,
	})
}

// SearchResult is a full-text hit with its tree path.
type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Search finds files in a project whose name or content match query.
func (s *Service) Search(ctx context.Context, projectID, query string, limit int) ([]SearchResult, error) {
	records, err := s.Records(ctx, projectID)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, projectID, query, limit)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]string, len(records))
	for p, r := range filetree.PathIndex(records) {
		paths[r.ID] = p
	}
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		p, ok := paths[h.RecordID]
		if !ok {
			p = h.Name
		}
		out = append(out, SearchResult{ID: h.RecordID, Path: p, Snippet: h.Snippet})
	}
	return out, nil
}
