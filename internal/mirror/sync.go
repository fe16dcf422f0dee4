// Package mirror keeps a project in step with a local directory of LaTeX
// sources: one-shot import (Sync), continuous import (Watch) and export.
package mirror

import (
	"cmp"
	"context"
	"log/slog"
	"path"
	"slices"

	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/projectservice"
	"github.com/starford/texflow/internal/storage"
)

// Stats counts the records touched by a sync pass.
type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Sync walks the directory and brings the project up to date:
//   - missing folders and files are created
//   - files whose checksum changed are updated
//   - file records whose file vanished from disk are soft-deleted
//
// Folder records are never removed by a sync.
func Sync(ctx context.Context, svc *projectservice.Service, fsys storage.Provider, projectID string, logger *slog.Logger) (Stats, error) {
	var st Stats

	metas, err := fsys.List("")
	if err != nil {
		return st, err
	}
	slices.SortFunc(metas, func(a, b storage.FileMeta) int { return cmp.Compare(a.Path, b.Path) })

	records, err := svc.Records(ctx, projectID)
	if err != nil {
		return st, err
	}
	byPath := filetree.PathIndex(records)

	onDisk := make(map[string]struct{}, len(metas))

	for _, m := range metas {
		onDisk[m.Path] = struct{}{}

		existing, ok := byPath[m.Path]
		if ok && existing.IsFolder() {
			logger.Warn("sync: path is a folder in the project", slog.String("path", m.Path))
			continue
		}
		if ok && existing.Checksum == m.Checksum {
			continue
		}

		data, err := fsys.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}

		if ok {
			if _, err := svc.UpdateContent(ctx, projectID, existing.ID, string(data), ""); err != nil {
				logger.Warn("sync: update failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				continue
			}
			st.Updated++
			logger.Debug("sync: updated", slog.String("path", m.Path))
			continue
		}

		parentID, made, err := svc.EnsureFolder(ctx, projectID, path.Dir(m.Path))
		st.Created += made
		if err != nil {
			logger.Warn("sync: folder create failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		r, err := svc.CreateRecord(ctx, projectID, projectservice.NewRecord{
			Name:     path.Base(m.Path),
			Kind:     models.KindFile,
			ParentID: parentID,
			Content:  string(data),
		})
		if err != nil {
			logger.Warn("sync: create failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		byPath[m.Path] = r
		st.Created++
		logger.Debug("sync: created", slog.String("path", m.Path))
	}

	for p, r := range byPath {
		if r.IsFolder() || !storage.IsSource(p) {
			continue
		}
		if _, ok := onDisk[p]; ok {
			continue
		}
		if err := svc.Delete(ctx, projectID, r.ID); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Deleted++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return st, nil
}

