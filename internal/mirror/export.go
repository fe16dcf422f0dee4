package mirror

import (
	"context"
	"log/slog"

	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/projectservice"
	"github.com/starford/texflow/internal/storage"
)

// Export writes the project's tree to the provider root: folders become
// directories, files are written atomically. It returns the number of files
// written. Existing files that are not part of the project are left alone.
func Export(ctx context.Context, svc *projectservice.Service, fsys storage.Provider, projectID string, logger *slog.Logger) (int, error) {
	tree, err := svc.Tree(ctx, projectID)
	if err != nil {
		return 0, err
	}

	written := 0
	var walkErr error
	filetree.Walk(tree, func(p string, n *filetree.Node) bool {
		if walkErr != nil {
			return false
		}
		if n.Record.IsFolder() {
			walkErr = fsys.Mkdir(p)
			return walkErr == nil
		}
		r, err := svc.GetRecord(ctx, projectID, n.Record.ID)
		if err != nil {
			walkErr = err
			return false
		}
		if err := fsys.Write(p, []byte(r.Content)); err != nil {
			walkErr = err
			return false
		}
		written++
		logger.Debug("export: wrote", slog.String("path", p))
		return false
	})
	return written, walkErr
}
