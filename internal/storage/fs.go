package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/texflow/internal/checksum"
)

const tmpPrefix = ".texflow-tmp-"

// FS implements Provider on a local directory. All access goes through an
// os.Root, so neither ".." nor symlinks can reach outside the directory.
type FS struct {
	dir  string
	root *os.Root
}

// NewFS opens dir, which must already exist. Close releases it.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", abs, err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Dir returns the absolute directory path.
func (f *FS) Dir() string { return f.dir }

// Close releases the directory handle.
func (f *FS) Close() error { return f.root.Close() }

// local validates a slash-separated relative path. "" names the directory
// itself.
func local(p string) (string, error) {
	if p == "" {
		return ".", nil
	}
	clean := path.Clean(p)
	if !fs.ValidPath(clean) {
		return "", fmt.Errorf("storage: invalid path %q", p)
	}
	return filepath.Localize(clean)
}

// List returns every source file under dir. Hidden files and directories,
// including leftover temp files, are skipped.
func (f *FS) List(dir string) ([]FileMeta, error) {
	start, err := local(dir)
	if err != nil {
		return nil, err
	}
	fsys := f.root.FS()
	out := []FileMeta{}
	err = fs.WalkDir(fsys, filepath.ToSlash(start), func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := p != "." && strings.HasPrefix(d.Name(), ".")
		switch {
		case hidden && d.IsDir():
			return fs.SkipDir
		case hidden, d.IsDir(), !IsSource(d.Name()):
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out = append(out, FileMeta{Path: p, Checksum: checksum.Sum(data), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

// Read returns the bytes of a file.
func (f *FS) Read(p string) ([]byte, error) {
	name, err := local(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write replaces a file atomically. Content goes to a hidden temp file in
// the target directory, is synced, then renamed over the target. Missing
// parent directories are created.
func (f *FS) Write(p string, content []byte) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if name == "." {
		return errors.New("storage: cannot write to the directory itself")
	}
	parent := filepath.Dir(name)
	if err := f.root.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", parent, err)
	}

	tmpName := filepath.Join(parent, tmpPrefix+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write %s: %w", p, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", p, err)
	}
	if err := f.root.Rename(tmpName, name); err != nil {
		return fmt.Errorf("storage: rename %s: %w", p, err)
	}
	committed = true
	return nil
}

// Mkdir creates a directory and its parents.
func (f *FS) Mkdir(p string) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if err := f.root.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", p, err)
	}
	return nil
}

// Delete removes a file.
func (f *FS) Delete(p string) error {
	name, err := local(p)
	if err != nil {
		return err
	}
	if err := f.root.Remove(name); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}
