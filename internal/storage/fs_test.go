package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempDir(t *testing.T) *FS {
	t.Helper()
	fsys, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	t.Cleanup(func() { fsys.Close() })
	return fsys
}

func TestWriteAndRead(t *testing.T) {
	s := tempDir(t)
	content := []byte("\\documentclass{article}\n")
	if err := s.Write("main.tex", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("main.tex")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempDir(t)
	if err := s.Write("a/b/c.tex", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.tex")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestMkdirAndDelete(t *testing.T) {
	s := tempDir(t)
	if err := s.Mkdir("figures/raw"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if info, err := os.Stat(filepath.Join(s.Dir(), "figures", "raw")); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	_ = s.Write("del.tex", []byte("bye"))
	if err := s.Delete("del.tex"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.tex"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("main.tex", []byte("a"))
	_ = s.Write("sub/refs.bib", []byte("b"))
	_ = s.Write("figure.png", []byte("not source"))
	_ = s.Write(".git/config.txt", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Path == "sub/refs.bib" && it.Checksum == "" {
			t.Error("checksum missing")
		}
	}
}

func TestIsSource(t *testing.T) {
	cases := map[string]bool{
		"main.tex":  true,
		"REFS.BIB":  true,
		"style.sty": true,
		"notes.txt": true,
		"plot.pdf":  false,
		"Makefile":  false,
	}
	for name, want := range cases {
		if got := IsSource(name); got != want {
			t.Errorf("IsSource(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDir(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.tex",
		"/etc/shadow",
		"sub/../../x.tex",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("atomic.tex", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.tex", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.tex")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Dir(), tmpPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "texflow-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestSymlinkEscapeBlocked(t *testing.T) {
	s := tempDir(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.tex"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(s.Dir(), "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := s.Read("link/secret.tex"); err == nil {
		t.Error("read through symlink escaped the directory")
	}
	if err := s.Write("link/new.tex", []byte("x")); err == nil {
		t.Error("write through symlink escaped the directory")
	}
}

func TestList_SkipsTempFilesAndScopesDir(t *testing.T) {
	s := tempDir(t)
	_ = s.Write("a.tex", []byte("a"))
	_ = s.Write("sub/b.tex", []byte("b"))
	if err := os.WriteFile(filepath.Join(s.Dir(), tmpPrefix+"stale"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := s.List("sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "sub/b.tex" {
		t.Errorf("List(sub) = %+v", items)
	}
	all, _ := s.List("")
	if len(all) != 2 {
		t.Errorf("List() = %+v", all)
	}
}
