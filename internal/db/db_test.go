package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspaceCreatesDir(t *testing.T) {
	workspace := t.TempDir()
	path, err := EnsureWorkspace(workspace)
	if err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s, err %v", path, err)
	}
}

func TestEnsureWorkspaceRejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := EnsureWorkspace(file); err == nil {
		t.Fatal("expected error for file workspace")
	}
	if _, err := EnsureWorkspace(filepath.Join(file, "missing")); err == nil {
		t.Fatal("expected error for missing workspace")
	}
}
