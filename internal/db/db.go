package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const defaultDBName = "rampline.db"

type Config struct {
	Workspace string
}

func dbPath(workspace string) string {
	return filepath.Join(workspaceDir(workspace), defaultDBName)
}

func workspaceDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".rampline")
}

// EnsureWorkspace creates the .rampline directory under workspace if
// missing. The workspace itself must already exist and be a directory.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace != "" && workspace != "." {
		info, err := os.Stat(workspace)
		if err != nil {
			return "", fmt.Errorf("workspace %s: %w", workspace, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("workspace %s is not a directory", workspace)
		}
	}
	path := workspaceDir(workspace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dbPath(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
