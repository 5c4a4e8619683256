package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir  = ".restobject"
	defaultDBName = "restobject.db"
)

type Config struct {
	Workspace string
	// Memory names a shared in-memory database; Workspace is ignored when set.
	Memory string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, defaultDBName)
}

// EnsureWorkspace creates the workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func dsn(cfg Config) string {
	if cfg.Memory != "" {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", cfg.Memory)
	}
	return fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath(cfg.Workspace))
}

// Open opens the SQLite database, creating the workspace when needed.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Memory == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
