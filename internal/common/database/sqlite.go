package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"vendor-onboarding/internal/common/config"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens the embedded database file, creating its directory when
// needed. SQLite serialises writers, so the pool holds a single connection.
func NewSQLite(cfg config.SQLiteConfig) (*SQLClient, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLClient{DB: db, Driver: "sqlite3"}, nil
}
