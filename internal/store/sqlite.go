package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Riboost-Studio/chalan/internal/model"
)

// SQLiteStore keeps printer configs in a printer_configs table. Each school
// has at most one active row.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at path. An empty path
// uses an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS printer_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		school_id TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 0,
		config TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_printer_configs_school ON printer_configs(school_id, is_active);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create printer_configs schema: %w", err)
	}
	return nil
}

// SaveConfig stores cfg. An active cfg replaces whatever was active for the
// school before.
func (s *SQLiteStore) SaveConfig(ctx context.Context, cfg model.PrinterConfig) error {
	if cfg.SchoolID == "" {
		return errors.New("printer config has no school id")
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode printer config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if cfg.IsActive {
		if _, err := tx.ExecContext(ctx,
			"UPDATE printer_configs SET is_active = 0 WHERE school_id = ? AND is_active = 1", cfg.SchoolID); err != nil {
			return fmt.Errorf("failed to deactivate previous config: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO printer_configs (school_id, is_active, config, updated_at) VALUES (?, ?, ?, ?)",
		cfg.SchoolID, cfg.IsActive, string(data), cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert printer config: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ActiveConfig(ctx context.Context, schoolID string) (*model.PrinterConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT config FROM printer_configs WHERE school_id = ? AND is_active = 1 ORDER BY id DESC LIMIT 1",
		schoolID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query printer config: %w", err)
	}

	var cfg model.PrinterConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode printer config for %s: %w", schoolID, err)
	}
	cfg.IsActive = true
	return &cfg, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
