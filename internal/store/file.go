package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Riboost-Studio/chalan/internal/model"
)

// FileStore keeps one config per school in a JSON object keyed by school
// id. Inactive entries resolve to nil.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() (map[string]model.PrinterConfig, error) {
	configs := map[string]model.PrinterConfig{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return configs, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal printer configs: %w", err)
	}
	return configs, nil
}

func (f *FileStore) ActiveConfig(ctx context.Context, schoolID string) (*model.PrinterConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	configs, err := f.load()
	if err != nil {
		return nil, err
	}
	cfg, ok := configs[schoolID]
	if !ok || !cfg.IsActive {
		return nil, nil
	}
	if cfg.SchoolID == "" {
		cfg.SchoolID = schoolID
	}
	return &cfg, nil
}

func (f *FileStore) SaveConfig(ctx context.Context, cfg model.PrinterConfig) error {
	if cfg.SchoolID == "" {
		return errors.New("printer config has no school id")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configs, err := f.load()
	if err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	configs[cfg.SchoolID] = cfg

	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0644)
}

func (f *FileStore) Close() error { return nil }

// Open picks the backend named by driver.
func Open(driver, path string) (ConfigStore, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "json":
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
