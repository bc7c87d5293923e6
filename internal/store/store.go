// Package store resolves the active printer configuration of a school.
package store

import (
	"context"

	"github.com/Riboost-Studio/chalan/internal/model"
)

// Resolver returns the active config for a school. A school without one
// yields nil and no error.
type Resolver interface {
	ActiveConfig(ctx context.Context, schoolID string) (*model.PrinterConfig, error)
}

// ConfigStore is a Resolver that can also persist configs.
type ConfigStore interface {
	Resolver
	SaveConfig(ctx context.Context, cfg model.PrinterConfig) error
	Close() error
}
