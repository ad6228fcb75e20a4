package provider

import (
	"context"
	"errors"

	"github.com/vietdv277/rdsctl/pkg/types"
)

// Common errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrNotConfigured = errors.New("provider not configured")
)

// DBFilter contains filters for database listing
type DBFilter struct {
	Engine string // postgres, mysql, etc.
	State  string // available, stopped, etc.
}

// DBProvider defines the interface for managed database instance operations
type DBProvider interface {
	// List returns databases matching the filter
	List(ctx context.Context, filter *DBFilter) ([]types.Database, error)

	// Get returns a single database by identifier
	Get(ctx context.Context, id string) (*types.Database, error)
}

// SecretsProvider resolves secret references to their values
type SecretsProvider interface {
	// Get returns a secret value
	Get(ctx context.Context, ref string) (*types.SecretValue, error)
}
