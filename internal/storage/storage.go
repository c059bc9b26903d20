// Package storage provides the key/value device storage used to persist the
// session token, the cached profile and local feature flags.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("storage: key not found")

// Store is a minimal key/value store
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}
