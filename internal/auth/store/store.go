// Package store persists the token pair between runs.
package store

import "context"

// Store is a string key/value store for credentials. Get returns "" with a
// nil error for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
