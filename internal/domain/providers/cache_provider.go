package providers

import (
	"context"
)

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache; a miss returns (nil, nil)
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache; expirationSeconds <= 0 keeps it forever
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the underlying connection
	Close() error
}
