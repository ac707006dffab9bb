package storage

import "errors"

// ErrKeyNotFound is returned by Get when nothing is stored under the key
var ErrKeyNotFound = errors.New("key not found")

// KV is a minimal durable key-value store. Values are whole snapshots;
// there is no partial update.
type KV interface {
	// Get returns the value stored under key
	Get(key string) ([]byte, error)

	// Put replaces the value stored under key
	Put(key string, data []byte) error

	// Close releases the underlying resources
	Close() error
}
