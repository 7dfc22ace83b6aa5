// Package store persists conversation documents. Keys are /-separated paths
// (e.g. "msteams/conversations/abc") and values are opaque encoded bytes;
// encoding is the caller's concern.
package store

import "context"

// Store is a durable key/value backend. Implementations perform I/O on every
// call without caching and must be safe for concurrent use.
type Store interface {
	// List returns all stored keys in sorted order.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the given keys in request order. A missing
	// key fails the whole call with ErrKeyNotFound.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one stored document.
type Entry struct {
	Key   string
	Value []byte
}
