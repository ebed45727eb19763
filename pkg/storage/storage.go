package storage

import (
	"context"
	"fmt"
	"time"
)

// Store is the durable document contract consumed by the memory subsystem.
// Values are opaque payloads addressed by a logical namespace (category)
// and a stable key. Both operations take a context because implementations
// may sit on real I/O.
type Store interface {
	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, bool, error)
	// Sweep removes documents that have not been rewritten since cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (removed int, err error)
	Close() error
}

// Open constructs the configured backend. The path is a database file for
// sqlite and a directory for the file backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "file":
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}
