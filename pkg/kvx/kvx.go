// Package kvx is a thin abstraction over a shared key-value store with
// per-key TTLs. The token revocation index and the abuse rate counters both
// live behind it, in disjoint key namespaces owned by their respective
// services.
package kvx

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports an absent key. Callers on the security path treat
// absence as lack of trust, not as a soft miss.
var ErrNotFound = errors.New("kvx: not found")

// Store is the driver interface. All operations take a context because
// every call is request-scoped I/O.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetEx stores value at key with the given TTL. The TTL is mandatory:
	// nothing in this system writes immortal keys.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Hit implements a fixed-window counter check-and-increment atomically:
	// if the count at key has reached limit it returns false WITHOUT
	// incrementing, otherwise it increments and returns true. The window TTL
	// is set only when the counter is created, so denied checks never extend
	// the window. This must be a single atomic primitive on the backend; a
	// read-modify-write pair would let concurrent offenders slip under the
	// limit.
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)

	// Ping verifies the backend connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}
