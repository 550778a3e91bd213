// Package provider defines the byte store that holds persisted cache
// artifacts (one blob per artifact name, e.g. "cache.square.json").
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation).
//
// Artifacts are whole-value blobs: Set always replaces the full value. There is
// no locking across processes; the last writer wins.
package provider

import (
	"context"
	"errors"
)

// ErrRejected is returned by Set when a bounded store refused the write.
var ErrRejected = errors.New("provider: write rejected")

// Provider is a minimal artifact byte store without TTLs.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Exists reports whether key is present without reading it.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes a key and reports whether it existed.
	Del(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
