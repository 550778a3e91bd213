package util

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HashKey returns a fixed-width hex xxhash64 digest of a canonical key.
func HashKey(canonical string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(canonical))
}
