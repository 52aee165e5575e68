package util

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Checksum returns the xxhash64 digest of data as 16 lowercase hex digits.
// Used to detect duplicate source content and to key the fetch cache.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
