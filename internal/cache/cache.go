package cache

import "github.com/dougneedham/lossdev/internal/util"

// Cache stores raw fetched source bodies keyed by URL. TTL policy is fixed
// at construction: remote loss runs change at most once per evaluation
// period, so entries stay valid for hours, not seconds.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
	Clear() error
}

// Key derives the cache key for a source URL.
func Key(url string) string {
	return "lossdev-v1-" + util.Checksum([]byte(url))
}
