package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NoExpiration marks an entry that never expires
const NoExpiration time.Duration = -1

// Cache is a byte-level key/value backend. Keys are arbitrary strings and are
// stored case-preserving; a zero ttl means the backend default.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
	Keys() ([]string, error)
}

// CacheKey derives a filesystem-safe name for an arbitrary key
func CacheKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return "eramap-v1-" + hex.EncodeToString(hash[:])
}
