package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultKeyPrefix namespaces layer entries in Redis.
const DefaultKeyPrefix = "amd:layer:"

// RedisKey maps a composite cache key to a fixed-length Redis key.
// Format: <prefix><sha256 hex of key>
//
// Example:
//
//	amd:layer:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08
func RedisKey(prefix, key string) string {
	sum := sha256.Sum256([]byte(key))
	return prefix + hex.EncodeToString(sum[:])
}
