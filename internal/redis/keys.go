package redis

import "strings"

var keyCollections = []string{routeCachePrefix, activeGridCacheKey, gridRebuildLockKey, idempotencyPrefix}

// Collection names the key family of key, e.g. "cache:routes" for a cached
// route. Unknown keys map to "redis".
func Collection(key string) string {
	for _, prefix := range keyCollections {
		if strings.HasPrefix(key, prefix) {
			return strings.TrimSuffix(prefix, ":")
		}
	}
	return "redis"
}
