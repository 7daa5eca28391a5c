// Package cache provides the framework's key/value cache behind a small
// Store interface with memory and Redis drivers. Values are JSON-encoded
// on the way in and decoded on the way out, so anything marshalable can
// be cached. Both drivers report hits and misses to the metrics registry.
package cache

import (
	"time"

	"github.com/setulabs/setu/config"
	"github.com/setulabs/setu/pkg/crypt"
)

// Store is the cache surface services resolve from the container.
type Store interface {
	// Get unmarshals the value cached under key into dest and reports
	// whether it was a hit. Decode failures count as misses.
	Get(key string, dest any) bool

	// Set stores value under key for ttl. A zero ttl caches forever.
	Set(key string, value any, ttl time.Duration) error

	// Del removes the given keys. Missing keys are not an error.
	Del(keys ...string) error

	// Driver names the backing driver ("memory" or "redis").
	Driver() string
}

// Connect builds the store selected by CACHE_DRIVER. The redis driver
// verifies connectivity with a ping before it is returned, so a broken
// Redis surfaces at boot rather than as silent misses. With CACHE_ENCRYPT
// set, the store is wrapped so values are sealed before leaving the
// process.
func Connect() (Store, error) {
	var (
		store Store
		err   error
	)

	switch config.CacheDriver() {
	case "redis":
		store, err = NewRedis(config.RedisAddr(), config.RedisPassword())
		if err != nil {
			return nil, err
		}
	default:
		store = NewMemory()
	}

	if config.CacheEncrypt() {
		cipher, err := crypt.Default()
		if err != nil {
			return nil, err
		}
		store = NewEncrypted(store, cipher)
	}

	return store, nil
}
