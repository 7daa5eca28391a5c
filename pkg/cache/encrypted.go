package cache

import (
	"time"

	"github.com/setulabs/setu/pkg/crypt"
)

// Encrypted wraps a Store so values are sealed with AES-GCM before they
// reach the backing driver. Cached user records carry email addresses;
// when Redis is shared infrastructure, CACHE_ENCRYPT keeps them opaque.
//
// Keys are stored in the clear. Only values are sealed.
type Encrypted struct {
	inner  Store
	cipher *crypt.Cipher
}

// NewEncrypted wraps inner with the given cipher.
func NewEncrypted(inner Store, cipher *crypt.Cipher) *Encrypted {
	return &Encrypted{inner: inner, cipher: cipher}
}

func (e *Encrypted) Driver() string { return e.inner.Driver() }

func (e *Encrypted) Set(key string, value any, ttl time.Duration) error {
	sealed, err := e.cipher.EncryptJSON(value)
	if err != nil {
		return err
	}
	return e.inner.Set(key, sealed, ttl)
}

func (e *Encrypted) Get(key string, dest any) bool {
	var sealed string
	if !e.inner.Get(key, &sealed) {
		return false
	}
	// A value that fails to open is treated as a miss; the caller falls
	// through to the source of truth and overwrites it on the next Set.
	return e.cipher.DecryptJSON(sealed, dest) == nil
}

func (e *Encrypted) Del(keys ...string) error { return e.inner.Del(keys...) }
