// Package crypt provides AES-256-GCM authenticated encryption keyed from
// the application secret. The cache layer uses it to encrypt values at
// rest when the backing store is shared infrastructure (CACHE_ENCRYPT).
//
// Ciphertext is base64url with the random nonce prefixed, so one string
// round-trips through any store that can hold text.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/setulabs/setu/config"
)

// ErrDecrypt is returned when decoding, decryption, or authentication of a
// ciphertext fails. The cause is deliberately not distinguished.
var ErrDecrypt = errors.New("crypt: decryption failed")

// Cipher encrypts and decrypts with a key derived from a secret string.
type Cipher struct {
	aead cipher.AEAD
}

// New derives a 32-byte AES-256 key from secret via SHA-256 and returns a
// ready Cipher. The secret must be non-empty.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("crypt: empty secret")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypt: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypt: new GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

var (
	defaultOnce sync.Once
	defaultC    *Cipher
	defaultErr  error
)

// Default returns the process-wide Cipher keyed from APP_KEY (falling back
// to JWT_SECRET). Built once on first use.
func Default() (*Cipher, error) {
	defaultOnce.Do(func() {
		defaultC, defaultErr = New(config.AppKey())
	})
	return defaultC, defaultErr
}

// EncryptBytes seals data and returns base64url(nonce || ciphertext || tag).
func (c *Cipher) EncryptBytes(data []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypt: nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptBytes reverses EncryptBytes. Any tampering yields ErrDecrypt.
func (c *Cipher) DecryptBytes(encoded string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecrypt
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecrypt
	}

	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// Encrypt seals a string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return c.EncryptBytes([]byte(plaintext))
}

// Decrypt opens a string sealed by Encrypt.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	b, err := c.DecryptBytes(encoded)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncryptJSON marshals v and seals the result.
func (c *Cipher) EncryptJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypt: marshal: %w", err)
	}
	return c.EncryptBytes(raw)
}

// DecryptJSON opens encoded and unmarshals the plaintext into dest.
func (c *Cipher) DecryptJSON(encoded string, dest any) error {
	raw, err := c.DecryptBytes(encoded)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("crypt: unmarshal: %w", err)
	}
	return nil
}

// Hash returns the SHA-256 hex digest of input. Handy for checksums and
// cache keys that must not leak their source.
func Hash(input string) string {
	h := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", h)
}
