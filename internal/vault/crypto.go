// Package vault provides key handling and authenticated at-rest encryption
// for the persisted data store.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// Container format: magic || nonce(12B) || tag(16B) || ciphertext. The magic
// prefix makes the format self-describing: bytes without it are rejected
// before any decryption is attempted.
var magicBytes = []byte("PGV1")

const (
	nonceSize = 12
	tagSize   = 16
	// minContainerLen is the smallest valid container (empty plaintext).
	minContainerLen = 4 + nonceSize + tagSize

	// KeySize is the symmetric key length in bytes.
	KeySize = 32
)

// IsEncryptedContainer reports whether the bytes begin with the container
// magic and are long enough to hold a nonce and authentication tag.
func IsEncryptedContainer(data []byte) bool {
	if len(data) < minContainerLen {
		return false
	}
	for i := range magicBytes {
		if data[i] != magicBytes[i] {
			return false
		}
	}
	return true
}

// Encrypt seals data under an AES-256-GCM key with a random nonce and
// returns the self-describing container.
func Encrypt(data, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, data, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	container := make([]byte, 0, len(magicBytes)+nonceSize+tagSize+len(ciphertext))
	container = append(container, magicBytes...)
	container = append(container, nonce...)
	container = append(container, tag...)
	container = append(container, ciphertext...)
	return container, nil
}

// Decrypt opens a container. Any failure (bad magic, truncated data, wrong
// key, corrupted ciphertext) yields ok=false rather than an error: the
// caller decides whether that means "not encrypted" or "corrupted".
func Decrypt(container, key []byte) ([]byte, bool) {
	if !IsEncryptedContainer(container) || len(key) != KeySize {
		return nil, false
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, false
	}

	body := container[len(magicBytes):]
	nonce := body[:nonceSize]
	tag := body[nonceSize : nonceSize+tagSize]
	ciphertext := body[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}
