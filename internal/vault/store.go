package vault

import (
	"fmt"
	"os"

	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"go.uber.org/zap"
)

// Store persists an opaque serialized data blob, encrypting it at rest when
// key material is available. Missing key material degrades to plaintext
// persistence with a loud diagnostic, unless require_encryption is set:
// availability outweighs strict enforcement for a local-first tool.
type Store struct {
	keys   *KeyManager
	config config.VaultConfig
	logger *logger.Logger
}

// NewStore creates an encrypted blob store.
func NewStore(keys *KeyManager, cfg config.VaultConfig, log *logger.Logger) *Store {
	return &Store{keys: keys, config: cfg, logger: log}
}

// Save writes the blob to path, wrapped in an encrypted container when a key
// resolves.
func (s *Store) Save(path string, data []byte) error {
	key, ok := s.keys.ResolveKey()
	if !ok {
		if s.config.RequireEncryption {
			return fmt.Errorf("encryption required but no key material available")
		}
		if s.config.Enabled {
			// Not a one-time notice: every unprotected save is reported.
			s.logger.Error("Persisting store WITHOUT encryption: key material unavailable",
				zap.String("path", path),
			)
		}
		return writeRestricted(path, data)
	}

	container, err := Encrypt(data, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt store: %w", err)
	}
	return writeRestricted(path, container)
}

// Load reads the blob at path. Encrypted containers are decrypted; plain
// bytes are returned as-is so a store written during a degraded period
// remains readable.
func (s *Store) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !IsEncryptedContainer(data) {
		return data, nil
	}

	key, ok := s.keys.ResolveKey()
	if !ok {
		return nil, fmt.Errorf("store is encrypted but no key material available")
	}

	plaintext, ok := Decrypt(data, key)
	if !ok {
		return nil, fmt.Errorf("failed to decrypt store: wrong key or corrupted data")
	}
	return plaintext, nil
}
