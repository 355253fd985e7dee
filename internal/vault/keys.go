package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// passphraseEnv is the operator-supplied passphrase override.
const passphraseEnv = "PRIVGUARD_VAULT_PASSPHRASE"

const saltSize = 16

// fallbackSalt is used when the installation salt cannot be persisted.
// A fixed constant keeps re-derivation deterministic across restarts in
// that failure path; a fresh random salt per process would make every
// restart unable to decrypt the previous one's data.
var fallbackSalt = []byte("privguard-static")

// Argon2id parameters. Derivation is intentionally expensive (tens of
// milliseconds) and runs once per process start; the result is cached.
const (
	argonTime    = 2
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// KeyManager resolves the passphrase, derives the symmetric key, and caches
// it for the process lifetime.
type KeyManager struct {
	config config.VaultConfig
	logger *logger.Logger

	mu     sync.Mutex
	cached []byte
}

// NewKeyManager creates a key manager for the given vault configuration.
func NewKeyManager(cfg config.VaultConfig, log *logger.Logger) *KeyManager {
	return &KeyManager{config: cfg, logger: log}
}

// ResolveKey returns the derived 256-bit key, or ok=false when encryption is
// disabled or key material is unavailable. The passphrase is taken from the
// environment first, then the keyfile; when neither exists a new random
// passphrase is generated and persisted with owner-only permissions.
func (m *KeyManager) ResolveKey() ([]byte, bool) {
	if !m.config.Enabled {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil {
		return m.cached, true
	}

	passphrase, ok := m.resolvePassphrase()
	if !ok {
		return nil, false
	}

	m.cached = m.DeriveKey(passphrase)
	return m.cached, true
}

func (m *KeyManager) resolvePassphrase() (string, bool) {
	if env := os.Getenv(passphraseEnv); env != "" {
		return env, true
	}

	data, err := os.ReadFile(m.config.KeyFile)
	if err == nil {
		passphrase := strings.TrimSpace(string(data))
		if passphrase != "" {
			return passphrase, true
		}
	} else if !os.IsNotExist(err) {
		m.logger.Warn("Keyfile unreadable, operating without at-rest encryption",
			zap.String("key_file", m.config.KeyFile),
			zap.Error(err),
		)
		return "", false
	}

	// First run: generate and persist a new random passphrase.
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		m.logger.Warn("Failed to generate passphrase, operating without at-rest encryption", zap.Error(err))
		return "", false
	}
	passphrase := hex.EncodeToString(raw)

	if err := writeRestricted(m.config.KeyFile, []byte(passphrase+"\n")); err != nil {
		// A passphrase that cannot be persisted would make the store
		// unrecoverable after restart.
		m.logger.Warn("Failed to persist keyfile, operating without at-rest encryption",
			zap.String("key_file", m.config.KeyFile),
			zap.Error(err),
		)
		return "", false
	}

	m.logger.Info("Generated new vault passphrase", zap.String("key_file", m.config.KeyFile))
	return passphrase, true
}

// DeriveKey derives the 256-bit symmetric key from a passphrase using
// Argon2id over the installation salt.
func (m *KeyManager) DeriveKey(passphrase string) []byte {
	salt := m.loadOrCreateSalt()
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
}

// loadOrCreateSalt returns the per-installation random salt, generating and
// persisting it on first run. If the salt cannot be persisted, a fixed
// constant salt is used instead of a fresh random one so that derivation
// stays deterministic across restarts.
func (m *KeyManager) loadOrCreateSalt() []byte {
	data, err := os.ReadFile(m.config.SaltFile)
	if err == nil && len(data) >= saltSize {
		return data[:saltSize]
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		m.logger.Warn("Failed to generate salt, falling back to constant salt", zap.Error(err))
		return fallbackSalt
	}

	if err := writeRestricted(m.config.SaltFile, salt); err != nil {
		m.logger.Warn("Failed to persist salt, falling back to constant salt",
			zap.String("salt_file", m.config.SaltFile),
			zap.Error(err),
		)
		return fallbackSalt
	}

	return salt
}

func writeRestricted(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
