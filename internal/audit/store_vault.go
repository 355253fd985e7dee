package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lexops/privguard/internal/vault"
)

// VaultStore persists the audit trail through the encrypted blob store. The
// whole trail is held in memory and rewritten as one container per append,
// which keeps the on-disk form opaque at the cost of write amplification.
// Suitable for the single-seat installs the vault targets; high-volume
// deployments should use the postgres backend instead.
type VaultStore struct {
	blob *vault.Store
	path string

	mu      sync.Mutex
	entries []Entry
}

// NewVaultStore opens the encrypted audit trail at path, loading any
// existing entries.
func NewVaultStore(blob *vault.Store, path string) (*VaultStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	s := &VaultStore{blob: blob, path: path}

	data, err := blob.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}

	scanner := bytes.Split(data, []byte{'\n'})
	for _, line := range scanner {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			// Torn or corrupt line, skip it like the plain file store does.
			continue
		}
		s.entries = append(s.entries, entry)
	}
	return s, nil
}

// Append adds the entry and rewrites the encrypted container.
func (s *VaultStore) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range s.entries {
		if err := enc.Encode(&s.entries[i]); err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}
	}
	if err := s.blob.Save(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to persist audit trail: %w", err)
	}
	return nil
}

// Query returns matching entries newest first.
func (s *VaultStore) Query(filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
			if filter.Limit > 0 && len(matched) >= filter.Limit {
				break
			}
		}
	}
	return matched, nil
}

// Close is a no-op; every append already persists the trail.
func (s *VaultStore) Close() error {
	return nil
}
