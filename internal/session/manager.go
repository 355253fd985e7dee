// Package session owns the lifecycle of anonymization scopes. Every scope is
// exclusively bound to one session reference; the manager is the only place
// scopes are created and the only place they are discarded, which keeps
// cross-session mapping reuse structurally impossible for callers.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lexops/privguard/internal/anonymizer"
	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
	"go.uber.org/zap"
)

// Mode is the per-session privacy mode.
type Mode string

// Privacy modes, most to least restrictive.
const (
	ModeLocalOnly       Mode = "local-only"
	ModeCloudAnonymized Mode = "cloud-anonymized"
	ModeCloudAllowed    Mode = "cloud-allowed"
)

// ValidMode reports whether s names a known privacy mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeLocalOnly, ModeCloudAnonymized, ModeCloudAllowed:
		return true
	}
	return false
}

// Scope access errors.
var (
	ErrUnknownScope = errors.New("no active scope for session")
	ErrScopeLocked  = errors.New("session scope is locked")
)

type scope struct {
	anon     *anonymizer.Anonymizer
	mode     Mode
	userRef  string
	locked   bool
	lastUsed time.Time
}

// Manager tracks active anonymization scopes and the per-session privacy
// mode, and records every lifecycle decision in the audit trail.
type Manager struct {
	detector *privacy.Detector
	recorder *audit.Recorder
	config   config.SessionConfig
	logger   *logger.Logger

	mu      sync.Mutex
	scopes  map[string]*scope
	consent map[string]bool // keyed by user reference

	stop chan struct{}
	once sync.Once
}

// NewManager creates a scope manager.
func NewManager(detector *privacy.Detector, recorder *audit.Recorder, cfg config.SessionConfig, log *logger.Logger) *Manager {
	return &Manager{
		detector: detector,
		recorder: recorder,
		config:   cfg,
		logger:   log,
		scopes:   make(map[string]*scope),
		consent:  make(map[string]bool),
		stop:     make(chan struct{}),
	}
}

// Run starts the idle-scope sweeper. Blocks until Stop is called.
func (m *Manager) Run() {
	interval := m.config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// Stop terminates the sweeper.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// AnonymizeTurn runs one anonymization turn inside the session's scope and
// records the decision. The scope is created on first use.
func (m *Manager) AnonymizeTurn(sessionID, userRef, text string) (string, error) {
	m.mu.Lock()
	sc, err := m.scopeLocked(sessionID, userRef)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	before := sc.anon.MappingCount()
	out := sc.anon.Anonymize(text)
	added := sc.anon.MappingCount() - before
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:             audit.ActionAnonymize,
		SessionRef:         sessionID,
		UserRef:            userRef,
		Reason:             "outbound text anonymized before leaving trust boundary",
		AnonymizationCount: added,
	})

	return out, nil
}

// DeanonymizeTurn restores known placeholders using the session's scope.
// Unknown sessions and locked scopes are errors; restoration itself is
// best-effort.
func (m *Manager) DeanonymizeTurn(sessionID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, ok := m.scopes[sessionID]
	if !ok {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrUnknownScope)
	}
	if sc.locked {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrScopeLocked)
	}
	sc.lastUsed = time.Now()
	return sc.anon.Deanonymize(text), nil
}

// Mode returns the privacy mode for a session, falling back to the
// configured default for sessions without a scope.
func (m *Manager) Mode(sessionID string) Mode {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sc, ok := m.scopes[sessionID]; ok {
		return sc.mode
	}
	return Mode(m.config.DefaultMode)
}

// SetMode changes a session's privacy mode and records the change.
func (m *Manager) SetMode(sessionID, userRef string, mode Mode, reason string) error {
	if !ValidMode(string(mode)) {
		return fmt.Errorf("invalid privacy mode: %s", mode)
	}

	m.mu.Lock()
	sc, err := m.scopeLocked(sessionID, userRef)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	sc.mode = mode
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:      audit.ActionPrivacyModeChanged,
		SessionRef:  sessionID,
		UserRef:     userRef,
		Reason:      reason,
		PrivacyMode: string(mode),
	})
	return nil
}

// Lock freezes a session's scope: no further anonymization or restoration
// until it is purged.
func (m *Manager) Lock(sessionID, reason string) error {
	m.mu.Lock()
	sc, ok := m.scopes[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionID, ErrUnknownScope)
	}
	sc.locked = true
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:     audit.ActionSessionLock,
		SessionRef: sessionID,
		Reason:     reason,
	})
	return nil
}

// Purge discards a session's scope together with its value-to-placeholder
// mapping.
func (m *Manager) Purge(sessionID, reason string) {
	m.mu.Lock()
	_, existed := m.scopes[sessionID]
	delete(m.scopes, sessionID)
	m.mu.Unlock()

	if !existed {
		return
	}

	m.recorder.Record(audit.Entry{
		Action:     audit.ActionSessionPurge,
		SessionRef: sessionID,
		Reason:     reason,
	})
}

// Erase executes a right-to-erasure request: every scope belonging to the
// user is discarded and the execution is recorded.
func (m *Manager) Erase(userRef, reason string) int {
	m.mu.Lock()
	var purged int
	for id, sc := range m.scopes {
		if sc.userRef == userRef {
			delete(m.scopes, id)
			purged++
		}
	}
	delete(m.consent, userRef)
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:  audit.ActionErasure,
		UserRef: userRef,
		Reason:  reason,
	})
	return purged
}

// RecordConsent stores a user's cloud-processing consent.
func (m *Manager) RecordConsent(userRef, reason string) {
	m.mu.Lock()
	m.consent[userRef] = true
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:  audit.ActionConsentRecorded,
		UserRef: userRef,
		Reason:  reason,
	})
}

// RevokeConsent withdraws a user's cloud-processing consent.
func (m *Manager) RevokeConsent(userRef, reason string) {
	m.mu.Lock()
	delete(m.consent, userRef)
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:  audit.ActionConsentRevoked,
		UserRef: userRef,
		Reason:  reason,
	})
}

// HasConsent checks (and audits the check of) a user's consent.
func (m *Manager) HasConsent(userRef string) bool {
	m.mu.Lock()
	granted := m.consent[userRef]
	m.mu.Unlock()

	m.recorder.Record(audit.Entry{
		Action:  audit.ActionConsentChecked,
		UserRef: userRef,
		Reason:  "consent state checked before routing",
	})
	return granted
}

// ActiveScopes returns the number of live scopes, for diagnostics.
func (m *Manager) ActiveScopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes)
}

// scopeLocked returns the scope for a session, creating it on first use.
// Callers hold m.mu.
func (m *Manager) scopeLocked(sessionID, userRef string) (*scope, error) {
	sc, ok := m.scopes[sessionID]
	if ok {
		if sc.locked {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrScopeLocked)
		}
		sc.lastUsed = time.Now()
		return sc, nil
	}

	sc = &scope{
		anon:     anonymizer.New(m.detector),
		mode:     Mode(m.config.DefaultMode),
		userRef:  userRef,
		lastUsed: time.Now(),
	}
	m.scopes[sessionID] = sc

	m.logger.Debug("Anonymization scope created", zap.String("session_id", sessionID))
	return sc, nil
}

// sweep purges scopes idle past the configured TTL.
func (m *Manager) sweep() {
	ttl := m.config.IdleTTL
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var expired []string
	for id, sc := range m.scopes {
		if sc.lastUsed.Before(cutoff) {
			delete(m.scopes, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.recorder.Record(audit.Entry{
			Action:     audit.ActionSessionPurge,
			SessionRef: id,
			Reason:     "idle scope expired",
		})
	}
}
