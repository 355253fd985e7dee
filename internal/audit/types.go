package audit

import (
	"time"

	"github.com/lexops/privguard/internal/privacy"
)

// Action represents the kind of privacy decision being recorded.
type Action string

// Every code path that makes a privacy-relevant decision records exactly one
// entry with one of these actions.
const (
	ActionRouteLocal           Action = "route_local"
	ActionRouteCloud           Action = "route_cloud"
	ActionRouteCloudAnonymized Action = "route_cloud_anonymized"
	ActionRefuseNoLocal        Action = "refuse_no_local"
	ActionAnonymize            Action = "anonymize"
	ActionSessionLock          Action = "session_lock"
	ActionSessionPurge         Action = "session_purge"
	ActionErasure              Action = "erasure"
	ActionConsentRecorded      Action = "consent_recorded"
	ActionConsentChecked       Action = "consent_checked"
	ActionConsentRevoked       Action = "consent_revoked"
	ActionPrivacyModeChanged   Action = "privacy_mode_changed"
)

// Entry is an immutable audit record of one privacy decision. It has no
// field that can carry a detected value: only counts, kinds, and
// operator-authored reasons are recorded.
type Entry struct {
	ID                 string         `json:"id" db:"id"`
	Action             Action         `json:"action" db:"action"`
	SessionRef         string         `json:"session_ref,omitempty" db:"session_ref"`
	UserRef            string         `json:"user_ref,omitempty" db:"user_ref"`
	CaseRef            string         `json:"case_ref,omitempty" db:"case_ref"`
	Reason             string         `json:"reason" db:"reason"`
	PiiMatchCount      int            `json:"pii_match_count,omitempty" db:"pii_match_count"`
	PiiKinds           []privacy.Kind `json:"pii_kinds,omitempty" db:"-"`
	AnonymizationCount int            `json:"anonymization_count,omitempty" db:"anonymization_count"`
	PrivacyMode        string         `json:"privacy_mode,omitempty" db:"privacy_mode"`
	Provider           string         `json:"provider,omitempty" db:"provider"`
	Timestamp          time.Time      `json:"timestamp" db:"timestamp"`
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	Action     Action    `json:"action,omitempty"`
	SessionRef string    `json:"session_ref,omitempty"`
	UserRef    string    `json:"user_ref,omitempty"`
	Since      time.Time `json:"since,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Matches reports whether an entry satisfies the filter.
func (f Filter) Matches(e Entry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.SessionRef != "" && e.SessionRef != f.SessionRef {
		return false
	}
	if f.UserRef != "" && e.UserRef != f.UserRef {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Store is the append-only persistence target for audit entries.
type Store interface {
	Append(entry Entry) error
	// Query returns matching entries newest first. The limit in the filter
	// is already clamped by the recorder.
	Query(filter Filter) ([]Entry, error)
	Close() error
}
