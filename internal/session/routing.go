package session

import (
	"fmt"

	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/privacy"
)

// Route is a routing decision for one inbound text.
type Route string

// Possible routing outcomes.
const (
	RouteLocal           Route = "local"
	RouteCloud           Route = "cloud"
	RouteCloudAnonymized Route = "cloud_anonymized"
	RouteRefuse          Route = "refuse"
)

// Decide maps a detection result and the session's privacy mode to a routing
// decision, and records exactly one audit entry for it. The caller reports
// whether a local model is available.
func (m *Manager) Decide(sessionID, userRef string, result privacy.DetectionResult, localAvailable bool) Route {
	mode := m.Mode(sessionID)

	var (
		route  Route
		action audit.Action
		reason string
	)

	switch {
	case mode == ModeLocalOnly:
		if localAvailable {
			route, action = RouteLocal, audit.ActionRouteLocal
			reason = "privacy mode local-only"
		} else {
			route, action = RouteRefuse, audit.ActionRefuseNoLocal
			reason = "privacy mode local-only and no local model available"
		}

	case !result.HasSensitiveData:
		route, action = RouteCloud, audit.ActionRouteCloud
		reason = "no sensitive data detected"

	case localAvailable:
		route, action = RouteLocal, audit.ActionRouteLocal
		reason = "sensitive data detected, local model preferred"

	case mode == ModeCloudAllowed:
		route, action = RouteCloud, audit.ActionRouteCloud
		reason = "sensitive data detected, cloud processing allowed by privacy mode"

	default: // ModeCloudAnonymized
		route, action = RouteCloudAnonymized, audit.ActionRouteCloudAnonymized
		reason = fmt.Sprintf("sensitive data detected, anonymizing before cloud (%d spans)", len(result.Spans))
	}

	m.recorder.Record(audit.Entry{
		Action:        action,
		SessionRef:    sessionID,
		UserRef:       userRef,
		Reason:        reason,
		PiiMatchCount: len(result.Spans),
		PiiKinds:      result.Kinds(),
		PrivacyMode:   string(mode),
	})

	return route
}
