package websocket

import (
	"time"

	"github.com/lexops/privguard/internal/privacy"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDecision represents a privacy decision event
	EventTypeDecision EventType = "decision"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DecisionEvent is the dashboard projection of a privacy decision. Like the
// audit trail it carries kinds and counts only, never detected values.
type DecisionEvent struct {
	Action        string         `json:"action"`
	SessionRef    string         `json:"session_ref,omitempty"`
	PiiMatchCount int            `json:"pii_match_count"`
	PiiKinds      []privacy.Kind `json:"pii_kinds,omitempty"`
	PrivacyMode   string         `json:"privacy_mode,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	ProcessingMS  float64        `json:"processing_ms,omitempty"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDecisions   int64  `json:"total_decisions"`
	ActiveScopes     int    `json:"active_scopes"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Send        chan Event
	ConnectedAt time.Time
	IP          string
}
