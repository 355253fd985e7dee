package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/cache"
	"github.com/lexops/privguard/internal/session"
	"github.com/lexops/privguard/internal/websocket"
	"go.uber.org/zap"
)

// Request payload size cap. Detection is linear in input length, so this
// bounds per-request work.
const maxBodyBytes = 1 << 20

type detectRequest struct {
	Text string `json:"text"`
}

type routeRequest struct {
	Text           string `json:"text"`
	SessionRef     string `json:"session_ref"`
	UserRef        string `json:"user_ref"`
	LocalAvailable bool   `json:"local_available"`
}

type anonymizeRequest struct {
	Text    string `json:"text"`
	UserRef string `json:"user_ref"`
}

type deanonymizeRequest struct {
	Text string `json:"text"`
}

type modeRequest struct {
	Mode    string `json:"mode"`
	UserRef string `json:"user_ref"`
	Reason  string `json:"reason"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// handleDetect runs detection on the submitted text and returns the
// metadata summary. The detected values themselves never leave the engine.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}

	summary := s.summarize(r, req.Text)
	writeJSON(w, http.StatusOK, summary)
}

// handleRoute makes a routing decision for one inbound text and broadcasts
// it to dashboard clients.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionRef == "" {
		writeError(w, http.StatusBadRequest, "session_ref is required")
		return
	}

	start := time.Now()
	result := s.detector.Detect(req.Text)
	route := s.sessions.Decide(req.SessionRef, req.UserRef, result, req.LocalAvailable)
	atomic.AddInt64(&s.totalDecisions, 1)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDecision,
		Timestamp: time.Now(),
		RequestID: requestIDFrom(r.Context()),
		Data: websocket.DecisionEvent{
			Action:        string(route),
			SessionRef:    req.SessionRef,
			PiiMatchCount: len(result.Spans),
			PiiKinds:      result.Kinds(),
			PrivacyMode:   string(s.sessions.Mode(req.SessionRef)),
			ProcessingMS:  float64(time.Since(start).Nanoseconds()) / 1e6,
		},
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"route":              route,
		"has_sensitive_data": result.HasSensitiveData,
		"pii_kinds":          result.Kinds(),
	})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req anonymizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	text, err := s.sessions.AnonymizeTurn(sessionID, req.UserRef, req.Text)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req deanonymizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	text, err := s.sessions.DeanonymizeTurn(sessionID, req.Text)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{
			"session_ref": sessionID,
			"mode":        string(s.sessions.Mode(sessionID)),
		})
		return
	}

	var req modeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !session.ValidMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "unknown privacy mode")
		return
	}
	if err := s.sessions.SetMode(sessionID, req.UserRef, session.Mode(req.Mode), req.Reason); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_ref": sessionID,
		"mode":        req.Mode,
	})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.sessions.Lock(sessionID, req.Reason); err != nil {
		s.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	s.sessions.Purge(sessionID, r.URL.Query().Get("reason"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	userRef := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_ref": userRef,
			"consent":  s.sessions.HasConsent(userRef),
		})
	case http.MethodPost:
		var req reasonRequest
		if !s.decode(w, r, &req) {
			return
		}
		s.sessions.RecordConsent(userRef, req.Reason)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		var req reasonRequest
		if !s.decode(w, r, &req) {
			return
		}
		s.sessions.RevokeConsent(userRef, req.Reason)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleErasure purges every scope owned by a user along with their consent
// record. This is the right-to-erasure entry point.
func (s *Server) handleErasure(w http.ResponseWriter, r *http.Request) {
	userRef := mux.Vars(r)["id"]
	var req reasonRequest
	if !s.decode(w, r, &req) {
		return
	}

	purged := s.sessions.Erase(userRef, req.Reason)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_ref":      userRef,
		"purged_scopes": purged,
	})
}

func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     audit.Action(q.Get("action")),
		SessionRef: q.Get("session_ref"),
		UserRef:    q.Get("user_ref"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}

	entries, err := s.recorder.Query(filter)
	if err != nil {
		s.logger.Error("Audit query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// summarize answers a detection request, going through the Redis cache when
// one is configured. Only the metadata summary is ever cached.
func (s *Server) summarize(r *http.Request, text string) cache.Summary {
	if s.cache != nil {
		if summary, ok := s.cache.Get(r.Context(), text); ok {
			return *summary
		}
	}
	summary := cache.SummaryOf(s.detector.Detect(text))
	if s.cache != nil {
		s.cache.Set(r.Context(), text, summary)
	}
	return summary
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrScopeLocked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrUnknownScope):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
