package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lexops/privguard/internal/audit"
	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
	"github.com/lexops/privguard/internal/session"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Security.RateLimit.Enabled = false
	cfg.Cache.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log := &logger.Logger{Logger: zap.NewNop()}
	detector := privacy.New(cfg.Privacy, log)

	store, err := audit.NewFileStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatalf("failed to open audit store: %v", err)
	}
	recorder := audit.NewRecorder(store, log)
	t.Cleanup(func() { recorder.Close() })

	sessions := session.NewManager(detector, recorder, cfg.Session, log)
	t.Cleanup(sessions.Stop)

	srv, err := New(cfg, log, detector, sessions, recorder, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("Health", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "healthy") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("Info", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/info", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if payload["name"] != "privguard" {
			t.Errorf("unexpected name: %v", payload["name"])
		}
	})
}

func TestDetectEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/detect", map[string]string{
		"text": "Klient: Jan Kowalski, PESEL 92010112343",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var summary struct {
		HasSensitiveData bool     `json:"has_sensitive_data"`
		Kinds            []string `json:"kinds"`
		SpanCount        int      `json:"span_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !summary.HasSensitiveData || summary.SpanCount != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// The response carries classification only, never the detected values.
	for _, forbidden := range []string{"Kowalski", "92010112343"} {
		if strings.Contains(rec.Body.String(), forbidden) {
			t.Errorf("raw value %q leaked into response", forbidden)
		}
	}
}

func TestDetectRejectsBadBody(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAnonymizeRoundTripOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)

	original := "Klient: Jan Kowalski, PESEL 92010112343"
	rec := doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/anonymize", map[string]string{
		"text":     original,
		"user_ref": "u1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var anonResp struct {
		Text string `json:"text"`
	}
	json.Unmarshal(rec.Body.Bytes(), &anonResp)
	if strings.Contains(anonResp.Text, "Kowalski") {
		t.Fatalf("raw value in anonymized text: %q", anonResp.Text)
	}

	rec = doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/deanonymize", map[string]string{
		"text": anonResp.Text,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var deResp struct {
		Text string `json:"text"`
	}
	json.Unmarshal(rec.Body.Bytes(), &deResp)
	if deResp.Text != original {
		t.Fatalf("round trip mismatch: %q", deResp.Text)
	}
}

func TestDeanonymizeUnknownSession(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/sessions/missing/deanonymize", map[string]string{
		"text": "[OSOBA_1]",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/anonymize", map[string]string{
		"text": "email jan@firma.pl", "user_ref": "u1",
	})

	t.Run("GetMode", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/sessions/s1/mode", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cloud-anonymized") {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("PutMode", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, "/v1/sessions/s1/mode", map[string]string{
			"mode": "local-only", "user_ref": "u1", "reason": "client request",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("PutInvalidMode", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, "/v1/sessions/s1/mode", map[string]string{
			"mode": "hybrid",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("LockThenConflict", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/lock", map[string]string{
			"reason": "incident",
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		rec = doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/anonymize", map[string]string{
			"text": "x", "user_ref": "u1",
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("Purge", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodDelete, "/v1/sessions/s1?reason=cleanup", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestConsentAndErasureEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/users/u1/consent", map[string]string{"reason": "form"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/v1/users/u1/consent", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "true") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/anonymize", map[string]string{
		"text": "email jan@firma.pl", "user_ref": "u1",
	})

	rec = doJSON(t, srv, http.MethodPost, "/v1/users/u1/erasure", map[string]string{"reason": "art. 17"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var erasure struct {
		PurgedScopes int `json:"purged_scopes"`
	}
	json.Unmarshal(rec.Body.Bytes(), &erasure)
	if erasure.PurgedScopes != 1 {
		t.Fatalf("expected 1 purged scope, got %d", erasure.PurgedScopes)
	}
}

func TestRouteEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/v1/route", map[string]interface{}{
		"text":            "PESEL 92010112343",
		"session_ref":     "s1",
		"user_ref":        "u1",
		"local_available": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var routeResp struct {
		Route string `json:"route"`
	}
	json.Unmarshal(rec.Body.Bytes(), &routeResp)
	if routeResp.Route != string(session.RouteCloudAnonymized) {
		t.Fatalf("unexpected route: %s", routeResp.Route)
	}

	t.Run("MissingSessionRef", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/v1/route", map[string]string{"text": "x"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestAuditQueryEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	for i := 0; i < 3; i++ {
		doJSON(t, srv, http.MethodPost, "/v1/sessions/s1/anonymize", map[string]string{
			"text": fmt.Sprintf("email u%d@firma.pl", i), "user_ref": "u1",
		})
	}

	rec := doJSON(t, srv, http.MethodGet, "/v1/audit?action=anonymize&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count   int           `json:"count"`
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 entries, got %d", resp.Count)
	}

	t.Run("BadSince", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/audit?since=yesterday", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("BadLimit", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/v1/audit?limit=abc", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.RateLimit.Enabled = true
		cfg.Security.RateLimit.RequestsPerMin = 60
		cfg.Security.RateLimit.Burst = 2
	})

	body := map[string]string{"text": "x"}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/v1/detect", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doJSON(t, srv, http.MethodPost, "/v1/detect", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttling, status = %d", rec.Code)
	}
}
