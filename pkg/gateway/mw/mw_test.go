package mw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hypecast-live/hypecast/pkg/gateway/apierror"
	"github.com/hypecast-live/hypecast/pkg/gateway/config"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if seen == "" || !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if got := rr.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header = %q, context = %q", got, seen)
	}
}

func TestRequestID_KeepsCallerProvidedID(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("X-Request-ID", "req_caller")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "req_caller" {
		t.Fatalf("header = %q, want req_caller", got)
	}
}

func TestRecover_PanicReturnsErrorEnvelope(t *testing.T) {
	h := RequestID(Recover(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var env apierror.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Type != apierror.ErrAPI {
		t.Fatalf("envelope = %+v", env)
	}
	if strings.Contains(env.Error.Message, "boom") {
		t.Fatalf("panic detail leaked: %q", env.Error.Message)
	}
}

func TestCORS_DisabledByDefault_NoHeaders(t *testing.T) {
	h := CORS(config.Config{CORSAllowedOrigins: map[string]struct{}{}}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS headers, got Access-Control-Allow-Origin=%q", got)
	}
}

func TestCORS_AllowlistedOrigin_AttachesHeaders(t *testing.T) {
	h := CORS(config.Config{CORSAllowedOrigins: map[string]struct{}{
		"http://localhost:3000": {},
	}}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin=%q", got)
	}
}

func TestCORS_PreflightDeniedForUnknownOrigin(t *testing.T) {
	h := CORS(config.Config{CORSAllowedOrigins: map[string]struct{}{
		"http://localhost:3000": {},
	}}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCORS_PreflightAllowed(t *testing.T) {
	h := CORS(config.Config{CORSAllowedOrigins: map[string]struct{}{
		"http://localhost:3000": {},
	}}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != corsAllowedMethods {
		t.Fatalf("Allow-Methods=%q", got)
	}
}

func TestAccessLog_PreservesStatus(t *testing.T) {
	h := AccessLog(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status=%d", rr.Code)
	}
}
