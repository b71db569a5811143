package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hypecast-live/hypecast/pkg/gateway/config"
	"github.com/hypecast-live/hypecast/pkg/gateway/lifecycle"
)

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Body.String() != "ok\n" {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestReadyz_ReportsMissingCredentialsButStaysReady(t *testing.T) {
	h := ReadyHandler{Config: config.Config{}, Lifecycle: &lifecycle.Lifecycle{}}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OK {
		t.Fatal("ok=true with missing credentials")
	}
	if len(resp.Issues) == 0 {
		t.Fatal("expected issues")
	}
}

func TestReadyz_DrainingIs503(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	h := ReadyHandler{Config: config.Config{}, Lifecycle: lc}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}
