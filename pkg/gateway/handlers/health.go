package handlers

import (
	"net/http"

	"github.com/hypecast-live/hypecast/pkg/gateway/config"
	"github.com/hypecast-live/hypecast/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports readiness. Missing vendor credentials are listed as
// issues but do not fail readiness: the server stays up with degraded
// pipelines. Draining does fail readiness so load balancers stop routing.
type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	draining := h.Lifecycle.IsDraining()
	issues := h.Config.Issues()

	status := http.StatusOK
	if draining {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResp{
		OK:       !draining && len(issues) == 0,
		Draining: draining,
		Issues:   issues,
	})
}
