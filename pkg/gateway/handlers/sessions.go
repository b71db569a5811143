// Package handlers holds the HTTP and WebSocket endpoint implementations.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/gateway/apierror"
	"github.com/hypecast-live/hypecast/pkg/gateway/lifecycle"
	"github.com/hypecast-live/hypecast/pkg/gateway/mw"
	"github.com/hypecast-live/hypecast/pkg/stream"
)

const (
	RoleCamera    = "camera"
	RoleSpectator = "spectator"

	// PlaceholderToken is returned from session creation when Stream
	// credentials are absent so the frontend flow still works locally.
	PlaceholderToken = "placeholder"
)

type sessionCreateResponse struct {
	SessionID    string `json:"session_id"`
	StreamCallID string `json:"stream_call_id"`
	StreamToken  string `json:"stream_token"`
	JoinURL      string `json:"join_url"`
}

type sessionTokenResponse struct {
	StreamToken string `json:"stream_token"`
	UserID      string `json:"user_id"`
	CallID      string `json:"call_id"`
}

type sessionReadResponse struct {
	Status  session.Status `json:"status"`
	ReelID  string         `json:"reel_id,omitempty"`
	ReelURL string         `json:"reel_url,omitempty"`
}

// Sessions serves the session REST surface. StartRun, when set, is invoked
// with the new call id after a session is created; the server wires it to the
// agent orchestrator.
type Sessions struct {
	Store     session.Store
	Tokens    *stream.TokenIssuer
	Lifecycle *lifecycle.Lifecycle
	Logger    *slog.Logger
	StartRun  func(callID string)
}

// Create handles POST /api/sessions.
func (h *Sessions) Create(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if h.Lifecycle.IsDraining() {
		apierror.Write(w, &apierror.Error{Type: apierror.ErrUnavailable, Message: "server is draining"}, reqID)
		return
	}

	id, err := session.NewID()
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}
	sess, err := h.Store.Create(id)
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	// Missing Stream credentials degrade to a placeholder token rather than
	// failing session creation.
	token, err := h.Tokens.UserToken(RoleCamera+"-"+id, time.Now().UTC())
	if err != nil {
		token = PlaceholderToken
	}

	if h.StartRun != nil {
		h.StartRun(sess.StreamCallID)
	}

	h.log().Info("session created", "request_id", reqID, "session_id", id, "call_id", sess.StreamCallID)
	writeJSON(w, http.StatusCreated, sessionCreateResponse{
		SessionID:    id,
		StreamCallID: sess.StreamCallID,
		StreamToken:  token,
		JoinURL:      "/game/" + id,
	})
}

// Get handles GET /api/sessions/{id}. The frontend polls it to track the
// waiting -> live -> completed progression.
func (h *Sessions) Get(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sess, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, sessionReadResponse{
		Status:  sess.Status,
		ReelID:  sess.ReelID,
		ReelURL: sess.ReelURL,
	})
}

// Token handles GET /api/sessions/{id}/token?role=camera|spectator.
func (h *Sessions) Token(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	role := r.URL.Query().Get("role")
	if role != RoleCamera && role != RoleSpectator {
		apierror.Write(w, apierror.Invalid("role must be camera or spectator", "role"), reqID)
		return
	}
	sess, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	userID := role + "-" + sess.ID
	token, err := h.Tokens.UserToken(userID, time.Now().UTC())
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}
	writeJSON(w, http.StatusOK, sessionTokenResponse{
		StreamToken: token,
		UserID:      userID,
		CallID:      sess.StreamCallID,
	})
}

func (h *Sessions) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
