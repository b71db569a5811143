package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hypecast-live/hypecast/pkg/blob"
	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/gateway/apierror"
	"github.com/hypecast-live/hypecast/pkg/gateway/mw"
)

// maxUploadBytes bounds reel and raw capture uploads.
const maxUploadBytes = 256 << 20

// Archiver persists finished sessions. Satisfied by the reel archive.
type Archiver interface {
	SaveSession(ctx context.Context, sess *session.Session) error
}

type reelUploadResponse struct {
	ReelID  string         `json:"reel_id"`
	ReelURL string         `json:"reel_url"`
	Status  session.Status `json:"status"`
}

type recordingUploadResponse struct {
	Object string `json:"object"`
}

// Reels accepts media uploads for a session: the rendered reel from the
// processing pipeline and the raw capture from the camera client. Both land
// in the blob store; the reel upload also completes the session.
type Reels struct {
	Store   session.Store
	Blob    blob.Store
	Archive Archiver
	URLTTL  time.Duration
	Logger  *slog.Logger
}

// UploadReel handles POST /api/sessions/{id}/reel. It stores the rendered
// reel, mints a shareable signed URL, and moves the session to completed.
func (h *Reels) UploadReel(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sess, data, ok := h.accept(w, r, reqID)
	if !ok {
		return
	}

	object := blob.ReelObject(sess.ID)
	if err := h.Blob.Upload(r.Context(), object, data, contentTypeOr(r, "video/mp4")); err != nil {
		apierror.Write(w, err, reqID)
		return
	}
	ttl := h.URLTTL
	if ttl <= 0 {
		ttl = blob.DefaultReelURLTTL
	}
	url, err := h.Blob.SignedURL(object, ttl)
	if err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	sess.ReelID = sess.ID
	sess.ReelURL = url
	if err := h.Store.SetStatus(sess.ID, session.StatusCompleted); err != nil {
		h.log().Warn("status update failed after reel upload", "session_id", sess.ID, "error", err)
	}
	if h.Archive != nil {
		saveCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := h.Archive.SaveSession(saveCtx, sess); err != nil {
			h.log().Error("archiving reel failed", "session_id", sess.ID, "error", err)
		}
	}

	h.log().Info("reel stored", "request_id", reqID, "session_id", sess.ID, "bytes", len(data))
	writeJSON(w, http.StatusOK, reelUploadResponse{
		ReelID:  sess.ReelID,
		ReelURL: sess.ReelURL,
		Status:  session.StatusCompleted,
	})
}

// UploadRecording handles POST /api/sessions/{id}/recording, storing the raw
// capture the reel job cuts from.
func (h *Reels) UploadRecording(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	sess, data, ok := h.accept(w, r, reqID)
	if !ok {
		return
	}

	object := blob.RawVideoObject(sess.ID)
	if err := h.Blob.Upload(r.Context(), object, data, contentTypeOr(r, "video/webm")); err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	h.log().Info("raw capture stored", "request_id", reqID, "session_id", sess.ID, "bytes", len(data))
	writeJSON(w, http.StatusOK, recordingUploadResponse{Object: object})
}

// accept resolves the session and reads the upload body, writing the error
// response itself when either fails.
func (h *Reels) accept(w http.ResponseWriter, r *http.Request, reqID string) (*session.Session, []byte, bool) {
	sess, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		apierror.Write(w, err, reqID)
		return nil, nil, false
	}
	if h.Blob == nil {
		apierror.Write(w, &apierror.Error{Type: apierror.ErrUnavailable, Message: "media storage not configured"}, reqID)
		return nil, nil, false
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		apierror.Write(w, apierror.Invalid("could not read upload body", ""), reqID)
		return nil, nil, false
	}
	if len(data) == 0 {
		apierror.Write(w, apierror.Invalid("upload body is empty", ""), reqID)
		return nil, nil, false
	}
	if len(data) > maxUploadBytes {
		apierror.Write(w, apierror.Invalid("upload exceeds the size limit", ""), reqID)
		return nil, nil, false
	}
	return sess, data, true
}

func (h *Reels) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func contentTypeOr(r *http.Request, fallback string) string {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return fallback
}
