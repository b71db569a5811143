package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/detect"
	"github.com/hypecast-live/hypecast/pkg/gateway/apierror"
	"github.com/hypecast-live/hypecast/pkg/gateway/mw"
)

// maxFrameBytes bounds one ingested JPEG frame.
const maxFrameBytes = 8 << 20

type frameIngestResponse struct {
	Forwarded bool `json:"forwarded"`
	Analyzed  bool `json:"analyzed"`
}

// Frames ingests camera frames for a session. Each frame is forwarded to the
// session's bound inference engine and, when a detection model is configured,
// analyzed and published to the detection feed.
type Frames struct {
	Store session.Store
	// Forward hands the frame to the live agent run. The bool reports whether
	// a bound engine accepted it.
	Forward   func(ctx context.Context, sessionID string, jpeg []byte) (bool, error)
	Publisher *detect.Publisher
	Logger    *slog.Logger
}

func (h *Frames) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	id := r.PathValue("id")
	if _, err := h.Store.Get(id); err != nil {
		apierror.Write(w, err, reqID)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		apierror.Write(w, apierror.Invalid("could not read frame body", ""), reqID)
		return
	}
	if len(data) == 0 {
		apierror.Write(w, apierror.Invalid("frame body is empty", ""), reqID)
		return
	}
	if len(data) > maxFrameBytes {
		apierror.Write(w, apierror.Invalid("frame exceeds the size limit", ""), reqID)
		return
	}

	forwarded := false
	if h.Forward != nil {
		ok, err := h.Forward(r.Context(), id, data)
		if err != nil {
			// A frame the engine refuses must not fail the ingest; the camera
			// keeps streaming regardless.
			h.log().Warn("frame forward failed", "session_id", id, "error", err)
		}
		forwarded = ok && err == nil
	}

	if h.Publisher != nil {
		h.Publisher.ProcessFrame(r.Context(), id, detect.Frame{
			Data:   data,
			Width:  intQuery(r, "width"),
			Height: intQuery(r, "height"),
		})
	}

	writeJSON(w, http.StatusAccepted, frameIngestResponse{
		Forwarded: forwarded,
		Analyzed:  h.Publisher != nil,
	})
}

func (h *Frames) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func intQuery(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
