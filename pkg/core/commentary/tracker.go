package commentary

import (
	"log/slog"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/session"
)

// Payload is the wire shape fanned out to commentary subscribers.
type Payload struct {
	Text        string  `json:"text"`
	EnergyLevel float64 `json:"energy_level"`
	IsHighlight bool    `json:"is_highlight"`
}

// PayloadFromEntry converts a recorded entry into its outbound payload.
func PayloadFromEntry(e *session.CommentaryEntry) Payload {
	return Payload{Text: e.Text, EnergyLevel: e.EnergyLevel, IsHighlight: e.IsHighlight}
}

// Tracker appends scored commentary entries to a session's log. Scoring is
// stateless; logging is stateful. One inference loop drives one session, so
// appends themselves are not locked.
type Tracker struct {
	store  session.Store
	logger *slog.Logger
}

func NewTracker(store session.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger}
}

// Record scores text and appends exactly one entry to the session's log,
// returning it. An unknown session id drops the text and returns nil: this is
// best-effort telemetry and must never block or fail the speech pipeline.
// A zero now means "current time".
func (t *Tracker) Record(sessionID, text string, now time.Time) *session.CommentaryEntry {
	sess, err := t.store.Get(sessionID)
	if err != nil {
		t.logger.Warn("commentary dropped, session unknown", "session_id", sessionID, "text", truncate(text, 60))
		return nil
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	// Clock skew between the producer and session creation can push elapsed
	// negative; clamp to keep timestamps monotone from zero.
	elapsed := now.Sub(sess.CreatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	energy := Score(text)
	entry := session.CommentaryEntry{
		Timestamp:   elapsed,
		Text:        text,
		EnergyLevel: energy,
		IsHighlight: IsHighlight(energy),
	}
	sess.CommentaryLog = append(sess.CommentaryLog, entry)

	t.logger.Info("commentary recorded",
		"session_id", sessionID,
		"energy", entry.EnergyLevel,
		"highlight", entry.IsHighlight,
		"text", truncate(entry.Text, 60),
	)
	return &sess.CommentaryLog[len(sess.CommentaryLog)-1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
