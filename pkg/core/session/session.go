// Package session holds the authoritative model of a live broadcast session:
// its identity, lifecycle status, and the commentary/highlight data recorded
// against it.
package session

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a session. The intended progression is
// waiting -> live -> {processing -> completed | error}; the processing and
// later states are driven by the downstream reel pipeline.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusLive       Status = "live"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// CallIDPrefix is prepended to a session id to form the external call id.
const CallIDPrefix = "pickup-"

// DefaultCallType is the call type used for every broadcast call.
const DefaultCallType = "default"

// CommentaryEntry is one spoken (or attempted) commentary utterance.
type CommentaryEntry struct {
	Timestamp   float64 `json:"timestamp"` // seconds since Session.CreatedAt, >= 0
	Text        string  `json:"text"`
	EnergyLevel float64 `json:"energy_level"` // [0.0, 1.0]
	IsHighlight bool    `json:"is_highlight"`
}

// Highlight is a derived window of high-energy commentary. It is produced by
// the reel pipeline from runs of high-energy entries; it lives here because it
// is part of the session's read contract.
type Highlight struct {
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"` // > StartTime
	EnergyScore    float64 `json:"energy_score"`
	CommentaryText string  `json:"commentary_text"`
}

// Session is one live broadcast instance. The store owns the only instance;
// the orchestrator and tracker mutate it by reference so every holder sees
// the same state.
type Session struct {
	ID             string
	StreamCallID   string
	StreamCallType string
	Status         Status
	CreatedAt      time.Time
	EndedAt        *time.Time
	CommentaryLog  []CommentaryEntry
	Highlights     []Highlight
	ReelID         string
	ReelURL        string
}

// CallID derives the external call identifier for a session id.
func CallID(sessionID string) string {
	return CallIDPrefix + sessionID
}

// IDFromCallID strips the call prefix back off. The second return is false
// when the call id does not follow the expected pattern, in which case no
// session binding should occur.
func IDFromCallID(callID string) (string, bool) {
	id, ok := strings.CutPrefix(callID, CallIDPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
