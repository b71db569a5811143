// Package blob stores durable session artifacts (raw capture video, reels).
// Objects are namespaced by session id: sessions/{id}/... and
// reels/{reel_id}.mp4.
package blob

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultBucket = "hypecast-media"
	// DefaultReelURLTTL keeps shared reel links alive for two days.
	DefaultReelURLTTL = 48 * time.Hour
)

// Store is the durable artifact store contract.
type Store interface {
	Upload(ctx context.Context, object string, data []byte, contentType string) error
	SignedURL(object string, ttl time.Duration) (string, error)
}

// RawVideoObject is the object path for a session's raw capture.
func RawVideoObject(sessionID string) string {
	return fmt.Sprintf("sessions/%s/raw.webm", sessionID)
}

// ReelObject is the object path for a rendered reel.
func ReelObject(reelID string) string {
	return fmt.Sprintf("reels/%s.mp4", reelID)
}
