// Package hub is an in-memory publish/subscribe fan-out keyed by session id.
// One publisher feeds any number of live viewer connections through bounded
// mailboxes with a latest-wins overflow policy.
package hub

import "sync"

const (
	// DefaultCommentaryQueueSize is deep because commentary is sparse,
	// human-meaningful text; overflow here means a stalled subscriber.
	DefaultCommentaryQueueSize = 16
	// DefaultDetectionQueueSize keeps only the freshest snapshot. Detection
	// payloads refresh continuously; staleness is worse than loss.
	DefaultDetectionQueueSize = 1
)

// Subscription is one subscriber's bounded mailbox. It is created by
// Subscribe and torn down by Unsubscribe.
type Subscription struct {
	ch chan any
}

// C is the receive side of the mailbox. Payloads arrive in publish order;
// when the mailbox overflows, the oldest pending payload has been evicted.
func (s *Subscription) C() <-chan any {
	return s.ch
}

// Hub fans published payloads out to every subscriber of a session id.
// Subscriber-set membership is the only shared state and is guarded by one
// lock; delivery happens outside the lock against a snapshot so a slow or
// departing subscriber cannot stall or deadlock a publish.
type Hub struct {
	capacity int

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// New returns a Hub whose subscriber mailboxes hold up to capacity payloads.
func New(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 1
	}
	return &Hub{
		capacity: capacity,
		subs:     make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new mailbox for sessionID and returns it. Payloads
// published before the subscription are not replayed.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{ch: make(chan any, h.capacity)}
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from the session's subscriber set. It is idempotent:
// teardown can run after a disconnect already cleared the subscription. Empty
// topic entries are removed so the map does not leak session ids.
func (h *Hub) Unsubscribe(sessionID string, sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}

// Publish delivers payload to every current subscriber of sessionID. A full
// mailbox evicts its oldest pending payload first (latest wins); Publish never
// blocks on a subscriber. Returns how many mailboxes accepted the payload.
func (h *Hub) Publish(sessionID string, payload any) int {
	h.mu.Lock()
	snapshot := make([]*Subscription, 0, len(h.subs[sessionID]))
	for sub := range h.subs[sessionID] {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	delivered := 0
	for _, sub := range snapshot {
		if sub.offer(payload) {
			delivered++
		}
	}
	return delivered
}

// TryPublish is the fire-and-forget entry point for callers outside the
// delivery path, e.g. a speech-synthesis callback. A payload with no
// subscribers to accept it is silently discarded; this is best-effort
// delivery, not durability.
func (h *Hub) TryPublish(sessionID string, payload any) {
	h.Publish(sessionID, payload)
}

func (s *Subscription) offer(payload any) bool {
	select {
	case s.ch <- payload:
		return true
	default:
	}
	// Mailbox full: evict the oldest pending payload, then try once more.
	// If a concurrent consumer races us between the two steps, drop silently.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}
