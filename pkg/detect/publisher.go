package detect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/hub"
)

// Publisher runs frames through a Model, filters the results, and publishes
// one payload per frame to the session's detection topic. It also caches the
// latest payload so the commentary engine can fold structured labels into
// its context.
type Publisher struct {
	Model  Model
	Filter Filter
	Hub    *hub.Hub
	Logger *slog.Logger

	mu     sync.Mutex
	latest map[string]Payload
	now    func() time.Time
}

func NewPublisher(model Model, h *hub.Hub, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		Model:  model,
		Filter: DefaultFilter(),
		Hub:    h,
		Logger: logger,
		latest: make(map[string]Payload),
		now:    time.Now,
	}
}

// ProcessFrame analyzes one frame for a session. Model errors are logged and
// swallowed; a bad frame must not take down the stream.
func (p *Publisher) ProcessFrame(ctx context.Context, sessionID string, frame Frame) {
	if sessionID == "" || p.Model == nil {
		return
	}
	raw, err := p.Model.Predict(ctx, frame)
	if err != nil {
		p.Logger.Warn("detection predict failed", "session_id", sessionID, "err", err)
		return
	}
	payload := BuildPayload(frame, p.Filter.Apply(raw), p.now())

	p.mu.Lock()
	p.latest[sessionID] = payload
	p.mu.Unlock()

	p.Hub.TryPublish(sessionID, payload)
}

// Latest returns the most recent payload published for a session, if any.
func (p *Publisher) Latest(sessionID string) (Payload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, ok := p.latest[sessionID]
	return payload, ok
}

// Forget drops the cached payload for a session after it ends.
func (p *Publisher) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.latest, sessionID)
}
