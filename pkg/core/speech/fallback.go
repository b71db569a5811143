package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/commentary"
	"github.com/hypecast-live/hypecast/pkg/core/hub"
)

// Fallback decorates a synthesis capability with three behaviors, applied to
// every call:
//
//  1. Record first: the utterance is tracked and its payload published to the
//     commentary hub before synthesis is attempted, so viewers get the text
//     feed even before audio exists.
//  2. Attempt synthesis with the original arguments.
//  3. Never propagate a synthesis error. On failure the error is logged and,
//     if step 1 produced no entry (unknown session), a scorer-computed
//     payload is published so the viewer still gets something. The caller
//     receives a nil audio result, never an error.
type Fallback struct {
	Tracker *commentary.Tracker
	Hub     *hub.Hub
	Logger  *slog.Logger

	// SessionID resolves the session the current utterance belongs to. An
	// empty return means the pipeline is running unbound.
	SessionID func() string

	// The wrapped capabilities. Either may be nil when the provider does not
	// expose that surface.
	Synth  Synthesizer
	Stream StreamSynthesizer

	mu       sync.Mutex
	lastText map[string]string
}

// Synthesize records the utterance, then invokes the wrapped batch
// capability. The returned audio is nil when synthesis failed or no
// capability is configured; err is always nil.
func (f *Fallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	sessionID, recorded := f.record(text)
	if f.Synth == nil {
		return nil, nil
	}
	audio, err := f.Synth.Synthesize(ctx, text)
	return f.finish(sessionID, text, recorded, audio, err, "synthesize")
}

// StreamAudio is the streaming entry point, wrapped identically. When the
// streaming call fails and carried no text of its own, the most recently
// recorded text for the session becomes the fallback payload.
func (f *Fallback) StreamAudio(ctx context.Context, text string) ([]byte, error) {
	sessionID, recorded := f.record(text)
	if f.Stream == nil {
		return nil, nil
	}
	audio, err := f.Stream.StreamAudio(ctx, text)
	return f.finish(sessionID, text, recorded, audio, err, "stream_audio")
}

func (f *Fallback) record(text string) (sessionID string, recorded bool) {
	if f.SessionID != nil {
		sessionID = f.SessionID()
	}
	f.logger().Info("speech synthesis requested", "session_id", sessionID, "text_len", len(text))
	if sessionID == "" || text == "" || f.Tracker == nil {
		return sessionID, false
	}
	entry := f.Tracker.Record(sessionID, text, time.Time{})
	if entry == nil {
		return sessionID, false
	}
	if f.Hub != nil {
		f.Hub.TryPublish(sessionID, commentary.PayloadFromEntry(entry))
	}
	f.mu.Lock()
	if f.lastText == nil {
		f.lastText = make(map[string]string)
	}
	f.lastText[sessionID] = text
	f.mu.Unlock()
	return sessionID, true
}

func (f *Fallback) finish(sessionID, text string, recorded bool, audio []byte, err error, op string) ([]byte, error) {
	if err == nil {
		if audio == nil {
			f.logger().Warn("speech synthesis produced no audio", "session_id", sessionID, "op", op)
		}
		return audio, nil
	}

	f.logger().Error("speech synthesis failed, degrading to text-only delivery",
		"session_id", sessionID, "op", op, "error", err)

	if sessionID != "" && !recorded && f.Hub != nil {
		fallbackText := text
		if fallbackText == "" {
			f.mu.Lock()
			fallbackText = f.lastText[sessionID]
			f.mu.Unlock()
		}
		if fallbackText != "" {
			energy := commentary.Score(fallbackText)
			f.Hub.TryPublish(sessionID, commentary.Payload{
				Text:        fallbackText,
				EnergyLevel: energy,
				IsHighlight: commentary.IsHighlight(energy),
			})
		}
	}
	return nil, nil
}

func (f *Fallback) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
