// Package speech wraps speech-synthesis capabilities so commentary text is
// always tracked and delivered to viewers, even when synthesis fails.
package speech

import "context"

// Synthesizer is the batch speech-synthesis capability: one utterance in,
// audio bytes out. Integrations declare which capabilities they implement
// instead of being probed at runtime.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// StreamSynthesizer is the push/stream delivery capability some providers
// expose alongside (or instead of) batch synthesis.
type StreamSynthesizer interface {
	StreamAudio(ctx context.Context, text string) ([]byte, error)
}
