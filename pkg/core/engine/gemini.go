// Package engine adapts the Gemini Live API to the orchestrator's inference
// engine contract. This is the only file that touches the vendor SDK.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/hypecast-live/hypecast/pkg/core/agent"
)

const DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// Gemini drives a Gemini Live session: video frames and text turns go in,
// completed commentary utterances come out.
type Gemini struct {
	apiKey       string
	model        string
	instructions string
	logger       *slog.Logger

	mu         sync.Mutex
	client     *genai.Client
	session    *genai.Session
	utterances chan agent.Utterance
	done       chan struct{}
	closeOnce  sync.Once
}

type GeminiConfig struct {
	APIKey string
	Model  string
	// Instructions is the system prompt (the commentator persona).
	Instructions string
	Logger       *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        model,
		instructions: cfg.Instructions,
		logger:       logger,
		utterances:   make(chan agent.Utterance, 16),
		done:         make(chan struct{}),
	}
}

// Connect opens the live session and starts the receive loop. It must run
// before the transport join so no frames are lost.
func (g *Gemini) Connect(ctx context.Context) error {
	if g.apiKey == "" {
		return fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
	}
	if g.instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: g.instructions}},
		}
	}

	sess, err := client.Live.Connect(ctx, g.model, config)
	if err != nil {
		return fmt.Errorf("connect gemini live session: %w", err)
	}

	g.mu.Lock()
	g.client = client
	g.session = sess
	g.mu.Unlock()

	go g.receive(sess)
	return nil
}

// Utterances emits one event per completed model turn, in turn order.
func (g *Gemini) Utterances() <-chan agent.Utterance {
	return g.utterances
}

// SendPrompt issues a text turn, used as the seed prompt.
func (g *Gemini) SendPrompt(ctx context.Context, text string) error {
	g.mu.Lock()
	sess := g.session
	g.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("gemini session is not connected")
	}
	return sess.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}},
		TurnComplete: genai.Ptr(true),
	})
}

// SendVideoFrame pushes one encoded frame into the live session.
func (g *Gemini) SendVideoFrame(ctx context.Context, jpeg []byte) error {
	g.mu.Lock()
	sess := g.session
	g.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("gemini session is not connected")
	}
	return sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Video: &genai.Blob{MIMEType: "image/jpeg", Data: jpeg},
	})
}

func (g *Gemini) Close(ctx context.Context) error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		g.mu.Lock()
		sess := g.session
		g.session = nil
		g.mu.Unlock()
		if sess != nil {
			err = sess.Close()
		}
	})
	return err
}

// receive accumulates streamed text parts and emits one utterance per
// completed turn.
func (g *Gemini) receive(sess *genai.Session) {
	defer close(g.utterances)

	var turn strings.Builder
	for {
		select {
		case <-g.done:
			return
		default:
		}

		msg, err := sess.Receive()
		if err != nil {
			select {
			case <-g.done:
			default:
				g.logger.Warn("gemini live receive ended", "error", err)
			}
			return
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part != nil && part.Text != "" {
					turn.WriteString(part.Text)
				}
			}
		}
		if sc.TurnComplete {
			text := strings.TrimSpace(turn.String())
			turn.Reset()
			if text == "" {
				continue
			}
			select {
			case g.utterances <- agent.Utterance{Text: text}:
			case <-g.done:
				return
			}
		}
	}
}
