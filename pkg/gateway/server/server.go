// Package server assembles the HTTP surface and the live commentary
// pipeline behind it.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hypecast-live/hypecast/pkg/blob"
	"github.com/hypecast-live/hypecast/pkg/core/agent"
	"github.com/hypecast-live/hypecast/pkg/core/commentary"
	"github.com/hypecast-live/hypecast/pkg/core/hub"
	"github.com/hypecast-live/hypecast/pkg/core/session"
	"github.com/hypecast-live/hypecast/pkg/core/speech"
	"github.com/hypecast-live/hypecast/pkg/detect"
	"github.com/hypecast-live/hypecast/pkg/gateway/config"
	"github.com/hypecast-live/hypecast/pkg/gateway/handlers"
	"github.com/hypecast-live/hypecast/pkg/gateway/lifecycle"
	"github.com/hypecast-live/hypecast/pkg/gateway/mw"
	"github.com/hypecast-live/hypecast/pkg/reel"
	"github.com/hypecast-live/hypecast/pkg/stream"
)

// Deps are the pipeline collaborators the server does not construct itself,
// so main and tests can inject real or fake implementations.
type Deps struct {
	Store     session.Store
	Tokens    *stream.TokenIssuer
	Transport agent.Transport
	NewEngine func() agent.Engine
	// Synth and StreamSynth are the raw speech capabilities; the server wraps
	// them per session with the record-then-fallback decorator.
	Synth       speech.Synthesizer
	StreamSynth speech.StreamSynthesizer
	Archive     *reel.Archive
	// Blob enables media uploads (raw capture, rendered reels). Nil disables
	// those routes with 503.
	Blob blob.Store
	// Detector, when set, analyzes ingested frames and feeds the detection
	// hub. Inference itself runs behind this interface.
	Detector detect.Model
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps

	lifecycle     *lifecycle.Lifecycle
	commentaryHub *hub.Hub
	detectionHub  *hub.Hub
	tracker       *commentary.Tracker
	orchestrator  *agent.Orchestrator
	detections    *detect.Publisher

	mu        sync.Mutex
	fallbacks map[string]*speech.Fallback
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Store == nil {
		deps.Store = session.NewMemoryStore()
	}
	if deps.Tokens == nil {
		deps.Tokens = &stream.TokenIssuer{
			APIKey:    cfg.StreamAPIKey,
			APISecret: cfg.StreamAPISecret,
			TTL:       cfg.TokenTTL,
			Skew:      cfg.TokenSkew,
		}
	}

	s := &Server{
		cfg:           cfg,
		logger:        logger,
		mux:           http.NewServeMux(),
		deps:          deps,
		lifecycle:     &lifecycle.Lifecycle{},
		commentaryHub: hub.New(cfg.CommentaryQueueSize),
		detectionHub:  hub.New(cfg.DetectionQueueSize),
		fallbacks:     make(map[string]*speech.Fallback),
	}
	s.tracker = commentary.NewTracker(deps.Store, logger)
	if deps.Detector != nil {
		s.detections = detect.NewPublisher(deps.Detector, s.detectionHub, logger)
	}

	if deps.Transport != nil && deps.NewEngine != nil {
		s.orchestrator = agent.New(deps.Store, deps.Transport, deps.NewEngine, s.speak, agent.Config{
			SeedPrompt:         SeedPrompt,
			Warmup:             cfg.Warmup,
			MaxSessionDuration: cfg.MaxSessionDuration,
			MaxConcurrent:      cfg.MaxConcurrentSessions,
		}, logger)
		s.orchestrator.OnEnded = s.onSessionEnded
	}

	s.routes()
	return s
}

// SeedPrompt opens the first commentary turn once the agent is in the call.
const SeedPrompt = "You're live. Give viewers a quick read of the court and keep the energy up."

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})

	sessions := &handlers.Sessions{
		Store:     s.deps.Store,
		Tokens:    s.deps.Tokens,
		Lifecycle: s.lifecycle,
		Logger:    s.logger,
		StartRun:  s.startRun(),
	}
	s.mux.HandleFunc("POST /api/sessions", sessions.Create)
	s.mux.HandleFunc("GET /api/sessions/{id}", sessions.Get)
	s.mux.HandleFunc("GET /api/sessions/{id}/token", sessions.Token)

	s.mux.Handle("POST /api/sessions/{id}/frames", &handlers.Frames{
		Store:     s.deps.Store,
		Forward:   s.forwardFrame(),
		Publisher: s.detections,
		Logger:    s.logger,
	})

	reels := &handlers.Reels{
		Store:  s.deps.Store,
		Blob:   s.deps.Blob,
		URLTTL: s.cfg.ReelURLTTL,
		Logger: s.logger,
	}
	if s.deps.Archive != nil {
		reels.Archive = s.deps.Archive
	}
	s.mux.HandleFunc("POST /api/sessions/{id}/reel", reels.UploadReel)
	s.mux.HandleFunc("POST /api/sessions/{id}/recording", reels.UploadRecording)

	s.mux.Handle("GET /api/ws/sessions/{id}/commentary", &handlers.SessionFeed{
		Store:    s.deps.Store,
		Hub:      s.commentaryHub,
		Config:   s.cfg,
		Logger:   s.logger,
		Terminal: handlers.CommentaryTerminal,
	})
	s.mux.Handle("GET /api/ws/sessions/{id}/detections", &handlers.SessionFeed{
		Store:    s.deps.Store,
		Hub:      s.detectionHub,
		Config:   s.cfg,
		Logger:   s.logger,
		Terminal: handlers.DetectionTerminal,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// CommentaryHub exposes the commentary fan-out, mainly for tests and the
// detection publisher wiring in main.
func (s *Server) CommentaryHub() *hub.Hub { return s.commentaryHub }

func (s *Server) DetectionHub() *hub.Hub { return s.detectionHub }

func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.lifecycle }

// SetDraining flips readiness and stops new session creation.
func (s *Server) SetDraining(draining bool) { s.lifecycle.SetDraining(draining) }

// CancelRuns cancels every active agent run. Used during shutdown.
func (s *Server) CancelRuns() int {
	if s.orchestrator == nil {
		return 0
	}
	return s.orchestrator.Runs().CancelAll()
}

// WaitRuns blocks until all agent runs have torn down or ctx expires.
func (s *Server) WaitRuns(ctx context.Context) bool {
	if s.orchestrator == nil {
		return true
	}
	return s.orchestrator.Runs().Wait(ctx)
}

// startRun returns the hook session creation uses to launch the agent, or
// nil when no transport/engine is configured (degraded mode: sessions are
// created but stay waiting).
func (s *Server) startRun() func(callID string) {
	if s.orchestrator == nil {
		return nil
	}
	return func(callID string) {
		go func() {
			if err := s.orchestrator.RunCall(context.Background(), callID); err != nil {
				s.logger.Error("agent run failed", "call_id", callID, "error", err)
			}
		}()
	}
}

// forwardFrame returns the frame-ingest hook that hands frames to the bound
// agent run, or nil when no orchestrator is configured.
func (s *Server) forwardFrame() func(ctx context.Context, sessionID string, jpeg []byte) (bool, error) {
	if s.orchestrator == nil {
		return nil
	}
	return s.orchestrator.SendFrame
}

// speak is the orchestrator's utterance sink: record, publish, synthesize,
// absorb failures. One fallback wrapper per session keeps the last-text
// fallback state scoped correctly under concurrent sessions.
func (s *Server) speak(ctx context.Context, sessionID, text string) {
	fb := s.fallbackFor(sessionID)
	if s.deps.StreamSynth != nil {
		_, _ = fb.StreamAudio(ctx, text)
		return
	}
	_, _ = fb.Synthesize(ctx, text)
}

func (s *Server) fallbackFor(sessionID string) *speech.Fallback {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb, ok := s.fallbacks[sessionID]; ok {
		return fb
	}
	fb := &speech.Fallback{
		Tracker:   s.tracker,
		Hub:       s.commentaryHub,
		Logger:    s.logger,
		SessionID: func() string { return sessionID },
		Synth:     s.deps.Synth,
		Stream:    s.deps.StreamSynth,
	}
	s.fallbacks[sessionID] = fb
	return fb
}

// onSessionEnded hands the finished session to the reel pipeline: derive the
// highlight windows, mark it processing, and archive best-effort.
func (s *Server) onSessionEnded(ctx context.Context, sess *session.Session) {
	s.mu.Lock()
	delete(s.fallbacks, sess.ID)
	s.mu.Unlock()
	if s.detections != nil {
		s.detections.Forget(sess.ID)
	}

	sess.Highlights = reel.DeriveHighlights(sess.CommentaryLog)
	if err := s.deps.Store.SetStatus(sess.ID, session.StatusProcessing); err != nil {
		s.logger.Warn("status update failed after call end", "session_id", sess.ID, "error", err)
	}

	if s.deps.Archive == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.deps.Archive.SaveSession(saveCtx, sess); err != nil {
		s.logger.Error("archiving session failed", "session_id", sess.ID, "error", err)
	}
}
