// Package agent binds one external call to one session for the lifetime of
// that call: it drives warm-up, marks the session live, forwards commentary
// utterances into the speech/tracking pipeline, and guarantees teardown.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hypecast-live/hypecast/pkg/core/session"
)

// Utterance is one completed unit of commentary text from the inference
// engine.
type Utterance struct {
	Text string
}

// Transport is the video/call transport collaborator.
type Transport interface {
	CreateUser(ctx context.Context, userID, name string) error
	CreateCall(ctx context.Context, callType, callID string) (Call, error)
}

// Call is a created (not yet joined) call.
type Call interface {
	Join(ctx context.Context) (Connection, error)
}

// Connection is a joined call. Leave must be safe to call once on every exit
// path; Ended fires when the call naturally completes.
type Connection interface {
	Ended() <-chan struct{}
	Leave(ctx context.Context) error
}

// Engine is the realtime vision-language collaborator. Connect must be called
// before the transport join: frames delivered before the inference session
// exists are silently lost by the engine.
type Engine interface {
	Connect(ctx context.Context) error
	// Utterances emits utterance-completed events in the order the engine
	// produced them. The channel closes when the engine shuts down.
	Utterances() <-chan Utterance
	// SendPrompt issues a simple text turn, used for the seed prompt.
	SendPrompt(ctx context.Context, text string) error
	Close(ctx context.Context) error
}

// FrameSender is implemented by engines that accept live video frames. The
// frame ingest route feeds the bound session's engine through it.
type FrameSender interface {
	SendVideoFrame(ctx context.Context, jpeg []byte) error
}

// UtteranceSink receives each utterance exactly once, in emission order. The
// wiring point hands utterances to the speech fallback wrapper, which records
// them and attempts synthesis.
type UtteranceSink func(ctx context.Context, sessionID, text string)

// ErrTooManySessions is returned when a run would exceed the concurrency
// ceiling.
var ErrTooManySessions = errors.New("too many concurrent sessions")

type Config struct {
	AgentUserID   string
	AgentUserName string
	// SeedPrompt kicks off the first commentary turn after warm-up.
	SeedPrompt string
	// Warmup is slept after joining so other participants' media registers
	// before the first turn; without it the agent can "finish" immediately
	// upon observing zero other participants.
	Warmup time.Duration
	// MaxSessionDuration bounds the whole run; reaching it is a normal
	// termination, not an error.
	MaxSessionDuration time.Duration
	MaxConcurrent      int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.AgentUserID == "" {
		out.AgentUserID = "hypecast-agent"
	}
	if out.AgentUserName == "" {
		out.AgentUserName = "HypeCast Commentator"
	}
	if out.Warmup <= 0 {
		out.Warmup = 5 * time.Second
	}
	if out.MaxSessionDuration <= 0 {
		out.MaxSessionDuration = 5 * time.Minute
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = 1
	}
	return out
}

// Orchestrator runs the live commentary pipeline for calls.
type Orchestrator struct {
	store     session.Store
	transport Transport
	newEngine func() Engine
	sink      UtteranceSink
	logger    *slog.Logger
	cfg       Config

	runs *Tracker
	sem  chan struct{}

	enginesMu sync.Mutex
	engines   map[string]Engine

	// OnEnded, when set, runs after teardown with the bound session. The
	// wiring point uses it to hand completed sessions to the reel archive.
	OnEnded func(ctx context.Context, sess *session.Session)
}

func New(store session.Store, transport Transport, newEngine func() Engine, sink UtteranceSink, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.withDefaults()
	return &Orchestrator{
		store:     store,
		transport: transport,
		newEngine: newEngine,
		sink:      sink,
		logger:    logger,
		cfg:       c,
		runs:      NewTracker(),
		sem:       make(chan struct{}, c.MaxConcurrent),
		engines:   make(map[string]Engine),
	}
}

// Runs exposes the active-run tracker for shutdown coordination.
func (o *Orchestrator) Runs() *Tracker {
	return o.runs
}

// SendFrame forwards one JPEG frame to the engine bound to sessionID. It is
// a no-op returning false when no live run is bound to the session or the
// engine does not accept frames.
func (o *Orchestrator) SendFrame(ctx context.Context, sessionID string, jpeg []byte) (bool, error) {
	o.enginesMu.Lock()
	eng, ok := o.engines[sessionID]
	o.enginesMu.Unlock()
	if !ok {
		return false, nil
	}
	sender, ok := eng.(FrameSender)
	if !ok {
		return false, nil
	}
	if err := sender.SendVideoFrame(ctx, jpeg); err != nil {
		return true, fmt.Errorf("send frame for session %q: %w", sessionID, err)
	}
	return true, nil
}

// RunCall binds callID to its session and drives the pipeline until the call
// ends or the max session duration elapses. Errors from user/call creation,
// engine connect, and join are fatal to this attempt and propagate; retry
// policy belongs to the caller.
func (o *Orchestrator) RunCall(ctx context.Context, callID string) error {
	select {
	case o.sem <- struct{}{}:
	default:
		return fmt.Errorf("run call %q: %w", callID, ErrTooManySessions)
	}
	defer func() { <-o.sem }()

	sessionID, bound := session.IDFromCallID(callID)
	if !bound {
		// Deliberate degrade: the pipeline still runs, but status updates and
		// session-scoped features are skipped.
		o.logger.Warn("call id does not match the session pattern, running unbound", "call_id", callID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unregister := o.runs.Register(callID, cancel)
	defer unregister()

	if err := o.transport.CreateUser(runCtx, o.cfg.AgentUserID, o.cfg.AgentUserName); err != nil {
		return fmt.Errorf("create agent user for call %q: %w", callID, err)
	}
	call, err := o.transport.CreateCall(runCtx, session.DefaultCallType, callID)
	if err != nil {
		return fmt.Errorf("create call %q: %w", callID, err)
	}

	// Connect the engine strictly before joining frame delivery.
	eng := o.newEngine()
	if err := eng.Connect(runCtx); err != nil {
		return fmt.Errorf("connect inference engine for call %q: %w", callID, err)
	}

	conn, err := call.Join(runCtx)
	if err != nil {
		o.closeEngine(eng)
		return fmt.Errorf("join call %q: %w", callID, err)
	}

	if bound {
		o.enginesMu.Lock()
		o.engines[sessionID] = eng
		o.enginesMu.Unlock()
	}

	var teardownOnce sync.Once
	teardown := func() {
		teardownOnce.Do(func() {
			cancel()
			if bound {
				o.enginesMu.Lock()
				delete(o.engines, sessionID)
				o.enginesMu.Unlock()
			}
			o.closeEngine(eng)
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer leaveCancel()
			if err := conn.Leave(leaveCtx); err != nil {
				o.logger.Warn("leaving call failed", "call_id", callID, "error", err)
			}
			if bound {
				if sess, err := o.store.Get(sessionID); err == nil {
					now := time.Now().UTC()
					sess.EndedAt = &now
					if o.OnEnded != nil {
						o.OnEnded(context.Background(), sess)
					}
				}
			}
			o.logger.Info("session torn down", "call_id", callID, "session_id", sessionID)
		})
	}
	defer teardown()

	o.sleep(runCtx, o.cfg.Warmup)

	if bound {
		if err := o.store.SetStatus(sessionID, session.StatusLive); err != nil {
			o.logger.Warn("session not in store, status update skipped", "session_id", sessionID)
		}
	}

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		o.forwardUtterances(runCtx, sessionID, eng.Utterances())
	}()

	if o.cfg.SeedPrompt != "" {
		// A failed seed turn is not fatal; incoming frames still drive later
		// turns.
		if err := eng.SendPrompt(runCtx, o.cfg.SeedPrompt); err != nil {
			o.logger.Warn("seed prompt failed", "call_id", callID, "error", err)
		}
	}

	timer := time.NewTimer(o.cfg.MaxSessionDuration)
	defer timer.Stop()
	select {
	case <-conn.Ended():
		o.logger.Info("call ended", "call_id", callID)
	case <-timer.C:
		o.logger.Info("max session duration reached", "call_id", callID, "max", o.cfg.MaxSessionDuration)
	case <-runCtx.Done():
		o.logger.Info("session run canceled", "call_id", callID)
	}

	teardown()
	<-forwardDone
	return nil
}

// forwardUtterances hands each utterance to the sink in emission order.
// Ordering matters: viewers read energy trends as a time series, so no
// batching or reordering here.
func (o *Orchestrator) forwardUtterances(ctx context.Context, sessionID string, utterances <-chan Utterance) {
	for {
		select {
		case <-ctx.Done():
			return
		case utt, ok := <-utterances:
			if !ok {
				return
			}
			if o.sink != nil {
				o.sink(ctx, sessionID, utt.Text)
			}
		}
	}
}

func (o *Orchestrator) closeEngine(eng Engine) {
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := eng.Close(closeCtx); err != nil {
		o.logger.Warn("closing inference engine failed", "error", err)
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
