package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hypecast-live/hypecast/internal/dotenv"
	"github.com/hypecast-live/hypecast/pkg/blob"
	"github.com/hypecast-live/hypecast/pkg/core/agent"
	"github.com/hypecast-live/hypecast/pkg/core/engine"
	"github.com/hypecast-live/hypecast/pkg/core/speech"
	"github.com/hypecast-live/hypecast/pkg/gateway/config"
	gatewayserver "github.com/hypecast-live/hypecast/pkg/gateway/server"
	"github.com/hypecast-live/hypecast/pkg/reel"
	"github.com/hypecast-live/hypecast/pkg/stream"
)

// commentatorPrompt is the persona behind every live session.
const commentatorPrompt = "You are an energetic sports commentator watching a live pickup game. " +
	"Call the action as it happens in short, punchy lines. When something big happens, say so loudly."

type serverDeps struct {
	loadConfig   func() (config.Config, error)
	newServer    func(config.Config, gatewayserver.Deps, *slog.Logger) *gatewayserver.Server
	openArchive  func(context.Context, string, *slog.Logger) (*reel.Archive, error)
	openBlob     func(context.Context, string) (blob.Store, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServerDeps() serverDeps {
	return serverDeps{
		loadConfig:  config.LoadFromEnv,
		newServer:   gatewayserver.New,
		openArchive: reel.OpenArchive,
		openBlob: func(ctx context.Context, bucket string) (blob.Store, error) {
			return blob.NewGCS(ctx, bucket)
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildPipeline assembles the vendor-backed collaborators. Each missing
// credential disables only its own capability.
func buildPipeline(ctx context.Context, cfg config.Config, deps serverDeps, logger *slog.Logger) (gatewayserver.Deps, error) {
	out := gatewayserver.Deps{}

	tokens := &stream.TokenIssuer{
		APIKey:    cfg.StreamAPIKey,
		APISecret: cfg.StreamAPISecret,
		TTL:       cfg.TokenTTL,
		Skew:      cfg.TokenSkew,
	}
	out.Tokens = tokens

	if cfg.StreamConfigured() && cfg.GeminiConfigured() {
		out.Transport = stream.NewClient(tokens, nil)
		out.NewEngine = func() agent.Engine {
			return engine.NewGemini(engine.GeminiConfig{
				APIKey:       cfg.GeminiAPIKey,
				Model:        cfg.GeminiModel,
				Instructions: commentatorPrompt,
				Logger:       logger,
			})
		}
	} else {
		logger.Warn("agent pipeline disabled", "stream", cfg.StreamConfigured(), "gemini", cfg.GeminiConfigured())
	}

	if cfg.ElevenLabsConfigured() {
		el := speech.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
		out.Synth = el
		out.StreamSynth = el
	} else {
		logger.Warn("speech synthesis disabled, commentary is text-only")
	}

	if cfg.GCSBucket != "" && deps.openBlob != nil {
		store, err := deps.openBlob(ctx, cfg.GCSBucket)
		if err != nil {
			// Running without credentials keeps the API up; only the media
			// upload routes answer 503.
			logger.Warn("media storage disabled", "bucket", cfg.GCSBucket, "error", err)
		} else {
			out.Blob = store
		}
	}

	if cfg.DatabaseURL != "" {
		archive, err := deps.openArchive(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return gatewayserver.Deps{}, fmt.Errorf("open reel archive: %w", err)
		}
		out.Archive = archive
	} else {
		logger.Warn("reel archive disabled, finished sessions are not persisted")
	}

	return out, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runServer(ctx context.Context, logger *slog.Logger, deps serverDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pipeline, err := buildPipeline(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	if pipeline.Archive != nil {
		defer pipeline.Archive.Close()
	}
	if closer, ok := pipeline.Blob.(io.Closer); ok {
		defer closer.Close()
	}

	srv := deps.newServer(cfg, pipeline, logger)
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting hypecast", "addr", cfg.Addr, "issues", cfg.Issues())

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	srv.SetDraining(true)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Give live sessions a grace window to finish naturally, then cancel.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !srv.WaitRuns(waitCtx) {
		srv.CancelRuns()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("hypecast stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serverDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "hypecast: %v\n", err)
		return 1
	}

	if err := runServer(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "hypecast: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServerDeps()))
}
