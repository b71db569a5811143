package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Stream video credentials for agent calls and viewer tokens.
	StreamAPIKey    string
	StreamAPISecret string
	TokenTTL        time.Duration
	TokenSkew       time.Duration

	// Vision-language engine.
	GeminiAPIKey string
	GeminiModel  string

	// Text-to-speech.
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string

	// Agent pacing.
	Warmup                time.Duration
	MaxSessionDuration    time.Duration
	MaxConcurrentSessions int

	// Per-subscriber mailbox capacities.
	CommentaryQueueSize int
	DetectionQueueSize  int

	// Media storage and reel archive.
	GCSBucket   string
	ReelURLTTL  time.Duration
	DatabaseURL string

	// WebSocket fan-out.
	WSWriteTimeout time.Duration
	WSPingInterval time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("HYPECAST_ADDR", ":8000"),
		CORSAllowedOrigins:    make(map[string]struct{}),
		StreamAPIKey:          envOr("HYPECAST_STREAM_API_KEY", ""),
		StreamAPISecret:       envOr("HYPECAST_STREAM_API_SECRET", ""),
		TokenTTL:              envDurationOr("HYPECAST_TOKEN_TTL", time.Hour),
		TokenSkew:             envDurationOr("HYPECAST_TOKEN_SKEW", 10*time.Second),
		GeminiAPIKey:          envOr("HYPECAST_GEMINI_API_KEY", ""),
		GeminiModel:           envOr("HYPECAST_GEMINI_MODEL", ""),
		ElevenLabsAPIKey:      envOr("HYPECAST_ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     envOr("HYPECAST_ELEVENLABS_VOICE_ID", ""),
		Warmup:                envDurationOr("HYPECAST_WARMUP", 5*time.Second),
		MaxSessionDuration:    envDurationOr("HYPECAST_MAX_SESSION_DURATION", 5*time.Minute),
		MaxConcurrentSessions: envIntOr("HYPECAST_MAX_CONCURRENT_SESSIONS", 1),
		CommentaryQueueSize:   envIntOr("HYPECAST_COMMENTARY_QUEUE_SIZE", 16),
		DetectionQueueSize:    envIntOr("HYPECAST_DETECTION_QUEUE_SIZE", 1),
		GCSBucket:             envOr("HYPECAST_GCS_BUCKET", "hypecast-media"),
		ReelURLTTL:            envDurationOr("HYPECAST_REEL_URL_TTL", 48*time.Hour),
		DatabaseURL:           envOr("HYPECAST_DATABASE_URL", ""),
		WSWriteTimeout:        envDurationOr("HYPECAST_WS_WRITE_TIMEOUT", 5*time.Second),
		WSPingInterval:        envDurationOr("HYPECAST_WS_PING_INTERVAL", 20*time.Second),
		ReadHeaderTimeout:     envDurationOr("HYPECAST_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:           envDurationOr("HYPECAST_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:   envDurationOr("HYPECAST_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("HYPECAST_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_TOKEN_TTL must be > 0")
	}
	if cfg.TokenSkew < 0 {
		return Config{}, fmt.Errorf("HYPECAST_TOKEN_SKEW must be >= 0")
	}
	if cfg.Warmup < 0 {
		return Config{}, fmt.Errorf("HYPECAST_WARMUP must be >= 0")
	}
	if cfg.MaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.MaxConcurrentSessions <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_MAX_CONCURRENT_SESSIONS must be > 0")
	}
	if cfg.CommentaryQueueSize <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_COMMENTARY_QUEUE_SIZE must be > 0")
	}
	if cfg.DetectionQueueSize <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_DETECTION_QUEUE_SIZE must be > 0")
	}
	if strings.TrimSpace(cfg.GCSBucket) == "" {
		return Config{}, fmt.Errorf("HYPECAST_GCS_BUCKET must not be empty")
	}
	if cfg.ReelURLTTL <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_REEL_URL_TTL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_WS_PING_INTERVAL must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("HYPECAST_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if (cfg.StreamAPIKey == "") != (cfg.StreamAPISecret == "") {
		return Config{}, fmt.Errorf("HYPECAST_STREAM_API_KEY and HYPECAST_STREAM_API_SECRET must be set together")
	}

	return cfg, nil
}

// StreamConfigured reports whether Stream credentials are present. Without
// them session creation degrades to placeholder tokens and no agent runs.
func (c Config) StreamConfigured() bool {
	return c.StreamAPIKey != "" && c.StreamAPISecret != ""
}

// GeminiConfigured reports whether the vision engine can be constructed.
func (c Config) GeminiConfigured() bool {
	return c.GeminiAPIKey != ""
}

// ElevenLabsConfigured reports whether real speech synthesis is available.
// The commentary pipeline still runs text-only without it.
func (c Config) ElevenLabsConfigured() bool {
	return c.ElevenLabsAPIKey != "" && c.ElevenLabsVoiceID != ""
}

// Issues lists the vendor credentials that are missing. Each entry disables
// one capability rather than the whole server; readyz reports them.
func (c Config) Issues() []string {
	var issues []string
	if !c.StreamConfigured() {
		issues = append(issues, "stream credentials not configured")
	}
	if !c.GeminiConfigured() {
		issues = append(issues, "gemini api key not configured")
	}
	if !c.ElevenLabsConfigured() {
		issues = append(issues, "elevenlabs credentials not configured")
	}
	if c.DatabaseURL == "" {
		issues = append(issues, "reel archive database not configured")
	}
	return issues
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
