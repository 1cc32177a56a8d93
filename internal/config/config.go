package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config contains runtime settings for both the conversation client and the
// companion server. Each binary reads the fields it needs.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	MetricsAddr      string
	LogFile          string
	LogLevel         slog.Level

	OpenAIAPIKey  string
	OpenAIBaseURL string
	RealtimeModel string
	RealtimeVoice string

	RealtimeTransport     string
	RealtimeTurnDetection string
	ServerURL             string
	CredentialTimeout     time.Duration
	SignalingTimeout      time.Duration
	ToolTimeout           time.Duration
	AudioPlayback         bool
	AudioDevice           string

	CatalogBackend string
	CatalogCSVPath string
	DatabaseURL    string
	SQLitePath     string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "concierge"),
		MetricsAddr:      stringsTrimSpace("APP_METRICS_ADDR"),
		LogFile:          envOrDefault("APP_LOG_FILE", "concierge.log"),
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    strings.TrimRight(envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		RealtimeModel:    envOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		RealtimeVoice:    stringsTrimSpace("REALTIME_VOICE"),
		// WebRTC carries audio as media tracks; websocket is the text-friendly fallback.
		RealtimeTransport:     strings.ToLower(envOrDefault("REALTIME_TRANSPORT", "webrtc")),
		RealtimeTurnDetection: strings.ToLower(envOrDefault("REALTIME_TURN_DETECTION", "server_vad")),
		ServerURL:             strings.TrimRight(envOrDefault("CONCIERGE_SERVER_URL", "http://localhost:3000"), "/"),
		AudioDevice:           strings.ToLower(envOrDefault("AUDIO_DEVICE", "malgo")),
		CatalogBackend:        strings.ToLower(envOrDefault("CATALOG_BACKEND", "csv")),
		CatalogCSVPath:        envOrDefault("CATALOG_CSV_PATH", "inventory.csv"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		SQLitePath:            envOrDefault("SQLITE_PATH", "catalog.sqlite"),
		ShutdownTimeout:       15 * time.Second,
		CredentialTimeout:     10 * time.Second,
		SignalingTimeout:      15 * time.Second,
		ToolTimeout:           20 * time.Second,
		AudioPlayback:         true,
		LogLevel:              slog.LevelInfo,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CredentialTimeout, err = durationFromEnv("CREDENTIAL_TIMEOUT", cfg.CredentialTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SignalingTimeout, err = durationFromEnv("SIGNALING_TIMEOUT", cfg.SignalingTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioPlayback, err = boolFromEnv("AUDIO_PLAYBACK", cfg.AudioPlayback)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel, err = levelFromEnv("APP_LOG_LEVEL", cfg.LogLevel)
	if err != nil {
		return Config{}, err
	}

	switch cfg.RealtimeTransport {
	case "webrtc", "websocket":
	default:
		return Config{}, fmt.Errorf("REALTIME_TRANSPORT must be webrtc or websocket, got %q", cfg.RealtimeTransport)
	}
	switch cfg.RealtimeTurnDetection {
	case "server_vad", "manual":
	default:
		return Config{}, fmt.Errorf("REALTIME_TURN_DETECTION must be server_vad or manual, got %q", cfg.RealtimeTurnDetection)
	}
	switch cfg.AudioDevice {
	case "malgo", "none":
	default:
		return Config{}, fmt.Errorf("AUDIO_DEVICE must be malgo or none, got %q", cfg.AudioDevice)
	}
	switch cfg.CatalogBackend {
	case "csv", "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("CATALOG_BACKEND must be csv, postgres or sqlite, got %q", cfg.CatalogBackend)
	}
	if cfg.CatalogBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when CATALOG_BACKEND=postgres")
	}
	if cfg.CredentialTimeout <= 0 || cfg.SignalingTimeout <= 0 || cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("CREDENTIAL_TIMEOUT, SIGNALING_TIMEOUT and TOOL_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

func levelFromEnv(key string, fallback slog.Level) (slog.Level, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return lvl, nil
}
