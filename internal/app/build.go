package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/httpapi"
	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/session"
	"github.com/ent0n29/concierge/internal/tools"
	"github.com/ent0n29/concierge/internal/tui"
)

type ServerResult struct {
	Config  config.Config
	API     *httpapi.Server
	Catalog catalog.Store
	Metrics *observability.Metrics

	// Cleanup releases the catalog backend.
	Cleanup func() error
}

// BuildServer wires the companion HTTP service.
func BuildServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ServerResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := catalog.Open(ctx, catalog.Options{
		Backend:     cfg.CatalogBackend,
		CSVPath:     cfg.CatalogCSVPath,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog init failed: %w", err)
	}
	if n, err := store.Count(ctx); err == nil {
		logger.Info("catalog loaded", "backend", cfg.CatalogBackend, "products", n)
	}

	minter := httpapi.NewRealtimeMinter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.RealtimeModel, cfg.RealtimeVoice, cfg.CredentialTimeout)
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; /api/session will fail")
	}

	return &ServerResult{
		Config:  cfg,
		API:     httpapi.New(store, minter, metrics, logger),
		Catalog: store,
		Metrics: metrics,
		Cleanup: store.Close,
	}, nil
}

type ClientResult struct {
	Config     config.Config
	Session    *session.Session
	Negotiator *realtime.Negotiator
	Feed       *tui.Feed
	Metrics    *observability.Metrics
	Devices    string

	// Cleanup closes the session and releases audio devices.
	Cleanup func() error
}

// ClientOption replaces a resolved audio device, e.g. for headless runs.
type ClientOption func(*deviceSetup)

func WithMicrophone(m media.Microphone) ClientOption {
	return func(d *deviceSetup) { d.microphone = m }
}

func WithSpeaker(s media.Speaker) ClientOption {
	return func(d *deviceSetup) { d.speaker = s }
}

// BuildClient wires the conversation client: devices, transport, negotiator
// and session. Nothing connects until Session.Connect.
func BuildClient(cfg config.Config, logger *slog.Logger, opts ...ClientOption) (*ClientResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	devices := resolveDevices(cfg, logger)
	for _, opt := range opts {
		opt(&devices)
	}

	negotiator := realtime.NewNegotiator(
		realtime.NewHTTPCredentialSource(cfg.ServerURL, cfg.CredentialTimeout),
		devices.microphone,
		transportFactory(cfg, devices.speaker, logger),
		realtime.WithMetrics(metrics),
		realtime.WithLogger(logger),
	)

	feed := tui.NewFeed()
	sess, err := session.New(negotiator, tools.InventoryAgent(cfg.ServerURL, cfg.ToolTimeout),
		session.WithSpeaker(devices.speaker),
		session.WithMetrics(metrics),
		session.WithLogger(logger),
		session.WithTurnDetection(session.TurnDetectionMode(cfg.RealtimeTurnDetection)),
		session.WithPlayback(cfg.AudioPlayback),
		session.WithToolTimeout(cfg.ToolTimeout),
		session.WithObserver(feed.Publish),
	)
	if err != nil {
		if devices.cleanup != nil {
			_ = devices.cleanup()
		}
		return nil, fmt.Errorf("session init failed: %w", err)
	}

	cleanup := func() error {
		sess.Close()
		negotiator.Close()
		if devices.cleanup != nil {
			return devices.cleanup()
		}
		return nil
	}

	return &ClientResult{
		Config:     cfg,
		Session:    sess,
		Negotiator: negotiator,
		Feed:       feed,
		Metrics:    metrics,
		Devices:    devices.detail,
		Cleanup:    cleanup,
	}, nil
}

func transportFactory(cfg config.Config, speaker media.Speaker, logger *slog.Logger) realtime.TransportFactory {
	if cfg.RealtimeTransport == "websocket" {
		return func() realtime.Transport {
			return realtime.NewWebSocketTransport(cfg.OpenAIBaseURL, cfg.RealtimeModel, speaker, logger)
		}
	}
	signaler := realtime.NewSignaler(cfg.OpenAIBaseURL, cfg.RealtimeModel, cfg.SignalingTimeout)
	return func() realtime.Transport {
		return realtime.NewWebRTCTransport(signaler, speaker, logger)
	}
}
