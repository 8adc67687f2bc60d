// Command keingate runs the subscription-gated Telegram group bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Registers the Telegram update webhook and the provider
//     subscription-end webhooks (Twitch EventSub, Patreon).
//   - Exposes the HTTP server with the bot webhook, OAuth callbacks,
//     /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/communikein/keingate/bottext"
	"github.com/communikein/keingate/config"
	"github.com/communikein/keingate/db"
	"github.com/communikein/keingate/gate"
	"github.com/communikein/keingate/patreonapi"
	"github.com/communikein/keingate/server"
	"github.com/communikein/keingate/telegram"
	"github.com/communikein/keingate/telemetry"
	"github.com/communikein/keingate/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateTelegramReady(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("keingate", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Bot reply texts (defaults + optional YAML overrides)
	text, err := bottext.Load(cfg.BotTextFile)
	if err != nil {
		slog.Error("bot text load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations: versioned migrations (golang-migrate) first,
	// embedded SQL as fallback for deployments without a schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the service
	store := &db.Store{DB: database}
	bot := &telegram.Bot{Token: cfg.BotToken}
	group := telegram.NewGroupClient(bot, cfg.GroupChatID)

	twitch := &twitchapi.Verifier{
		ClientID:         cfg.TwitchClientID,
		ClientSecret:     cfg.TwitchClientSecret,
		WebhookSecret:    cfg.TwitchWebhookSecret,
		BroadcasterID:    cfg.TwitchChannelID,
		CallbackURL:      cfg.TwitchOAuthCallbackURL(),
		EventCallbackURL: cfg.TwitchUnsubscribeWebhookURL(),
		ForceVerify:      cfg.TwitchForceVerify,
	}
	patreon := &patreonapi.Verifier{
		ClientID:      cfg.PatreonClientID,
		ClientSecret:  cfg.PatreonClientSecret,
		CreatorID:     cfg.PatreonCreatorID,
		CreatorToken:  cfg.PatreonCreatorToken,
		CampaignID:    cfg.PatreonCampaignID,
		CallbackURL:   cfg.PatreonOAuthCallbackURL(),
		WebhookURL:    cfg.PatreonUnsubscribeWebhookURL(),
		WebhookSecret: cfg.PatreonWebhookSecret,
	}
	providers := map[gate.Provider]gate.ProviderAdapter{
		gate.ProviderTwitch:  twitch,
		gate.ProviderPatreon: patreon,
	}
	verifier := gate.NewVerifier(store, store, group, providers, text)
	revoker := gate.NewRevoker(store, group)

	// Telegram update webhook must point at this deployment's BASE_URL.
	{
		regCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := telegram.EnsureWebhook(regCtx, bot, cfg.TelegramWebhookURL())
		cancel()
		if err != nil {
			slog.Error("telegram webhook registration failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Provider subscription-end webhooks. Registration is retried in the
	// background because the providers call back our own HTTP server,
	// which is not listening yet.
	go registerProviderWebhook(ctx, "twitch", twitch.Configured(), twitch.RegisterUnsubscribeWebhook)
	go registerProviderWebhook(ctx, "patreon", patreon.Configured(), patreon.RegisterUnsubscribeWebhook)

	deps := server.Deps{
		DB:       database,
		Config:   cfg,
		Verifier: verifier,
		Revoker:  revoker,
		Bot:      bot,
		Group:    group,
		Text:     text,
		Twitch:   twitch,
		Patreon:  patreon,
	}
	go func() {
		if err := server.Start(ctx, deps, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}

// registerProviderWebhook ensures a provider's unsubscribe webhook exists,
// retrying with backoff until it succeeds or the context ends.
func registerProviderWebhook(ctx context.Context, provider string, configured bool, register func(context.Context) (bool, error)) {
	if !configured {
		slog.Info("provider not configured, skipping webhook registration", slog.String("provider", provider))
		return
	}
	backoff := 5 * time.Second
	for {
		regCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		already, err := register(regCtx)
		cancel()
		if err == nil {
			telemetry.SetWebhookRegistered(provider, true)
			slog.Info("unsubscribe webhook registered", slog.String("provider", provider), slog.Bool("already_existed", already))
			return
		}
		telemetry.SetWebhookRegistered(provider, false)
		slog.Warn("webhook registration failed, retrying", slog.String("provider", provider), slog.Any("err", err), slog.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Minute {
			backoff *= 2
		}
	}
}
