package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-bot-engine/internal/bot"
	"telegram-bot-engine/internal/config"
	"telegram-bot-engine/internal/conversation"
	"telegram-bot-engine/internal/infra/logging"
	"telegram-bot-engine/internal/infra/metrics"
	pg "telegram-bot-engine/internal/infra/postgres"
	red "telegram-bot-engine/internal/infra/redis"
	"telegram-bot-engine/internal/ingest"
	"telegram-bot-engine/internal/router"
	"telegram-bot-engine/internal/telegram"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (console logs)")
	botName := flag.String("bot", "", "poll only this bot (default: all)")
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Conversation store ----
	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer cleanup()

	// ---- Bots ----
	registry := bot.NewRegistry(cfg.DefaultBot)
	for name, bc := range cfg.Bots {
		client, err := telegram.NewBotClient(bc.Token)
		if err != nil {
			log.Fatalf("bot %s: %v", name, err)
		}
		b, err := buildBot(name, client, store, logger)
		if err != nil {
			log.Fatalf("bot %s: %v", name, err)
		}
		registry.Add(b)

		webhookURL := ""
		if cfg.Mode == "webhook" {
			webhookURL = bc.WebhookURL
		}
		if err := ingest.Sync(ctx, b, webhookURL, logger); err != nil {
			logger.Warn().Err(err).Str("bot", name).Msg("bot sync failed")
		}
	}

	// ---- Shutdown on signal ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info().Msg("shutdown requested")
		cancel()
	}()

	switch cfg.Mode {
	case "webhook":
		runWebhook(ctx, cfg, registry, logger)
	default:
		opts := ingest.PollOptions{
			Timeout: cfg.Poll.Timeout,
			Sleep:   cfg.Poll.Sleep,
			Once:    cfg.Poll.Once || *once,
			Offset:  cfg.Poll.Offset,
		}
		var names []string
		if *botName != "" {
			names = strings.Split(*botName, ",")
		}
		if err := ingest.NewRunner(registry, logger).Run(ctx, names, opts); err != nil {
			logger.Error().Err(err).Msg("polling failed")
			os.Exit(1)
		}
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (conversation.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := red.NewClient(ctx, red.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return red.NewConversationStore(client, cfg.Store.TTL), func() { _ = client.Close() }, nil
	case "postgres":
		pool, err := pg.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		store := pg.NewConversationStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return conversation.NewMemoryStore(), func() {}, nil
	}
}

// buildBot is the explicit registration table: routes and conversations are
// wired here in straight-line code.
func buildBot(name string, client telegram.Client, store conversation.Store, logger *zerolog.Logger) (*bot.Bot, error) {
	signup, err := signupConversation()
	if err != nil {
		return nil, err
	}

	return bot.NewBuilder(name, client).
		WithStore(store).
		WithLogger(logger).
		Command("start", "Start the bot", func(ctx context.Context, upd *telegram.Update, rc *router.Context) error {
			return rc.Reply(ctx, upd, "Hi! Send /signup to register, /help for more.")
		}).
		Command("help", "Show available commands", func(ctx context.Context, upd *telegram.Update, rc *router.Context) error {
			return rc.Reply(ctx, upd, "Commands:\n/start\n/help\n/signup\n/cancel aborts a running dialog.")
		}).
		Command("signup", "Register your account", func(ctx context.Context, upd *telegram.Update, rc *router.Context) error {
			if !rc.Conversations.Start(ctx, "signup", upd) {
				return rc.Reply(ctx, upd, "Signup is unavailable right now.")
			}
			return nil
		}).
		Fallback(func(ctx context.Context, upd *telegram.Update, rc *router.Context) error {
			return rc.Reply(ctx, upd, "I didn't understand that. Send /help for commands.")
		}).
		Conversation(signup).
		Build()
}

func signupConversation() (*conversation.Definition, error) {
	return conversation.NewDefinition("signup",
		conversation.NewQuestionStep("name", "What is your name?"),
		conversation.NewQuestionStep("email", "What is your email address?").
			WithValidator(func(value string, _ *telegram.Update, _ *conversation.DialogContext) bool {
				return strings.Contains(value, "@")
			}).
			WithRejectMessage("That doesn't look like an email address."),
		conversation.NewContactStep("phone", "Please share your phone number."),
		conversation.NewOTPStep("otp", "Your confirmation code is {code}. Type it back to confirm.", 6),
	).
		FinishMessage("You're all set!").
		CleanupMessages().
		OnFinish(func(ctx context.Context, dc *conversation.DialogContext) error {
			data := dc.Data()
			return dc.Send(ctx, fmt.Sprintf("Registered %s <%s>.", data["name"], data["email"]))
		}).
		Build()
}

func runWebhook(ctx context.Context, cfg *config.Config, registry *bot.Registry, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Webhook.Port),
		Handler: ingest.NewWebhookServer(registry, logger).Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("webhook server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("webhook server error")
		os.Exit(1)
	}
}
