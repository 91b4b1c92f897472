package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviewdesk/internal/auditapi"
	"reviewdesk/internal/auth"
	"reviewdesk/internal/config"
	"reviewdesk/internal/console"
	"reviewdesk/internal/database"
	"reviewdesk/internal/locales"
	"reviewdesk/internal/review"
	"reviewdesk/internal/telegram"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := locales.Init(cfg.DefaultLanguage); err != nil {
		log.Fatalf("Localization error: %v", err)
	}

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit API and review registry
	endpoints, err := config.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	client, err := auditapi.NewClientFromConfig(cfg, endpoints)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create audit API client: %v", err)
	}
	registry := review.NewRegistry(client)
	reviewOpts := review.Options{
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		SettleDelay:     cfg.SettleDelay,
	}

	// Action log
	store, err := database.Open(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Printf("Error closing action log: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Action log closed.")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.BotEnabled() {
		appBot, err := newTelegramBot(gctx, cfg, registry, reviewOpts, store)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal(err)
		}
		g.Go(func() error {
			appBot.Start(gctx)
			appBot.Stop()
			return nil
		})
	}

	if cfg.ConsoleEnabled() {
		srv, err := console.New(console.Deps{
			Addr:           cfg.ConsoleAddr,
			JWTSecret:      cfg.ConsoleJWTSecret,
			AllowedOrigins: cfg.ConsoleAllowedOrigins,
			Debug:          cfg.Debug,
			Registry:       registry,
			ReviewOptions:  reviewOpts,
			Store:          store,
		})
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal(err)
		}
		g.Go(func() error { return srv.Start(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		sentry.CaptureException(err)
		log.Printf("Review desk stopped with error: %v", err)
		return
	}
	log.Println("Review desk shutdown complete.")
}

// newTelegramBot connects to Telegram and builds the bot front-end.
func newTelegramBot(ctx context.Context, cfg *config.Config, registry *review.Registry, opts review.Options, store database.Store) (*telegram.Bot, error) {
	var bot *telego.Bot
	var err error
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		return nil, err
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("Authorized on account @%s", me.Username)

	adminChecker, err := auth.NewAdminChecker(bot, cfg.ChannelID)
	if err != nil {
		return nil, err
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return nil, err
	}

	return telegram.New(telegram.BotDeps{
		Bot:           bot,
		UpdatesChan:   updates,
		Debug:         cfg.Debug,
		AdminChecker:  adminChecker,
		ActionLogger:  store,
		UserRepo:      store,
		Registry:      registry,
		ReviewOptions: opts,
	})
}
