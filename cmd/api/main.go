package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/langalex/henry/internal/audit"
	"github.com/langalex/henry/internal/auth"
	"github.com/langalex/henry/internal/config"
	"github.com/langalex/henry/internal/events"
	"github.com/langalex/henry/internal/httpapi"
	"github.com/langalex/henry/internal/ledger"
	"github.com/langalex/henry/internal/mail"
	"github.com/langalex/henry/internal/obs"
	"github.com/langalex/henry/internal/store/memory"
	"github.com/langalex/henry/internal/store/pg"
	"github.com/langalex/henry/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what both stores provide.
type backend interface {
	auth.Store
	events.Store
	Audit() audit.Store
	Assignments() ledger.Store
	Ping(ctx context.Context) error
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := run(); err != nil {
		l := obs.Logger()
		l.Fatal().Err(err).Msg("henry-api stopped")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := obs.ConfigureLogger(os.Stdout, cfg.LogLevel); err != nil {
		return err
	}
	log := obs.Logger()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	shutdownTracing, err := obs.InitTracing(ctx, "henry-api", version, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var store backend
	if cfg.DatabaseURL != "" {
		pgStore, err := pg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
		store = memory.New()
	}

	feed := stream.New()
	rec, err := audit.NewRecorder(store.Audit(),
		audit.WithLogger(log.With().Str("component", "audit").Logger()),
		audit.WithPublisher(feed),
		audit.WithPageSize(cfg.AuditPageSize))
	if err != nil {
		return err
	}

	var sender auth.LinkSender = mail.LogSender{
		Log:       log.With().Str("component", "mail").Logger(),
		ShowLinks: !cfg.Production(),
	}
	if cfg.NATSURL != "" {
		natsSender, err := mail.DialNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer natsSender.Close()
		sender = natsSender
	}

	authOpts := []auth.ServiceOption{
		auth.WithLogger(log.With().Str("component", "auth").Logger()),
		auth.WithAuditSink(rec),
		auth.WithLinkSender(sender),
		auth.WithBaseURL(cfg.BaseURL()),
	}
	if cfg.DevEmailToken != "" {
		log.Warn().Msg("fixed development email token enabled")
		authOpts = append(authOpts, auth.WithDevEmailToken(cfg.DevEmailToken))
	}
	authSvc, err := auth.NewService(store, authOpts...)
	if err != nil {
		return err
	}
	eventSvc, err := events.NewService(store, rec, events.WithLogger(log.With().Str("component", "events").Logger()))
	if err != nil {
		return err
	}
	ledgerSvc, err := ledger.NewService(store.Assignments(), authSvc, rec,
		ledger.WithLogger(log.With().Str("component", "ledger").Logger()))
	if err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Options{
		Version:        version,
		Ready:          store,
		Auth:           authSvc,
		Events:         eventSvc,
		Ledger:         ledgerSvc,
		Audit:          rec,
		Stream:         feed,
		AppURL:         cfg.PublicAppURL,
		CookieName:     cfg.SessionCookie,
		CookieSecure:   cfg.CookieSecure,
		AllowedOrigins: cfg.AllowedOrigins,
		RateBurst:      cfg.RateBurst,
		RatePerSec:     cfg.RatePerSec,
		LoginPerMinute: cfg.LoginPerMinute,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: the audit stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("env", cfg.Environment).Msg("starting henry-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
