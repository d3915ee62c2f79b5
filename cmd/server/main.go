// Command server runs the Persian chat API.
//
// @title       Persian Chat API
// @version     1.0
// @description Persian-language chat relay with per-user history, email verification and avatars.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-persian-chat/internal/auth"
	"github.com/tbourn/go-persian-chat/internal/config"
	httpapi "github.com/tbourn/go-persian-chat/internal/http"
	"github.com/tbourn/go-persian-chat/internal/llm"
	"github.com/tbourn/go-persian-chat/internal/mail"
	"github.com/tbourn/go-persian-chat/internal/observability"
	"github.com/tbourn/go-persian-chat/internal/repo"
	"github.com/tbourn/go-persian-chat/internal/sysutil"
	"github.com/tbourn/go-persian-chat/internal/turnlock"
)

var version = "dev"

const (
	shutdownGrace = 15 * time.Second
	purgeEvery    = time.Hour
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogging("info", true, "")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogging(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	provider := llm.New(cfg.Upstream, cfg.Breaker)
	if !provider.Configured() {
		log.Warn().Msg("UPSTREAM_API_KEY is not set; every relay will fail with 503")
	}
	if !cfg.MailEnabled() {
		log.Warn().Msg("SMTP credentials missing; verification links are only logged")
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	r := gin.New()
	httpapi.RegisterRoutes(r, db, httpapi.Deps{
		Provider: provider,
		Mailer:   mail.New(cfg),
		Locker:   locker,
		Issuer:   auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}, cfg)

	go purgeIdempotency(ctx, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
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
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newLocker picks the turn lock: Redis when REDIS_ADDR is set, an
// in-process lock when serialisation is on, otherwise none.
func newLocker(ctx context.Context, cfg config.Config) (turnlock.Locker, func(), error) {
	if !cfg.Relay.Serialize {
		return turnlock.Noop{}, func() {}, nil
	}
	if cfg.Redis.Addr == "" {
		return turnlock.NewLocal(), func() {}, nil
	}
	client, err := turnlock.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis turn lock")
	return turnlock.NewRedis(client, cfg.Relay.LockTTL), func() { _ = client.Close() }, nil
}

func purgeIdempotency(ctx context.Context, db *gorm.DB) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged idempotency records")
			}
		}
	}
}
