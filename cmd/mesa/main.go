package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	charmlog "charm.land/log/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/cockroach"
	"github.com/mesahub/mesa/cockroach/migrator"
	"github.com/mesahub/mesa/config"
	"github.com/mesahub/mesa/pubsub"
	"github.com/mesahub/mesa/service"
	"github.com/mesahub/mesa/web"
	"github.com/mesahub/mesa/webpush"
	"github.com/nats-io/nats.go"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	errLogger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))
	infoLogger := slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{
		ReportTimestamp: true,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.CockroachURL)
	if err != nil {
		return fmt.Errorf("open cockroach connection pool: %w", err)
	}

	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		return fmt.Errorf("ping cockroach: %w", err)
	}

	migrationStart := time.Now()
	infoLogger.Info("starting cockroach migrations")

	if err := migrator.Migrate(context.Background(), dbPool, cockroach.MigrationsFS); err != nil {
		return fmt.Errorf("migrate cockroach schema: %w", err)
	}

	infoLogger.Info("finished cockroach migrations", "took", time.Since(migrationStart))

	tokens, err := auth.NewCodec(cfg.BrancaKey, cfg.TokenLifespan)
	if err != nil {
		return fmt.Errorf("create token codec: %w", err)
	}

	var ps pubsub.PubSub = pubsub.NewInProcess()
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}

		defer natsConn.Close()

		ps = pubsub.NewNATS(natsConn)
		infoLogger.Info("notification streaming over nats", "url", cfg.NATSURL)
	}

	push := webpush.NewClient(webpush.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	})
	if !push.Enabled() {
		infoLogger.Info("no VAPID credentials configured, push delivery disabled")
	}

	svc := service.New(&service.Config{
		Cockroach: cockroach.New(dbPool),
		PubSub:    ps,
		WebPush:   push,
		Tokens:    tokens,
		Logger:    errLogger,

		BaseCtx:           context.Background(),
		BackgroundTimeout: cfg.BackgroundTimeout,
		PushConcurrency:   cfg.PushConcurrency,
		PushTimeout:       cfg.PushTimeout,
	})

	go func() {
		for err := range svc.Errs() {
			errLogger.Error("service error", "error", err)
		}
	}()

	handler := &web.Handler{
		Service: svc,
		Logger:  errLogger,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	infoLogger.Info("starting mesa server", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start mesa server: %w", err)
	}

	return svc.Close()
}
