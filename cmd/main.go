/**
 * @description
 * This is the main entry point for the eConfirm mobile gateway. It loads configuration,
 * opens the device-local store, connects the analytics publisher, builds the app state
 * machines on top of the eConfirm REST client, and serves them over HTTP.
 *
 * @dependencies
 * - internal/config: viper-based configuration.
 * - internal/store: sqlite, redis or postgres key-value persistence.
 * - pkg/econfirmclient: eConfirm mobile API client.
 * - pkg/rabbitmq: analytics event publisher.
 * - internal/app, internal/api: state machines and their HTTP surface.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/api"
	"github.com/AlbertWebs/e-confirm-mobile/internal/app"
	"github.com/AlbertWebs/e-confirm-mobile/internal/config"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/econfirmclient"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("starting econfirm gateway", "port", cfg.ServerPort, "api_base_url", cfg.APIBaseURL, "storage", cfg.StorageDriver)

	ctx := context.Background()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open local store", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	logger.Info("local store opened", "driver", cfg.StorageDriver)

	var events rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		} else {
			events = producer
			logger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
		}
	}
	defer events.Close()

	client := econfirmclient.NewClient(cfg.APIBaseURL, cfg.APITimeout(), logger)

	state := app.NewAppState(client, logger)
	session := app.NewSession(kv, client, logger)
	if err := session.Load(ctx); err != nil {
		logger.Warn("failed to restore session; starting as guest", "error", err)
	}
	state.LoadCatalog(ctx)

	clock := app.SystemClock{}
	deps := api.Dependencies{
		State:       state,
		Session:     session,
		Wizard:      app.NewWizard(client, state, session, events, logger),
		Payment:     app.NewPaymentFlow(client, state, events, logger),
		Poller:      app.NewStatusPoller(client, clock, cfg.PollInterval(), cfg.PollTimeout(), events, logger),
		Escrow:      app.NewEscrowDetail(client, session, state, events, logger),
		OTP:         app.NewOTPSession(client, session, clock, cfg.OTPResendDelay(), logger),
		History:     app.NewHistory(client, logger),
		Complaints:  app.NewComplaints(client, kv, events, logger),
		Preferences: app.NewPreferences(kv, logger),
	}

	scheduler := app.NewScheduler(state, cfg.CatalogRefreshSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.NewHandler(deps, logger), cfg.Origins(), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("http server listening", "addr", server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	deps.Poller.Exit()
	deps.OTP.Exit()
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}

// openStore returns the key-value store selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg config.Config) (store.KeyValueStore, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	case config.StorageRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis storage driver")
		}
		client, err := store.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client, cfg.RedisKeyPrefix), nil
	case config.StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
