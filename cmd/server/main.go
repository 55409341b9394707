package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fulfillment/internal/app"
	"fulfillment/internal/config"
	"fulfillment/internal/notify"
	internalRedis "fulfillment/internal/redis"
	"fulfillment/internal/repository/postgres"
	"fulfillment/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("New Relic disabled", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(startCtx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()

	store := postgres.NewStore(db)
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(startCtx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database schema applied")
	}

	redisClient, err := app.NewRedisClient(startCtx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	location, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	sinks := []service.Sink{notify.NewLogSink(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := notify.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer writer.Close()
		sinks = append(sinks, notify.NewKafkaSink(writer))
		logger.Info("publishing lifecycle events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	directory := postgres.NewDirectory(db)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services := app.NewServices(app.ServiceDeps{
		Store: service.Store{
			Tx:       store,
			Repos:    store.Repositories(),
			Listings: internalRedis.NewListingCache(internalRedis.NewCacheStore(redisClient), directory, logger),
			Profiles: directory,
		},
		Rules: service.Rules{
			OTPTTL:         cfg.Booking.OTPTTL,
			OTPMaxAttempts: cfg.Booking.OTPMaxAttempts,
			LeadTime:       cfg.Booking.LeadTime,
			Location:       location,
		},
		Verifier: service.NewMockPaymentVerifier(),
		Sinks:    sinks,
		Metrics:  service.NewMetrics(registry),
		Logger:   logger,
	})

	router := app.NewRouter(app.RouterDeps{
		Services:       services,
		Responses:      internalRedis.NewResponseStore(redisClient),
		NewRelicApp:    nrApp,
		Logger:         logger,
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewOTPSweeper(services.OTP, internalRedis.NewLockStore(redisClient),
		cfg.Booking.SweepInterval, cfg.Booking.SweepGrace, logger)
	go sweeper.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
	return nil
}
