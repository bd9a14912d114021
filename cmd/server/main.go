package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms-transactions/pkg/api"
	"sms-transactions/pkg/auth"
	"sms-transactions/pkg/config"
	"sms-transactions/pkg/events"
	"sms-transactions/pkg/events/kafka"
	"sms-transactions/pkg/loader"
	"sms-transactions/pkg/logging"
	"sms-transactions/pkg/metrics"
	promMetrics "sms-transactions/pkg/metrics/prometheus"
	"sms-transactions/pkg/resilience"
	"sms-transactions/pkg/store"
	"sms-transactions/pkg/store/bloom"
	"sms-transactions/pkg/store/memory"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}

func run(cfg config.Config, logger *logging.Logger) error {
	collector, metricsHandler, err := newMetrics(cfg)
	if err != nil {
		return err
	}

	// the document is fully loaded before the listener opens
	ld := &loader.Loader{Logger: logger, Metrics: collector, Strict: cfg.LoadStrict}
	ds, err := ld.Load(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.DataPath, err)
	}

	st := newStore(cfg, ds, collector, logger)

	credentials := auth.DefaultCredentials()
	if cfg.Credentials != "" {
		credentials, err = auth.ParseCredentials(cfg.Credentials)
		if err != nil {
			return fmt.Errorf("API_CREDENTIALS: %w", err)
		}
	}
	guard := auth.NewGuard(credentials, auth.GuardConfig{
		Realm:   cfg.Realm,
		Metrics: collector,
		Logger:  logger,
	})

	dispatcher, err := newDispatcher(cfg, collector, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(st, guard, api.ServerConfig{
		Address:        cfg.Address,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MetricsHandler: metricsHandler,
		Events:         dispatcher,
		Metrics:        collector,
		Logger:         logger,
	})

	logger.Info("starting SMS transaction API",
		zap.String("address", cfg.Address),
		zap.Int("transactions", st.Len()),
		zap.Int("users", credentials.Len()),
		zap.Bool("bloom_filter", cfg.BloomFilter),
		zap.Bool("events", cfg.Events.Enabled()),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.ListenAndServe)

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		if err := dispatcher.Flush(cfg.ShutdownTimeout); err != nil {
			logger.Warn("pending events not published", zap.Error(err))
		}
		return dispatcher.Close()
	})

	return g.Wait()
}

func newMetrics(cfg config.Config) (metrics.MetricsCollector, http.Handler, error) {
	if !cfg.MetricsEnabled {
		return metrics.NoOpCollector{}, nil, nil
	}

	registry := prometheus.NewRegistry()
	collector := promMetrics.NewPrometheusCollector(cfg.MetricsNamespace)
	if err := collector.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return collector, promMetrics.Handler(registry), nil
}

func newStore(cfg config.Config, ds *loader.Dataset, collector metrics.MetricsCollector, logger *logging.Logger) store.Store {
	mem := memory.NewStore(memory.StoreConfig{Metrics: collector, Logger: logger}, ds)
	if !cfg.BloomFilter {
		return mem
	}
	return bloom.NewStore(mem, mem.IDs(), bloom.Config{
		ExpectedItems:     cfg.BloomExpectedItems,
		FalsePositiveRate: cfg.BloomFPRate,
		Metrics:           collector,
	})
}

func newDispatcher(cfg config.Config, collector metrics.MetricsCollector, logger *logging.Logger) (*events.Dispatcher, error) {
	var publisher events.Publisher = events.NoOpPublisher{}

	if cfg.Events.Enabled() {
		kp, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		})
		if err != nil {
			return nil, err
		}

		rc := resilience.DefaultPublisherConfig().
			WithTimeout(cfg.Events.PublishTimeout).
			WithCircuitBreakerTimeout(cfg.Events.CircuitTimeout)
		rc.Name = "kafka"
		publisher = resilience.NewPublisherWithMetrics(kp, rc, collector, logger)

		logger.Info("publishing change events",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", kp.Topic()),
		)
	}

	return events.NewDispatcher(publisher, events.DispatcherConfig{
		QueueSize:      cfg.Events.QueueSize,
		Workers:        cfg.Events.Workers,
		ReportInterval: 5 * time.Second,
		Metrics:        collector,
		Logger:         logger,
	}), nil
}
