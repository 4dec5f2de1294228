// Command server runs the collaborative outage-reporting service for
// São Paulo: users submit a CEP plus an incident type, the service resolves
// it to a district and serves ranked aggregations and choropleth data.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/opensampa/outage-map/internal/adapter/brasilapi"
	"github.com/opensampa/outage-map/internal/adapter/httpapi"
	kafkaadapter "github.com/opensampa/outage-map/internal/adapter/kafka"
	"github.com/opensampa/outage-map/internal/config"
	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/geometry"
	"github.com/opensampa/outage-map/internal/observability"
	"github.com/opensampa/outage-map/internal/service"
	"github.com/opensampa/outage-map/internal/store"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	districts := geometry.NewStore(cfg.DistrictArchivePath, cfg.DistrictGeoJSONPath, metrics, logger)
	// Warm the load-once index off the request path; a missing dataset only
	// disables polygon rendering.
	go districts.Index()

	// External CEP fallback (feature-flagged via CEP_FALLBACK_ENABLED).
	var fallback domain.CEPFallback
	if cfg.FallbackEnabled {
		client := brasilapi.NewClient(cfg.FallbackBaseURL, cfg.FallbackTimeout, metrics, logger)
		fallback = brasilapi.NewCachedFallback(client, cfg.FallbackCacheSize, metrics)
		logger.Info("cep fallback enabled", "base_url", cfg.FallbackBaseURL, "timeout", cfg.FallbackTimeout)
	} else {
		logger.Info("cep fallback disabled")
	}

	resolver := domain.NewResolver(domain.SaoPauloTable(), districts, fallback, logger)
	reports := store.New(cfg.ReportWindow, cfg.SubmitInterval, clockwork.NewRealClock())

	var publisher service.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	svc := service.New(resolver, reports, districts, publisher, logger, metrics)
	srv := httpapi.NewServer(cfg.HTTPAddr, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
