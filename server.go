package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"santaapi/analytics"
	"santaapi/arcs"
	"santaapi/config"
	"santaapi/httpserver"
	"santaapi/logger"
	"santaapi/observability"
	"santaapi/orchestrator"
	"santaapi/personalize"
	"santaapi/tavusapi"

	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration - %v", err)
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: cfg.Production, LoggerProvider: loggerProvider})
	Logger := LogMiddleware.Logger(ctx)

	Logger.Info("[Config] Environment loaded",
		zap.Bool("tavus_api_key_set", cfg.TavusAPIKey != ""),
		zap.Bool("tavus_persona_id_set", cfg.TavusPersonaID != ""),
		zap.String("tavus_base_url", cfg.TavusBaseURL),
		zap.String("port", cfg.Port))

	catalog, err := arcs.Load(cfg.ArcsFile)
	if err != nil {
		Logger.Fatal("[Arcs] Could not load conversation arc catalog", zap.Error(err))
	}
	Logger.Info("[Arcs] Conversation arc catalog loaded", zap.Strings("durations", catalog.Durations()))

	obs := observability.Connect(ctx, observability.ObservabilityConnectProps{Logger: LogMiddleware, ServiceName: "santa-api"})
	defer obs.Shutdown()

	aggregator := analytics.Connect(ctx, analytics.AnalyticsConnectProps{Logger: LogMiddleware})
	defer aggregator.Close()

	engine := personalize.Connect(ctx, personalize.PersonalizeConnectProps{
		Logger:  LogMiddleware,
		Catalog: catalog,
		Rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	tavusClient := tavusapi.Connect(ctx, tavusapi.TavusConnectProps{Logger: LogMiddleware, Config: cfg})

	orch := orchestrator.Connect(ctx, orchestrator.OrchestratorConnectProps{
		Logger:        LogMiddleware,
		Config:        cfg,
		Personalize:   engine,
		Tavus:         tavusClient,
		Analytics:     aggregator,
		Observability: obs,
	})

	server := httpserver.Connect(ctx, httpserver.ServerConnectProps{
		Logger:        LogMiddleware,
		Config:        cfg,
		Catalog:       catalog,
		Orchestrator:  orch,
		Tavus:         tavusClient,
		Analytics:     aggregator,
		Observability: obs,
	})

	if cfg.Production == false {
		Logger.Info("[Server] Starting in development mode")
	} else {
		Logger.Info("[Server] Starting in production mode")
	}

	if err := server.Listen(ctx); err != nil {
		Logger.Fatal("[Server] HTTP server stopped", zap.Error(err))
	}
}
