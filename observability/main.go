package observability

import (
	"context"
	"net/http"
	"time"

	"santaapi/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type ObservabilityConnectProps struct {
	Logger      *logger.LogMiddleware
	ServiceName string
}

// Observability exposes service meters through a prometheus registry owned by
// this instance. All methods tolerate nil instruments so a failed exporter
// degrades to no-ops instead of taking the service down.
type Observability struct {
	logger          *logger.LogMiddleware
	registry        *prometheus.Registry
	meterProvider   *metric.MeterProvider
	callCounter     otelmetric.Int64Counter
	providerLatency otelmetric.Float64Histogram
}

func Connect(ctx context.Context, args ObservabilityConnectProps) *Observability {
	tracer := otel.Tracer("observability/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		span.RecordError(err)
		args.Logger.Logger(ctx).Error("[Observability] Failed to create Prometheus exporter", zap.Error(err))
		return &Observability{logger: args.Logger}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(args.ServiceName)

	callCounter, _ := meter.Int64Counter(
		"santa.calls",
		otelmetric.WithDescription("Call operations by outcome"),
	)

	providerLatency, _ := meter.Float64Histogram(
		"santa.provider.latency",
		otelmetric.WithDescription("Tavus conversation-create latency"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		logger:          args.Logger,
		registry:        registry,
		meterProvider:   provider,
		callCounter:     callCounter,
		providerLatency: providerLatency,
	}
}

func (o *Observability) RecordCall(ctx context.Context, outcome string) {
	if o.callCounter != nil {
		o.callCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordProviderLatency(ctx context.Context, duration time.Duration, outcome string) {
	if o.providerLatency != nil {
		o.providerLatency.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

// Handler serves this instance's registry.
func (o *Observability) Handler() http.Handler {
	if o.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
