// Package obstrace wires OpenTelemetry into FlowTrace's own internal
// operations — internal/app spans source-tree injection and query-log
// loading — so an operator debugging the agent itself has spans to look at. This is distinct
// from the TraceEvent records the agent emits about the traced program: it
// is self-observability of the tracer, not the thing being traced.
package obstrace

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config configures the agent's self-observability tracer.
type Config struct {
	Enabled      bool
	ServiceName  string
	Endpoint     string
	SampleRate   float64
	BatchTimeout time.Duration
}

// DefaultConfig returns self-observability defaults: disabled, since most
// agent runs are short-lived CLI-driven instrumentation passes that don't
// warrant exporting spans anywhere.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ServiceName:  "flowtrace-agent",
		Endpoint:     "http://localhost:4318/v1/traces",
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// Manager owns the tracer provider and hands out a single tracer for the
// agent's own operations.
type Manager struct {
	config   Config
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// New builds a Manager. When disabled, it returns a no-op tracer so callers
// never need to branch on whether self-observability is turned on.
func New(config Config, logger *logrus.Logger) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config, logger: logger, tracer: otel.Tracer("noop")}, nil
	}

	m := &Manager{config: config, logger: logger}
	if err := m.initialize(); err != nil {
		return nil, fmt.Errorf("initialize self-observability tracer: %w", err)
	}
	return m, nil
}

func (m *Manager) initialize() error {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(m.config.Endpoint),
	))
	if err != nil {
		return fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(m.config.ServiceName)),
	)
	if err != nil {
		return fmt.Errorf("build resource: %w", err)
	}

	m.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(m.config.BatchTimeout)),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.config.SampleRate)),
	)
	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	m.tracer = otel.Tracer(m.config.ServiceName)

	m.logger.WithFields(logrus.Fields{
		"service_name": m.config.ServiceName,
		"endpoint":     m.config.Endpoint,
	}).Info("self-observability tracing initialized")
	return nil
}

// StartSpan starts a span for an internal agent operation.
func (m *Manager) StartSpan(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return m.tracer.Start(ctx, name)
}

// Shutdown flushes and stops the tracer provider, a no-op when disabled.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
