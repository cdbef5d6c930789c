package otel

import (
	"context"
	"sync"
	"time"

	"ess-loan-gateway/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	exporterTimeout = 5 * time.Second
	serviceNS       = "ess"
)

// Span attribute keys shared by the gateway, saga and task spans.
const (
	ApplicationIDKey = attribute.Key("ess.application_id")
	MessageTypeKey   = attribute.Key("ess.message_type")
	TaskKindKey      = attribute.Key("ess.task_kind")
)

var (
	mu         sync.RWMutex
	tracer     trace.Tracer
	warnedOnce sync.Once
)

// Setup installs the global tracer provider exporting to the OTLP collector and returns its shutdown.
// An unusable collector endpoint is logged once and spans fall back to the noop tracer.
func Setup(ctx context.Context, serviceName, collectorURL string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace(serviceNS),
		),
	)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()
	exporter, err := otlptracehttp.New(dialCtx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(collectorURL),
	)
	if err != nil {
		warnedOnce.Do(func() { logger.Error("OTLP exporter unavailable, tracing disabled", err) })
		return func(context.Context) error { return nil }, nil
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	mu.Lock()
	tracer = provider.Tracer(serviceName)
	mu.Unlock()

	return func(ctx context.Context) error {
		flushCtx, cancel := context.WithTimeout(ctx, exporterTimeout)
		defer cancel()
		return provider.Shutdown(flushCtx)
	}, nil
}

func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return tracer
}

// StartSpan opens a span on the service tracer. Ctx* log lines under it carry its trace id.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks span as errored. A nil err leaves the span untouched.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
