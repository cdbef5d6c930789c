package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Surfaces group routes by who calls them.
const (
	SurfacePortal  = "portal"
	SurfaceLedger  = "ledger"
	SurfaceOps     = "ops"
	SurfaceProbe   = "probe"
	SurfaceUnknown = "unmatched"
)

func surfaceOf(route string) string {
	switch {
	case route == "":
		return SurfaceUnknown
	case strings.HasPrefix(route, "/ess/"):
		return SurfacePortal
	case strings.HasPrefix(route, "/ledger/"):
		return SurfaceLedger
	case strings.HasPrefix(route, "/ops/"):
		return SurfaceOps
	default:
		return SurfaceProbe
	}
}

func outcomeOf(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}

// NewMetricMiddleware records latency and body sizes per route. Portal traffic is always answered 200
// with a signed document, so its business outcome lives in the prometheus response-code counter instead.
func NewMetricMiddleware(meter metric.Meter) gin.HandlerFunc {
	latency, _ := meter.Float64Histogram(
		"ess_gateway.http.server.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time to answer an HTTP request."),
	)
	requests, _ := meter.Int64Counter(
		"ess_gateway.http.server.requests",
		metric.WithDescription("HTTP requests by surface and outcome."),
	)
	bodySize, _ := meter.Int64Histogram(
		"ess_gateway.http.server.body_size",
		metric.WithUnit("By"),
		metric.WithDescription("Request and response body sizes."),
	)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		route := c.FullPath()
		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPMethodKey.String(c.Request.Method),
			semconv.HTTPStatusCodeKey.Int(status),
			attribute.String("ess.surface", surfaceOf(route)),
		}

		latency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		requests.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", outcomeOf(status)))...))
		if n := c.Request.ContentLength; n > 0 {
			bodySize.Record(ctx, n, metric.WithAttributes(append(attrs, attribute.String("direction", "request"))...))
		}
		if n := c.Writer.Size(); n > 0 {
			bodySize.Record(ctx, int64(n), metric.WithAttributes(append(attrs, attribute.String("direction", "response"))...))
		}
	}
}
