package router

import (
	"net/http"

	"ess-loan-gateway/internal/app/handlers"
	"ess-loan-gateway/internal/app/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
)

// Handlers are the endpoint groups the router mounts.
type Handlers struct {
	Ess     *handlers.EssHandler
	Ledger  *handlers.LedgerWebhookHandler
	Ops     *handlers.OpsHandler
	Health  *handlers.HealthCheckHandler
	Metrics http.Handler
}

func SetupRouter(serviceName string, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middleware.NewMetricMiddleware(otel.Meter(serviceName)))
	r.Use(middleware.RequestDetails())

	r.POST("/ess/api", h.Ess.Inbound)
	r.POST("/ledger/webhooks", h.Ledger.LedgerEvent)

	ops := r.Group("/ops")
	{
		ops.GET("/applications/:applicationId", h.Ops.GetApplication)
		ops.POST("/applications/:applicationId/callbacks/resend", h.Ops.ResendCallbacks)
		ops.POST("/reconcile", h.Ops.Reconcile)
		ops.GET("/products", h.Ops.ListProducts)
		ops.PUT("/products/:productCode", h.Ops.PutProduct)
	}

	r.GET("/health", h.Health.HealthCheck)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	return r
}
