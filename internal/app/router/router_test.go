package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ess-loan-gateway/internal/app/handlers"
	"ess-loan-gateway/internal/app/middleware"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/metrics"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubServices struct{}

func (stubServices) HandleInbound(ctx context.Context, raw []byte) ([]byte, error) {
	return []byte("<Document/>"), nil
}

func (stubServices) HandleLedgerEvent(ctx context.Context, event *eventmodels.LedgerEvent) error {
	return nil
}

func (stubServices) FindByApplicationID(ctx context.Context, id string) (*models.LoanApplication, error) {
	return nil, &error_handling.NotFoundError{Resource: "application", ID: id}
}

func (stubServices) ListByApplication(ctx context.Context, id string) ([]models.Task, error) {
	return nil, nil
}

func (stubServices) Resend(ctx context.Context, id string) (int64, error) { return 0, nil }

func (stubServices) Reconcile(ctx context.Context) (saga.ReconcileResult, error) {
	return saga.ReconcileResult{}, nil
}

func (stubServices) Save(ctx context.Context, product models.LoanProduct) error { return nil }

func (stubServices) ListActive(ctx context.Context) ([]models.LoanProduct, error) { return nil, nil }

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := stubServices{}
	m := metrics.New()
	m.ObserveResponse("LOAN_OFFER_REQUEST", "8000")
	return SetupRouter("ess-loan-gateway-test", Handlers{
		Ess:     handlers.NewEssHandler(s, 1<<20),
		Ledger:  handlers.NewLedgerWebhookHandler(s),
		Ops:     handlers.NewOpsHandler(s, s, s, s, s),
		Health:  handlers.NewHealthCheckHandler(map[string]handlers.Check{}),
		Metrics: m.Handler(),
	})
}

func TestSetupRouter_Routes(t *testing.T) {
	r := newRouter()
	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/ess/api", "<Document/>", http.StatusOK},
		{http.MethodPost, "/ledger/webhooks", `{"eventId":"e1","type":"APPROVE","loanId":"L-1"}`, http.StatusAccepted},
		{http.MethodGet, "/ops/applications/APP-1", "", http.StatusNotFound},
		{http.MethodPost, "/ops/applications/APP-1/callbacks/resend", "", http.StatusOK},
		{http.MethodPost, "/ops/reconcile", "", http.StatusOK},
		{http.MethodGet, "/ops/products", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ess/api", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestSetupRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ess_gateway_inbound_responses_total{message_type="LOAN_OFFER_REQUEST",response_code="8000"} 1`)
}
