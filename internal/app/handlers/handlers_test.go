package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) HandleInbound(ctx context.Context, raw []byte) ([]byte, error) {
	args := m.Called(ctx, raw)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

type mockApplier struct{ mock.Mock }

func (m *mockApplier) HandleLedgerEvent(ctx context.Context, event *eventmodels.LedgerEvent) error {
	return m.Called(ctx, event).Error(0)
}

type mockOps struct{ mock.Mock }

func (m *mockOps) FindByApplicationID(ctx context.Context, id string) (*models.LoanApplication, error) {
	args := m.Called(ctx, id)
	app, _ := args.Get(0).(*models.LoanApplication)
	return app, args.Error(1)
}

func (m *mockOps) ListByApplication(ctx context.Context, id string) ([]models.Task, error) {
	args := m.Called(ctx, id)
	tasks, _ := args.Get(0).([]models.Task)
	return tasks, args.Error(1)
}

func (m *mockOps) Resend(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOps) Reconcile(ctx context.Context) (saga.ReconcileResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(saga.ReconcileResult), args.Error(1)
}

func (m *mockOps) Save(ctx context.Context, product models.LoanProduct) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockOps) ListActive(ctx context.Context) ([]models.LoanProduct, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]models.LoanProduct)
	return products, args.Error(1)
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestEssHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		limit      int64
		passedBody []byte
		signed     []byte
		signErr    error
		wantStatus int
	}{
		{name: "answers with signed document", body: "<Document/>", passedBody: []byte("<Document/>"),
			signed: []byte("<Document>ok</Document>"), wantStatus: http.StatusOK},
		{name: "oversized body answered as malformed", body: strings.Repeat("x", 32), limit: 16, passedBody: nil,
			signed: []byte("<Document>8001</Document>"), wantStatus: http.StatusOK},
		{name: "signing failure", body: "<Document/>", passedBody: []byte("<Document/>"),
			signErr: errors.New("no key"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{}
			gw.On("HandleInbound", mock.Anything, tt.passedBody).Return(tt.signed, tt.signErr).Once()
			r := gin.New()
			r.POST("/ess/api", NewEssHandler(gw, tt.limit).Inbound)

			rec := serve(r, http.MethodPost, "/ess/api", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.signErr == nil {
				assert.Equal(t, string(tt.signed), rec.Body.String())
				assert.Contains(t, rec.Header().Get("Content-Type"), "xml")
			}
			gw.AssertExpectations(t)
		})
	}
}

func TestLedgerWebhookHandler(t *testing.T) {
	valid := `{"eventId":"e1","type":"DISBURSE","loanId":"L-1","success":true}`
	tests := []struct {
		name       string
		body       string
		sagaErr    error
		callsSaga  bool
		wantStatus int
	}{
		{name: "applied", body: valid, callsSaga: true, wantStatus: http.StatusAccepted},
		{name: "unknown loan is retried", body: valid, callsSaga: true,
			sagaErr: &error_handling.NotFoundError{Resource: "application", ID: "L-1"}, wantStatus: http.StatusNotFound},
		{name: "state conflict ignored", body: valid, callsSaga: true,
			sagaErr: &error_handling.StateError{ApplicationID: "A", Status: "FAILED", Action: "disburse"}, wantStatus: http.StatusOK},
		{name: "unexpected error", body: valid, callsSaga: true, sagaErr: errors.New("mongo down"), wantStatus: http.StatusInternalServerError},
		{name: "broken json", body: `{"eventId":`, wantStatus: http.StatusBadRequest},
		{name: "unknown type", body: `{"eventId":"e1","type":"WAIVE","loanId":"L-1"}`, wantStatus: http.StatusBadRequest},
		{name: "missing loan id", body: `{"eventId":"e1","type":"APPROVE"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &mockApplier{}
			if tt.callsSaga {
				applier.On("HandleLedgerEvent", mock.Anything, mock.MatchedBy(func(e *eventmodels.LedgerEvent) bool {
					return e.LoanID == "L-1" && e.Type == eventmodels.LedgerEventDisburse && !e.Failed()
				})).Return(tt.sagaErr).Once()
			}
			r := gin.New()
			r.POST("/ledger/webhooks", NewLedgerWebhookHandler(applier).LedgerEvent)

			rec := serve(r, http.MethodPost, "/ledger/webhooks", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			applier.AssertExpectations(t)
		})
	}
}

func newOpsRouter(ops *mockOps) *gin.Engine {
	h := NewOpsHandler(ops, ops, ops, ops, ops)
	r := gin.New()
	r.GET("/ops/applications/:applicationId", h.GetApplication)
	r.POST("/ops/applications/:applicationId/callbacks/resend", h.ResendCallbacks)
	r.POST("/ops/reconcile", h.Reconcile)
	r.GET("/ops/products", h.ListProducts)
	r.PUT("/ops/products/:productCode", h.PutProduct)
	return r
}

func TestOpsHandler_GetApplication(t *testing.T) {
	ops := &mockOps{}
	ops.On("FindByApplicationID", mock.Anything, "APP-1").
		Return(&models.LoanApplication{ApplicationID: "APP-1", Status: consts.StatusDisbursed}, nil)
	ops.On("ListByApplication", mock.Anything, "APP-1").
		Return([]models.Task{{TaskID: "t1", Kind: consts.TaskDeliverCallback, Status: consts.TaskDead}}, nil)
	ops.On("FindByApplicationID", mock.Anything, "APP-404").
		Return(nil, &error_handling.NotFoundError{Resource: "application", ID: "APP-404"})
	r := newOpsRouter(ops)

	rec := serve(r, http.MethodGet, "/ops/applications/APP-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applicationId":"APP-1"`)
	assert.Contains(t, rec.Body.String(), `"DISBURSED"`)
	assert.Contains(t, rec.Body.String(), `"t1"`)

	rec = serve(r, http.MethodGet, "/ops/applications/APP-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	ops.AssertNotCalled(t, "ListByApplication", mock.Anything, "APP-404")
}

func TestOpsHandler_ResendCallbacks(t *testing.T) {
	ops := &mockOps{}
	ops.On("Resend", mock.Anything, "APP-1").Return(int64(2), nil)
	ops.On("Resend", mock.Anything, "APP-9").Return(int64(0), errors.New("mongo down"))
	r := newOpsRouter(ops)

	rec := serve(r, http.MethodPost, "/ops/applications/APP-1/callbacks/resend", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applicationId":"APP-1","requeued":2}`, rec.Body.String())

	rec = serve(r, http.MethodPost, "/ops/applications/APP-9/callbacks/resend", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo")
}

func TestOpsHandler_Reconcile(t *testing.T) {
	ops := &mockOps{}
	ops.On("Reconcile", mock.Anything).Return(saga.ReconcileResult{Scanned: 3, Completed: 1}, nil).Once()
	ops.On("Reconcile", mock.Anything).Return(saga.ReconcileResult{Skipped: true}, nil).Once()
	r := newOpsRouter(ops)

	rec := serve(r, http.MethodPost, "/ops/reconcile", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scanned":3,"completed":1,"failed":0,"skipped":false}`, rec.Body.String())

	rec = serve(r, http.MethodPost, "/ops/reconcile", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOpsHandler_PutProduct(t *testing.T) {
	ops := &mockOps{}
	ops.On("Save", mock.Anything, mock.MatchedBy(func(p models.LoanProduct) bool {
		return p.ProductCode == "SAL001" && p.MaxTenure == 96 && p.LedgerProductID == "7" && p.Active
	})).Return(nil).Once()
	r := newOpsRouter(ops)

	body := `{"name":"Salary loan","minPrincipal":100000,"maxPrincipal":50000000,"minTenure":6,"maxTenure":96,
		"annualRatePct":18,"processingFeePct":1,"insurancePct":0.5,"ledgerProductId":"7","active":true}`
	rec := serve(r, http.MethodPut, "/ops/products/SAL001", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"productCode":"SAL001"`)

	rec = serve(r, http.MethodPut, "/ops/products/SAL002", `{"name":"Broken","minTenure":12,"maxTenure":6,"ledgerProductId":"8"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ops.AssertNumberOfCalls(t, "Save", 1)
}

func TestOpsHandler_ListProducts(t *testing.T) {
	ops := &mockOps{}
	ops.On("ListActive", mock.Anything).Return([]models.LoanProduct{{ProductCode: "SAL001", Active: true}}, nil).Once()
	ops.On("ListActive", mock.Anything).Return(nil, nil).Once()
	ops.On("ListActive", mock.Anything).Return(nil, errors.New("mongo down")).Once()
	r := newOpsRouter(ops)

	rec := serve(r, http.MethodGet, "/ops/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"productCode":"SAL001"`)

	rec = serve(r, http.MethodGet, "/ops/products", "")
	assert.JSONEq(t, `{"products":[]}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/ops/products", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthCheckHandler(t *testing.T) {
	r := gin.New()
	r.GET("/up", NewHealthCheckHandler(map[string]Check{
		"mongo": func(ctx context.Context) error { return nil },
	}).HealthCheck)
	r.GET("/down", NewHealthCheckHandler(map[string]Check{
		"mongo": func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	}).HealthCheck)

	rec := serve(r, http.MethodGet, "/up", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP","checks":{"mongo":"UP"}}`, rec.Body.String())

	rec = serve(r, http.MethodGet, "/down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"mongo":"UP","redis":"connection refused"}}`, rec.Body.String())
}
