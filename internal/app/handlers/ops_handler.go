package handlers

import (
	"errors"
	"net/http"

	"ess-loan-gateway/internal/app"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/store/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OpsHandler serves the operator endpoints: inspection, callback resend, reconcile and the product catalog.
type OpsHandler struct {
	apps       app.ApplicationReader
	tasks      app.TaskLister
	callbacks  app.CallbackResender
	reconciler app.Reconciler
	products   app.ProductCatalog
}

func NewOpsHandler(
	apps app.ApplicationReader,
	tasks app.TaskLister,
	callbacks app.CallbackResender,
	reconciler app.Reconciler,
	products app.ProductCatalog,
) *OpsHandler {
	return &OpsHandler{apps: apps, tasks: tasks, callbacks: callbacks, reconciler: reconciler, products: products}
}

type productRequest struct {
	Name             string  `json:"name" binding:"required"`
	MinPrincipal     float64 `json:"minPrincipal" binding:"gte=0"`
	MaxPrincipal     float64 `json:"maxPrincipal" binding:"gtefield=MinPrincipal"`
	MinTenure        int     `json:"minTenure" binding:"gte=1"`
	MaxTenure        int     `json:"maxTenure" binding:"gtefield=MinTenure"`
	AnnualRatePct    float64 `json:"annualRatePct" binding:"gte=0,lte=100"`
	ProcessingFeePct float64 `json:"processingFeePct" binding:"gte=0,lt=100"`
	InsurancePct     float64 `json:"insurancePct" binding:"gte=0,lt=100"`
	OtherCharges     float64 `json:"otherCharges" binding:"gte=0"`
	LedgerProductID  string  `json:"ledgerProductId" binding:"required"`
	Active           bool    `json:"active"`
}

func (h *OpsHandler) ListProducts(c *gin.Context) {
	products, err := h.products.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if products == nil {
		products = []models.LoanProduct{}
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *OpsHandler) GetApplication(c *gin.Context) {
	ctx := c.Request.Context()
	applicationID := c.Param("applicationId")

	application, err := h.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		writeError(c, err)
		return
	}
	tasks, err := h.tasks.ListByApplication(ctx, applicationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": application, "tasks": tasks})
}

func (h *OpsHandler) ResendCallbacks(c *gin.Context) {
	applicationID := c.Param("applicationId")
	requeued, err := h.callbacks.Resend(c.Request.Context(), applicationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applicationId": applicationID, "requeued": requeued})
}

func (h *OpsHandler) Reconcile(c *gin.Context) {
	result, err := h.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if result.Skipped {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}

func (h *OpsHandler) PutProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product := models.LoanProduct{
		ProductCode:      c.Param("productCode"),
		Name:             req.Name,
		MinPrincipal:     req.MinPrincipal,
		MaxPrincipal:     req.MaxPrincipal,
		MinTenure:        req.MinTenure,
		MaxTenure:        req.MaxTenure,
		AnnualRatePct:    req.AnnualRatePct,
		ProcessingFeePct: req.ProcessingFeePct,
		InsurancePct:     req.InsurancePct,
		OtherCharges:     req.OtherCharges,
		LedgerProductID:  req.LedgerProductID,
		Active:           req.Active,
	}
	if err := h.products.Save(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}
	logger.CtxInfo(c.Request.Context(), "Loan product saved",
		zap.String("product_code", product.ProductCode), zap.Bool("active", product.Active))
	c.JSON(http.StatusOK, product)
}

func writeError(c *gin.Context, err error) {
	var notFound *error_handling.NotFoundError
	var stateErr *error_handling.StateError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	default:
		logger.CtxError(c.Request.Context(), "Ops request failed", err, zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
