package handlers

import (
	"errors"
	"io"
	"net/http"

	"ess-loan-gateway/internal/app"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"
	pubsub_service "ess-loan-gateway/internal/service/pubsub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBytes = 64 << 10

type LedgerWebhookHandler struct {
	saga app.LedgerEventApplier
}

func NewLedgerWebhookHandler(saga app.LedgerEventApplier) *LedgerWebhookHandler {
	return &LedgerWebhookHandler{saga: saga}
}

// LedgerEvent applies a ledger notification. Events for loans we do not know yet get a 404 so the
// ledger retries them.
func (h *LedgerWebhookHandler) LedgerEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	event, err := pubsub_service.DecodeLedgerEvent(body)
	if err != nil {
		logger.CtxWarn(ctx, "Rejected ledger webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx = logger.WithTraceID(ctx, event.EventID)
	err = h.saga.HandleLedgerEvent(ctx, event)

	var notFound *error_handling.NotFoundError
	var stateErr *error_handling.StateError
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"eventId": event.EventID, "status": "applied"})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &stateErr):
		logger.CtxWarn(ctx, "Ledger event does not apply", zap.String("loan_id", event.LoanID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"eventId": event.EventID, "status": "ignored"})
	default:
		logger.CtxError(ctx, "Failed to apply ledger event", err, zap.String("loan_id", event.LoanID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event not applied"})
	}
}
