package handlers

import (
	"errors"
	"io"
	"net/http"

	"ess-loan-gateway/internal/app"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EssHandler struct {
	gateway      app.InboundGateway
	maxBodyBytes int64
}

func NewEssHandler(gateway app.InboundGateway, maxBodyBytes int64) *EssHandler {
	return &EssHandler{gateway: gateway, maxBodyBytes: maxBodyBytes}
}

// Inbound answers every portal document with a signed document, including documents that cannot be read.
func (h *EssHandler) Inbound(c *gin.Context) {
	ctx := c.Request.Context()

	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.CtxWarn(ctx, "Inbound document over size limit", zap.Int64("limit", tooLarge.Limit))
		} else {
			logger.CtxWarn(ctx, "Failed to read inbound document", zap.Error(err))
		}
		// an empty document is answered as malformed
		raw = nil
	}

	signed, err := h.gateway.HandleInbound(ctx, raw)
	if err != nil {
		logger.CtxError(ctx, "Failed to produce signed response", err)
		c.String(http.StatusInternalServerError, "unable to sign response")
		return
	}
	c.Data(http.StatusOK, consts.ContentTypeXML, signed)
}
