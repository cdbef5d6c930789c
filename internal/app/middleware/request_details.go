package middleware

import (
	"strings"
	"time"

	"ess-loan-gateway/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-Id"

var sensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key"}

// RequestDetails tags every request with a request id and logs one line when it completes.
func RequestDetails() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()

		logger.CtxInfo(c.Request.Context(), "Request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Any("headers", maskHeaders(c.Request.Header)),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func maskHeaders(headers map[string][]string) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[key] = values[0]
		for _, sensitive := range sensitiveHeaders {
			if strings.EqualFold(key, sensitive) {
				result[key] = "*****"
				break
			}
		}
	}
	return result
}
