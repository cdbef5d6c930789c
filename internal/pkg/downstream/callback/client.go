package callback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"ess-loan-gateway/internal/pkg/config"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/logger"

	"go.uber.org/zap"
)

// Sender posts a signed document to the portal.
type Sender interface {
	Send(ctx context.Context, signedXML []byte) error
}

// DeliveryError is a callback the portal did not accept.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback delivery failed: statusCode=%d err=%v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("callback delivery failed: statusCode=%d body=%s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type HTTPSender struct {
	URL        string
	httpClient *http.Client
}

func NewHTTPSender(cfg config.ESSConfig) *HTTPSender {
	return &HTTPSender{
		URL:        cfg.CallbackURL,
		httpClient: &http.Client{Timeout: cfg.CallbackTimeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, signedXML []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(signedXML))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", consts.ContentTypeXML)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// -1: no HTTP response
		return &DeliveryError{StatusCode: -1, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.CtxError(ctx, "failed to close callback response body", cerr)
		}
	}()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logger.CtxInfo(ctx, "Received callback response", zap.Int("status", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
