package pubsub_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// MessageIgnoreError is a special error type that signals the PubSub consumer
// to neither ACK nor NACK the message, effectively letting it be redelivered
// after the redelivery timeout
type MessageIgnoreError struct {
	Err error
}

func (e *MessageIgnoreError) Error() string {
	return fmt.Sprintf("message ignored for redelivery: %v", e.Err)
}

func (e *MessageIgnoreError) Unwrap() error { return e.Err }

// LedgerEventApplier is the part of the saga that consumes ledger events.
type LedgerEventApplier interface {
	HandleLedgerEvent(ctx context.Context, event *models.LedgerEvent) error
}

type LedgerEventConsumer struct {
	saga LedgerEventApplier
}

func NewLedgerEventConsumer(saga LedgerEventApplier) *LedgerEventConsumer {
	return &LedgerEventConsumer{saga: saga}
}

// HandleLedgerEventMessage decodes one subscription message. Unreadable events are dropped (acked),
// events for loans not yet linked to an application are left for redelivery.
func (c *LedgerEventConsumer) HandleLedgerEventMessage(ctx context.Context, msg []byte) error {
	event, err := DecodeLedgerEvent(msg)
	if err != nil {
		logger.CtxError(ctx, fmt.Sprintf(log_messages.ErrorUnmarshalingPubsubMessage, err), err)
		return nil
	}

	ctx = logger.WithTraceID(ctx, event.EventID)
	err = c.saga.HandleLedgerEvent(ctx, event)
	if err == nil {
		return nil
	}

	var notFound *error_handling.NotFoundError
	var stateErr *error_handling.StateError
	switch {
	case errors.As(err, &notFound):
		return &MessageIgnoreError{Err: err}
	case errors.As(err, &stateErr):
		logger.CtxWarn(ctx, "Ledger event does not apply to application state",
			zap.String("loan_id", event.LoanID), zap.String("type", event.Type), zap.Error(err))
		return nil
	default:
		return err
	}
}

// DecodeLedgerEvent parses and validates a ledger event body shared by the webhook and the subscription.
func DecodeLedgerEvent(body []byte) (*models.LedgerEvent, error) {
	var event models.LedgerEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode ledger event: %w", err)
	}
	if err := validate.Struct(&event); err != nil {
		return nil, fmt.Errorf("invalid ledger event: %w", err)
	}
	return &event, nil
}
