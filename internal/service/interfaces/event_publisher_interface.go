package interfaces

import (
	"context"

	"ess-loan-gateway/internal/pkg/models"
)

type StatusEventPublisherInterface interface {
	PublishStatusChanged(ctx context.Context, event models.StatusChangedEvent) error
}

type DeadLetterPublisherInterface interface {
	PublishDeadLetter(ctx context.Context, letter models.CallbackDeadLetter) error
}
