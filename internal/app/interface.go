package app

import (
	"context"

	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"
)

type InboundGateway interface {
	HandleInbound(ctx context.Context, raw []byte) ([]byte, error)
}

type LedgerEventApplier interface {
	HandleLedgerEvent(ctx context.Context, event *eventmodels.LedgerEvent) error
}

type ApplicationReader interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.LoanApplication, error)
}

type TaskLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.Task, error)
}

type CallbackResender interface {
	Resend(ctx context.Context, applicationID string) (int64, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) (saga.ReconcileResult, error)
}

type ProductCatalog interface {
	Save(ctx context.Context, product models.LoanProduct) error
	ListActive(ctx context.Context) ([]models.LoanProduct, error)
}
