package interfaces

import (
	"context"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApplicationReaderInterface interface {
	FindByApplicationID(ctx context.Context, applicationID string) (*models.LoanApplication, error)
	FindByLoanAlias(ctx context.Context, alias string) (*models.LoanApplication, error)
	FindByLedgerLoanID(ctx context.Context, loanID string) (*models.LoanApplication, error)
}

type ApplicationRepositoryInterface interface {
	ApplicationReaderInterface
	Admit(ctx context.Context, app *models.LoanApplication) (*models.LoanApplication, bool, error)
	MergeOfferTerms(ctx context.Context, applicationID string, terms models.LoanTerms) (bool, error)
	Transition(
		ctx context.Context,
		applicationID string,
		from []consts.ApplicationStatus,
		to consts.ApplicationStatus,
		set bson.M,
	) (*models.LoanApplication, error)
	SetOnce(ctx context.Context, applicationID, field string, value interface{}) (bool, error)
	SetFields(ctx context.Context, applicationID string, set bson.M) error
	AppendError(ctx context.Context, applicationID, stage string, cause error) error
	ListByStatus(
		ctx context.Context,
		statuses []consts.ApplicationStatus,
		after primitive.ObjectID,
		limit int64,
	) ([]models.LoanApplication, error)
}

type ApplicationLeaseInterface interface {
	AcquireLease(ctx context.Context, applicationID, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, applicationID, owner string) error
}
