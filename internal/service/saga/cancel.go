package saga

import (
	"context"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// rejectableStatuses are the states in which the employer can still turn an application down.
var rejectableStatuses = []consts.ApplicationStatus{
	consts.StatusInitialOffer,
	consts.StatusInitialApprovalSent,
	consts.StatusApproved,
	consts.StatusWaitingForLiquidation,
}

// Cancel withdraws an application on the employee's request. Only possible before the ledger holds a loan.
func (s *Saga) Cancel(ctx context.Context, applicationID, reason string) error {
	return s.close(ctx, applicationID, consts.CancellableStatuses, consts.StatusCancelled, consts.ActorEmployee, reason, "cancel")
}

// Reject closes an application on the employer's decision outside the final approval flow.
func (s *Saga) Reject(ctx context.Context, applicationID, reason string) error {
	return s.close(ctx, applicationID, rejectableStatuses, consts.StatusRejected, consts.ActorEmployer, reason, "reject")
}

func (s *Saga) close(
	ctx context.Context,
	applicationID string,
	from []consts.ApplicationStatus,
	to consts.ApplicationStatus,
	actor consts.Actor,
	reason, action string,
) error {
	app, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Status == to {
		return nil
	}
	if !containsStatus(from, app.Status) {
		return &error_handling.StateError{ApplicationID: applicationID, Status: string(app.Status), Action: action}
	}

	_, err = s.advance(ctx, app, from, to, bson.M{"actorTrail": s.actorTrail(actor, reason)})
	if err != nil {
		if status, ok := currentStatus(err); ok {
			if status == to {
				return nil
			}
			return &error_handling.StateError{ApplicationID: applicationID, Status: string(status), Action: action}
		}
		return err
	}
	logger.CtxInfo(ctx, "Application closed",
		zap.String("application_id", applicationID),
		zap.String("status", string(to)),
		zap.String("actor", string(actor)),
	)
	return nil
}
