package saga

import (
	"context"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// PayoffConfirmation is the portal telling us the prior lender of a takeover has been paid.
type PayoffConfirmation struct {
	ApplicationID    string
	PaymentReference string
	Amount           float64
	MsgID            string
}

func (s *Saga) ConfirmPayoff(ctx context.Context, in PayoffConfirmation) error {
	app, err := s.apps.FindByApplicationID(ctx, in.ApplicationID)
	if err != nil {
		return err
	}
	if app.Kind != consts.KindTakeover || app.Status.IsTerminal() {
		return &error_handling.StateError{ApplicationID: app.ApplicationID, Status: string(app.Status), Action: "confirm payoff for"}
	}

	if app.Takeover == nil || !app.Takeover.PayoffConfirmed {
		err = s.apps.SetFields(ctx, app.ApplicationID, bson.M{
			"takeover.payoffConfirmed":  true,
			"takeover.paymentReference": in.PaymentReference,
			"takeover.paymentAmount":    in.Amount,
			"takeover.confirmedAt":      s.now(),
		})
		if err != nil {
			return err
		}
		logger.CtxInfo(ctx, "Takeover payoff confirmed",
			zap.String("application_id", app.ApplicationID), zap.String("payment_reference", in.PaymentReference))
	}
	return s.enqueue(ctx, consts.TaskResumeLiquidation, app.ApplicationID, in.MsgID)
}

// ResumeAfterLiquidation releases a takeover parked in WAITING_FOR_LIQUIDATION once its payoff is confirmed.
func (s *Saga) ResumeAfterLiquidation(ctx context.Context, applicationID string) error {
	app, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Status != consts.StatusWaitingForLiquidation {
		logger.CtxDebug(ctx, "Nothing to resume", zap.String("application_id", applicationID), zap.String("status", string(app.Status)))
		return nil
	}
	if app.PayoffPending() {
		return nil
	}

	resumed, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusWaitingForLiquidation}, consts.StatusApproved, nil)
	if err != nil {
		return s.toleratePassed(err, consts.StatusApproved)
	}
	if resumed.FinalApproval == nil {
		return nil
	}
	return s.fromApproved(ctx, resumed)
}
