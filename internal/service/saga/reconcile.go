package saga

import (
	"context"
	"errors"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var reconcilableStatuses = []consts.ApplicationStatus{consts.StatusDisbursed, consts.StatusRestructured}

type ReconcileResult struct {
	Scanned   int  `json:"scanned"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped"`
}

// Reconcile walks disbursed and restructured applications and completes those whose ledger loan is settled.
// Only one instance runs at a time; the others skip.
func (s *Saga) Reconcile(ctx context.Context) (ReconcileResult, error) {
	ctx, span := otel.StartSpan(ctx, "saga.reconcile")
	defer span.End()

	var result ReconcileResult
	token := s.newID()
	if s.locks != nil {
		acquired, err := s.locks.SetNX(ctx, models.ReconcileLockKey, token, s.cfg.ReconcileLockTTL)
		if err != nil {
			return result, err
		}
		if !acquired {
			logger.CtxInfo(ctx, log_messages.ReconcileLockHeld)
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if _, err := s.locks.ReleaseIfValue(context.WithoutCancel(ctx), models.ReconcileLockKey, token); err != nil {
				logger.CtxWarn(ctx, "Failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	pageSize := int64(s.cfg.ReconcilePageSize)
	if pageSize <= 0 {
		pageSize = 100
	}

	after := primitive.NilObjectID
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := s.apps.ListByStatus(ctx, reconcilableStatuses, after, pageSize)
		if err != nil {
			return result, err
		}
		for i := range page {
			app := &page[i]
			result.Scanned++
			completed, err := s.reconcileOne(ctx, app)
			switch {
			case err != nil:
				result.Failed++
			case completed:
				result.Completed++
			}
		}
		if int64(len(page)) < pageSize {
			break
		}
		after = page[len(page)-1].ID
	}

	logger.CtxInfo(ctx, "Reconcile finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Saga) reconcileOne(ctx context.Context, app *models.LoanApplication) (bool, error) {
	loanID, err := s.reconcileLoanID(ctx, app)
	if err != nil {
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageReconcile, err)
		return false, err
	}

	loan, err := s.fetchLoan(ctx, loanID)
	if err != nil {
		logger.CtxWarn(ctx, "Reconcile could not load loan",
			zap.String("application_id", app.ApplicationID), zap.String("loan_id", loanID), zap.Error(err))
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageReconcile, err)
		return false, err
	}
	if !loan.Settled() {
		return false, nil
	}

	completed, err := s.advance(ctx, app, reconcilableStatuses, consts.StatusCompleted, nil)
	if err != nil {
		if status, ok := currentStatus(err); ok && status == consts.StatusCompleted {
			return false, nil
		}
		return false, err
	}
	notice := &protocol.LiquidationNotification{
		ApplicationNumber: completed.ApplicationID,
		LoanNumber:        s.loanNumber(completed),
		Remarks:           "Loan fully settled",
	}
	if err := s.emit(ctx, completed.ApplicationID, notice, false); err != nil {
		return true, err
	}
	return true, nil
}

// reconcileLoanID is the ledger loan behind an application; a restructure tracks its prior's loan.
func (s *Saga) reconcileLoanID(ctx context.Context, app *models.LoanApplication) (string, error) {
	if app.LedgerRefs.LoanID != "" {
		return app.LedgerRefs.LoanID, nil
	}
	if app.Kind == consts.KindRestructure && app.RestructureLink != nil {
		prior, err := s.apps.FindByApplicationID(ctx, app.RestructureLink.PriorApplicationID)
		if err != nil {
			return "", err
		}
		if prior.LedgerRefs.LoanID != "" {
			return prior.LedgerRefs.LoanID, nil
		}
	}
	return "", errors.New("no ledger loan on record")
}
