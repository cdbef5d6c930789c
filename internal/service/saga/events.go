package saga

import (
	"context"
	"errors"
	"strconv"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.uber.org/zap"
)

// HandleLedgerEvent applies an asynchronous ledger notification. Events for stages the application has
// already passed are duplicates and change nothing.
func (s *Saga) HandleLedgerEvent(ctx context.Context, event *eventmodels.LedgerEvent) error {
	ctx, span := otel.StartSpan(ctx, "saga.ledger_event")
	defer span.End()

	app, err := s.apps.FindByLedgerLoanID(ctx, event.LoanID)
	if err != nil {
		s.metrics.ObserveLedgerEvent(event.Type, "unknown_loan")
		otel.Fail(span, err)
		return err
	}

	fields := []zap.Field{
		zap.String("application_id", app.ApplicationID),
		zap.String("event_type", event.Type),
		zap.String("loan_id", event.LoanID),
	}

	var target consts.ApplicationStatus
	switch event.Type {
	case eventmodels.LedgerEventApprove:
		target = consts.StatusLoanCreated
	case eventmodels.LedgerEventDisburse:
		target = consts.StatusDisbursed
	case eventmodels.LedgerEventRescheduleApprove:
		target = consts.StatusRestructured
	default:
		s.metrics.ObserveLedgerEvent(event.Type, "unsupported")
		return nil
	}

	if app.Status.IsTerminal() || app.Status.Rank() >= target.Rank() {
		logger.CtxInfo(ctx, log_messages.SagaEventDuplicate, append(fields, zap.String("status", string(app.Status)))...)
		s.metrics.ObserveLedgerEvent(event.Type, "duplicate")
		return nil
	}

	if event.Failed() {
		stage := consts.StageLoanApprove
		if event.Type == eventmodels.LedgerEventDisburse {
			stage = consts.StageDisburse
		}
		reason := event.Reason
		if reason == "" {
			reason = "ledger reported " + event.Type + " failure"
		}
		s.metrics.ObserveLedgerEvent(event.Type, "failed")
		if event.Type == eventmodels.LedgerEventRescheduleApprove {
			return s.apps.AppendError(ctx, app.ApplicationID, consts.StageReschedule, errors.New(reason))
		}
		return s.fail(ctx, app, stage, errors.New(reason))
	}

	switch event.Type {
	case eventmodels.LedgerEventApprove:
		_, err = s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusClientCreated}, consts.StatusLoanCreated, nil)
	case eventmodels.LedgerEventDisburse:
		err = s.applyDisbursed(ctx, app)
	case eventmodels.LedgerEventRescheduleApprove:
		err = s.applyRescheduled(ctx, app)
	}
	if err != nil {
		s.metrics.ObserveLedgerEvent(event.Type, "error")
		return err
	}
	logger.CtxInfo(ctx, "Ledger event applied", fields...)
	s.metrics.ObserveLedgerEvent(event.Type, "applied")
	return nil
}

func (s *Saga) applyDisbursed(ctx context.Context, app *models.LoanApplication) error {
	updated, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusLoanCreated}, consts.StatusDisbursed, nil)
	if err != nil {
		return err
	}
	return s.emit(ctx, updated.ApplicationID, disbursementNotice(updated), false)
}

// applyRescheduled handles a reschedule approved on the ledger side of a loan we disbursed.
func (s *Saga) applyRescheduled(ctx context.Context, app *models.LoanApplication) error {
	notice := restructuringNotice(app, consts.ApprovalApproved, "")
	notice.LoanNumber = s.loanNumber(app)
	if loan, err := s.fetchLoan(ctx, app.LedgerRefs.LoanID); err == nil {
		notice.NewTenure = strconv.Itoa(loan.TenureMonths)
		notice.NewMonthlyInstallment = calculator.FormatAmount(loan.InstallmentAmount)
	} else {
		logger.CtxWarn(ctx, "Could not load rescheduled loan", zap.String("application_id", app.ApplicationID), zap.Error(err))
	}

	updated, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusDisbursed}, consts.StatusRestructured, nil)
	if err != nil {
		return err
	}
	return s.emit(ctx, updated.ApplicationID, notice, false)
}
