package saga

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// affordabilityTolerance absorbs rounding between the quoted installment and the one-third headroom.
const affordabilityTolerance = 1.001

// DecideAndNotify evaluates an admitted offer and queues the initial approval (or rejection) callback.
// Run again after the decision it re-emits the last outcome.
func (s *Saga) DecideAndNotify(ctx context.Context, applicationID string) error {
	ctx, span := otel.StartSpan(ctx, "saga.decide", otel.ApplicationIDKey.String(applicationID))
	defer span.End()

	app, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}

	if app.Kind == consts.KindRestructure {
		return s.decideRestructure(ctx, app)
	}
	if app.Status != consts.StatusInitialOffer {
		return s.reemitDecision(ctx, app)
	}

	app = s.detectTopUp(ctx, app)

	quote, reason, err := s.evaluate(ctx, app)
	if err != nil {
		return err
	}
	if reason != "" {
		return s.decline(ctx, app, reason, initialDecision(app, consts.ApprovalRejected, reason))
	}
	return s.approveOffer(ctx, app, quote)
}

// evaluate returns the quote for an acceptable offer, or the reason it is declined.
func (s *Saga) evaluate(ctx context.Context, app *models.LoanApplication) (*calculator.Quote, string, error) {
	product, err := s.products.FindByCode(ctx, app.Terms.ProductCode)
	if err != nil {
		var notFound *error_handling.NotFoundError
		if errors.As(err, &notFound) {
			return nil, "Unknown loan product " + app.Terms.ProductCode, nil
		}
		return nil, "", err
	}
	if !product.Active {
		return nil, "Loan product " + product.ProductCode + " is not available", nil
	}
	tenure := app.Terms.TenureMonths
	if tenure < product.MinTenure || (product.MaxTenure > 0 && tenure > product.MaxTenure) {
		return nil, fmt.Sprintf("Tenure %d outside product range %d-%d", tenure, product.MinTenure, product.MaxTenure), nil
	}

	quote, err := calculator.Evaluate(calculator.AffordabilityRequest{
		RequestedPrincipal: app.Terms.RequestedPrincipal,
		DesiredInstallment: app.Terms.DesiredInstallment,
		BasicSalary:        app.Snapshot.BasicSalary,
		ExistingDeductions: app.Snapshot.TotalEmployeeDeduction,
		AnnualRatePct:      product.AnnualRatePct,
		TenureMonths:       tenure,
		MaxPrincipal:       product.MaxPrincipal,
		Fees:               product.Fees(),
	})
	if err != nil {
		var calcErr *error_handling.CalculationError
		if errors.As(err, &calcErr) {
			_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageDecision, err)
			return nil, "Loan not affordable: " + calcErr.Reason, nil
		}
		return nil, "", err
	}

	if quote.EligiblePrincipal < product.MinPrincipal {
		return nil, fmt.Sprintf("Eligible amount %s below product minimum %s",
			calculator.FormatAmount(quote.EligiblePrincipal), calculator.FormatAmount(product.MinPrincipal)), nil
	}
	if reason := s.affordabilityReason(app.Snapshot, quote.InstallmentAmount); reason != "" {
		return nil, reason, nil
	}
	return &quote, "", nil
}

func (s *Saga) affordabilityReason(snapshot models.ApplicantSnapshot, installment float64) string {
	if snapshot.BasicSalary <= 0 {
		return ""
	}
	headroom, err := calculator.AffordabilityHeadroom(snapshot.BasicSalary, snapshot.TotalEmployeeDeduction)
	if err != nil || installment > headroom*affordabilityTolerance {
		return fmt.Sprintf("Installment %s exceeds affordable deduction %s",
			calculator.FormatAmount(installment), calculator.FormatAmount(headroom))
	}
	return ""
}

func (s *Saga) approveOffer(ctx context.Context, app *models.LoanApplication, quote *calculator.Quote) error {
	if _, err := s.apps.SetOnce(ctx, app.ApplicationID, "externalRefs.fspReferenceNumber", s.newReference(s.cfg.FSPCode)); err != nil {
		return err
	}
	if _, err := s.apps.SetOnce(ctx, app.ApplicationID, "externalRefs.essLoanAlias", s.newReference("ESS")); err != nil {
		return err
	}

	updated, err := s.advance(ctx, app,
		[]consts.ApplicationStatus{consts.StatusInitialOffer},
		consts.StatusInitialApprovalSent,
		bson.M{"quote": quote},
	)
	if err != nil {
		if status, ok := currentStatus(err); ok && status != consts.StatusInitialOffer {
			return s.reemitFresh(ctx, app.ApplicationID)
		}
		return err
	}
	return s.emit(ctx, updated.ApplicationID, initialDecision(updated, consts.ApprovalApproved, ""), false)
}

// decline rejects on behalf of the system with the given callback.
func (s *Saga) decline(ctx context.Context, app *models.LoanApplication, reason string, callback protocol.Details) error {
	logger.CtxInfo(ctx, "Offer declined", zap.String("application_id", app.ApplicationID), zap.String("reason", reason))
	updated, err := s.advance(ctx, app,
		[]consts.ApplicationStatus{consts.StatusInitialOffer},
		consts.StatusRejected,
		bson.M{"actorTrail": s.actorTrail(consts.ActorSystem, reason)},
	)
	if err != nil {
		if status, ok := currentStatus(err); ok && status != consts.StatusInitialOffer {
			return s.reemitFresh(ctx, app.ApplicationID)
		}
		return err
	}
	return s.emit(ctx, updated.ApplicationID, callback, false)
}

func (s *Saga) reemitFresh(ctx context.Context, applicationID string) error {
	app, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}
	return s.reemitDecision(ctx, app)
}

// reemitDecision resends the decision callback of an application that is past INITIAL_OFFER. Once the
// employer has acted on the initial approval there is nothing left to resend.
func (s *Saga) reemitDecision(ctx context.Context, app *models.LoanApplication) error {
	switch {
	case app.Status == consts.StatusRejected && app.ActorTrail != nil && app.ActorTrail.Actor == consts.ActorSystem:
		return s.emit(ctx, app.ApplicationID, initialDecision(app, consts.ApprovalRejected, app.ActorTrail.Reason), true)
	case app.Status == consts.StatusInitialApprovalSent:
		return s.emit(ctx, app.ApplicationID, initialDecision(app, consts.ApprovalApproved, ""), true)
	default:
		logger.CtxInfo(ctx, "Decision already acted on, nothing to re-emit",
			zap.String("application_id", app.ApplicationID), zap.String("status", string(app.Status)))
		return nil
	}
}

func initialDecision(app *models.LoanApplication, approval, reason string) *protocol.InitialApprovalNotification {
	n := &protocol.InitialApprovalNotification{
		ApplicationNumber:  app.ApplicationID,
		Reason:             reason,
		FSPReferenceNumber: app.ExternalRefs.FSPReferenceNumber,
		LoanNumber:         app.ExternalRefs.ESSLoanAlias,
		Approval:           approval,
	}
	if approval == consts.ApprovalApproved && app.Quote != nil {
		n.TotalAmountToPay = calculator.FormatAmount(app.Quote.TotalPayable)
		n.OtherCharges = calculator.FormatAmount(app.Quote.TotalFees())
	}
	return n
}

// detectTopUp reclassifies a NEW offer whose employee already holds an active ledger loan, and resolves the
// loan a declared TOP_UP consolidates. Detection failures keep the declared kind.
func (s *Saga) detectTopUp(ctx context.Context, app *models.LoanApplication) *models.LoanApplication {
	if app.LedgerRefs.TopUpOfLoanID != "" {
		return app
	}
	switch app.Kind {
	case consts.KindNew:
	case consts.KindTopUp:
		if prior, err := s.apps.FindByLoanAlias(ctx, app.Snapshot.PriorLoanNumber); err == nil && prior.LedgerRefs.LoanID != "" {
			return s.recordTopUp(ctx, app, prior.LedgerRefs.ClientID, prior.LedgerRefs.LoanID)
		}
	default:
		return app
	}

	clientID, loanID, err := s.findActiveLoan(ctx, app)
	if err != nil {
		logger.CtxWarn(ctx, log_messages.SagaTopUpDetectionError,
			zap.String("application_id", app.ApplicationID), zap.Error(err))
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageTopUpDetection, err)
		return app
	}
	if loanID == "" {
		return app
	}
	return s.recordTopUp(ctx, app, clientID, loanID)
}

func (s *Saga) findActiveLoan(ctx context.Context, app *models.LoanApplication) (string, string, error) {
	searchCtx, done := s.ledgerCtx(ctx, "SearchClient")
	client, err := s.ledger.SearchClient(searchCtx, ledger.ClientQuery{
		ExternalID: app.Snapshot.CheckNumber,
		NIN:        app.Snapshot.NIN,
	})
	done()
	if err != nil || client == nil {
		return "", "", err
	}

	loansCtx, done := s.ledgerCtx(ctx, "ActiveLoans")
	loans, err := s.ledger.ActiveLoans(loansCtx, client.ID)
	done()
	if err != nil {
		return "", "", err
	}
	if len(loans) == 0 {
		return client.ID, "", nil
	}
	return client.ID, loans[0].ID, nil
}

func (s *Saga) recordTopUp(ctx context.Context, app *models.LoanApplication, clientID, loanID string) *models.LoanApplication {
	if clientID != "" {
		if _, err := s.apps.SetOnce(ctx, app.ApplicationID, "ledgerRefs.clientId", clientID); err != nil {
			return app
		}
		app.LedgerRefs.ClientID = clientID
	}
	if _, err := s.apps.SetOnce(ctx, app.ApplicationID, "ledgerRefs.topUpOfLoanId", loanID); err != nil {
		return app
	}
	app.LedgerRefs.TopUpOfLoanID = loanID
	if app.Kind != consts.KindTopUp {
		if err := s.apps.SetFields(ctx, app.ApplicationID, bson.M{"kind": consts.KindTopUp}); err != nil {
			return app
		}
		logger.CtxInfo(ctx, "Offer reclassified as top-up",
			zap.String("application_id", app.ApplicationID), zap.String("loan_id", loanID))
		app.Kind = consts.KindTopUp
	}
	return app
}

// decideRestructure reschedules the prior loan over its outstanding balance with the new tenure.
func (s *Saga) decideRestructure(ctx context.Context, app *models.LoanApplication) error {
	switch app.Status {
	case consts.StatusRestructured, consts.StatusCompleted:
		return s.emit(ctx, app.ApplicationID, restructuringNotice(app, consts.ApprovalApproved, ""), true)
	case consts.StatusRejected:
		reason := ""
		if app.ActorTrail != nil {
			reason = app.ActorTrail.Reason
		}
		return s.emit(ctx, app.ApplicationID, restructuringNotice(app, consts.ApprovalRejected, reason), true)
	case consts.StatusInitialOffer:
	default:
		return nil
	}

	link := app.RestructureLink
	prior, err := s.apps.FindByApplicationID(ctx, link.PriorApplicationID)
	if err != nil {
		return err
	}
	resuming := prior.Status == consts.StatusRestructured &&
		app.LedgerRefs.RescheduleID != "" && prior.LedgerRefs.RescheduleID == app.LedgerRefs.RescheduleID
	if prior.Status != consts.StatusDisbursed && !resuming {
		reason := "Loan " + link.PriorLoanNumber + " is not eligible for restructuring in status " + string(prior.Status)
		return s.decline(ctx, app, reason, restructuringNotice(app, consts.ApprovalRejected, reason))
	}

	fetchCtx, done := s.ledgerCtx(ctx, "FetchLoan")
	loan, err := s.ledger.FetchLoan(fetchCtx, prior.LedgerRefs.LoanID)
	done()
	if err != nil {
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageReschedule, err)
		return err
	}

	product, err := s.products.FindByCode(ctx, prior.Terms.ProductCode)
	if err != nil {
		return err
	}
	quote, err := calculator.Forward(loan.OutstandingBalance, product.AnnualRatePct, link.NewTenureMonths, calculator.FeeSchedule{})
	if err != nil {
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageDecision, err)
		return s.decline(ctx, app, err.Error(), restructuringNotice(app, consts.ApprovalRejected, err.Error()))
	}
	if reason := s.affordabilityReason(app.Snapshot, quote.InstallmentAmount); reason != "" {
		return s.decline(ctx, app, reason, restructuringNotice(app, consts.ApprovalRejected, reason))
	}

	rescheduleID := app.LedgerRefs.RescheduleID
	if rescheduleID == "" {
		findCtx, done := s.ledgerCtx(ctx, "FindReschedule")
		rescheduleID, err = s.ledger.FindReschedule(findCtx, prior.LedgerRefs.LoanID, app.ApplicationID)
		done()
		if err != nil {
			_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageReschedule, err)
			return err
		}
	}
	if rescheduleID == "" {
		rescheduleCtx, done := s.ledgerCtx(ctx, "CreateReschedule")
		rescheduleID, err = s.ledger.CreateReschedule(rescheduleCtx, &ledger.RescheduleRequest{
			LoanID:          prior.LedgerRefs.LoanID,
			NewTenureMonths: link.NewTenureMonths,
			Reason:          link.Reason,
			ExternalID:      app.ApplicationID,
		})
		done()
		if err != nil {
			_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageReschedule, err)
			return err
		}
	}
	if app.LedgerRefs.RescheduleID == "" {
		if _, err := s.apps.SetOnce(ctx, app.ApplicationID, "ledgerRefs.rescheduleId", rescheduleID); err != nil {
			return err
		}
		if _, err := s.apps.SetOnce(ctx, prior.ApplicationID, "ledgerRefs.rescheduleId", rescheduleID); err != nil {
			return err
		}
	}

	if _, err := s.advance(ctx, prior, []consts.ApplicationStatus{consts.StatusDisbursed}, consts.StatusRestructured, nil); err != nil {
		if status, ok := currentStatus(err); !ok || status != consts.StatusRestructured {
			return err
		}
	}

	updated, err := s.advance(ctx, app,
		[]consts.ApplicationStatus{consts.StatusInitialOffer},
		consts.StatusRestructured,
		bson.M{"quote": quote},
	)
	if err != nil {
		return err
	}
	return s.emit(ctx, updated.ApplicationID, restructuringNotice(updated, consts.ApprovalApproved, ""), false)
}

func restructuringNotice(app *models.LoanApplication, approval, reason string) *protocol.RestructuringNotification {
	n := &protocol.RestructuringNotification{
		ApplicationNumber: app.ApplicationID,
		Approval:          approval,
		Reason:            reason,
	}
	if app.RestructureLink != nil {
		n.LoanNumber = app.RestructureLink.PriorLoanNumber
		n.NewTenure = strconv.Itoa(app.RestructureLink.NewTenureMonths)
	}
	if app.Quote != nil {
		n.NewMonthlyInstallment = calculator.FormatAmount(app.Quote.InstallmentAmount)
	}
	return n
}
