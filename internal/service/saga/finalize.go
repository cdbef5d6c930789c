package saga

import (
	"context"
	"errors"
	"fmt"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"
	tasks_service "ess-loan-gateway/internal/service/tasks"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const disbursementDateLayout = "2006-01-02"

type FinalApprovalInput struct {
	ApplicationID      string
	Approval           string
	Reason             string
	FSPReferenceNumber string
	LoanNumber         string
	MsgID              string
}

// AcceptFinalApproval records the employer's decision and queues the ledger work. The decision is
// write-once: a redelivery with the same decision is accepted, a contradicting one is a state error.
func (s *Saga) AcceptFinalApproval(ctx context.Context, in FinalApprovalInput) error {
	app, err := s.apps.FindByApplicationID(ctx, in.ApplicationID)
	if err != nil {
		return err
	}

	approved := in.Approval == consts.ApprovalApproved
	reject := func() error {
		return &error_handling.StateError{ApplicationID: app.ApplicationID, Status: string(app.Status), Action: "accept final approval for"}
	}

	switch {
	case app.Kind == consts.KindRestructure, app.Status == consts.StatusInitialOffer:
		return reject()
	case app.Status == consts.StatusCancelled:
		return reject()
	case app.Status == consts.StatusRejected && approved:
		return reject()
	case (app.Status == consts.StatusCompleted || app.Status == consts.StatusFailed) && !approved:
		return reject()
	}

	decision := models.FinalApproval{
		Approval:           in.Approval,
		Reason:             in.Reason,
		FSPReferenceNumber: in.FSPReferenceNumber,
		LoanNumber:         in.LoanNumber,
		MsgID:              in.MsgID,
		ReceivedAt:         s.now(),
	}
	written, err := s.apps.SetOnce(ctx, app.ApplicationID, "finalApproval", decision)
	if err != nil {
		return err
	}
	if !written {
		// another delivery got there first, possibly after our read
		stored, err := s.apps.FindByApplicationID(ctx, app.ApplicationID)
		if err != nil {
			return err
		}
		if stored.FinalApproval != nil && stored.FinalApproval.Approval != in.Approval {
			return &error_handling.StateError{ApplicationID: stored.ApplicationID, Status: string(stored.Status), Action: "accept final approval for"}
		}
	}

	return s.enqueue(ctx, consts.TaskFinalizeApproval, app.ApplicationID, in.MsgID)
}

// FinalizeApproval carries an application with a final approval on record from wherever it stopped
// through to DISBURSED or FAILED. Each ledger reference is stored once, so it is safe to run again.
func (s *Saga) FinalizeApproval(ctx context.Context, applicationID string) error {
	ctx, span := otel.StartSpan(ctx, "saga.finalize", otel.ApplicationIDKey.String(applicationID))
	defer span.End()

	app, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.FinalApproval == nil {
		logger.CtxWarn(ctx, "No final approval on record", zap.String("application_id", applicationID))
		return nil
	}

	switch app.Status {
	case consts.StatusInitialApprovalSent:
		if app, err = s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusInitialApprovalSent}, consts.StatusApproved, nil); err != nil {
			return s.retryOnConflict(ctx, applicationID, err)
		}
		return s.fromApproved(ctx, app)
	case consts.StatusApproved:
		return s.fromApproved(ctx, app)
	case consts.StatusWaitingForLiquidation:
		if app.PayoffPending() {
			logger.CtxInfo(ctx, "Takeover waiting for payoff", zap.String("application_id", applicationID))
			return nil
		}
		return s.ResumeAfterLiquidation(ctx, applicationID)
	case consts.StatusFinalApprovalReceived, consts.StatusClientCreated, consts.StatusLoanCreated:
		return s.runLedgerStages(ctx, app)
	case consts.StatusDisbursed, consts.StatusRestructured, consts.StatusCompleted:
		return s.emit(ctx, app.ApplicationID, disbursementNotice(app), true)
	case consts.StatusDisbursementFailureNotificationSent:
		_, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusDisbursementFailureNotificationSent}, consts.StatusFailed, nil)
		return err
	case consts.StatusFailed:
		return s.emit(ctx, app.ApplicationID, failureNotice(app, lastError(app)), true)
	case consts.StatusCancelled:
		return s.withdrawCancelled(ctx, app)
	default:
		return nil
	}
}

func (s *Saga) fromApproved(ctx context.Context, app *models.LoanApplication) error {
	var err error
	switch {
	case !app.FinalApproval.Approved():
		reason := app.FinalApproval.Reason
		if reason == "" {
			reason = "Rejected by employer"
		}
		_, err = s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusApproved}, consts.StatusRejected,
			bson.M{"actorTrail": s.actorTrail(consts.ActorEmployer, reason)})
		return s.toleratePassed(err, consts.StatusRejected)
	case app.PayoffPending():
		_, err = s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusApproved}, consts.StatusWaitingForLiquidation, nil)
		return s.toleratePassed(err, consts.StatusWaitingForLiquidation)
	}

	received, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusApproved}, consts.StatusFinalApprovalReceived, nil)
	if err != nil {
		return s.retryOnConflict(ctx, app.ApplicationID, err)
	}
	return s.runLedgerStages(ctx, received)
}

// retryOnConflict re-reads the record when someone else moved it and continues from there.
func (s *Saga) retryOnConflict(ctx context.Context, applicationID string, err error) error {
	status, ok := currentStatus(err)
	if !ok || status.IsTerminal() {
		if ok {
			return nil
		}
		return err
	}
	return s.FinalizeApproval(ctx, applicationID)
}

// toleratePassed treats a conflict as done when the record already sits in target.
func (s *Saga) toleratePassed(err error, target consts.ApplicationStatus) error {
	if status, ok := currentStatus(err); ok && status == target {
		return nil
	}
	return err
}

// runLedgerStages executes client, loan, approval and disbursement against the ledger.
func (s *Saga) runLedgerStages(ctx context.Context, app *models.LoanApplication) error {
	var err error

	if app.Status == consts.StatusFinalApprovalReceived {
		clientID, err := s.resolveClient(ctx, app)
		if err != nil {
			return s.ledgerFailure(ctx, app, consts.StageClient, err)
		}
		app.LedgerRefs.ClientID = clientID
		if app, err = s.step(ctx, app, consts.StatusFinalApprovalReceived, consts.StatusClientCreated); err != nil || app == nil {
			return err
		}
	}

	if app.Status == consts.StatusClientCreated {
		if proceed, err := s.stillAt(ctx, app.ApplicationID, consts.StatusClientCreated); !proceed {
			return err
		}
		loanID, err := s.createLoan(ctx, app)
		if err != nil {
			return s.ledgerFailure(ctx, app, consts.StageLoanCreate, err)
		}
		app.LedgerRefs.LoanID = loanID

		if proceed, err := s.stillAt(ctx, app.ApplicationID, consts.StatusClientCreated); !proceed {
			return err
		}
		if err := s.approveLoan(ctx, loanID); err != nil {
			return s.ledgerFailure(ctx, app, consts.StageLoanApprove, err)
		}
		if app, err = s.step(ctx, app, consts.StatusClientCreated, consts.StatusLoanCreated); err != nil || app == nil {
			return err
		}
	}

	if app.Status != consts.StatusLoanCreated {
		return nil
	}
	if err = s.disburseLoan(ctx, app.LedgerRefs.LoanID); err != nil {
		return s.ledgerFailure(ctx, app, consts.StageDisburse, err)
	}
	updated, err := s.advance(ctx, app, []consts.ApplicationStatus{consts.StatusLoanCreated}, consts.StatusDisbursed, nil)
	if err != nil {
		return s.toleratePassed(err, consts.StatusDisbursed)
	}
	return s.emit(ctx, updated.ApplicationID, disbursementNotice(updated), false)
}

// step advances one ledger stage. A nil application with a nil error means a ledger event or a
// cancellation got there first and the caller should stop.
func (s *Saga) step(ctx context.Context, app *models.LoanApplication, from, to consts.ApplicationStatus) (*models.LoanApplication, error) {
	updated, err := s.advance(ctx, app, []consts.ApplicationStatus{from}, to, nil)
	if err == nil {
		return updated, nil
	}
	status, ok := currentStatus(err)
	if ok && status == consts.StatusCancelled {
		stored, err := s.apps.FindByApplicationID(ctx, app.ApplicationID)
		if err != nil {
			return nil, err
		}
		return nil, s.withdrawCancelled(ctx, stored)
	}
	if ok && status.Rank() >= to.Rank() {
		logger.CtxInfo(ctx, "Stage already passed", zap.String("application_id", app.ApplicationID), zap.String("status", string(status)))
		return nil, nil
	}
	return nil, err
}

// stillAt re-reads the application before a ledger side effect and reports whether it still sits in
// status. An application cancelled meanwhile has its ledger loan withdrawn.
func (s *Saga) stillAt(ctx context.Context, applicationID string, status consts.ApplicationStatus) (bool, error) {
	current, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return false, err
	}
	switch current.Status {
	case status:
		return true, nil
	case consts.StatusCancelled:
		return false, s.withdrawCancelled(ctx, current)
	}
	logger.CtxInfo(ctx, "Stage already passed", zap.String("application_id", applicationID), zap.String("status", string(current.Status)))
	return false, nil
}

// withdrawCancelled takes back the ledger loan of an application cancelled while it was being
// finalized. The loan reference stays on record and the withdrawal is noted in the error log.
func (s *Saga) withdrawCancelled(ctx context.Context, app *models.LoanApplication) error {
	if app.LedgerRefs.ClientID == "" && app.LedgerRefs.LoanID == "" {
		return nil
	}
	loan, err := s.openedLoan(ctx, app)
	if err != nil || loan == nil {
		return err
	}

	switch loan.Status {
	case ledger.LoanStatusRejected, ledger.LoanStatusWithdrawn:
		return nil
	case ledger.LoanStatusApproved:
		undoCtx, done := s.ledgerCtx(ctx, "UndoApproval")
		err = s.ledger.UndoApproval(undoCtx, loan.ID)
		done()
		if err != nil {
			_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageLoanWithdraw, err)
			return err
		}
	case ledger.LoanStatusSubmitted:
	default:
		cause := fmt.Errorf("loan %s is %s on the ledger after cancellation", loan.ID, loan.Status)
		logger.CtxError(ctx, log_messages.SagaCancelledLoanLive, cause, zap.String("application_id", app.ApplicationID))
		return s.apps.AppendError(ctx, app.ApplicationID, consts.StageLoanWithdraw, cause)
	}

	withdrawCtx, done := s.ledgerCtx(ctx, "WithdrawLoan")
	err = s.ledger.WithdrawLoan(withdrawCtx, loan.ID, s.now())
	done()
	if err != nil {
		_ = s.apps.AppendError(ctx, app.ApplicationID, consts.StageLoanWithdraw, err)
		return err
	}
	logger.CtxInfo(ctx, "Ledger loan withdrawn after cancellation",
		zap.String("application_id", app.ApplicationID), zap.String("loan_id", loan.ID))
	return s.apps.AppendError(ctx, app.ApplicationID, consts.StageLoanWithdraw,
		fmt.Errorf("loan %s withdrawn after cancellation", loan.ID))
}

// openedLoan finds the ledger loan of app by its stored reference or, failing that, by external id.
func (s *Saga) openedLoan(ctx context.Context, app *models.LoanApplication) (*ledger.Loan, error) {
	if app.LedgerRefs.LoanID != "" {
		return s.fetchLoan(ctx, app.LedgerRefs.LoanID)
	}
	return s.loanByExternalID(ctx, app.ApplicationID)
}

func (s *Saga) loanByExternalID(ctx context.Context, applicationID string) (*ledger.Loan, error) {
	findCtx, done := s.ledgerCtx(ctx, "FindLoanByExternalID")
	defer done()
	return s.ledger.FindLoanByExternalID(findCtx, applicationID)
}

// resolveClient reuses a stored or existing ledger client before creating one.
func (s *Saga) resolveClient(ctx context.Context, app *models.LoanApplication) (string, error) {
	if app.LedgerRefs.ClientID != "" {
		return app.LedgerRefs.ClientID, nil
	}

	searchCtx, done := s.ledgerCtx(ctx, "SearchClient")
	existing, err := s.ledger.SearchClient(searchCtx, ledger.ClientQuery{ExternalID: app.Snapshot.CheckNumber, NIN: app.Snapshot.NIN})
	done()
	if err != nil {
		return "", err
	}

	clientID := ""
	if existing != nil {
		clientID = existing.ID
	} else {
		createCtx, done := s.ledgerCtx(ctx, "CreateClient")
		clientID, err = s.ledger.CreateClient(createCtx, &ledger.CreateClientRequest{
			ExternalID:   app.Snapshot.CheckNumber,
			NIN:          app.Snapshot.NIN,
			FirstName:    app.Snapshot.FirstName,
			MiddleName:   app.Snapshot.MiddleName,
			LastName:     app.Snapshot.LastName,
			MobileNumber: app.Snapshot.MobileNumber,
			EmailAddress: app.Snapshot.EmailAddress,
			EmployerCode: app.Snapshot.VoteCode,
		})
		done()
		if err != nil {
			return "", err
		}
	}
	return s.storeRef(ctx, app.ApplicationID, "ledgerRefs.clientId", clientID)
}

// createLoan opens the application's ledger loan. A loan already carrying the application id as its
// external id was opened by an attempt whose response got lost, and is adopted instead.
func (s *Saga) createLoan(ctx context.Context, app *models.LoanApplication) (string, error) {
	if app.LedgerRefs.LoanID != "" {
		return app.LedgerRefs.LoanID, nil
	}
	existing, err := s.loanByExternalID(ctx, app.ApplicationID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		logger.CtxInfo(ctx, "Adopting ledger loan from an earlier attempt",
			zap.String("application_id", app.ApplicationID), zap.String("loan_id", existing.ID))
		return s.storeRef(ctx, app.ApplicationID, "ledgerRefs.loanId", existing.ID)
	}
	product, err := s.products.FindByCode(ctx, app.Terms.ProductCode)
	if err != nil {
		return "", err
	}
	if app.Quote == nil {
		return "", &error_handling.CalculationError{Field: "quote", Reason: "missing on approved application"}
	}

	createCtx, done := s.ledgerCtx(ctx, "CreateLoan")
	loanID, err := s.ledger.CreateLoan(createCtx, &ledger.CreateLoanRequest{
		ClientID:          app.LedgerRefs.ClientID,
		ProductID:         product.LedgerProductID,
		ExternalID:        app.ApplicationID,
		Principal:         app.Quote.EligiblePrincipal,
		TenureMonths:      app.Quote.TenureMonths,
		AnnualRatePct:     product.AnnualRatePct,
		LoanPurpose:       app.Snapshot.LoanPurpose,
		TopUpOfLoanID:     app.LedgerRefs.TopUpOfLoanID,
		IsTopUp:           app.Kind == consts.KindTopUp && app.LedgerRefs.TopUpOfLoanID != "",
		BankAccountNumber: app.Snapshot.BankAccountNumber,
	})
	done()
	if err != nil {
		return "", err
	}
	return s.storeRef(ctx, app.ApplicationID, "ledgerRefs.loanId", loanID)
}

// storeRef writes a ledger reference once and returns whichever value ended up stored.
func (s *Saga) storeRef(ctx context.Context, applicationID, field, value string) (string, error) {
	written, err := s.apps.SetOnce(ctx, applicationID, field, value)
	if err != nil || written {
		return value, err
	}
	stored, err := s.apps.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return "", err
	}
	switch field {
	case "ledgerRefs.clientId":
		return stored.LedgerRefs.ClientID, nil
	case "ledgerRefs.loanId":
		return stored.LedgerRefs.LoanID, nil
	}
	return value, nil
}

func (s *Saga) approveLoan(ctx context.Context, loanID string) error {
	if loan, err := s.fetchLoan(ctx, loanID); err == nil {
		if loan.Abandoned() {
			return &error_handling.LedgerError{Op: "ApproveLoan", Err: errLoanAbandoned(loan)}
		}
		if loan.Status == ledger.LoanStatusApproved || loan.Active() {
			return nil
		}
	}
	approveCtx, done := s.ledgerCtx(ctx, "ApproveLoan")
	defer done()
	return s.ledger.ApproveLoan(approveCtx, loanID, s.now())
}

func (s *Saga) disburseLoan(ctx context.Context, loanID string) error {
	if loan, err := s.fetchLoan(ctx, loanID); err == nil && loan.Active() && loan.Status != ledger.LoanStatusApproved {
		return nil
	}
	disburseCtx, done := s.ledgerCtx(ctx, "DisburseLoan")
	defer done()
	return s.ledger.DisburseLoan(disburseCtx, loanID, s.now())
}

func errLoanAbandoned(loan *ledger.Loan) error {
	return fmt.Errorf("loan %s is %s on the ledger", loan.ID, loan.Status)
}

func (s *Saga) fetchLoan(ctx context.Context, loanID string) (*ledger.Loan, error) {
	fetchCtx, done := s.ledgerCtx(ctx, "FetchLoan")
	defer done()
	return s.ledger.FetchLoan(fetchCtx, loanID)
}

// ledgerFailure leaves transient ledger errors to the task retry and routes everything else to fail.
// A task on its last attempt fails the application regardless.
func (s *Saga) ledgerFailure(ctx context.Context, app *models.LoanApplication, stage string, err error) error {
	var ledgerErr *error_handling.LedgerError
	if errors.As(err, &ledgerErr) && ledgerErr.Unavailable && !tasks_service.LastAttempt(ctx) {
		_ = s.apps.AppendError(ctx, app.ApplicationID, stage, err)
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !tasks_service.LastAttempt(ctx) {
		_ = s.apps.AppendError(ctx, app.ApplicationID, stage, err)
		return err
	}
	return s.fail(ctx, app, stage, err)
}

// fail records the error, tells the portal the disbursement failed and parks the application in FAILED.
func (s *Saga) fail(ctx context.Context, app *models.LoanApplication, stage string, cause error) error {
	logger.CtxWarn(ctx, log_messages.SagaLedgerStageFailed,
		zap.String("application_id", app.ApplicationID), zap.String("stage", stage), zap.Error(cause))
	_ = s.apps.AppendError(ctx, app.ApplicationID, stage, cause)

	notified, err := s.advance(ctx, app,
		[]consts.ApplicationStatus{consts.StatusFinalApprovalReceived, consts.StatusClientCreated, consts.StatusLoanCreated},
		consts.StatusDisbursementFailureNotificationSent,
		bson.M{"actorTrail": s.actorTrail(consts.ActorSystem, cause.Error())},
	)
	if err != nil {
		status, ok := currentStatus(err)
		if !ok {
			return err
		}
		if status != consts.StatusDisbursementFailureNotificationSent {
			logger.CtxInfo(ctx, "Application moved on before failure path",
				zap.String("application_id", app.ApplicationID), zap.String("status", string(status)))
			return nil
		}
		if notified, err = s.apps.FindByApplicationID(ctx, app.ApplicationID); err != nil {
			return err
		}
	}

	if err := s.emit(ctx, notified.ApplicationID, failureNotice(notified, cause.Error()), false); err != nil {
		return err
	}
	_, err = s.advance(ctx, notified,
		[]consts.ApplicationStatus{consts.StatusDisbursementFailureNotificationSent}, consts.StatusFailed, nil)
	return s.toleratePassed(err, consts.StatusFailed)
}

func disbursementNotice(app *models.LoanApplication) *protocol.DisbursementNotification {
	n := &protocol.DisbursementNotification{
		ApplicationNumber:  app.ApplicationID,
		FSPReferenceNumber: app.ExternalRefs.FSPReferenceNumber,
		LoanNumber:         app.ExternalRefs.ESSLoanAlias,
	}
	if app.Quote != nil {
		n.TotalAmountToPay = calculator.FormatAmount(app.Quote.TotalPayable)
	}
	if app.StageTimestamps.Disbursed != nil {
		n.DisbursementDate = app.StageTimestamps.Disbursed.Format(disbursementDateLayout)
	}
	return n
}

func failureNotice(app *models.LoanApplication, reason string) *protocol.DisbursementFailureNotification {
	return &protocol.DisbursementFailureNotification{ApplicationNumber: app.ApplicationID, Reason: reason}
}

func lastError(app *models.LoanApplication) string {
	if n := len(app.ErrorLog); n > 0 {
		return app.ErrorLog[n-1].Error
	}
	return "Disbursement failed"
}
