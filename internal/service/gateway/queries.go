package gateway_service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"
)

const balanceDateLayout = "2006-01-02"

// answerQuery serves the read-only message types. Nothing is written.
func (g *GatewayService) answerQuery(ctx context.Context, details protocol.Details) (protocol.Details, error) {
	switch d := details.(type) {
	case *protocol.LoanChargesRequest:
		return g.loanCharges(ctx, d)
	case *protocol.TopUpPayOffBalanceRequest:
		fields, err := g.payoffBalance(ctx, &d.PayOffBalanceRequest)
		if err != nil {
			return nil, err
		}
		return &protocol.TopUpBalanceResponse{BalanceFields: *fields}, nil
	case *protocol.TakeoverPayOffBalanceRequest:
		fields, err := g.payoffBalance(ctx, &d.PayOffBalanceRequest)
		if err != nil {
			return nil, err
		}
		return &protocol.TakeoverBalanceResponse{BalanceFields: *fields}, nil
	default:
		return nil, error_handling.NewMalformedError("Unsupported message type "+details.MessageType(), nil)
	}
}

func (g *GatewayService) loanCharges(ctx context.Context, req *protocol.LoanChargesRequest) (*protocol.LoanChargesResponse, error) {
	product, err := g.products.FindByCode(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}
	tenure, err := calculator.ParseTenure(req.Tenure)
	if err != nil {
		return nil, err
	}
	if tenure < product.MinTenure || (product.MaxTenure > 0 && tenure > product.MaxTenure) {
		return nil, &error_handling.CalculationError{
			Field:  "tenure",
			Reason: fmt.Sprintf("must be between %d and %d months for %s", product.MinTenure, product.MaxTenure, product.ProductCode),
		}
	}

	amounts, err := parseAmounts(map[string]string{
		"BasicSalary":             req.BasicSalary,
		"RequestedAmount":         req.RequestedAmount,
		"DesiredDeductibleAmount": req.DesiredDeductibleAmount,
		"TotalEmployeeDeduction":  req.TotalEmployeeDeduction,
	})
	if err != nil {
		return nil, err
	}

	quote, err := calculator.Evaluate(calculator.AffordabilityRequest{
		RequestedPrincipal: amounts["RequestedAmount"],
		DesiredInstallment: amounts["DesiredDeductibleAmount"],
		BasicSalary:        amounts["BasicSalary"],
		ExistingDeductions: amounts["TotalEmployeeDeduction"],
		AnnualRatePct:      product.AnnualRatePct,
		TenureMonths:       tenure,
		MaxPrincipal:       product.MaxPrincipal,
		Fees:               product.Fees(),
	})
	if err != nil {
		return nil, err
	}

	return &protocol.LoanChargesResponse{
		DesiredDeductibleAmount: calculator.FormatAmount(quote.InstallmentAmount),
		TotalInsurance:          calculator.FormatAmount(quote.Insurance),
		TotalProcessingFees:     calculator.FormatAmount(quote.ProcessingFee),
		TotalInterestRateAmount: calculator.FormatAmount(quote.TotalInterest),
		OtherCharges:            calculator.FormatAmount(quote.OtherCharges),
		NetLoanAmount:           calculator.FormatAmount(quote.NetPrincipal),
		TotalAmountToPay:        calculator.FormatAmount(quote.TotalPayable),
		Tenure:                  strconv.Itoa(quote.TenureMonths),
		EligibleAmount:          calculator.FormatAmount(quote.EligiblePrincipal),
		MonthlyReturnAmount:     calculator.FormatAmount(quote.InstallmentAmount),
	}, nil
}

// payoffBalance quotes the amount needed to settle one of our loans, identified by the alias we issued.
func (g *GatewayService) payoffBalance(ctx context.Context, req *protocol.PayOffBalanceRequest) (*protocol.BalanceFields, error) {
	app, err := g.apps.FindByLoanAlias(ctx, req.LoanNumber)
	if err != nil {
		return nil, err
	}
	if app.Snapshot.CheckNumber != req.CheckNumber {
		return nil, &error_handling.NotFoundError{Resource: "loan", ID: req.LoanNumber}
	}
	if app.Status != consts.StatusDisbursed && app.Status != consts.StatusRestructured {
		return nil, &error_handling.StateError{ApplicationID: app.ApplicationID, Status: string(app.Status), Action: "quote payoff for"}
	}
	if app.LedgerRefs.LoanID == "" {
		return nil, &error_handling.NotFoundError{Resource: "loan", ID: req.LoanNumber}
	}

	fetchCtx, done := ledger.CallContext(ctx, "FetchLoan", g.cfg.LedgerTimeout)
	loan, err := g.ledger.FetchLoan(fetchCtx, app.LedgerRefs.LoanID)
	done()
	if err != nil {
		if ledgerNotFound(err) {
			return nil, &error_handling.NotFoundError{Resource: "loan", ID: req.LoanNumber}
		}
		return nil, err
	}

	return &protocol.BalanceFields{
		LoanNumber:             req.LoanNumber,
		FSPReferenceNumber:     app.ExternalRefs.FSPReferenceNumber,
		PaymentReferenceNumber: paymentReference(app),
		TotalPayoffAmount:      calculator.FormatAmount(loan.OutstandingBalance),
		OutstandingBalance:     calculator.FormatAmount(loan.OutstandingBalance),
		FSPBankAccount:         g.cfg.SettlementAccount,
		FSPBankAccountName:     g.cfg.SettlementAccountName,
		SWIFTCode:              g.cfg.SettlementSwiftCode,
		FinalPaymentDate:       g.now().AddDate(0, 0, 7).Format(balanceDateLayout),
		LastDeductionDate:      loan.LastRepaymentDate,
		LastPayDate:            loan.LastRepaymentDate,
		EndDate:                loan.MaturityDate,
	}, nil
}

func paymentReference(app *models.LoanApplication) string {
	return "PAYOFF-" + app.ExternalRefs.ESSLoanAlias
}

func ledgerNotFound(err error) bool {
	var ledgerErr *error_handling.LedgerError
	return errors.As(err, &ledgerErr) && ledgerErr.StatusCode == http.StatusNotFound
}
