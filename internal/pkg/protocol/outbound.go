package protocol

import "ess-loan-gateway/internal/pkg/consts"

// ResponseDetails is the generic acknowledgement or error answer.
type ResponseDetails struct {
	ResponseCode string `xml:"ResponseCode"`
	Description  string `xml:"Description"`
}

func (ResponseDetails) MessageType() string { return consts.MessageTypeResponse }

type LoanChargesResponse struct {
	DesiredDeductibleAmount string `xml:"DesiredDeductibleAmount"`
	TotalInsurance          string `xml:"TotalInsurance"`
	TotalProcessingFees     string `xml:"TotalProcessingFees"`
	TotalInterestRateAmount string `xml:"TotalInterestRateAmount"`
	OtherCharges            string `xml:"OtherCharges"`
	NetLoanAmount           string `xml:"NetLoanAmount"`
	TotalAmountToPay        string `xml:"TotalAmountToPay"`
	Tenure                  string `xml:"Tenure"`
	EligibleAmount          string `xml:"EligibleAmount"`
	MonthlyReturnAmount     string `xml:"MonthlyReturnAmount"`
}

func (LoanChargesResponse) MessageType() string { return consts.MessageTypeLoanChargesResponse }

// BalanceFields is the payoff quote shared by the top-up and takeover balance answers.
type BalanceFields struct {
	LoanNumber             string `xml:"LoanNumber"`
	FSPReferenceNumber     string `xml:"FSPReferenceNumber"`
	PaymentReferenceNumber string `xml:"PaymentReferenceNumber"`
	TotalPayoffAmount      string `xml:"TotalPayoffAmount"`
	OutstandingBalance     string `xml:"OutstandingBalance"`
	FSPBankAccount         string `xml:"FSPBankAccount"`
	FSPBankAccountName     string `xml:"FSPBankAccountName"`
	SWIFTCode              string `xml:"SWIFTCode"`
	MNOChannels            string `xml:"MNOChannels"`
	FinalPaymentDate       string `xml:"FinalPaymentDate"`
	LastDeductionDate      string `xml:"LastDeductionDate"`
	LastPayDate            string `xml:"LastPayDate"`
	EndDate                string `xml:"EndDate"`
}

type TopUpBalanceResponse struct {
	BalanceFields
}

func (TopUpBalanceResponse) MessageType() string { return consts.MessageTypeTopUpBalanceResponse }

type TakeoverBalanceResponse struct {
	BalanceFields
}

func (TakeoverBalanceResponse) MessageType() string {
	return consts.MessageTypeTakeoverBalanceResponse
}

// Callbacks

type InitialApprovalNotification struct {
	ApplicationNumber  string `xml:"ApplicationNumber"`
	Reason             string `xml:"Reason"`
	FSPReferenceNumber string `xml:"FSPReferenceNumber"`
	LoanNumber         string `xml:"LoanNumber"`
	TotalAmountToPay   string `xml:"TotalAmountToPay"`
	OtherCharges       string `xml:"OtherCharges"`
	Approval           string `xml:"Approval"`
}

func (InitialApprovalNotification) MessageType() string {
	return consts.MessageTypeInitialApprovalNotification
}

type DisbursementNotification struct {
	ApplicationNumber  string `xml:"ApplicationNumber"`
	Reason             string `xml:"Reason"`
	FSPReferenceNumber string `xml:"FSPReferenceNumber"`
	LoanNumber         string `xml:"LoanNumber"`
	TotalAmountToPay   string `xml:"TotalAmountToPay"`
	DisbursementDate   string `xml:"DisbursementDate"`
}

func (DisbursementNotification) MessageType() string {
	return consts.MessageTypeDisbursementNotification
}

type DisbursementFailureNotification struct {
	ApplicationNumber string `xml:"ApplicationNumber"`
	Reason            string `xml:"Reason"`
}

func (DisbursementFailureNotification) MessageType() string {
	return consts.MessageTypeDisbursementFailureNotification
}

type LiquidationNotification struct {
	ApplicationNumber string `xml:"ApplicationNumber"`
	LoanNumber        string `xml:"LoanNumber"`
	Remarks           string `xml:"Remarks"`
}

func (LiquidationNotification) MessageType() string {
	return consts.MessageTypeLiquidationNotification
}

type RestructuringNotification struct {
	ApplicationNumber     string `xml:"ApplicationNumber"`
	LoanNumber            string `xml:"LoanNumber"`
	NewTenure             string `xml:"NewTenure"`
	NewMonthlyInstallment string `xml:"NewMonthlyInstallment"`
	Approval              string `xml:"Approval"`
	Reason                string `xml:"Reason"`
}

func (RestructuringNotification) MessageType() string {
	return consts.MessageTypeRestructuringNotification
}
