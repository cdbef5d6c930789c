package protocol

import "ess-loan-gateway/internal/pkg/consts"

// Details is one variant of the MessageDetails tagged union.
type Details interface {
	MessageType() string
}

// Message is a decoded inbound message: header plus its typed details.
type Message struct {
	Header  Header
	Details Details
}

// Queries

type LoanChargesRequest struct {
	CheckNumber             string `xml:"CheckNumber" validate:"required"`
	DesignationCode         string `xml:"DesignationCode"`
	DesignationName         string `xml:"DesignationName"`
	BasicSalary             string `xml:"BasicSalary" validate:"required"`
	NetSalary               string `xml:"NetSalary"`
	OneThirdAmount          string `xml:"OneThirdAmount"`
	RequestedAmount         string `xml:"RequestedAmount"`
	DeductibleAmount        string `xml:"DeductibleAmount"`
	DesiredDeductibleAmount string `xml:"DesiredDeductibleAmount"`
	TotalEmployeeDeduction  string `xml:"TotalEmployeeDeduction"`
	RetirementDate          string `xml:"RetirementDate"`
	TermsOfEmployment       string `xml:"TermsOfEmployment"`
	Tenure                  string `xml:"Tenure" validate:"required"`
	ProductCode             string `xml:"ProductCode" validate:"required"`
	VoteCode                string `xml:"VoteCode"`
	NearestBranchName       string `xml:"NearestBranchName"`
	NearestBranchCode       string `xml:"NearestBranchCode"`
}

func (LoanChargesRequest) MessageType() string { return consts.MessageTypeLoanChargesRequest }

type PayOffBalanceRequest struct {
	CheckNumber      string `xml:"CheckNumber" validate:"required"`
	LoanNumber       string `xml:"LoanNumber" validate:"required"`
	FirstName        string `xml:"FirstName"`
	MiddleName       string `xml:"MiddleName"`
	LastName         string `xml:"LastName"`
	VoteCode         string `xml:"VoteCode"`
	VoteName         string `xml:"VoteName"`
	DeductionAmount  string `xml:"DeductionAmount"`
	DeductionCode    string `xml:"DeductionCode"`
	DeductionName    string `xml:"DeductionName"`
	DeductionBalance string `xml:"DeductionBalance"`
	PaymentOption    string `xml:"PaymentOption"`
}

type TopUpPayOffBalanceRequest struct {
	PayOffBalanceRequest
}

func (TopUpPayOffBalanceRequest) MessageType() string {
	return consts.MessageTypeTopUpPayOffBalanceRequest
}

type TakeoverPayOffBalanceRequest struct {
	PayOffBalanceRequest
}

func (TakeoverPayOffBalanceRequest) MessageType() string {
	return consts.MessageTypeTakeoverPayOffBalanceRequest
}

// Commands

// OfferFields is the applicant and loan request block shared by every offer-class command.
type OfferFields struct {
	ApplicationNumber       string `xml:"ApplicationNumber" validate:"required"`
	CheckNumber             string `xml:"CheckNumber" validate:"required"`
	FirstName               string `xml:"FirstName" validate:"required"`
	MiddleName              string `xml:"MiddleName"`
	LastName                string `xml:"LastName" validate:"required"`
	Sex                     string `xml:"Sex"`
	NIN                     string `xml:"NIN" validate:"required"`
	EmploymentDate          string `xml:"EmploymentDate"`
	MaritalStatus           string `xml:"MaritalStatus"`
	ConfirmationDate        string `xml:"ConfirmationDate"`
	BankAccountNumber       string `xml:"BankAccountNumber"`
	NearestBranchName       string `xml:"NearestBranchName"`
	NearestBranchCode       string `xml:"NearestBranchCode"`
	VoteCode                string `xml:"VoteCode"`
	VoteName                string `xml:"VoteName"`
	DesignationCode         string `xml:"DesignationCode"`
	DesignationName         string `xml:"DesignationName"`
	BasicSalary             string `xml:"BasicSalary"`
	NetSalary               string `xml:"NetSalary"`
	OneThirdAmount          string `xml:"OneThirdAmount"`
	TotalEmployeeDeduction  string `xml:"TotalEmployeeDeduction"`
	RetirementDate          string `xml:"RetirementDate"`
	TermsOfEmployment       string `xml:"TermsOfEmployment"`
	RequestedAmount         string `xml:"RequestedAmount" validate:"required"`
	DesiredDeductibleAmount string `xml:"DesiredDeductibleAmount"`
	Tenure                  string `xml:"Tenure" validate:"required"`
	ProductCode             string `xml:"ProductCode" validate:"required"`
	InterestRate            string `xml:"InterestRate"`
	ProcessingFee           string `xml:"ProcessingFee"`
	Insurance               string `xml:"Insurance"`
	PhysicalAddress         string `xml:"PhysicalAddress"`
	EmailAddress            string `xml:"EmailAddress"`
	MobileNumber            string `xml:"MobileNumber"`
	LoanPurpose             string `xml:"LoanPurpose"`
	SwiftCode               string `xml:"SwiftCode"`
	Funding                 string `xml:"Funding"`
}

type LoanOfferRequest struct {
	OfferFields
}

func (LoanOfferRequest) MessageType() string { return consts.MessageTypeLoanOfferRequest }

type TopUpOfferRequest struct {
	OfferFields
	LoanNumber       string `xml:"LoanNumber" validate:"required"`
	SettlementAmount string `xml:"SettlementAmount"`
}

func (TopUpOfferRequest) MessageType() string { return consts.MessageTypeTopUpOfferRequest }

type TakeoverOfferRequest struct {
	OfferFields
	FSP1Code        string `xml:"FSP1Code" validate:"required"`
	FSP1LoanNumber  string `xml:"FSP1LoanNumber" validate:"required"`
	TakeOverBalance string `xml:"TakeOverBalance" validate:"required"`
}

func (TakeoverOfferRequest) MessageType() string { return consts.MessageTypeTakeoverOfferRequest }

type RestructuringRequest struct {
	ApplicationNumber      string `xml:"ApplicationNumber" validate:"required"`
	CheckNumber            string `xml:"CheckNumber" validate:"required"`
	LoanNumber             string `xml:"LoanNumber" validate:"required"`
	NewTenure              string `xml:"NewTenure" validate:"required"`
	BasicSalary            string `xml:"BasicSalary"`
	TotalEmployeeDeduction string `xml:"TotalEmployeeDeduction"`
	Reason                 string `xml:"Reason"`
}

func (RestructuringRequest) MessageType() string { return consts.MessageTypeRestructuringRequest }

type FinalApprovalNotification struct {
	ApplicationNumber  string `xml:"ApplicationNumber" validate:"required"`
	Reason             string `xml:"Reason"`
	FSPReferenceNumber string `xml:"FSPReferenceNumber"`
	LoanNumber         string `xml:"LoanNumber"`
	Approval           string `xml:"Approval" validate:"required"`
}

func (FinalApprovalNotification) MessageType() string {
	return consts.MessageTypeFinalApprovalNotification
}

type CancellationNotification struct {
	ApplicationNumber  string `xml:"ApplicationNumber" validate:"required"`
	Reason             string `xml:"Reason"`
	FSPReferenceNumber string `xml:"FSPReferenceNumber"`
	LoanNumber         string `xml:"LoanNumber"`
}

func (CancellationNotification) MessageType() string {
	return consts.MessageTypeCancellationNotification
}

type TakeoverPaymentNotification struct {
	ApplicationNumber string `xml:"ApplicationNumber" validate:"required"`
	PaymentReference  string `xml:"PaymentReference" validate:"required"`
	Amount            string `xml:"Amount"`
	PaymentDate       string `xml:"PaymentDate"`
}

func (TakeoverPaymentNotification) MessageType() string {
	return consts.MessageTypeTakeoverPaymentNotification
}
