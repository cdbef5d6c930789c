package ledger

// Loan status codes as reported by the ledger.
const (
	LoanStatusSubmitted   = "SUBMITTED"
	LoanStatusApproved    = "APPROVED"
	LoanStatusActive      = "ACTIVE"
	LoanStatusClosed      = "CLOSED"
	LoanStatusOverpaid    = "OVERPAID"
	LoanStatusWrittenOff  = "WRITTEN_OFF"
	LoanStatusRejected    = "REJECTED"
	LoanStatusWithdrawn   = "WITHDRAWN"
	LoanStatusRescheduled = "RESCHEDULED"
)

// ClientQuery identifies an employee on the ledger. Any non-empty field is matched.
type ClientQuery struct {
	ExternalID string `json:"externalId,omitempty"`
	NIN        string `json:"nationalId,omitempty"`
}

type ClientRecord struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	NIN        string `json:"nationalId"`
	FullName   string `json:"displayName"`
	Active     bool   `json:"active"`
}

type CreateClientRequest struct {
	OfficeID       int    `json:"officeId"`
	ExternalID     string `json:"externalId"`
	NIN            string `json:"nationalId"`
	FirstName      string `json:"firstname"`
	MiddleName     string `json:"middlename,omitempty"`
	LastName       string `json:"lastname"`
	MobileNumber   string `json:"mobileNo,omitempty"`
	EmailAddress   string `json:"emailAddress,omitempty"`
	EmployerCode   string `json:"employerCode,omitempty"`
	DateFormat     string `json:"dateFormat"`
	Locale         string `json:"locale"`
	SubmittedOnDay string `json:"submittedOnDate"`
}

type CreateLoanRequest struct {
	ClientID          string  `json:"clientId"`
	ProductID         string  `json:"productId"`
	ExternalID        string  `json:"externalId"`
	Principal         float64 `json:"principal"`
	TenureMonths      int     `json:"numberOfRepayments"`
	AnnualRatePct     float64 `json:"interestRatePerPeriod"`
	LoanPurpose       string  `json:"loanPurpose,omitempty"`
	TopUpOfLoanID     string  `json:"loanIdToClose,omitempty"`
	IsTopUp           bool    `json:"isTopup"`
	BankAccountNumber string  `json:"bankAccountNumber,omitempty"`
	DateFormat        string  `json:"dateFormat"`
	Locale            string  `json:"locale"`
	SubmittedOnDay    string  `json:"submittedOnDate"`
}

type Loan struct {
	ID                 string  `json:"id"`
	AccountNo          string  `json:"accountNo"`
	ExternalID         string  `json:"externalId"`
	ClientID           string  `json:"clientId"`
	Status             string  `json:"status"`
	Principal          float64 `json:"principal"`
	OutstandingBalance float64 `json:"totalOutstanding"`
	TotalOverpaid      float64 `json:"totalOverpaid"`
	InstallmentAmount  float64 `json:"installmentAmount"`
	TenureMonths       int     `json:"numberOfRepayments"`
	LastRepaymentDate  string  `json:"lastRepaymentDate,omitempty"`
	MaturityDate       string  `json:"expectedMaturityDate,omitempty"`
	DisbursementDate   string  `json:"actualDisbursementDate,omitempty"`
}

// Active reports whether the loan still has an open balance.
func (l *Loan) Active() bool {
	return l.Status == LoanStatusActive || l.Status == LoanStatusApproved || l.Status == LoanStatusRescheduled
}

// Abandoned reports whether the ledger closed the loan before it was ever disbursed.
func (l *Loan) Abandoned() bool {
	return l.Status == LoanStatusRejected || l.Status == LoanStatusWithdrawn
}

// Settled reports whether reconciliation can treat the loan as finished.
func (l *Loan) Settled() bool {
	switch l.Status {
	case LoanStatusClosed, LoanStatusOverpaid, LoanStatusWrittenOff:
		return true
	}
	return false
}

type RescheduleRequest struct {
	LoanID          string `json:"loanId"`
	NewTenureMonths int    `json:"extraTerms"`
	Reason          string `json:"rescheduleReasonComment,omitempty"`
	ExternalID      string `json:"externalId"`
	DateFormat      string `json:"dateFormat"`
	Locale          string `json:"locale"`
	SubmittedOnDay  string `json:"submittedOnDate"`
}

type rescheduleRecord struct {
	ID         string `json:"id"`
	LoanID     string `json:"loanId"`
	ExternalID string `json:"externalId"`
}

type resourceResponse struct {
	ResourceID string `json:"resourceId"`
	ClientID   string `json:"clientId,omitempty"`
	LoanID     string `json:"loanId,omitempty"`
}

type pageResponse[T any] struct {
	TotalFilteredRecords int `json:"totalFilteredRecords"`
	PageItems            []T `json:"pageItems"`
}

type accountsResponse struct {
	LoanAccounts []Loan `json:"loanAccounts"`
}

type errorResponse struct {
	DeveloperMessage string `json:"developerMessage"`
	DefaultMessage   string `json:"defaultUserMessage"`
	HTTPStatusCode   string `json:"httpStatusCode"`
}
