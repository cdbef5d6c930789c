package models

import (
	"time"

	"ess-loan-gateway/internal/pkg/calculator"
	"ess-loan-gateway/internal/pkg/consts"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanTerms struct {
	ProductCode        string  `bson:"productCode" json:"productCode"`
	RequestedPrincipal float64 `bson:"requestedPrincipal" json:"requestedPrincipal"`
	TenureMonths       int     `bson:"tenureMonths" json:"tenureMonths"`
	DesiredInstallment float64 `bson:"desiredInstallment" json:"desiredInstallment"`
}

// ExternalRefs are the identifiers shared with the portal, generated once on first approval.
type ExternalRefs struct {
	FSPReferenceNumber string `bson:"fspReferenceNumber,omitempty" json:"fspReferenceNumber,omitempty"`
	ESSLoanAlias       string `bson:"essLoanAlias,omitempty" json:"essLoanAlias,omitempty"`
}

// LedgerRefs are write-once identifiers issued by the ledger.
type LedgerRefs struct {
	ClientID      string `bson:"clientId,omitempty" json:"clientId,omitempty"`
	LoanID        string `bson:"loanId,omitempty" json:"loanId,omitempty"`
	TopUpOfLoanID string `bson:"topUpOfLoanId,omitempty" json:"topUpOfLoanId,omitempty"`
	RescheduleID  string `bson:"rescheduleId,omitempty" json:"rescheduleId,omitempty"`
}

// ApplicantSnapshot is the intake copy of identity, employment and request data. Never updated.
type ApplicantSnapshot struct {
	CheckNumber            string  `bson:"checkNumber" json:"checkNumber"`
	FirstName              string  `bson:"firstName" json:"firstName"`
	MiddleName             string  `bson:"middleName,omitempty" json:"middleName,omitempty"`
	LastName               string  `bson:"lastName" json:"lastName"`
	Sex                    string  `bson:"sex,omitempty" json:"sex,omitempty"`
	NIN                    string  `bson:"nin" json:"nin"`
	EmploymentDate         string  `bson:"employmentDate,omitempty" json:"employmentDate,omitempty"`
	RetirementDate         string  `bson:"retirementDate,omitempty" json:"retirementDate,omitempty"`
	TermsOfEmployment      string  `bson:"termsOfEmployment,omitempty" json:"termsOfEmployment,omitempty"`
	BasicSalary            float64 `bson:"basicSalary" json:"basicSalary"`
	NetSalary              float64 `bson:"netSalary" json:"netSalary"`
	OneThirdAmount         float64 `bson:"oneThirdAmount" json:"oneThirdAmount"`
	TotalEmployeeDeduction float64 `bson:"totalEmployeeDeduction" json:"totalEmployeeDeduction"`
	BankAccountNumber      string  `bson:"bankAccountNumber,omitempty" json:"bankAccountNumber,omitempty"`
	SwiftCode              string  `bson:"swiftCode,omitempty" json:"swiftCode,omitempty"`
	VoteCode               string  `bson:"voteCode,omitempty" json:"voteCode,omitempty"`
	VoteName               string  `bson:"voteName,omitempty" json:"voteName,omitempty"`
	DesignationCode        string  `bson:"designationCode,omitempty" json:"designationCode,omitempty"`
	DesignationName        string  `bson:"designationName,omitempty" json:"designationName,omitempty"`
	NearestBranchCode      string  `bson:"nearestBranchCode,omitempty" json:"nearestBranchCode,omitempty"`
	NearestBranchName      string  `bson:"nearestBranchName,omitempty" json:"nearestBranchName,omitempty"`
	PhysicalAddress        string  `bson:"physicalAddress,omitempty" json:"physicalAddress,omitempty"`
	EmailAddress           string  `bson:"emailAddress,omitempty" json:"emailAddress,omitempty"`
	MobileNumber           string  `bson:"mobileNumber,omitempty" json:"mobileNumber,omitempty"`
	LoanPurpose            string  `bson:"loanPurpose,omitempty" json:"loanPurpose,omitempty"`
	PriorLoanNumber        string  `bson:"priorLoanNumber,omitempty" json:"priorLoanNumber,omitempty"`
	SettlementAmount       float64 `bson:"settlementAmount,omitempty" json:"settlementAmount,omitempty"`
}

type ActorTrail struct {
	Actor  consts.Actor `bson:"actor" json:"actor"`
	Reason string       `bson:"reason" json:"reason"`
	At     time.Time    `bson:"at" json:"at"`
}

type RestructureLink struct {
	PriorApplicationID string `bson:"priorApplicationId" json:"priorApplicationId"`
	PriorLoanNumber    string `bson:"priorLoanNumber" json:"priorLoanNumber"`
	NewTenureMonths    int    `bson:"newTenureMonths" json:"newTenureMonths"`
	Reason             string `bson:"reason,omitempty" json:"reason,omitempty"`
}

type TakeoverDetails struct {
	PriorFSPCode     string     `bson:"priorFspCode" json:"priorFspCode"`
	PriorLoanNumber  string     `bson:"priorLoanNumber" json:"priorLoanNumber"`
	TakeoverBalance  float64    `bson:"takeoverBalance" json:"takeoverBalance"`
	PayoffConfirmed  bool       `bson:"payoffConfirmed" json:"payoffConfirmed"`
	PaymentReference string     `bson:"paymentReference,omitempty" json:"paymentReference,omitempty"`
	PaymentAmount    float64    `bson:"paymentAmount,omitempty" json:"paymentAmount,omitempty"`
	ConfirmedAt      *time.Time `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
}

type FinalApproval struct {
	Approval           string    `bson:"approval" json:"approval"`
	Reason             string    `bson:"reason,omitempty" json:"reason,omitempty"`
	FSPReferenceNumber string    `bson:"fspReferenceNumber,omitempty" json:"fspReferenceNumber,omitempty"`
	LoanNumber         string    `bson:"loanNumber,omitempty" json:"loanNumber,omitempty"`
	MsgID              string    `bson:"msgId" json:"msgId"`
	ReceivedAt         time.Time `bson:"receivedAt" json:"receivedAt"`
}

func (f *FinalApproval) Approved() bool {
	return f != nil && f.Approval == consts.ApprovalApproved
}

type ErrorEntry struct {
	Stage string    `bson:"stage" json:"stage"`
	Error string    `bson:"error" json:"error"`
	At    time.Time `bson:"at" json:"at"`
}

type StageTimestamps struct {
	Offered               *time.Time `bson:"offered,omitempty" json:"offered,omitempty"`
	ApprovalSent          *time.Time `bson:"approvalSent,omitempty" json:"approvalSent,omitempty"`
	Approved              *time.Time `bson:"approved,omitempty" json:"approved,omitempty"`
	WaitingForLiquidation *time.Time `bson:"waitingForLiquidation,omitempty" json:"waitingForLiquidation,omitempty"`
	FinalApprovalReceived *time.Time `bson:"finalApprovalReceived,omitempty" json:"finalApprovalReceived,omitempty"`
	ClientCreated         *time.Time `bson:"clientCreated,omitempty" json:"clientCreated,omitempty"`
	LoanCreated           *time.Time `bson:"loanCreated,omitempty" json:"loanCreated,omitempty"`
	Disbursed             *time.Time `bson:"disbursed,omitempty" json:"disbursed,omitempty"`
	FailureNotified       *time.Time `bson:"failureNotified,omitempty" json:"failureNotified,omitempty"`
	Failed                *time.Time `bson:"failed,omitempty" json:"failed,omitempty"`
	Restructured          *time.Time `bson:"restructured,omitempty" json:"restructured,omitempty"`
	Completed             *time.Time `bson:"completed,omitempty" json:"completed,omitempty"`
	Rejected              *time.Time `bson:"rejected,omitempty" json:"rejected,omitempty"`
	Cancelled             *time.Time `bson:"cancelled,omitempty" json:"cancelled,omitempty"`
}

// StageTimestampField is the stageTimestamps key stamped when an application enters status.
func StageTimestampField(status consts.ApplicationStatus) string {
	switch status {
	case consts.StatusInitialOffer:
		return "stageTimestamps.offered"
	case consts.StatusInitialApprovalSent:
		return "stageTimestamps.approvalSent"
	case consts.StatusApproved:
		return "stageTimestamps.approved"
	case consts.StatusWaitingForLiquidation:
		return "stageTimestamps.waitingForLiquidation"
	case consts.StatusFinalApprovalReceived:
		return "stageTimestamps.finalApprovalReceived"
	case consts.StatusClientCreated:
		return "stageTimestamps.clientCreated"
	case consts.StatusLoanCreated:
		return "stageTimestamps.loanCreated"
	case consts.StatusDisbursed:
		return "stageTimestamps.disbursed"
	case consts.StatusDisbursementFailureNotificationSent:
		return "stageTimestamps.failureNotified"
	case consts.StatusFailed:
		return "stageTimestamps.failed"
	case consts.StatusRestructured:
		return "stageTimestamps.restructured"
	case consts.StatusCompleted:
		return "stageTimestamps.completed"
	case consts.StatusRejected:
		return "stageTimestamps.rejected"
	case consts.StatusCancelled:
		return "stageTimestamps.cancelled"
	default:
		return ""
	}
}

type Lease struct {
	Owner string    `bson:"owner" json:"owner"`
	Until time.Time `bson:"until" json:"until"`
}

// LoanApplication is the saga record, one per portal application number.
type LoanApplication struct {
	ID              primitive.ObjectID       `bson:"_id,omitempty" json:"-"`
	ApplicationID   string                   `bson:"applicationId" json:"applicationId"`
	SubjectID       string                   `bson:"subjectId" json:"subjectId"`
	Kind            consts.ApplicationKind   `bson:"kind" json:"kind"`
	DeclaredKind    consts.ApplicationKind   `bson:"declaredKind" json:"declaredKind"`
	Status          consts.ApplicationStatus `bson:"status" json:"status"`
	Terms           LoanTerms                `bson:"terms" json:"terms"`
	ExternalRefs    ExternalRefs             `bson:"externalRefs" json:"externalRefs"`
	LedgerRefs      LedgerRefs               `bson:"ledgerRefs" json:"ledgerRefs"`
	Snapshot        ApplicantSnapshot        `bson:"snapshot" json:"snapshot"`
	ActorTrail      *ActorTrail              `bson:"actorTrail,omitempty" json:"actorTrail,omitempty"`
	RestructureLink *RestructureLink         `bson:"restructureLink,omitempty" json:"restructureLink,omitempty"`
	Takeover        *TakeoverDetails         `bson:"takeover,omitempty" json:"takeover,omitempty"`
	FinalApproval   *FinalApproval           `bson:"finalApproval,omitempty" json:"finalApproval,omitempty"`
	Quote           *calculator.Quote        `bson:"quote,omitempty" json:"quote,omitempty"`
	ErrorLog        []ErrorEntry             `bson:"errorLog,omitempty" json:"errorLog,omitempty"`
	StageTimestamps StageTimestamps          `bson:"stageTimestamps" json:"stageTimestamps"`
	Lease           *Lease                   `bson:"lease,omitempty" json:"-"`
	LastMsgID       string                   `bson:"lastMsgId" json:"lastMsgId"`
	CreatedAt       time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time                `bson:"updatedAt" json:"updatedAt"`
}

// PayoffPending reports a takeover still waiting for the prior lender to be paid off.
func (a *LoanApplication) PayoffPending() bool {
	return a.Kind == consts.KindTakeover && (a.Takeover == nil || !a.Takeover.PayoffConfirmed)
}
