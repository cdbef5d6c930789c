package consts

type ApplicationStatus string

const (
	StatusInitialOffer                        ApplicationStatus = "INITIAL_OFFER"
	StatusInitialApprovalSent                 ApplicationStatus = "INITIAL_APPROVAL_SENT"
	StatusApproved                            ApplicationStatus = "APPROVED"
	StatusWaitingForLiquidation               ApplicationStatus = "WAITING_FOR_LIQUIDATION"
	StatusFinalApprovalReceived               ApplicationStatus = "FINAL_APPROVAL_RECEIVED"
	StatusClientCreated                       ApplicationStatus = "CLIENT_CREATED"
	StatusLoanCreated                         ApplicationStatus = "LOAN_CREATED"
	StatusDisbursed                           ApplicationStatus = "DISBURSED"
	StatusDisbursementFailureNotificationSent ApplicationStatus = "DISBURSEMENT_FAILURE_NOTIFICATION_SENT"
	StatusRestructured                        ApplicationStatus = "RESTRUCTURED"
	StatusCompleted                           ApplicationStatus = "COMPLETED"
	StatusRejected                            ApplicationStatus = "REJECTED"
	StatusCancelled                           ApplicationStatus = "CANCELLED"
	StatusFailed                              ApplicationStatus = "FAILED"
)

// TerminalStatuses absorb: nothing transitions out of them.
var TerminalStatuses = []ApplicationStatus{StatusCompleted, StatusRejected, StatusCancelled, StatusFailed}

// CancellableStatuses are the non-terminal states before a ledger loan exists.
var CancellableStatuses = []ApplicationStatus{
	StatusInitialOffer,
	StatusInitialApprovalSent,
	StatusApproved,
	StatusWaitingForLiquidation,
	StatusFinalApprovalReceived,
	StatusClientCreated,
}

func (s ApplicationStatus) IsTerminal() bool {
	for _, t := range TerminalStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// Rank orders the happy path so duplicate events can be recognised as already applied.
func (s ApplicationStatus) Rank() int {
	switch s {
	case StatusInitialOffer:
		return 1
	case StatusInitialApprovalSent:
		return 2
	case StatusApproved, StatusWaitingForLiquidation:
		return 3
	case StatusFinalApprovalReceived:
		return 4
	case StatusClientCreated:
		return 5
	case StatusLoanCreated:
		return 6
	case StatusDisbursed, StatusDisbursementFailureNotificationSent:
		return 7
	case StatusRestructured:
		return 8
	case StatusCompleted, StatusRejected, StatusCancelled, StatusFailed:
		return 9
	default:
		return 0
	}
}

type ApplicationKind string

const (
	KindNew         ApplicationKind = "NEW"
	KindTopUp       ApplicationKind = "TOP_UP"
	KindTakeover    ApplicationKind = "TAKEOVER"
	KindRestructure ApplicationKind = "RESTRUCTURE"
)

type Actor string

const (
	ActorEmployer Actor = "EMPLOYER"
	ActorEmployee Actor = "EMPLOYEE"
	ActorSystem   Actor = "SYSTEM"
	ActorFSP      Actor = "FSP"
)

type TaskKind string

const (
	TaskDecideOffer       TaskKind = "DECIDE_OFFER"
	TaskFinalizeApproval  TaskKind = "FINALIZE_APPROVAL"
	TaskResumeLiquidation TaskKind = "RESUME_LIQUIDATION"
	TaskDeliverCallback   TaskKind = "DELIVER_CALLBACK"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskRunning TaskStatus = "RUNNING"
	TaskDone    TaskStatus = "DONE"
	TaskDead    TaskStatus = "DEAD"
)

// Error log stage labels
const (
	StageTopUpDetection = "TOP_UP_DETECTION"
	StageDecision       = "DECISION"
	StageClient         = "LEDGER_CLIENT"
	StageLoanCreate     = "LEDGER_LOAN_CREATE"
	StageLoanApprove    = "LEDGER_LOAN_APPROVE"
	StageLoanWithdraw   = "LEDGER_LOAN_WITHDRAW"
	StageDisburse       = "LEDGER_DISBURSE"
	StageReschedule     = "LEDGER_RESCHEDULE"
	StageReconcile      = "RECONCILE"
	StageCallback       = "CALLBACK"
)
