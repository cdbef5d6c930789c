package models

import "time"

// StatusChangedEvent is published to Kafka on every successful application transition.
type StatusChangedEvent struct {
	EventID        string    `json:"eventId"`
	ApplicationID  string    `json:"applicationId"`
	Kind           string    `json:"kind"`
	FromStatus     string    `json:"fromStatus,omitempty"`
	ToStatus       string    `json:"toStatus"`
	Actor          string    `json:"actor,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	LedgerLoanID   string    `json:"ledgerLoanId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Ledger event types raised by the ledger itself.
const (
	LedgerEventApprove           = "APPROVE"
	LedgerEventDisburse          = "DISBURSE"
	LedgerEventRescheduleApprove = "RESCHEDULE_APPROVE"
)

// LedgerEvent arrives on the webhook and on the ledger events subscription.
type LedgerEvent struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type" validate:"required,oneof=APPROVE DISBURSE RESCHEDULE_APPROVE"`
	LoanID     string    `json:"loanId" validate:"required"`
	Success    *bool     `json:"success,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Failed reports an event that explicitly carries success=false.
func (e *LedgerEvent) Failed() bool {
	return e.Success != nil && !*e.Success
}

// CallbackDeadLetter is published when a callback exhausts its delivery attempts.
type CallbackDeadLetter struct {
	ApplicationID string    `json:"applicationId"`
	TaskID        string    `json:"taskId"`
	MessageType   string    `json:"messageType"`
	MsgID         string    `json:"msgId"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"lastError"`
	DeadAt        time.Time `json:"deadAt"`
}
