package error_handling

import (
	"errors"
	"fmt"
	"strings"

	"ess-loan-gateway/internal/pkg/consts"
)

// ProtocolError is a malformed, unsigned or incomplete inbound message (8001 / 8003).
type ProtocolError struct {
	Code        string
	Description string
	Err         error
}

func NewMalformedError(description string, err error) *ProtocolError {
	return &ProtocolError{Code: consts.ResponseCodeMalformed, Description: description, Err: err}
}

func NewMissingFieldsError(fields []string) *ProtocolError {
	return &ProtocolError{
		Code:        consts.ResponseCodeMissingField,
		Description: "Missing required field(s): " + strings.Join(fields, ", "),
	}
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error %s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("protocol error %s: %s", e.Code, e.Description)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotFoundError is an unknown application or loan (8004).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// StateError is an illegal state transition (8006).
type StateError struct {
	ApplicationID string
	Status        string
	Action        string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s application %s in status %s", e.Action, e.ApplicationID, e.Status)
}

// CalculationError is invalid numeric input or a non-finite/negative result (8005).
type CalculationError struct {
	Field  string
	Reason string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation error on %s: %s", e.Field, e.Reason)
}

// LedgerError wraps any failure of the core-banking ledger collaborator.
type LedgerError struct {
	Op          string
	StatusCode  int
	Unavailable bool
	Err         error
}

func (e *LedgerError) Error() string {
	tag := "ledger error:"
	if e.Unavailable {
		tag = "ledger unavailable:"
	}
	return fmt.Sprintf("%s op=%s statusCode=%d err=%v", tag, e.Op, e.StatusCode, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// ResponseCodeFor maps any error to the ESS response code and description sent back to the portal.
func ResponseCodeFor(err error) (string, string) {
	if err == nil {
		return consts.ResponseCodeSuccess, consts.ResponseDescriptionAccepted
	}

	var protocolErr *ProtocolError
	var notFoundErr *NotFoundError
	var stateErr *StateError
	var calcErr *CalculationError
	var ledgerErr *LedgerError

	switch {
	case errors.As(err, &protocolErr):
		return protocolErr.Code, protocolErr.Description
	case errors.As(err, &notFoundErr):
		return consts.ResponseCodeNotFound, notFoundErr.Error()
	case errors.As(err, &stateErr):
		return consts.ResponseCodeIllegalState, stateErr.Error()
	case errors.As(err, &calcErr):
		return consts.ResponseCodeInvalidCalc, calcErr.Error()
	case errors.As(err, &ledgerErr):
		return consts.ResponseCodeMalformed, "Core banking system unavailable, please retry"
	default:
		return consts.ResponseCodeMalformed, "Request could not be processed"
	}
}
