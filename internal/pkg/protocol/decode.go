package protocol

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"

	"github.com/go-playground/validator/v10"
)

var registry = map[string]func() Details{
	consts.MessageTypeLoanChargesRequest:           func() Details { return &LoanChargesRequest{} },
	consts.MessageTypeTopUpPayOffBalanceRequest:    func() Details { return &TopUpPayOffBalanceRequest{} },
	consts.MessageTypeTakeoverPayOffBalanceRequest: func() Details { return &TakeoverPayOffBalanceRequest{} },
	consts.MessageTypeLoanOfferRequest:             func() Details { return &LoanOfferRequest{} },
	consts.MessageTypeTopUpOfferRequest:            func() Details { return &TopUpOfferRequest{} },
	consts.MessageTypeTakeoverOfferRequest:         func() Details { return &TakeoverOfferRequest{} },
	consts.MessageTypeRestructuringRequest:         func() Details { return &RestructuringRequest{} },
	consts.MessageTypeFinalApprovalNotification:    func() Details { return &FinalApprovalNotification{} },
	consts.MessageTypeCancellationNotification:     func() Details { return &CancellationNotification{} },
	consts.MessageTypeTakeoverPaymentNotification:  func() Details { return &TakeoverPaymentNotification{} },
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsCommand reports whether a message type mutates state and therefore goes through msgId dedupe.
func IsCommand(messageType string) bool {
	switch messageType {
	case consts.MessageTypeLoanChargesRequest,
		consts.MessageTypeTopUpPayOffBalanceRequest,
		consts.MessageTypeTakeoverPayOffBalanceRequest:
		return false
	}
	_, ok := registry[messageType]
	return ok
}

// Decode turns a verified envelope into its typed message and validates required fields.
func Decode(env *Envelope) (*Message, error) {
	if err := Validate(&env.Header); err != nil {
		return nil, err
	}

	newDetails, ok := registry[env.Header.MessageType]
	if !ok {
		return nil, error_handling.NewMalformedError(
			fmt.Sprintf("Unsupported message type %s", env.Header.MessageType), nil)
	}

	details := newDetails()
	var buf bytes.Buffer
	buf.Grow(len(env.DetailsXML) + 33)
	buf.WriteString("<MessageDetails>")
	buf.Write(env.DetailsXML)
	buf.WriteString("</MessageDetails>")
	if err := xml.Unmarshal(buf.Bytes(), details); err != nil {
		return nil, error_handling.NewMalformedError("Invalid message details", err)
	}

	if err := Validate(details); err != nil {
		return nil, err
	}

	return &Message{Header: env.Header, Details: details}, nil
}

// Validate runs the struct tag checks and reports every missing field at once.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return error_handling.NewMalformedError("Invalid message details", err)
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fe.Field())
	}
	return error_handling.NewMissingFieldsError(fields)
}
