package consts

// ESS response codes
const (
	ResponseCodeSuccess         = "8000"
	ResponseCodeMalformed       = "8001"
	ResponseCodeMissingField    = "8003"
	ResponseCodeNotFound        = "8004"
	ResponseCodeInvalidCalc     = "8005"
	ResponseCodeIllegalState    = "8006"
	ResponseDescriptionAccepted = "Received and queued for processing"
)

// Inbound query message types
const (
	MessageTypeLoanChargesRequest           = "LOAN_CHARGES_REQUEST"
	MessageTypeTopUpPayOffBalanceRequest    = "TOP_UP_PAY_OFF_BALANCE_REQUEST"
	MessageTypeTakeoverPayOffBalanceRequest = "TAKEOVER_PAY_OFF_BALANCE_REQUEST"
)

// Inbound command message types
const (
	MessageTypeLoanOfferRequest            = "LOAN_OFFER_REQUEST"
	MessageTypeTopUpOfferRequest           = "TOP_UP_OFFER_REQUEST"
	MessageTypeTakeoverOfferRequest        = "LOAN_TAKEOVER_OFFER_REQUEST"
	MessageTypeRestructuringRequest        = "LOAN_RESTRUCTURING_REQUEST"
	MessageTypeFinalApprovalNotification   = "LOAN_FINAL_APPROVAL_NOTIFICATION"
	MessageTypeCancellationNotification    = "LOAN_CANCELLATION_NOTIFICATION"
	MessageTypeTakeoverPaymentNotification = "TAKEOVER_PAYMENT_NOTIFICATION"
)

// Outbound message types
const (
	MessageTypeResponse                        = "RESPONSE"
	MessageTypeLoanChargesResponse             = "LOAN_CHARGES_RESPONSE"
	MessageTypeTopUpBalanceResponse            = "LOAN_TOP_UP_BALANCE_RESPONSE"
	MessageTypeTakeoverBalanceResponse         = "LOAN_TAKEOVER_BALANCE_RESPONSE"
	MessageTypeInitialApprovalNotification     = "LOAN_INITIAL_APPROVAL_NOTIFICATION"
	MessageTypeDisbursementNotification        = "LOAN_DISBURSEMENT_NOTIFICATION"
	MessageTypeDisbursementFailureNotification = "LOAN_DISBURSEMENT_FAILURE_NOTIFICATION"
	MessageTypeLiquidationNotification         = "LOAN_LIQUIDATION_NOTIFICATION"
	MessageTypeRestructuringNotification       = "LOAN_RESTRUCTURING_NOTIFICATION"
)

const (
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"

	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)
