package log_messages

const (
	ErrorUnmarshalingPubsubMessage = "error unmarshaling Pubsub message: %v"
	ServerStartFailure             = "failed to start server: %v"
	ServerShutdown                 = "Shutting down server..."
	ServerForcedShutdown           = "Server forced to shutdown: %v"
	ServerExiting                  = "Server exiting"
	FailedLoadingConfiguration     = "Failed to load configuration: %v"
	CleanupStarted                 = "Starting cleanup of resources..."
	CleanupCompleted               = "All resources cleaned up successfully"

	// Ledger
	LedgerBreakerOpen       = "Ledger circuit open, call skipped"
	LedgerRequestFailed     = "failed to send request to ledger"
	ErrorUnknownFormatError = "unknown error format in ledger response"

	// Gateway
	InboundReceived        = "Inbound message received"
	InboundRejected        = "Inbound message rejected"
	SignatureRejected      = "Inbound signature rejected"
	InboundAccepted        = "Inbound message accepted"
	DuplicateMsgIDReplayed = "Duplicate msgId, replaying stored response"
	DuplicateMsgIDInFlight = "Duplicate msgId still in flight"
	DedupeStoreUnavailable = "msgId dedupe store unavailable"
	UnexpectedError        = "Unexpected error while handling message"

	// Saga
	SagaLedgerStageFailed   = "Ledger stage failed, routing to failure path"
	SagaTopUpDetectionError = "Top-up detection failed, keeping declared kind"
	SagaEventDuplicate      = "Ledger event already applied"
	SagaEventPublishFailed  = "Failed to publish status change event"
	SagaCancelledLoanLive   = "Cancelled application still holds a live ledger loan"
	ReconcileLockHeld       = "Reconcile already running elsewhere"

	// Tasks and callbacks
	TaskFailed             = "Task failed"
	TaskDead               = "Task exhausted its attempts"
	TaskLeaseBusy          = "Application lease held, task postponed"
	TaskNoHandler          = "No handler registered for task kind"
	CallbackDelivered      = "Callback delivered"
	CallbackDeliveryFailed = "Callback delivery failed"
	CallbackDeadLettered   = "Callback dead-lettered"
	ArchiveFailed          = "Failed to archive signed document"
)
