package domain

// Audit error kinds recorded in payout_errors.
const (
	AuditValidationError  = "VALIDATION_ERROR"
	AuditParseError       = "PARSE_ERROR"
	AuditValidationFailed = "VALIDATION_FAILED"
)

// Payout log statuses recorded in payout_logs.
const (
	PayoutStatusInitiated = "initiated"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
)

// PayoutError is an append-only record of a flow that aborted before or
// during the payout attempt.
type PayoutError struct {
	Reference    string
	Counterparty string
	Kind         string
	Message      string
	RawEvent     string
	Ts           int64 // Unix timestamp (milliseconds)
}

// PayoutLog is an append-only record of a payout attempt's lifecycle,
// keyed by the payout idempotency reference.
type PayoutLog struct {
	Reference    string
	Counterparty string
	Amount       string
	FiatAmount   string
	Currency     string
	Status       string
	ProviderRef  string
	ErrorMessage string
	ErrorCode    string
	TxSignature  string
	Ts           int64 // Unix timestamp (milliseconds)
}

// TransactionError is an append-only record of an on-chain submission or
// confirmation failure.
type TransactionError struct {
	Reference string
	Message   string
	Stack     string
	Ts        int64 // Unix timestamp (milliseconds)
}

// LogNotificationRecord archives one raw log notification for offline
// reconciliation.
type LogNotificationRecord struct {
	Signature  string
	Slot       int64
	Logs       []string
	ReceivedAt int64 // Unix timestamp (milliseconds)
}
