package storage

import (
	"context"

	"swiftpay-bot/internal/domain"
)

// AuditStore is the append-only audit sink. Every reconciliation flow
// that touched an external system leaves at least one row here.
type AuditStore interface {
	// InsertPayoutError records a flow that aborted before or during
	// the payout attempt.
	InsertPayoutError(ctx context.Context, e *domain.PayoutError) error

	// InsertPayoutLog records one step of a payout attempt's lifecycle.
	// Multiple rows per reference are expected (initiated, then
	// completed or failed).
	InsertPayoutLog(ctx context.Context, l *domain.PayoutLog) error

	// InsertTransactionError records an on-chain submission or
	// confirmation failure.
	InsertTransactionError(ctx context.Context, e *domain.TransactionError) error

	// GetPayoutLogsByReference retrieves the lifecycle rows for one
	// payout reference, ordered by ts ASC.
	GetPayoutLogsByReference(ctx context.Context, reference string) ([]*domain.PayoutLog, error)
}

// LogArchiveStore archives every raw log notification the bot receives
// for offline reconciliation against payout_logs.
type LogArchiveStore interface {
	// InsertBulk archives a batch of raw notifications.
	InsertBulk(ctx context.Context, records []*domain.LogNotificationRecord) error

	// GetBySignature retrieves archived notifications for a signature.
	GetBySignature(ctx context.Context, signature string) ([]*domain.LogNotificationRecord, error)
}
