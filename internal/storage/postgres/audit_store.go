package postgres

import (
	"context"
	"fmt"

	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/storage"
)

// AuditStore implements storage.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *Pool
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(pool *Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// InsertPayoutError records an aborted flow.
func (s *AuditStore) InsertPayoutError(ctx context.Context, e *domain.PayoutError) error {
	if e.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO payout_errors (
			reference, counterparty, kind, message, raw_event, ts
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		e.Reference,
		e.Counterparty,
		e.Kind,
		e.Message,
		e.RawEvent,
		e.Ts,
	)
	if err != nil {
		return fmt.Errorf("insert payout error: %w", err)
	}
	return nil
}

// InsertPayoutLog records one lifecycle step of a payout attempt.
func (s *AuditStore) InsertPayoutLog(ctx context.Context, l *domain.PayoutLog) error {
	if l.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO payout_logs (
			reference, counterparty, amount, fiat_amount, currency,
			status, provider_ref, error_message, error_code, tx_signature, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		l.Reference,
		l.Counterparty,
		l.Amount,
		l.FiatAmount,
		l.Currency,
		l.Status,
		l.ProviderRef,
		l.ErrorMessage,
		l.ErrorCode,
		l.TxSignature,
		l.Ts,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert payout log: %w", err)
	}
	return nil
}

// InsertTransactionError records an on-chain failure.
func (s *AuditStore) InsertTransactionError(ctx context.Context, e *domain.TransactionError) error {
	if e.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO transaction_errors (
			reference, message, stack, ts
		) VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query,
		e.Reference,
		e.Message,
		e.Stack,
		e.Ts,
	)
	if err != nil {
		return fmt.Errorf("insert transaction error: %w", err)
	}
	return nil
}

// GetPayoutLogsByReference retrieves lifecycle rows ordered by ts ASC.
func (s *AuditStore) GetPayoutLogsByReference(ctx context.Context, reference string) ([]*domain.PayoutLog, error) {
	query := `
		SELECT reference, counterparty, amount, fiat_amount, currency,
		       status, provider_ref, error_message, error_code, tx_signature, ts
		FROM payout_logs
		WHERE reference = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("query payout logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.PayoutLog
	for rows.Next() {
		l := &domain.PayoutLog{}
		if err := rows.Scan(
			&l.Reference,
			&l.Counterparty,
			&l.Amount,
			&l.FiatAmount,
			&l.Currency,
			&l.Status,
			&l.ProviderRef,
			&l.ErrorMessage,
			&l.ErrorCode,
			&l.TxSignature,
			&l.Ts,
		); err != nil {
			return nil, fmt.Errorf("scan payout log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout logs: %w", err)
	}

	return logs, nil
}
