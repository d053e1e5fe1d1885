package clickhouse

import (
	"context"
	"fmt"

	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/storage"
)

// LogArchiveStore implements storage.LogArchiveStore using ClickHouse.
// Raw notifications are a high-volume append stream; MergeTree absorbs
// them cheaply and the archive is queried only during reconciliation
// investigations.
type LogArchiveStore struct {
	conn *Conn
}

// NewLogArchiveStore creates a new LogArchiveStore.
func NewLogArchiveStore(conn *Conn) *LogArchiveStore {
	return &LogArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LogArchiveStore = (*LogArchiveStore)(nil)

// InsertBulk archives a batch of raw notifications.
func (s *LogArchiveStore) InsertBulk(ctx context.Context, records []*domain.LogNotificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO log_notifications (
			signature, slot, logs, received_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Signature, uint64(r.Slot), r.Logs, uint64(r.ReceivedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySignature retrieves archived notifications for a signature.
func (s *LogArchiveStore) GetBySignature(ctx context.Context, signature string) ([]*domain.LogNotificationRecord, error) {
	query := `
		SELECT signature, slot, logs, received_at
		FROM log_notifications
		WHERE signature = ?
		ORDER BY received_at ASC
	`

	rows, err := s.conn.Query(ctx, query, signature)
	if err != nil {
		return nil, fmt.Errorf("query log notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.LogNotificationRecord
	for rows.Next() {
		var (
			r          domain.LogNotificationRecord
			slot       uint64
			receivedAt uint64
		)
		if err := rows.Scan(&r.Signature, &slot, &r.Logs, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan log notification: %w", err)
		}
		r.Slot = int64(slot)
		r.ReceivedAt = int64(receivedAt)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log notifications: %w", err)
	}

	return out, nil
}
