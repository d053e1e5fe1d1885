package memory

import (
	"context"
	"sync"

	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/storage"
)

// LogArchiveStore implements storage.LogArchiveStore in memory.
type LogArchiveStore struct {
	mu      sync.RWMutex
	records []*domain.LogNotificationRecord
}

// NewLogArchiveStore creates an empty in-memory archive.
func NewLogArchiveStore() *LogArchiveStore {
	return &LogArchiveStore{}
}

// Compile-time interface check.
var _ storage.LogArchiveStore = (*LogArchiveStore)(nil)

func (s *LogArchiveStore) InsertBulk(ctx context.Context, records []*domain.LogNotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		cp := *r
		s.records = append(s.records, &cp)
	}
	return nil
}

func (s *LogArchiveStore) GetBySignature(ctx context.Context, signature string) ([]*domain.LogNotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.LogNotificationRecord
	for _, r := range s.records {
		if r.Signature == signature {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Len reports the number of archived records. Test helper.
func (s *LogArchiveStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
