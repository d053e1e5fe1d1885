// Package memory provides in-memory store implementations for tests
// and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/storage"
)

// AuditStore implements storage.AuditStore in memory.
type AuditStore struct {
	mu         sync.RWMutex
	payoutErrs []*domain.PayoutError
	payoutLogs []*domain.PayoutLog
	txErrs     []*domain.TransactionError
}

// NewAuditStore creates an empty in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

func (s *AuditStore) InsertPayoutError(ctx context.Context, e *domain.PayoutError) error {
	if e.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.payoutErrs = append(s.payoutErrs, &cp)
	return nil
}

func (s *AuditStore) InsertPayoutLog(ctx context.Context, l *domain.PayoutLog) error {
	if l.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.payoutLogs = append(s.payoutLogs, &cp)
	return nil
}

func (s *AuditStore) InsertTransactionError(ctx context.Context, e *domain.TransactionError) error {
	if e.Reference == "" {
		return fmt.Errorf("%w: reference required", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.txErrs = append(s.txErrs, &cp)
	return nil
}

func (s *AuditStore) GetPayoutLogsByReference(ctx context.Context, reference string) ([]*domain.PayoutLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PayoutLog
	for _, l := range s.payoutLogs {
		if l.Reference == reference {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out, nil
}

// PayoutErrors returns a snapshot of recorded payout errors. Test helper.
func (s *AuditStore) PayoutErrors() []*domain.PayoutError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.PayoutError, len(s.payoutErrs))
	copy(out, s.payoutErrs)
	return out
}

// TransactionErrors returns a snapshot of recorded transaction errors.
// Test helper.
func (s *AuditStore) TransactionErrors() []*domain.TransactionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.TransactionError, len(s.txErrs))
	copy(out, s.txErrs)
	return out
}
