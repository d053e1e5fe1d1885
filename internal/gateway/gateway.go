// Package gateway talks to the external fiat payout provider.
package gateway

import (
	"context"

	"swiftpay-bot/internal/domain"
)

// Validation is the provider's verdict on a payout destination.
type Validation struct {
	IsValid bool
	Errors  []string
}

// Client is the payout provider surface the reconciliation engine
// depends on. Calls are routed through the gateway circuit breaker by
// the caller, not here.
type Client interface {
	// ValidatePayoutDetails checks a destination before money moves.
	ValidatePayoutDetails(ctx context.Context, details *domain.PayoutDetails, amount, currency string) (*Validation, error)

	// InitiatePayout requests a fiat transfer. idempotencyRef
	// deduplicates retries on the provider side.
	InitiatePayout(ctx context.Context, details *domain.PayoutDetails, amount, currency, idempotencyRef string) (*domain.PayoutResult, error)
}
