// Package breaker isolates failures of external dependencies so a
// degraded payout provider or RPC node cannot stall every flow.
package breaker

import (
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"swiftpay-bot/internal/observability"
)

// ErrCircuitOpen is returned when the breaker rejects a call while the
// guarded dependency is considered unhealthy.
var ErrCircuitOpen = errors.New("circuit open")

// Config tunes one breaker instance. The two production instances
// (payout gateway, ledger RPC) are configured independently and share
// no state.
type Config struct {
	// Name tags log lines and errors.
	Name string
	// FailureThreshold is consecutive failures before the circuit opens.
	FailureThreshold uint32
	// ResetTimeout is how long the circuit stays open before one trial
	// call is allowed.
	ResetTimeout time.Duration
}

// GatewayDefaults trips fast and retries slowly; a payout provider that
// is down tends to stay down for a while.
func GatewayDefaults() Config {
	return Config{
		Name:             "gateway",
		FailureThreshold: 3,
		ResetTimeout:     15 * time.Second,
	}
}

// RPCDefaults tolerates more flakiness but probes again sooner.
func RPCDefaults() Config {
	return Config{
		Name:             "rpc",
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
	}
}

// Breaker wraps gobreaker with the error mapping and logging the rest
// of the bot expects.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a breaker from config.
func New(cfg Config, logger *log.Logger) *Breaker {
	if logger == nil {
		logger = log.Default()
	}

	settings := gobreaker.Settings{
		Name: cfg.Name,
		// One trial call while half-open
		MaxRequests: 1,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("[breaker] %s: %s -> %s", name, from, to)
			observability.RecordBreakerState(name, float64(to))
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. While open it returns
// ErrCircuitOpen without invoking fn.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// State reports the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do runs fn through the breaker with a typed result.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// DoWithFallback runs fn through the breaker; if the circuit is open
// the fallback runs instead of failing. Other errors pass through.
func DoWithFallback[T any](b *Breaker, fn func() (T, error), fallback func() T) (T, error) {
	result, err := Do(b, fn)
	if errors.Is(err, ErrCircuitOpen) {
		return fallback(), nil
	}
	return result, err
}
