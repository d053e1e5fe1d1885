// Package reconcile runs the payout reconciliation flow: one on-chain
// reservation event in, one fiat payout attempt plus an on-chain
// confirmation and an audit trail out.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"swiftpay-bot/internal/breaker"
	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/gateway"
	"swiftpay-bot/internal/observability"
	"swiftpay-bot/internal/storage"
)

// Synthetic error codes used when the gateway call never produced a
// provider response.
const (
	CodeServiceError       = "SERVICE_ERROR"
	CodeServiceCircuitOpen = "SERVICE_CIRCUIT_OPEN"
)

// DefaultSettlementDelay is the wait between a gateway payout and the
// on-chain confirmation, giving the provider's state time to settle.
const DefaultSettlementDelay = 5 * time.Second

// Notifier delivers participant notifications.
type Notifier interface {
	NotifyParticipants(ctx context.Context, event *domain.ParsedEvent)
}

// PayoutConfirmer writes the payout outcome back to the ledger.
type PayoutConfirmer interface {
	ConfirmPayout(ctx context.Context, event *domain.ParsedEvent, result *domain.PayoutResult) (string, error)
}

// MakerResolver looks up the maker behind an escrow account.
type MakerResolver interface {
	ResolveMaker(ctx context.Context, escrowAddr string) (string, error)
}

// Engine is the per-event reconciliation state machine.
type Engine struct {
	audit          storage.AuditStore
	gateway        gateway.Client
	gatewayBreaker *breaker.Breaker
	notifier       Notifier
	confirmer      PayoutConfirmer
	resolver       MakerResolver
	pending        *PendingSet
	settleDelay    time.Duration
	logger         *log.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Audit           storage.AuditStore
	Gateway         gateway.Client
	GatewayBreaker  *breaker.Breaker
	Notifier        Notifier
	Confirmer       PayoutConfirmer
	Resolver        MakerResolver
	Pending         *PendingSet
	SettlementDelay time.Duration
	Logger          *log.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.SettlementDelay <= 0 {
		opts.SettlementDelay = DefaultSettlementDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Pending == nil {
		opts.Pending = NewPendingSet()
	}
	return &Engine{
		audit:          opts.Audit,
		gateway:        opts.Gateway,
		gatewayBreaker: opts.GatewayBreaker,
		notifier:       opts.Notifier,
		confirmer:      opts.Confirmer,
		resolver:       opts.Resolver,
		pending:        opts.Pending,
		settleDelay:    opts.SettlementDelay,
		logger:         opts.Logger,
	}
}

// Pending exposes the in-flight set for shutdown draining.
func (e *Engine) Pending() *PendingSet {
	return e.pending
}

// HandleEvent routes one parsed event. Never returns an error; every
// failure path ends in an audit write or a log line.
func (e *Engine) HandleEvent(ctx context.Context, event *domain.ParsedEvent) {
	switch event.Kind {
	case domain.EventReservationCreated:
		e.reconcileReservation(ctx, event)
	case domain.EventPayoutCompleted, domain.EventPayoutFailed:
		// Outcome events emitted by our own confirmations; forward to
		// participants, nothing to reconcile.
		e.notifier.NotifyParticipants(ctx, event)
	default:
		e.logger.Printf("[engine] ignoring event kind %q, sig=%s", event.Kind, event.Signature)
	}
}

// reconcileReservation is the core flow. Steps execute strictly in
// order; every exit after an externally-visible step leaves an audit
// record.
func (e *Engine) reconcileReservation(ctx context.Context, event *domain.ParsedEvent) {
	ref := event.Data.PayoutReference

	// Nothing to correlate a payout against; cannot safely proceed or
	// even log against a key.
	if ref == "" {
		e.logger.Printf("[engine] reservation event without payoutReference, sig=%s", event.Signature)
		return
	}

	if !e.pending.Add(ref) {
		e.logger.Printf("[engine] duplicate in-flight reference %s, sig=%s", ref, event.Signature)
		observability.DefaultMetrics.DuplicateRefs.Inc()
		return
	}
	defer e.pending.Remove(ref)
	observability.DefaultMetrics.FlowsStarted.Inc()

	if !e.validate(ctx, event) {
		return
	}

	e.resolveCounterparty(ctx, event)

	// Pre-notify before attempting payout so a gateway outage never
	// hides the reservation from the counterparty.
	e.notifier.NotifyParticipants(ctx, event)

	details, err := domain.ParsePayoutDetails(event.Data.PayoutDetails)
	if err != nil {
		e.auditError(ctx, event, domain.AuditParseError, "malformed payoutDetails: "+err.Error())
		return
	}

	if !e.validateWithGateway(ctx, event, details) {
		return
	}

	e.auditLog(ctx, event, domain.PayoutStatusInitiated, nil, "")
	result := e.initiatePayout(ctx, event, details)

	e.settle(ctx)

	sig := e.confirmOnChain(ctx, event, result)

	e.notifyOutcome(ctx, event, result)

	status := domain.PayoutStatusFailed
	if result.Success {
		status = domain.PayoutStatusCompleted
	}
	e.auditLog(ctx, event, status, result, sig)

	observability.RecordPayoutOutcome(result.Success, result.ErrorCode)
	observability.DefaultMetrics.FlowsCompleted.WithLabelValues(status).Inc()
	e.logger.Printf("[engine] flow complete ref=%s status=%s sig=%s", ref, status, sig)
}

// validate checks required fields. A failure is audited and aborts the
// flow before any gateway or chain interaction.
func (e *Engine) validate(ctx context.Context, event *domain.ParsedEvent) bool {
	var missing []string

	if event.Data.Taker == "" {
		missing = append(missing, "taker")
	}
	if event.Data.Currency == "" {
		missing = append(missing, "currency")
	}
	if event.Data.PayoutDetails == "" {
		missing = append(missing, "payoutDetails")
	}
	if event.Data.FiatAmount == "" {
		missing = append(missing, "fiatAmount")
	} else if _, err := strconv.ParseFloat(event.Data.FiatAmount, 64); err != nil {
		missing = append(missing, "fiatAmount (non-numeric)")
	}

	if len(missing) == 0 {
		return true
	}

	msg := "missing or invalid fields: "
	for i, m := range missing {
		if i > 0 {
			msg += ", "
		}
		msg += m
	}
	e.auditError(ctx, event, domain.AuditValidationError, msg)
	return false
}

// resolveCounterparty fills in the maker address from the escrow
// account when the event lacks it. Best-effort; a failure here only
// narrows who gets notified.
func (e *Engine) resolveCounterparty(ctx context.Context, event *domain.ParsedEvent) {
	if _, ok := event.Participants[domain.RoleMaker]; ok {
		return
	}
	if event.Participants == nil {
		event.Participants = map[domain.Role]string{}
	}
	if event.Data.Maker != "" {
		event.Participants[domain.RoleMaker] = event.Data.Maker
		return
	}

	if e.resolver == nil || event.Data.SwiftPay == "" {
		return
	}

	maker, err := e.resolver.ResolveMaker(ctx, event.Data.SwiftPay)
	if err != nil {
		e.logger.Printf("[engine] WARN counterparty resolution failed for %s: %v", event.Data.SwiftPay, err)
		return
	}
	event.Participants[domain.RoleMaker] = maker
}

// validateWithGateway asks the provider to vet the destination. An
// invalid or unverifiable destination aborts the flow before any money
// moves; no chain write happens for a reservation that was never paid.
func (e *Engine) validateWithGateway(ctx context.Context, event *domain.ParsedEvent, details *domain.PayoutDetails) bool {
	validation, err := breaker.Do(e.gatewayBreaker, func() (*gateway.Validation, error) {
		return e.gateway.ValidatePayoutDetails(ctx, details, event.Data.FiatAmount, event.Data.Currency)
	})
	if err != nil {
		e.auditError(ctx, event, domain.AuditValidationFailed, "destination validation unavailable: "+err.Error())
		return false
	}

	if !validation.IsValid {
		msg := "invalid payout destination"
		if len(validation.Errors) > 0 {
			msg = validation.Errors[0]
		}
		e.auditError(ctx, event, domain.AuditValidationFailed, msg)
		return false
	}

	return true
}

// initiatePayout moves the money. Gateway failures of any shape are
// folded into a failed PayoutResult; this step never panics or errors
// out, because the confirmation step must always run with a defined
// result.
func (e *Engine) initiatePayout(ctx context.Context, event *domain.ParsedEvent, details *domain.PayoutDetails) *domain.PayoutResult {
	ref := event.Data.PayoutReference

	result, err := breaker.DoWithFallback(e.gatewayBreaker,
		func() (*domain.PayoutResult, error) {
			return e.gateway.InitiatePayout(ctx, details, event.Data.FiatAmount, event.Data.Currency, ref)
		},
		func() *domain.PayoutResult {
			return &domain.PayoutResult{
				Success:   false,
				Error:     "payout gateway circuit open",
				ErrorCode: CodeServiceCircuitOpen,
				Reference: ref,
			}
		},
	)
	if err != nil {
		return &domain.PayoutResult{
			Success:   false,
			Error:     err.Error(),
			ErrorCode: gatewayErrorCode(err),
			Reference: ref,
		}
	}

	return result
}

// settle waits out the fixed settlement delay.
func (e *Engine) settle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(e.settleDelay):
	}
}

// confirmOnChain writes the outcome to the ledger. Failure is audited
// as a TransactionError and never aborts the flow; the fiat payout is
// already irreversible and must be recorded regardless.
func (e *Engine) confirmOnChain(ctx context.Context, event *domain.ParsedEvent, result *domain.PayoutResult) string {
	sig, err := e.confirmer.ConfirmPayout(ctx, event, result)
	if err != nil {
		e.logger.Printf("[engine] on-chain confirmation failed ref=%s: %v", event.Data.PayoutReference, err)
		if auditErr := e.audit.InsertTransactionError(ctx, &domain.TransactionError{
			Reference: event.Data.PayoutReference,
			Message:   err.Error(),
			Stack:     "reconcile.confirmOnChain",
			Ts:        time.Now().UnixMilli(),
		}); auditErr != nil {
			e.logger.Printf("[engine] audit write failed: %v", auditErr)
		}
		return ""
	}
	return sig
}

// notifyOutcome re-dispatches the event as a payout outcome.
func (e *Engine) notifyOutcome(ctx context.Context, event *domain.ParsedEvent, result *domain.PayoutResult) {
	outcome := *event
	if result.Success {
		outcome.Kind = domain.EventPayoutCompleted
	} else {
		outcome.Kind = domain.EventPayoutFailed
	}
	e.notifier.NotifyParticipants(ctx, &outcome)
}

// auditError writes a payout_errors row.
func (e *Engine) auditError(ctx context.Context, event *domain.ParsedEvent, kind, message string) {
	observability.DefaultMetrics.ValidationErrors.WithLabelValues(kind).Inc()
	raw, _ := json.Marshal(event.Data)
	err := e.audit.InsertPayoutError(ctx, &domain.PayoutError{
		Reference:    event.Data.PayoutReference,
		Counterparty: event.Data.Taker,
		Kind:         kind,
		Message:      message,
		RawEvent:     string(raw),
		Ts:           time.Now().UnixMilli(),
	})
	if err != nil {
		e.logger.Printf("[engine] audit write failed: %v", err)
	}
}

// auditLog writes a payout_logs row.
func (e *Engine) auditLog(ctx context.Context, event *domain.ParsedEvent, status string, result *domain.PayoutResult, txSig string) {
	l := &domain.PayoutLog{
		Reference:    event.Data.PayoutReference,
		Counterparty: event.Data.Taker,
		Amount:       event.Data.Amount,
		FiatAmount:   event.Data.FiatAmount,
		Currency:     event.Data.Currency,
		Status:       status,
		TxSignature:  txSig,
		Ts:           time.Now().UnixMilli(),
	}
	if result != nil {
		l.ProviderRef = result.ProviderRef
		l.ErrorMessage = result.Error
		l.ErrorCode = result.ErrorCode
	}
	if err := e.audit.InsertPayoutLog(ctx, l); err != nil {
		e.logger.Printf("[engine] audit write failed: %v", err)
	}
}

// gatewayErrorCode extracts the provider error code, defaulting to
// SERVICE_ERROR for transport-level failures.
func gatewayErrorCode(err error) string {
	var reqErr *gateway.RequestError
	if errors.As(err, &reqErr) && reqErr.Code != "" {
		return reqErr.Code
	}
	if errors.Is(err, breaker.ErrCircuitOpen) {
		return CodeServiceCircuitOpen
	}
	return CodeServiceError
}
