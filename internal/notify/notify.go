// Package notify delivers best-effort outcome messages to escrow
// participants. Delivery failure never fails a reconciliation flow.
package notify

import (
	"context"
	"fmt"
	"log"

	"swiftpay-bot/internal/domain"
)

// Deliverer is the external notification collaborator.
type Deliverer interface {
	// SendToAddress delivers a rendered message to a wallet address and
	// returns the channels it actually reached.
	SendToAddress(ctx context.Context, address, eventTypeKey, message string) ([]string, error)
}

// allowedKinds is the closed set of event kinds with a notification
// shape. Unknown kinds must never reach the deliverer.
var allowedKinds = map[domain.EventKind]bool{
	domain.EventReservationCreated: true,
	domain.EventPayoutCompleted:    true,
	domain.EventPayoutFailed:       true,
}

// Dispatcher fans one event out to every participant.
type Dispatcher struct {
	deliverer Deliverer
	logger    *log.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deliverer Deliverer, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{deliverer: deliverer, logger: logger}
}

// NotifyParticipants sends a role-specific message to each participant.
// No-op for events without participants or with an unrecognized kind.
// One recipient's failure never blocks the others.
func (d *Dispatcher) NotifyParticipants(ctx context.Context, event *domain.ParsedEvent) {
	if len(event.Participants) == 0 {
		return
	}

	if !allowedKinds[event.Kind] {
		d.logger.Printf("[notify] unrecognized event kind %q, skipping", event.Kind)
		return
	}

	for role, address := range event.Participants {
		message := renderMessage(event, role)
		if message == "" {
			continue
		}

		channels, err := d.deliverer.SendToAddress(ctx, address, string(event.Kind), message)
		if err != nil {
			d.logger.Printf("[notify] delivery to %s (%s) failed: %v", address, role, err)
			continue
		}

		d.logger.Printf("[notify] delivered %s to %s via %v", event.Kind, address, channels)
	}
}

// renderMessage builds the role-specific payload text.
func renderMessage(event *domain.ParsedEvent, role domain.Role) string {
	amount := event.Data.FiatAmount
	currency := event.Data.Currency
	ref := event.Data.PayoutReference

	switch event.Kind {
	case domain.EventReservationCreated:
		if role == domain.RoleMaker {
			return fmt.Sprintf("A buyer reserved against your escrow. Payout of %s %s (ref %s) is being processed.", amount, currency, ref)
		}
		return fmt.Sprintf("Your reservation is confirmed. Payout of %s %s (ref %s) is being processed.", amount, currency, ref)

	case domain.EventPayoutCompleted:
		if role == domain.RoleMaker {
			return fmt.Sprintf("Payout of %s %s (ref %s) settled. Your escrow has been released.", amount, currency, ref)
		}
		return fmt.Sprintf("Payout of %s %s (ref %s) settled to your account.", amount, currency, ref)

	case domain.EventPayoutFailed:
		if role == domain.RoleMaker {
			return fmt.Sprintf("Payout for reservation (ref %s) failed. Your escrow remains locked.", ref)
		}
		return fmt.Sprintf("Payout (ref %s) failed. Please verify your payout details.", ref)
	}

	return ""
}
