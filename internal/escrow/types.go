package escrow

import (
	"crypto/sha256"
	"fmt"
)

// ReservationStatus is the lifecycle state of a counterparty reservation.
type ReservationStatus uint8

const (
	StatusPending ReservationStatus = iota
	StatusPaymentSent
	StatusCompleted
	StatusCancelled
	StatusDisputed
)

func (s ReservationStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPaymentSent:
		return "payment_sent"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Reservation is one counterparty claim against an escrow. Optional
// fields use nil to distinguish absent from empty.
type Reservation struct {
	Taker              string // base58
	Amount             uint64
	FiatAmount         uint64
	Timestamp          int64
	SellerInstructions *string
	Status             ReservationStatus
	DisputeReason      *string
	DisputeID          *string
	PayoutDetails      *string
	PayoutReference    *string
}

// Account is the decoded mirror of an on-chain escrow record. The
// ledger owns the authoritative copy; callers re-read before acting.
type Account struct {
	Seed                uint64
	Maker               string // base58
	Mint                string // base58
	FeeDestination      string // base58
	Currency            string // 3-byte ASCII, NUL-trimmed
	EscrowKind          uint8
	FeeBps              uint16
	ReservedFee         uint64
	Amount              uint64
	PricePerToken       uint64
	PaymentInstructions string
	Reservations        []Reservation
	Bump                uint8
}

// FindReservation returns the reservation matching taker and payout
// reference, or nil if none matches.
func (a *Account) FindReservation(taker, payoutReference string) *Reservation {
	for i := range a.Reservations {
		r := &a.Reservations[i]
		if r.Taker != taker {
			continue
		}
		if r.PayoutReference != nil && *r.PayoutReference == payoutReference {
			return r
		}
	}
	return nil
}

// Anchor-style 8-byte discriminators.
var (
	accountDiscriminator     = anchorDiscriminator("account:SwiftPay")
	instructionDiscriminator = anchorDiscriminator("global:confirm_payment")
)

func anchorDiscriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}
