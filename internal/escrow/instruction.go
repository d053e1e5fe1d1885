package escrow

import (
	"fmt"
)

// MaxConfirmMessageLen bounds the free-text message carried in the
// confirmation instruction.
const MaxConfirmMessageLen = 200

// ConfirmInstruction is the payload of the confirm_payment instruction.
type ConfirmInstruction struct {
	Taker           string // base58
	Amount          uint64
	FiatAmount      uint64
	Currency        string
	PayoutReference string
	Success         bool
	Message         string
}

// TruncateMessage bounds a message to MaxConfirmMessageLen bytes.
func TruncateMessage(msg string) string {
	if len(msg) <= MaxConfirmMessageLen {
		return msg
	}
	return msg[:MaxConfirmMessageLen]
}

// EncodeConfirmInstruction serializes the confirm_payment payload.
// Pure; little-endian throughout. The caller truncates Message first.
func EncodeConfirmInstruction(ix *ConfirmInstruction) ([]byte, error) {
	w := &writer{}
	w.raw(instructionDiscriminator[:])

	if err := w.pubkey(ix.Taker); err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}
	w.u64(ix.Amount)
	w.u64(ix.FiatAmount)
	w.lenPrefixed(ix.Currency)
	w.lenPrefixed(ix.PayoutReference)
	if ix.Success {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.lenPrefixed(ix.Message)

	return w.buf, nil
}

// DecodeConfirmInstruction is the encoder's inverse. Kept alongside the
// encoder so the wire contract stays round-trip-checked.
func DecodeConfirmInstruction(buf []byte) (*ConfirmInstruction, error) {
	r := &reader{buf: buf}

	disc, err := r.take(8)
	if err != nil {
		return nil, fmt.Errorf("discriminator: %w", err)
	}
	if [8]byte(disc) != instructionDiscriminator {
		return nil, fmt.Errorf("%w: %x", ErrBadDiscriminator, disc)
	}

	ix := &ConfirmInstruction{}
	if ix.Taker, err = r.pubkey(); err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}
	if ix.Amount, err = r.u64(); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if ix.FiatAmount, err = r.u64(); err != nil {
		return nil, fmt.Errorf("fiat amount: %w", err)
	}
	if ix.Currency, err = r.lenPrefixed(); err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}
	if ix.PayoutReference, err = r.lenPrefixed(); err != nil {
		return nil, fmt.Errorf("payout reference: %w", err)
	}

	success, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("success: %w", err)
	}
	ix.Success = success != 0

	if ix.Message, err = r.lenPrefixed(); err != nil {
		return nil, fmt.Errorf("message: %w", err)
	}

	return ix, nil
}
