package escrow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Decode failure modes. Each is distinct so callers and tests can tell
// a truncated buffer from a wrong account type from corruption.
var (
	ErrBufferTooShort   = errors.New("buffer shorter than declared layout")
	ErrBadDiscriminator = errors.New("unexpected account discriminator")
	ErrCeilingExceeded  = errors.New("length prefix exceeds sanity ceiling")
)

// Sanity ceilings. A declared length past these is treated as
// corruption, not truncation.
const (
	maxPaymentInstructions = 300
	maxReservations        = 10
)

// minAccountSize is the fixed header plus the two length prefixes and
// the trailing bump: 8+8+96+3+1+2+8+8+8 + 4 + 4 + 1.
const minAccountSize = 151

// reader walks a byte buffer in declaration order, little-endian.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrBufferTooShort
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) pubkey() (string, error) {
	b, err := r.take(32)
	if err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// lenPrefixed reads a u32 length prefix then that many bytes.
func (r *reader) lenPrefixed() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// optionalString reads a 1-byte presence flag, then a length-prefixed
// string if set.
func (r *reader) optionalString() (*string, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	s, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeAccount decodes an escrow account from its raw on-chain bytes.
func DecodeAccount(buf []byte) (*Account, error) {
	if len(buf) < minAccountSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrBufferTooShort, len(buf), minAccountSize)
	}

	r := &reader{buf: buf}

	disc, _ := r.take(8)
	if [8]byte(disc) != accountDiscriminator {
		return nil, fmt.Errorf("%w: %x", ErrBadDiscriminator, disc)
	}

	acc := &Account{}
	var err error

	if acc.Seed, err = r.u64(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if acc.Maker, err = r.pubkey(); err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	if acc.Mint, err = r.pubkey(); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if acc.FeeDestination, err = r.pubkey(); err != nil {
		return nil, fmt.Errorf("fee destination: %w", err)
	}

	cur, err := r.take(3)
	if err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}
	acc.Currency = strings.TrimRight(string(cur), "\x00")

	if acc.EscrowKind, err = r.u8(); err != nil {
		return nil, fmt.Errorf("escrow kind: %w", err)
	}
	if acc.FeeBps, err = r.u16(); err != nil {
		return nil, fmt.Errorf("fee bps: %w", err)
	}
	if acc.ReservedFee, err = r.u64(); err != nil {
		return nil, fmt.Errorf("reserved fee: %w", err)
	}
	if acc.Amount, err = r.u64(); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if acc.PricePerToken, err = r.u64(); err != nil {
		return nil, fmt.Errorf("price per token: %w", err)
	}

	instrLen, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("payment instructions length: %w", err)
	}
	if instrLen > maxPaymentInstructions {
		return nil, fmt.Errorf("%w: payment instructions %d > %d", ErrCeilingExceeded, instrLen, maxPaymentInstructions)
	}
	instr, err := r.take(int(instrLen))
	if err != nil {
		return nil, fmt.Errorf("payment instructions: %w", err)
	}
	acc.PaymentInstructions = string(instr)

	count, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("reservation count: %w", err)
	}
	if count > maxReservations {
		return nil, fmt.Errorf("%w: reservation count %d > %d", ErrCeilingExceeded, count, maxReservations)
	}

	acc.Reservations = make([]Reservation, 0, count)
	for i := uint32(0); i < count; i++ {
		res, err := decodeReservation(r)
		if err != nil {
			return nil, fmt.Errorf("reservation %d: %w", i, err)
		}
		acc.Reservations = append(acc.Reservations, *res)
	}

	if acc.Bump, err = r.u8(); err != nil {
		return nil, fmt.Errorf("bump: %w", err)
	}

	return acc, nil
}

func decodeReservation(r *reader) (*Reservation, error) {
	res := &Reservation{}
	var err error

	if res.Taker, err = r.pubkey(); err != nil {
		return nil, fmt.Errorf("taker: %w", err)
	}
	if res.Amount, err = r.u64(); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if res.FiatAmount, err = r.u64(); err != nil {
		return nil, fmt.Errorf("fiat amount: %w", err)
	}
	if res.Timestamp, err = r.i64(); err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	if res.SellerInstructions, err = r.optionalString(); err != nil {
		return nil, fmt.Errorf("seller instructions: %w", err)
	}

	// Status sits between sellerInstructions and disputeReason
	status, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	res.Status = ReservationStatus(status)

	if res.DisputeReason, err = r.optionalString(); err != nil {
		return nil, fmt.Errorf("dispute reason: %w", err)
	}
	if res.DisputeID, err = r.optionalString(); err != nil {
		return nil, fmt.Errorf("dispute id: %w", err)
	}
	if res.PayoutDetails, err = r.optionalString(); err != nil {
		return nil, fmt.Errorf("payout details: %w", err)
	}
	if res.PayoutReference, err = r.optionalString(); err != nil {
		return nil, fmt.Errorf("payout reference: %w", err)
	}

	return res, nil
}

// writer builds a buffer in declaration order, little-endian.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) pubkey(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode key %q: %w", s, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("key %q is %d bytes, want 32", s, len(b))
	}
	w.raw(b)
	return nil
}

func (w *writer) lenPrefixed(s string) {
	w.u32(uint32(len(s)))
	w.raw([]byte(s))
}

func (w *writer) optionalString(s *string) {
	if s == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.lenPrefixed(*s)
}

// EncodeAccount serializes an escrow account into its on-chain layout.
// The decoder's inverse; used for fixtures and round-trip checks.
func EncodeAccount(acc *Account) ([]byte, error) {
	w := &writer{}
	w.raw(accountDiscriminator[:])
	w.u64(acc.Seed)

	if err := w.pubkey(acc.Maker); err != nil {
		return nil, fmt.Errorf("maker: %w", err)
	}
	if err := w.pubkey(acc.Mint); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if err := w.pubkey(acc.FeeDestination); err != nil {
		return nil, fmt.Errorf("fee destination: %w", err)
	}

	var cur [3]byte
	copy(cur[:], acc.Currency)
	w.raw(cur[:])

	w.u8(acc.EscrowKind)
	w.u16(acc.FeeBps)
	w.u64(acc.ReservedFee)
	w.u64(acc.Amount)
	w.u64(acc.PricePerToken)
	w.lenPrefixed(acc.PaymentInstructions)

	w.u32(uint32(len(acc.Reservations)))
	for i := range acc.Reservations {
		if err := encodeReservation(w, &acc.Reservations[i]); err != nil {
			return nil, fmt.Errorf("reservation %d: %w", i, err)
		}
	}

	w.u8(acc.Bump)
	return w.buf, nil
}

func encodeReservation(w *writer, res *Reservation) error {
	if err := w.pubkey(res.Taker); err != nil {
		return fmt.Errorf("taker: %w", err)
	}
	w.u64(res.Amount)
	w.u64(res.FiatAmount)
	w.u64(uint64(res.Timestamp))
	w.optionalString(res.SellerInstructions)
	w.u8(uint8(res.Status))
	w.optionalString(res.DisputeReason)
	w.optionalString(res.DisputeID)
	w.optionalString(res.PayoutDetails)
	w.optionalString(res.PayoutReference)
	return nil
}
