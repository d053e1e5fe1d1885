package escrow

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

func strptr(s string) *string { return &s }

func sampleAccount() *Account {
	return &Account{
		Seed:                42,
		Maker:               key(1),
		Mint:                key(2),
		FeeDestination:      key(3),
		Currency:            "NGN",
		EscrowKind:          1,
		FeeBps:              250,
		ReservedFee:         1_000_000,
		Amount:              50_000_000,
		PricePerToken:       1_550,
		PaymentInstructions: "transfer within 30 minutes",
		Reservations: []Reservation{
			{
				Taker:              key(4),
				Amount:             10_000_000,
				FiatAmount:         15_500,
				Timestamp:          1700000000,
				SellerInstructions: strptr("use narration X"),
				Status:             StatusPaymentSent,
				DisputeReason:      nil,
				DisputeID:          nil,
				PayoutDetails:      strptr(`{"bank_code":"058","account_number":"0123456789","account_name":"ADA OBI"}`),
				PayoutReference:    strptr("swp_ref_001"),
			},
			{
				Taker:      key(5),
				Amount:     5_000_000,
				FiatAmount: 7_750,
				Timestamp:  1700000100,
				Status:     StatusDisputed,
				// All optionals absent
			},
		},
		Bump: 254,
	}
}

func TestAccountRoundTrip(t *testing.T) {
	acc := sampleAccount()

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	decoded, err := DecodeAccount(buf)
	require.NoError(t, err)

	assert.Equal(t, acc, decoded)
}

func TestAccountRoundTrip_Empty(t *testing.T) {
	acc := &Account{
		Seed:           0,
		Maker:          key(1),
		Mint:           key(2),
		FeeDestination: key(3),
		Currency:       "USD",
		// zero-length payment instructions, zero reservations
	}

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)
	require.Len(t, buf, minAccountSize)

	decoded, err := DecodeAccount(buf)
	require.NoError(t, err)

	assert.Equal(t, "USD", decoded.Currency)
	assert.Empty(t, decoded.PaymentInstructions)
	assert.Empty(t, decoded.Reservations)
}

func TestAccountRoundTrip_CurrencyNulPadding(t *testing.T) {
	acc := sampleAccount()
	acc.Currency = "EU" // 2 chars, padded with NUL on the wire

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	decoded, err := DecodeAccount(buf)
	require.NoError(t, err)
	assert.Equal(t, "EU", decoded.Currency)
}

func TestDecodeAccount_BufferTooShort(t *testing.T) {
	_, err := DecodeAccount(make([]byte, minAccountSize-1))
	require.ErrorIs(t, err, ErrBufferTooShort)
}

func TestDecodeAccount_BadDiscriminator(t *testing.T) {
	buf, err := EncodeAccount(sampleAccount())
	require.NoError(t, err)

	buf[0] ^= 0xff

	_, err = DecodeAccount(buf)
	require.ErrorIs(t, err, ErrBadDiscriminator)
}

func TestDecodeAccount_PaymentInstructionsCeiling(t *testing.T) {
	acc := sampleAccount()
	acc.PaymentInstructions = string(bytes.Repeat([]byte{'a'}, maxPaymentInstructions+1))

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	_, err = DecodeAccount(buf)
	require.ErrorIs(t, err, ErrCeilingExceeded)
}

func TestDecodeAccount_ReservationCountCeiling(t *testing.T) {
	acc := sampleAccount()
	acc.Reservations = nil

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	// Patch the reservation count (just before the trailing bump) to an
	// implausible value.
	countOff := len(buf) - 1 - 4
	binary.LittleEndian.PutUint32(buf[countOff:], maxReservations+1)

	_, err = DecodeAccount(buf)
	require.ErrorIs(t, err, ErrCeilingExceeded)
}

func TestDecodeAccount_LengthPastBufferEnd(t *testing.T) {
	acc := sampleAccount()
	acc.Reservations = nil
	acc.PaymentInstructions = "short"

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	// Inflate the payment instructions length prefix without adding bytes.
	instrLenOff := 8 + 8 + 96 + 3 + 1 + 2 + 8 + 8 + 8
	binary.LittleEndian.PutUint32(buf[instrLenOff:], 200)

	_, err = DecodeAccount(buf)
	require.ErrorIs(t, err, ErrBufferTooShort)
}

func TestDecodeAccount_TruncatedReservation(t *testing.T) {
	acc := sampleAccount()

	buf, err := EncodeAccount(acc)
	require.NoError(t, err)

	_, err = DecodeAccount(buf[:len(buf)-20])
	require.ErrorIs(t, err, ErrBufferTooShort)
}

func TestFindReservation(t *testing.T) {
	acc := sampleAccount()

	res := acc.FindReservation(key(4), "swp_ref_001")
	require.NotNil(t, res)
	assert.Equal(t, uint64(15_500), res.FiatAmount)

	assert.Nil(t, acc.FindReservation(key(4), "swp_ref_other"))
	assert.Nil(t, acc.FindReservation(key(9), "swp_ref_001"))

	// Reservation without a payout reference never matches
	assert.Nil(t, acc.FindReservation(key(5), ""))
}

func TestConfirmInstructionRoundTrip(t *testing.T) {
	ix := &ConfirmInstruction{
		Taker:           key(4),
		Amount:          10_000_000,
		FiatAmount:      15_500,
		Currency:        "NGN",
		PayoutReference: "swp_ref_001",
		Success:         true,
		Message:         "payout settled",
	}

	buf, err := EncodeConfirmInstruction(ix)
	require.NoError(t, err)

	decoded, err := DecodeConfirmInstruction(buf)
	require.NoError(t, err)
	assert.Equal(t, ix, decoded)
}

func TestConfirmInstruction_FailureFlag(t *testing.T) {
	ix := &ConfirmInstruction{
		Taker:           key(4),
		Currency:        "NGN",
		PayoutReference: "swp_ref_002",
		Success:         false,
		Message:         "insufficient liquidity",
	}

	buf, err := EncodeConfirmInstruction(ix)
	require.NoError(t, err)

	// Success byte sits after disc(8) + taker(32) + amount(8) +
	// fiatAmount(8) + currency(4+3) + reference(4+11).
	successOff := 8 + 32 + 8 + 8 + 4 + 3 + 4 + 11
	assert.Equal(t, byte(0), buf[successOff])

	decoded, err := DecodeConfirmInstruction(buf)
	require.NoError(t, err)
	assert.False(t, decoded.Success)
}

func TestEncodeConfirmInstruction_BadTaker(t *testing.T) {
	_, err := EncodeConfirmInstruction(&ConfirmInstruction{Taker: "not-a-key"})
	require.Error(t, err)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", TruncateMessage("short"))

	long := string(bytes.Repeat([]byte{'x'}, MaxConfirmMessageLen+50))
	assert.Len(t, TruncateMessage(long), MaxConfirmMessageLen)
}
