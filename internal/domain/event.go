package domain

// EventKind identifies a settlement event emitted by the SwiftPay program.
type EventKind string

const (
	// EventReservationCreated fires when a counterparty reserves against an escrow.
	EventReservationCreated EventKind = "reservation_created"
	// EventPayoutCompleted fires after a fiat payout settled successfully.
	EventPayoutCompleted EventKind = "payout_completed"
	// EventPayoutFailed fires after a fiat payout was declined or errored.
	EventPayoutFailed EventKind = "payout_failed"
)

// Role identifies a participant's side of an escrow.
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// EventData carries the best-effort field extraction from program logs.
// All fields are optional strings; downstream validation decides which
// are required for a given event kind.
type EventData struct {
	Amount          string
	FiatAmount      string
	Currency        string
	PayoutReference string
	PayoutDetails   string // JSON-encoded payout destination
	SwiftPay        string // escrow account address
	Taker           string
	Maker           string
}

// ParsedEvent is one structured event recovered from a transaction's logs.
// Immutable once constructed.
type ParsedEvent struct {
	Kind         EventKind
	Data         EventData
	Participants map[Role]string
	Signature    string
	Timestamp    int64 // Unix timestamp (milliseconds)
}
