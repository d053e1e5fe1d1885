// Package events recovers structured settlement events from raw
// program log lines.
package events

import (
	"encoding/json"
	"log"
	"strings"

	"swiftpay-bot/internal/domain"
)

// eventLogPrefix marks a structured event line emitted by the program.
// Format: "Program log: swiftpay-event:<kind> <json payload>".
const eventLogPrefix = "Program log: swiftpay-event:"

var knownKinds = map[domain.EventKind]bool{
	domain.EventReservationCreated: true,
	domain.EventPayoutCompleted:    true,
	domain.EventPayoutFailed:       true,
}

// Parser extracts ParsedEvents from transaction log lines.
type Parser struct {
	logger *log.Logger
}

// NewParser creates a parser.
func NewParser(logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{logger: logger}
}

// rawEvent mirrors the JSON payload the program logs. Numeric fields
// arrive as strings or numbers depending on magnitude, so everything
// is decoded leniently.
type rawEvent struct {
	Amount          json.Number     `json:"amount"`
	FiatAmount      json.Number     `json:"fiatAmount"`
	Currency        string          `json:"currency"`
	PayoutReference string          `json:"payoutReference"`
	PayoutDetails   json.RawMessage `json:"payoutDetails"`
	SwiftPay        string          `json:"swiftPay"`
	Taker           string          `json:"taker"`
	Maker           string          `json:"maker"`
}

// ParseLogs scans log lines for event markers and returns one
// ParsedEvent per well-formed marker. Malformed payloads are skipped
// with a warning; extraction is best-effort by contract.
func (p *Parser) ParseLogs(logs []string, signature string, timestamp int64) []*domain.ParsedEvent {
	var out []*domain.ParsedEvent

	for _, line := range logs {
		if !strings.HasPrefix(line, eventLogPrefix) {
			continue
		}

		rest := line[len(eventLogPrefix):]
		kindStr, payload, found := strings.Cut(rest, " ")
		if !found {
			p.logger.Printf("[events] marker without payload, sig=%s", signature)
			continue
		}

		kind := domain.EventKind(kindStr)
		if !knownKinds[kind] {
			p.logger.Printf("[events] unknown event kind %q, sig=%s", kindStr, signature)
			continue
		}

		var raw rawEvent
		dec := json.NewDecoder(strings.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			p.logger.Printf("[events] malformed %s payload, sig=%s: %v", kindStr, signature, err)
			continue
		}

		event := &domain.ParsedEvent{
			Kind: kind,
			Data: domain.EventData{
				Amount:          raw.Amount.String(),
				FiatAmount:      raw.FiatAmount.String(),
				Currency:        raw.Currency,
				PayoutReference: raw.PayoutReference,
				PayoutDetails:   normalizePayoutDetails(raw.PayoutDetails),
				SwiftPay:        raw.SwiftPay,
				Taker:           raw.Taker,
				Maker:           raw.Maker,
			},
			Participants: map[domain.Role]string{},
			Signature:    signature,
			Timestamp:    timestamp,
		}

		if raw.Maker != "" {
			event.Participants[domain.RoleMaker] = raw.Maker
		}
		if raw.Taker != "" {
			event.Participants[domain.RoleTaker] = raw.Taker
		}

		out = append(out, event)
	}

	return out
}

// normalizePayoutDetails flattens the payoutDetails field to a JSON
// string. Programs emit it either as an embedded object or as a
// pre-serialized string.
func normalizePayoutDetails(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
