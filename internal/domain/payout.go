package domain

import "encoding/json"

// PayoutDetails is the fiat destination embedded in a reservation's
// payoutDetails JSON.
type PayoutDetails struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// ParsePayoutDetails decodes the payoutDetails JSON from event data.
func ParsePayoutDetails(raw string) (*PayoutDetails, error) {
	var d PayoutDetails
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PayoutResult is the outcome of one gateway payout attempt. Ephemeral:
// consumed by the confirmation builder and the audit sink, never stored
// on its own.
type PayoutResult struct {
	Success     bool
	Error       string
	ErrorCode   string
	ProviderRef string
	Reference   string
	Data        map[string]any
}
