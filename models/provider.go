package models

import "github.com/shopspring/decimal"

// ProviderSession is the slot provider's session handle
type ProviderSession struct {
	SessionUUID string         `json:"session_uuid"`
	Raw         map[string]any `json:"-"`
}

// ProviderPlayRequest is sent to the provider's wallet/play endpoint
type ProviderPlayRequest struct {
	SessionID      string   `json:"sessionID"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Mode           SlotMode `json:"mode"`
	Multiplier     float64  `json:"multiplier"`
	IdempotencyKey string   `json:"-"`
}

// ProviderPlayResponse carries the provider-chosen payout multiplier and the
// full round payload relayed back to the client
type ProviderPlayResponse struct {
	PayoutMultiplier decimal.Decimal
	Raw              map[string]any
}
