package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SlotMode is the play mode of the provider-hosted slot game
type SlotMode string

const (
	SlotModeNormal SlotMode = "NORMAL"
	SlotModeAnte   SlotMode = "ANTE"
	SlotModeBonus  SlotMode = "BONUS"
)

// SlotRoundStatus tracks a provider round from reservation to completion
type SlotRoundStatus string

const (
	SlotRoundReserved SlotRoundStatus = "reserved"
	SlotRoundSettled  SlotRoundStatus = "settled"
	SlotRoundRefunded SlotRoundStatus = "refunded"
)

// SlotRound is a provider-relayed play whose cost is reserved before the
// provider call and settled or refunded afterwards
type SlotRound struct {
	ID             uuid.UUID        `db:"id"`
	UserID         int64            `db:"user_id"`
	BankID         int64            `db:"bank_id"`
	SessionID      string           `db:"session_id"`
	IdempotencyKey string           `db:"idempotency_key"`
	Mode           SlotMode         `db:"mode"`
	Bet            decimal.Decimal  `db:"bet"`
	Cost           decimal.Decimal  `db:"cost"`
	Status         SlotRoundStatus  `db:"status"`
	Multiplier     *decimal.Decimal `db:"multiplier"`
	WinAmount      *decimal.Decimal `db:"win_amount"`
	ProviderResult map[string]any   `db:"provider_result"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// SlotPlayRequest is a play relayed from the slot client
type SlotPlayRequest struct {
	UserID         int64
	SessionID      string
	Amount         int64 // micro-units
	Currency       string
	Mode           SlotMode
	IdempotencyKey string
}

// SlotPlayResult is the settled outcome of a slot play
type SlotPlayResult struct {
	RoundID        uuid.UUID       `json:"roundId"`
	Mode           SlotMode        `json:"mode"`
	Bet            decimal.Decimal `json:"bet"`
	Cost           decimal.Decimal `json:"cost"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	WinAmount      decimal.Decimal `json:"winAmount"`
	NewBalance     decimal.Decimal `json:"updated_balance"`
	ProviderResult map[string]any  `json:"result,omitempty"`
}
