package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeDiceWin      TransactionType = "dice_win"
	TransactionTypeDiceLoss     TransactionType = "dice_loss"
	TransactionTypeMinesBet     TransactionType = "mines_bet"
	TransactionTypeMinesCashout TransactionType = "mines_cashout"
	TransactionTypeSlotReserve  TransactionType = "slot_reserve"
	TransactionTypeSlotSettle   TransactionType = "slot_settle"
	TransactionTypeSlotRefund   TransactionType = "slot_refund"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeBet        RelatedType = "bet"
	RelatedTypeMinesRound RelatedType = "mines_round"
	RelatedTypeSlotRound  RelatedType = "slot_round"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              int64           `db:"user_id"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *string         `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}
