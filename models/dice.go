package models

import "github.com/shopspring/decimal"

// DiceDirection selects which side of the target the roll must land on
type DiceDirection string

const (
	DiceOver  DiceDirection = "over"
	DiceUnder DiceDirection = "under"
)

// DiceResult is the outcome of a dice play
type DiceResult struct {
	Roll       decimal.Decimal `json:"roll"`
	Win        bool            `json:"isWin"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	Multiplier decimal.Decimal `json:"multiplier"`
	NewBalance decimal.Decimal `json:"newBalance"`
}
