package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameCode identifies a game and, through the games table, the bank that funds it
type GameCode string

const (
	GameDice     GameCode = "dice"
	GameMines    GameCode = "mines"
	GameMinedrop GameCode = "minedrop"
)

// Bet is the audit record of one settled wager
type Bet struct {
	ID               int64           `db:"id"`
	UserID           int64           `db:"user_id"`
	BankID           int64           `db:"bank_id"`
	Game             GameCode        `db:"game"`
	Amount           decimal.Decimal `db:"amount"`
	Multiplier       decimal.Decimal `db:"multiplier"`
	Won              bool            `db:"won"`
	WinAmount        decimal.Decimal `db:"win_amount"`
	BalanceHistoryID *int64          `db:"balance_history_id"`
	CreatedAt        time.Time       `db:"created_at"`
}
