package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinesStatus is the lifecycle state of a mines round
type MinesStatus string

const (
	MinesStatusPlaying MinesStatus = "playing"
	MinesStatusWon     MinesStatus = "won"
	MinesStatusLost    MinesStatus = "lost"
)

const (
	// MinesFieldSize is the number of cells on the board
	MinesFieldSize = 25
	MinMines       = 1
	MaxMines       = 24
)

// MinesRound is the persisted state of a user's mines round
type MinesRound struct {
	ID         int64            `db:"id"`
	UserID     int64            `db:"user_id"`
	BankID     int64            `db:"bank_id"`
	Bet        decimal.Decimal  `db:"bet"`
	MineCount  int              `db:"mine_count"`
	Mines      []int            `db:"mines"`
	Revealed   []int            `db:"revealed"`
	Step       int              `db:"step"`
	Status     MinesStatus      `db:"status"`
	LostCell   *int             `db:"lost_cell"`
	Multiplier *decimal.Decimal `db:"multiplier"`
	WinAmount  *decimal.Decimal `db:"win_amount"`
	CreatedAt  time.Time        `db:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at"`
}

// LadderStep is the capped payout multiplier reached after Step safe reveals
type LadderStep struct {
	Step       int             `json:"step"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// MinesState is returned by start, pick and state queries while a round is playing
type MinesState struct {
	Status           MinesStatus      `json:"status"`
	Bet              decimal.Decimal  `json:"bet"`
	MineCount        int              `json:"mineCount"`
	Revealed         []int            `json:"revealed"`
	Step             int              `json:"step"`
	Multiplier       decimal.Decimal  `json:"multiplier"`
	NextMultiplier   decimal.Decimal  `json:"nextMultiplier"`
	MultiplierLadder []LadderStep     `json:"multipliers"`
	NewBalance       *decimal.Decimal `json:"newBalance,omitempty"`
}

// MinesLoss is returned when a pick hits a mine
type MinesLoss struct {
	Status     MinesStatus     `json:"status"`
	Mines      []int           `json:"mines"`
	CellID     int             `json:"cellId"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// MinesPickResult carries exactly one of State or Loss
type MinesPickResult struct {
	State *MinesState
	Loss  *MinesLoss
}

// MinesCashoutResult is returned by a successful cashout
type MinesCashoutResult struct {
	Status     MinesStatus     `json:"status"`
	WinAmount  decimal.Decimal `json:"winAmount"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Mines      []int           `json:"mines"`
	NewBalance decimal.Decimal `json:"newBalance"`
}
