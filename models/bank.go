package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank is a shared capital pool that funds payouts for one or more games
type Bank struct {
	ID                int64           `db:"id"`
	Name              string          `db:"name"`
	Currency          string          `db:"currency"`
	Capital           decimal.Decimal `db:"capital"`
	TotalWagered      decimal.Decimal `db:"total_wagered"`
	TotalWon          decimal.Decimal `db:"total_won"`
	RTP               decimal.Decimal `db:"rtp"` // percent, derived from TotalWon / TotalWagered
	HouseEdge         decimal.Decimal `db:"house_edge"`
	MaxPayoutFraction decimal.Decimal `db:"max_payout_fraction"`
	IsDefault         bool            `db:"is_default"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}
