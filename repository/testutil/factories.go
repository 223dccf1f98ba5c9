package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tgcasino/database"
	"tgcasino/models"
)

// SeedUser inserts a user with the given balance
func SeedUser(t *testing.T, db *database.DB, id int64, balance string) *models.User {
	t.Helper()

	user := &models.User{
		ID:       id,
		Username: "player",
		Balance:  decimal.RequireFromString(balance),
	}
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(),
			`INSERT INTO users (id, username, balance) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
			user.ID, user.Username, user.Balance,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
	})
	require.NoError(t, err)
	return user
}

// SetDefaultBankCapital resets the seeded default bank to a known capital with zeroed counters
func SetDefaultBankCapital(t *testing.T, db *database.DB, capital string) {
	t.Helper()

	_, err := db.Exec(context.Background(),
		`UPDATE banks SET capital = $1, total_wagered = 0, total_won = 0, rtp = 0 WHERE is_default`,
		decimal.RequireFromString(capital))
	require.NoError(t, err)
}

// SeedPlayingMinesRound inserts a playing round with the given mines and revealed cells
func SeedPlayingMinesRound(t *testing.T, db *database.DB, userID int64, bet string, mines, revealed []int) int64 {
	t.Helper()

	var id int64
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(), `
			INSERT INTO mines_rounds (user_id, bank_id, bet, mine_count, mines, revealed, step, status)
			SELECT $1, g.bank_id, $2, $3, $4, $5, $6, 'playing'
			FROM games g WHERE g.code = 'mines'
			RETURNING id`,
			userID, decimal.RequireFromString(bet), len(mines), mines, revealed, len(revealed),
		).Scan(&id)
	})
	require.NoError(t, err)
	return id
}
