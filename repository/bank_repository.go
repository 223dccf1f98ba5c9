package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tgcasino/database"
	"tgcasino/models"
)

// BankRepository implements the BankRepository interface
type BankRepository struct {
	q queryable
}

// NewBankRepository creates a new bank repository
func NewBankRepository(db *database.DB) *BankRepository {
	return &BankRepository{q: db.Pool}
}

func newBankRepositoryWithTx(tx queryable) *BankRepository {
	return &BankRepository{q: tx}
}

const bankColumns = `b.id, b.name, b.currency, b.capital, b.total_wagered, b.total_won, b.rtp,
		b.house_edge, b.max_payout_fraction, b.is_default, b.created_at, b.updated_at`

func scanBank(row pgx.Row) (*models.Bank, error) {
	var bank models.Bank
	err := row.Scan(
		&bank.ID,
		&bank.Name,
		&bank.Currency,
		&bank.Capital,
		&bank.TotalWagered,
		&bank.TotalWon,
		&bank.RTP,
		&bank.HouseEdge,
		&bank.MaxPayoutFraction,
		&bank.IsDefault,
		&bank.CreatedAt,
		&bank.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

// getByGame resolves the bank through the games mapping. A game without a
// mapping yields nil, never some other bank.
func (r *BankRepository) getByGame(ctx context.Context, game models.GameCode, lock string) (*models.Bank, error) {
	query := `
		SELECT ` + bankColumns + `
		FROM games g
		JOIN banks b ON b.id = g.bank_id
		WHERE g.code = $1` + lock

	bank, err := scanBank(r.q.QueryRow(ctx, query, game))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank for game %s: %w", game, err)
	}
	return bank, nil
}

// GetByGame resolves the bank that funds game
func (r *BankRepository) GetByGame(ctx context.Context, game models.GameCode) (*models.Bank, error) {
	return r.getByGame(ctx, game, "")
}

// GetByGameForUpdate resolves and locks the bank that funds game
func (r *BankRepository) GetByGameForUpdate(ctx context.Context, game models.GameCode) (*models.Bank, error) {
	return r.getByGame(ctx, game, " FOR UPDATE OF b")
}

// GetByIDForUpdate locks a bank by id
func (r *BankRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Bank, error) {
	query := `SELECT ` + bankColumns + ` FROM banks b WHERE b.id = $1 FOR UPDATE`

	bank, err := scanBank(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank %d: %w", id, err)
	}
	return bank, nil
}

// Update persists capital, counters and RTP
func (r *BankRepository) Update(ctx context.Context, bank *models.Bank) error {
	query := `
		UPDATE banks
		SET capital = $1, total_wagered = $2, total_won = $3, rtp = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query, bank.Capital, bank.TotalWagered, bank.TotalWon, bank.RTP, bank.ID).Scan(&bank.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bank %d not found", bank.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update bank %d: %w", bank.ID, err)
	}
	return nil
}

// List returns all banks
func (r *BankRepository) List(ctx context.Context) ([]*models.Bank, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bankColumns+` FROM banks b ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	defer rows.Close()

	var banks []*models.Bank
	for rows.Next() {
		bank, err := scanBank(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank: %w", err)
		}
		banks = append(banks, bank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating banks: %w", err)
	}

	return banks, nil
}
