package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tgcasino/database"
	"tgcasino/models"
	"tgcasino/service"
)

// MinesRoundRepository implements the MinesRoundRepository interface
type MinesRoundRepository struct {
	q queryable
}

// NewMinesRoundRepository creates a new mines round repository
func NewMinesRoundRepository(db *database.DB) *MinesRoundRepository {
	return &MinesRoundRepository{q: db.Pool}
}

func newMinesRoundRepositoryWithTx(tx queryable) *MinesRoundRepository {
	return &MinesRoundRepository{q: tx}
}

const minesRoundColumns = `id, user_id, bank_id, bet, mine_count, mines, revealed, step, status,
		lost_cell, multiplier, win_amount, created_at, updated_at`

func (r *MinesRoundRepository) getActive(ctx context.Context, userID int64, lock string) (*models.MinesRound, error) {
	query := `
		SELECT ` + minesRoundColumns + `
		FROM mines_rounds
		WHERE user_id = $1 AND status = 'playing'` + lock

	var round models.MinesRound
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&round.ID,
		&round.UserID,
		&round.BankID,
		&round.Bet,
		&round.MineCount,
		&round.Mines,
		&round.Revealed,
		&round.Step,
		&round.Status,
		&round.LostCell,
		&round.Multiplier,
		&round.WinAmount,
		&round.CreatedAt,
		&round.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active mines round for user %d: %w", userID, err)
	}

	if round.Revealed == nil {
		round.Revealed = []int{}
	}
	return &round, nil
}

// GetActive returns the user's playing round
func (r *MinesRoundRepository) GetActive(ctx context.Context, userID int64) (*models.MinesRound, error) {
	return r.getActive(ctx, userID, "")
}

// GetActiveForUpdate returns the user's playing round and locks it
func (r *MinesRoundRepository) GetActiveForUpdate(ctx context.Context, userID int64) (*models.MinesRound, error) {
	return r.getActive(ctx, userID, " FOR UPDATE")
}

// Create inserts a playing round. The partial unique index on playing rounds
// turns a concurrent second start into ErrRoundAlreadyActive.
func (r *MinesRoundRepository) Create(ctx context.Context, round *models.MinesRound) error {
	query := `
		INSERT INTO mines_rounds (user_id, bank_id, bet, mine_count, mines, revealed, step, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	if round.Revealed == nil {
		round.Revealed = []int{}
	}

	err := r.q.QueryRow(ctx, query,
		round.UserID,
		round.BankID,
		round.Bet,
		round.MineCount,
		round.Mines,
		round.Revealed,
		round.Step,
		round.Status,
	).Scan(&round.ID, &round.CreatedAt, &round.UpdatedAt)

	if isUniqueViolation(err) {
		return service.ErrRoundAlreadyActive
	}
	if err != nil {
		return fmt.Errorf("failed to create mines round for user %d: %w", round.UserID, err)
	}

	return nil
}

// Update persists the mutable part of a round
func (r *MinesRoundRepository) Update(ctx context.Context, round *models.MinesRound) error {
	query := `
		UPDATE mines_rounds
		SET revealed = $1, step = $2, status = $3, lost_cell = $4, multiplier = $5, win_amount = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.Revealed,
		round.Step,
		round.Status,
		round.LostCell,
		round.Multiplier,
		round.WinAmount,
		round.ID,
	).Scan(&round.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mines round %d not found", round.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update mines round %d: %w", round.ID, err)
	}

	return nil
}
