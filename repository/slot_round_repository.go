package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tgcasino/database"
	"tgcasino/models"
	"tgcasino/service"
)

// SlotRoundRepository implements the SlotRoundRepository interface
type SlotRoundRepository struct {
	q queryable
}

// NewSlotRoundRepository creates a new slot round repository
func NewSlotRoundRepository(db *database.DB) *SlotRoundRepository {
	return &SlotRoundRepository{q: db.Pool}
}

func newSlotRoundRepositoryWithTx(tx queryable) *SlotRoundRepository {
	return &SlotRoundRepository{q: tx}
}

const slotRoundColumns = `id, user_id, bank_id, session_id, idempotency_key, mode, bet, cost, status,
		multiplier, win_amount, provider_result, created_at, updated_at`

func scanSlotRound(row pgx.Row) (*models.SlotRound, error) {
	var round models.SlotRound
	var resultJSON []byte

	err := row.Scan(
		&round.ID,
		&round.UserID,
		&round.BankID,
		&round.SessionID,
		&round.IdempotencyKey,
		&round.Mode,
		&round.Bet,
		&round.Cost,
		&round.Status,
		&round.Multiplier,
		&round.WinAmount,
		&resultJSON,
		&round.CreatedAt,
		&round.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &round.ProviderResult); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provider result: %w", err)
		}
	}

	return &round, nil
}

func (r *SlotRoundRepository) getOne(ctx context.Context, query string, arg any) (*models.SlotRound, error) {
	round, err := scanSlotRound(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return round, err
}

// Create inserts a reserved round. A reused idempotency key is ErrDuplicateRequest.
func (r *SlotRoundRepository) Create(ctx context.Context, round *models.SlotRound) error {
	query := `
		INSERT INTO slot_rounds (id, user_id, bank_id, session_id, idempotency_key, mode, bet, cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.ID,
		round.UserID,
		round.BankID,
		round.SessionID,
		round.IdempotencyKey,
		round.Mode,
		round.Bet,
		round.Cost,
		round.Status,
	).Scan(&round.CreatedAt, &round.UpdatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: idempotency key %q", service.ErrDuplicateRequest, round.IdempotencyKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create slot round: %w", err)
	}

	return nil
}

// GetByIdempotencyKey returns the round created for key
func (r *SlotRoundRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.SlotRound, error) {
	round, err := r.getOne(ctx, `SELECT `+slotRoundColumns+` FROM slot_rounds WHERE idempotency_key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot round by idempotency key: %w", err)
	}
	return round, nil
}

// GetByIDForUpdate returns and locks a round
func (r *SlotRoundRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SlotRound, error) {
	round, err := r.getOne(ctx, `SELECT `+slotRoundColumns+` FROM slot_rounds WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot round %s: %w", id, err)
	}
	return round, nil
}

// Update persists status and outcome
func (r *SlotRoundRepository) Update(ctx context.Context, round *models.SlotRound) error {
	var resultJSON []byte
	if round.ProviderResult != nil {
		var err error
		resultJSON, err = json.Marshal(round.ProviderResult)
		if err != nil {
			return fmt.Errorf("failed to marshal provider result: %w", err)
		}
	}

	query := `
		UPDATE slot_rounds
		SET status = $1, multiplier = $2, win_amount = $3, provider_result = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		round.Status,
		round.Multiplier,
		round.WinAmount,
		resultJSON,
		round.ID,
	).Scan(&round.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("slot round %s not found", round.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update slot round %s: %w", round.ID, err)
	}

	return nil
}

// ListStaleReserved returns the oldest reservations created before the cutoff
func (r *SlotRoundRepository) ListStaleReserved(ctx context.Context, before time.Time, limit int) ([]*models.SlotRound, error) {
	query := `
		SELECT ` + slotRoundColumns + `
		FROM slot_rounds
		WHERE status = 'reserved' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale reservations: %w", err)
	}
	defer rows.Close()

	var rounds []*models.SlotRound
	for rows.Next() {
		round, err := scanSlotRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot rounds: %w", err)
	}

	return rounds, nil
}
