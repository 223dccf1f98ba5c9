package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tgcasino/events"
	"tgcasino/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user without locking
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDForUpdate retrieves a user and holds its row lock until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)

	// UpdateBalance overwrites a user's balance
	UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error
}

// BankRepository defines the interface for bank data access
type BankRepository interface {
	// GetByGame resolves the bank funding a game, nil if the game has no mapping
	GetByGame(ctx context.Context, game models.GameCode) (*models.Bank, error)

	// GetByGameForUpdate resolves and locks the bank funding a game
	GetByGameForUpdate(ctx context.Context, game models.GameCode) (*models.Bank, error)

	// GetByIDForUpdate locks a bank by id
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Bank, error)

	// Update persists capital, totals and RTP
	Update(ctx context.Context, bank *models.Bank) error

	// List returns all banks
	List(ctx context.Context) ([]*models.Bank, error)
}

// MinesRoundRepository defines the interface for mines round persistence
type MinesRoundRepository interface {
	// GetActive returns the user's playing round, nil if there is none
	GetActive(ctx context.Context, userID int64) (*models.MinesRound, error)

	// GetActiveForUpdate returns and locks the user's playing round
	GetActiveForUpdate(ctx context.Context, userID int64) (*models.MinesRound, error)

	// Create inserts a new round, returning ErrRoundAlreadyActive if one is playing
	Create(ctx context.Context, round *models.MinesRound) error

	// Update persists revealed cells, step, status and payout
	Update(ctx context.Context, round *models.MinesRound) error
}

// SlotRoundRepository defines the interface for provider round persistence
type SlotRoundRepository interface {
	// Create inserts a reserved round, returning ErrDuplicateRequest on a reused idempotency key
	Create(ctx context.Context, round *models.SlotRound) error

	GetByIdempotencyKey(ctx context.Context, key string) (*models.SlotRound, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SlotRound, error)
	Update(ctx context.Context, round *models.SlotRound) error

	// ListStaleReserved returns reservations created before the cutoff
	ListStaleReserved(ctx context.Context, before time.Time, limit int) ([]*models.SlotRound, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *models.Bet) error

	// GetByUser returns bets for a specific user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BankRepository() BankRepository
	MinesRoundRepository() MinesRoundRepository
	SlotRoundRepository() SlotRoundRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	BetRepository() BetRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// SlotProvider is the external slot game wallet API
type SlotProvider interface {
	CreateSession(ctx context.Context, balance decimal.Decimal, currency string) (*models.ProviderSession, error)
	Play(ctx context.Context, req *models.ProviderPlayRequest) (*models.ProviderPlayResponse, error)
	Authenticate(ctx context.Context, payload map[string]any) (map[string]any, error)
	Balance(ctx context.Context, payload map[string]any) (map[string]any, error)
	EndRound(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// DiceService defines dice play
type DiceService interface {
	Play(ctx context.Context, userID int64, bet decimal.Decimal, chance int, direction models.DiceDirection) (*models.DiceResult, error)
}

// MinesService defines the mines round lifecycle
type MinesService interface {
	Start(ctx context.Context, userID int64, bet decimal.Decimal, mineCount int) (*models.MinesState, error)
	Pick(ctx context.Context, userID int64, cellID int) (*models.MinesPickResult, error)
	Cashout(ctx context.Context, userID int64) (*models.MinesCashoutResult, error)

	// GetState returns the playing round, ErrNoActiveRound if there is none
	GetState(ctx context.Context, userID int64) (*models.MinesState, error)

	// GetMultiplierLadder previews capped multipliers for every reachable step
	GetMultiplierLadder(ctx context.Context, bet decimal.Decimal, mineCount int) ([]models.LadderStep, error)
}

// SlotService defines provider-relayed slot play
type SlotService interface {
	CreateSession(ctx context.Context, userID int64) (*models.ProviderSession, error)
	Play(ctx context.Context, req models.SlotPlayRequest) (*models.SlotPlayResult, error)
	Authenticate(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error)
	Balance(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error)
	EndRound(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error)

	// ReconcileStaleReservations refunds reservations older than the TTL and reports how many were refunded
	ReconcileStaleReservations(ctx context.Context) (int, error)
}
