package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tgcasino/events"
	"tgcasino/models"
)

// RecordBalanceChange records a balance history entry and emits appropriate events.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}

// balanceChange describes one debit (negative Amount) or credit applied to a
// user row that the caller has already locked.
type balanceChange struct {
	Amount      decimal.Decimal
	Type        models.TransactionType
	Metadata    map[string]any
	RelatedID   *string
	RelatedType *models.RelatedType
}

// applyBalanceChange re-validates funds against the locked row, writes the
// new balance and records history. user.Balance is updated in place.
func applyBalanceChange(ctx context.Context, uow UnitOfWork, user *models.User, change balanceChange) (*models.BalanceHistory, error) {
	before := user.Balance
	after := before.Add(change.Amount)
	if after.IsNegative() {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, before.StringFixed(2), change.Amount.Neg().StringFixed(2))
	}

	if err := uow.UserRepository().UpdateBalance(ctx, user.ID, after); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	history := &models.BalanceHistory{
		UserID:              user.ID,
		BalanceBefore:       before,
		BalanceAfter:        after,
		ChangeAmount:        change.Amount,
		TransactionType:     change.Type,
		TransactionMetadata: change.Metadata,
		RelatedID:           change.RelatedID,
		RelatedType:         change.RelatedType,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}

	user.Balance = after
	return history, nil
}

// saveBank persists ledger mutations and announces the new bank state.
func saveBank(ctx context.Context, uow UnitOfWork, bank *models.Bank) error {
	if err := uow.BankRepository().Update(ctx, bank); err != nil {
		return fmt.Errorf("failed to update bank %d: %w", bank.ID, err)
	}

	uow.EventBus().Publish(events.BankUpdatedEvent{
		BankID:       bank.ID,
		BankName:     bank.Name,
		Capital:      bank.Capital,
		TotalWagered: bank.TotalWagered,
		TotalWon:     bank.TotalWon,
		RTP:          bank.RTP,
	})
	return nil
}

// recordWager writes the audit row for a settled wager.
func recordWager(ctx context.Context, uow UnitOfWork, bet *models.Bet) error {
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return fmt.Errorf("failed to create bet record: %w", err)
	}

	uow.EventBus().Publish(events.WagerSettledEvent{
		UserID:     bet.UserID,
		BankID:     bet.BankID,
		Game:       bet.Game,
		Amount:     bet.Amount,
		Multiplier: bet.Multiplier,
		Won:        bet.Won,
		WinAmount:  bet.WinAmount,
	})
	return nil
}

// lockUser takes the user row lock that serializes every wager of that user.
func lockUser(ctx context.Context, uow UnitOfWork, userID int64) (*models.User, error) {
	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	return user, nil
}

// lockBankForGame resolves the game's bank and locks it. A missing mapping fails closed.
func lockBankForGame(ctx context.Context, uow UnitOfWork, game models.GameCode) (*models.Bank, error) {
	bank, err := uow.BankRepository().GetByGameForUpdate(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("failed to get bank for %s: %w", game, err)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: no bank mapped to game %s", ErrBankNotFound, game)
	}
	return bank, nil
}

func bankForGame(ctx context.Context, uow UnitOfWork, game models.GameCode) (*models.Bank, error) {
	bank, err := uow.BankRepository().GetByGame(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("failed to get bank for %s: %w", game, err)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: no bank mapped to game %s", ErrBankNotFound, game)
	}
	return bank, nil
}

func relatedType(t models.RelatedType) *models.RelatedType {
	return &t
}
