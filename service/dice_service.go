package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"tgcasino/metrics"
	"tgcasino/models"
	"tgcasino/rng"
)

const (
	minDiceChance = 1
	maxDiceChance = 99
)

const maxDiceRoll = 99.99

type diceService struct {
	uowFactory       UnitOfWorkFactory
	random           *rng.Random
	houseEdgePercent decimal.Decimal
}

// NewDiceService creates a new dice service. houseEdgePercent is subtracted
// from 100 in the payout formula.
func NewDiceService(uowFactory UnitOfWorkFactory, random *rng.Random, houseEdgePercent decimal.Decimal) DiceService {
	return &diceService{
		uowFactory:       uowFactory,
		random:           random,
		houseEdgePercent: houseEdgePercent,
	}
}

// DiceMultiplier is the uncapped payout multiplier for a target chance.
func DiceMultiplier(houseEdgePercent decimal.Decimal, chance int) decimal.Decimal {
	return hundred.Sub(houseEdgePercent).Div(decimal.NewFromInt(int64(chance)))
}

// DiceWins reports whether roll beats the target. Landing exactly on the
// boundary loses in both directions.
func DiceWins(roll decimal.Decimal, chance int, direction models.DiceDirection) bool {
	target := decimal.NewFromInt(int64(chance))
	if direction == models.DiceOver {
		return roll.GreaterThan(hundred.Sub(target))
	}
	return roll.LessThan(target)
}

func (s *diceService) Play(ctx context.Context, userID int64, bet decimal.Decimal, chance int, direction models.DiceDirection) (result *models.DiceResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveSettlement(string(models.GameDice), started, err) }()

	if !bet.IsPositive() {
		return nil, fmt.Errorf("%w: bet must be positive", ErrInvalidInput)
	}
	if chance < minDiceChance || chance > maxDiceChance {
		return nil, fmt.Errorf("%w: chance must be between %d and %d", ErrInvalidInput, minDiceChance, maxDiceChance)
	}
	if direction != models.DiceOver && direction != models.DiceUnder {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidInput, direction)
	}
	bet = bet.Round(2)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(bet) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, user.Balance.StringFixed(2), bet.StringFixed(2))
	}

	bank, err := lockBankForGame(ctx, uow, models.GameDice)
	if err != nil {
		return nil, err
	}

	multiplier := ClampMultiplier(bank, DiceMultiplier(s.houseEdgePercent, chance), bet)
	winAmount := bet.Mul(multiplier).Round(2)

	roll := decimal.NewFromFloat(s.random.UniformBetween(0, maxDiceRoll)).Round(2)
	won := DiceWins(roll, chance, direction)

	ApplyBet(bank, bet)

	change := balanceChange{
		Amount: bet.Neg(),
		Type:   models.TransactionTypeDiceLoss,
		Metadata: map[string]any{
			"bet":        bet.String(),
			"chance":     chance,
			"direction":  direction,
			"roll":       roll.String(),
			"multiplier": multiplier.Round(4).String(),
		},
	}
	if won {
		ApplyWin(bank, winAmount)
		// The stake is handed back on top of the winnings
		change.Amount = winAmount.Add(bet)
		change.Type = models.TransactionTypeDiceWin
	} else {
		winAmount = decimal.Zero
	}

	history, err := applyBalanceChange(ctx, uow, user, change)
	if err != nil {
		return nil, err
	}

	if err := saveBank(ctx, uow, bank); err != nil {
		return nil, err
	}

	if err := recordWager(ctx, uow, &models.Bet{
		UserID:           userID,
		BankID:           bank.ID,
		Game:             models.GameDice,
		Amount:           bet,
		Multiplier:       multiplier.Round(4),
		Won:              won,
		WinAmount:        winAmount,
		BalanceHistoryID: &history.ID,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"bankID":     bank.ID,
		"bet":        bet.String(),
		"chance":     chance,
		"direction":  direction,
		"roll":       roll.String(),
		"won":        won,
		"winAmount":  winAmount.String(),
		"newBalance": user.Balance.String(),
	}).Info("Dice play settled")

	return &models.DiceResult{
		Roll:       roll,
		Win:        won,
		WinAmount:  winAmount,
		Multiplier: multiplier.Round(4),
		NewBalance: user.Balance.Round(2),
	}, nil
}
