package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"tgcasino/events"
	"tgcasino/metrics"
	"tgcasino/models"
	"tgcasino/rng"
)

type minesService struct {
	uowFactory UnitOfWorkFactory
	random     *rng.Random
	houseEdge  decimal.Decimal
}

// NewMinesService creates a new mines service
func NewMinesService(uowFactory UnitOfWorkFactory, random *rng.Random, houseEdge decimal.Decimal) MinesService {
	return &minesService{
		uowFactory: uowFactory,
		random:     random,
		houseEdge:  houseEdge,
	}
}

func (s *minesService) Start(ctx context.Context, userID int64, bet decimal.Decimal, mineCount int) (state *models.MinesState, err error) {
	started := time.Now()
	defer func() { metrics.ObserveSettlement(string(models.GameMines), started, err) }()

	if !bet.IsPositive() {
		return nil, fmt.Errorf("%w: bet must be positive", ErrInvalidInput)
	}
	if mineCount < models.MinMines || mineCount > models.MaxMines {
		return nil, fmt.Errorf("%w: mine count must be between %d and %d", ErrInvalidInput, models.MinMines, models.MaxMines)
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

	// Under the user lock this check and the insert below cannot interleave
	// with another start; the partial unique index backs it up.
	active, err := uow.MinesRoundRepository().GetActiveForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active round: %w", err)
	}
	if active != nil {
		return nil, ErrRoundAlreadyActive
	}

	if user.Balance.LessThan(bet) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, user.Balance.StringFixed(2), bet.StringFixed(2))
	}

	bank, err := lockBankForGame(ctx, uow, models.GameMines)
	if err != nil {
		return nil, err
	}

	round := &models.MinesRound{
		UserID:    userID,
		BankID:    bank.ID,
		Bet:       bet,
		MineCount: mineCount,
		Mines:     s.random.Perm(models.MinesFieldSize)[:mineCount],
		Revealed:  []int{},
		Status:    models.MinesStatusPlaying,
	}
	if err := uow.MinesRoundRepository().Create(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create mines round: %w", err)
	}

	// The stake is forfeited now and only comes back through a cashout
	roundID := strconv.FormatInt(round.ID, 10)
	if _, err := applyBalanceChange(ctx, uow, user, balanceChange{
		Amount:      bet.Neg(),
		Type:        models.TransactionTypeMinesBet,
		Metadata:    map[string]any{"bet": bet.String(), "mine_count": mineCount},
		RelatedID:   &roundID,
		RelatedType: relatedType(models.RelatedTypeMinesRound),
	}); err != nil {
		return nil, err
	}

	ApplyBet(bank, bet)
	if err := saveBank(ctx, uow, bank); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"roundID":   round.ID,
		"bet":       bet.String(),
		"mineCount": mineCount,
	}).Info("Mines round started")

	state = s.buildState(bank, round)
	newBalance := user.Balance.Round(2)
	state.NewBalance = &newBalance
	return state, nil
}

func (s *minesService) Pick(ctx context.Context, userID int64, cellID int) (*models.MinesPickResult, error) {
	if cellID < 0 || cellID >= models.MinesFieldSize {
		return nil, fmt.Errorf("%w: cell must be between 0 and %d", ErrInvalidInput, models.MinesFieldSize-1)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, userID)
	if err != nil {
		return nil, err
	}

	round, err := uow.MinesRoundRepository().GetActiveForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	if round == nil {
		return nil, ErrNoActiveRound
	}
	if lo.Contains(round.Revealed, cellID) {
		return nil, fmt.Errorf("%w: cell %d", ErrCellAlreadyRevealed, cellID)
	}

	bank, err := bankForGame(ctx, uow, models.GameMines)
	if err != nil {
		return nil, err
	}

	if lo.Contains(round.Mines, cellID) {
		return s.lose(ctx, uow, user, bank, round, cellID)
	}

	round.Revealed = append(round.Revealed, cellID)
	round.Step = len(round.Revealed)
	multiplier := ClampMultiplier(bank, CalculateMinesMultiplier(round.MineCount, round.Step, s.houseEdge), round.Bet)
	round.Multiplier = &multiplier

	if err := uow.MinesRoundRepository().Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to update mines round: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"roundID":    round.ID,
		"cellID":     cellID,
		"step":       round.Step,
		"multiplier": multiplier.String(),
	}).Debug("Mines cell revealed")

	return &models.MinesPickResult{State: s.buildState(bank, round)}, nil
}

// lose ends the round on a mine. The stake was already taken at start, so
// only the round and the audit trail change.
func (s *minesService) lose(ctx context.Context, uow UnitOfWork, user *models.User, bank *models.Bank, round *models.MinesRound, cellID int) (*models.MinesPickResult, error) {
	round.Status = models.MinesStatusLost
	round.LostCell = &cellID
	zero := decimal.Zero
	round.WinAmount = &zero

	if err := uow.MinesRoundRepository().Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to update mines round: %w", err)
	}

	if err := recordWager(ctx, uow, &models.Bet{
		UserID:     user.ID,
		BankID:     bank.ID,
		Game:       models.GameMines,
		Amount:     round.Bet,
		Multiplier: decimal.Zero,
		Won:        false,
		WinAmount:  decimal.Zero,
	}); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.MinesRoundFinishedEvent{
		RoundID: round.ID,
		UserID:  user.ID,
		Status:  round.Status,
		Step:    round.Step,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  user.ID,
		"roundID": round.ID,
		"cellID":  cellID,
		"step":    round.Step,
	}).Info("Mines round lost")

	return &models.MinesPickResult{Loss: &models.MinesLoss{
		Status:     models.MinesStatusLost,
		Mines:      round.Mines,
		CellID:     cellID,
		NewBalance: user.Balance.Round(2),
	}}, nil
}

func (s *minesService) Cashout(ctx context.Context, userID int64) (result *models.MinesCashoutResult, err error) {
	started := time.Now()
	defer func() {
		if !errors.Is(err, ErrCannotCashout) {
			metrics.ObserveSettlement(string(models.GameMines), started, err)
		}
	}()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, userID)
	if err != nil {
		return nil, err
	}

	// A concurrent cashout or pick waits here and then sees the round as finished
	round, err := uow.MinesRoundRepository().GetActiveForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	if round == nil || round.Step == 0 {
		return nil, ErrCannotCashout
	}

	bank, err := lockBankForGame(ctx, uow, models.GameMines)
	if err != nil {
		return nil, err
	}

	multiplier := ClampMultiplier(bank, CalculateMinesMultiplier(round.MineCount, round.Step, s.houseEdge), round.Bet)
	winAmount := round.Bet.Mul(multiplier).Round(2)

	round.Status = models.MinesStatusWon
	round.Multiplier = &multiplier
	round.WinAmount = &winAmount
	if err := uow.MinesRoundRepository().Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to update mines round: %w", err)
	}

	ApplyWin(bank, winAmount)
	if err := saveBank(ctx, uow, bank); err != nil {
		return nil, err
	}

	roundID := strconv.FormatInt(round.ID, 10)
	history, err := applyBalanceChange(ctx, uow, user, balanceChange{
		Amount: winAmount,
		Type:   models.TransactionTypeMinesCashout,
		Metadata: map[string]any{
			"bet":        round.Bet.String(),
			"step":       round.Step,
			"multiplier": multiplier.String(),
		},
		RelatedID:   &roundID,
		RelatedType: relatedType(models.RelatedTypeMinesRound),
	})
	if err != nil {
		return nil, err
	}

	if err := recordWager(ctx, uow, &models.Bet{
		UserID:           userID,
		BankID:           bank.ID,
		Game:             models.GameMines,
		Amount:           round.Bet,
		Multiplier:       multiplier,
		Won:              true,
		WinAmount:        winAmount,
		BalanceHistoryID: &history.ID,
	}); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.MinesRoundFinishedEvent{
		RoundID: round.ID,
		UserID:  userID,
		Status:  round.Status,
		Step:    round.Step,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"roundID":    round.ID,
		"step":       round.Step,
		"multiplier": multiplier.String(),
		"winAmount":  winAmount.String(),
	}).Info("Mines round cashed out")

	return &models.MinesCashoutResult{
		Status:     models.MinesStatusWon,
		WinAmount:  winAmount,
		Multiplier: multiplier,
		Mines:      round.Mines,
		NewBalance: user.Balance.Round(2),
	}, nil
}

func (s *minesService) GetState(ctx context.Context, userID int64) (*models.MinesState, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	round, err := uow.MinesRoundRepository().GetActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	if round == nil {
		return nil, ErrNoActiveRound
	}

	bank, err := bankForGame(ctx, uow, models.GameMines)
	if err != nil {
		return nil, err
	}

	return s.buildState(bank, round), nil
}

func (s *minesService) GetMultiplierLadder(ctx context.Context, bet decimal.Decimal, mineCount int) ([]models.LadderStep, error) {
	if !bet.IsPositive() {
		return nil, fmt.Errorf("%w: bet must be positive", ErrInvalidInput)
	}
	if mineCount < models.MinMines || mineCount > models.MaxMines {
		return nil, fmt.Errorf("%w: mine count must be between %d and %d", ErrInvalidInput, models.MinMines, models.MaxMines)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	bank, err := bankForGame(ctx, uow, models.GameMines)
	if err != nil {
		return nil, err
	}

	return GetAllMultipliers(bank, bet.Round(2), mineCount, s.houseEdge), nil
}

func (s *minesService) buildState(bank *models.Bank, round *models.MinesRound) *models.MinesState {
	multiplier := decimal.Zero
	if round.Step > 0 {
		multiplier = ClampMultiplier(bank, CalculateMinesMultiplier(round.MineCount, round.Step, s.houseEdge), round.Bet)
	}

	return &models.MinesState{
		Status:           round.Status,
		Bet:              round.Bet,
		MineCount:        round.MineCount,
		Revealed:         round.Revealed,
		Step:             round.Step,
		Multiplier:       multiplier,
		NextMultiplier:   nextMinesMultiplier(bank, round, s.houseEdge),
		MultiplierLadder: GetAllMultipliers(bank, round.Bet, round.MineCount, s.houseEdge),
	}
}
