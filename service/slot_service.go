package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"tgcasino/config"
	"tgcasino/events"
	"tgcasino/metrics"
	"tgcasino/models"
	"tgcasino/rng"
)

const reconcileBatchSize = 100

// micro-units per currency unit in provider amounts
const providerAmountExp = -6

type slotService struct {
	uowFactory UnitOfWorkFactory
	provider   SlotProvider
	random     *rng.Random
	cfg        *config.Config
	now        func() time.Time
}

// NewSlotService creates a new slot service relaying play to provider
func NewSlotService(uowFactory UnitOfWorkFactory, provider SlotProvider, random *rng.Random, cfg *config.Config) SlotService {
	return &slotService{
		uowFactory: uowFactory,
		provider:   provider,
		random:     random,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SlotCost returns what a play in mode costs for a base bet.
func SlotCost(cfg *config.Config, mode models.SlotMode, bet decimal.Decimal) (decimal.Decimal, error) {
	switch mode {
	case models.SlotModeNormal:
		return bet, nil
	case models.SlotModeAnte:
		return bet.Mul(cfg.SlotAnteCost).Round(2), nil
	case models.SlotModeBonus:
		cost := bet.Mul(cfg.SlotBonusCost).Round(2)
		if cost.LessThan(cfg.SlotBonusMinCost) || cost.GreaterThan(cfg.SlotBonusMaxCost) {
			return decimal.Zero, fmt.Errorf("%w: bonus cost %s outside [%s, %s]", ErrInvalidInput,
				cost.StringFixed(2), cfg.SlotBonusMinCost.StringFixed(2), cfg.SlotBonusMaxCost.StringFixed(2))
		}
		return cost, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}
}

func (s *slotService) CreateSession(ctx context.Context, userID int64) (*models.ProviderSession, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	user, err := uow.UserRepository().GetByID(ctx, userID)
	uow.Rollback()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}

	session, err := s.provider.CreateSession(ctx, user.Balance, s.cfg.ProviderCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrExternalProvider, err)
	}
	return session, nil
}

func (s *slotService) Play(ctx context.Context, req models.SlotPlayRequest) (result *models.SlotPlayResult, err error) {
	started := time.Now()
	defer func() { metrics.ObserveSettlement(string(models.GameMinedrop), started, err) }()

	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	bet := decimal.New(req.Amount, providerAmountExp).Round(2)
	if !bet.IsPositive() {
		return nil, fmt.Errorf("%w: amount below the smallest bet", ErrInvalidInput)
	}
	cost, err := SlotCost(s.cfg, req.Mode, bet)
	if err != nil {
		return nil, err
	}

	round, suggested, replay, err := s.reserve(ctx, req, bet, cost)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	logger := log.WithFields(log.Fields{
		"userID":  req.UserID,
		"roundID": round.ID,
		"mode":    req.Mode,
		"cost":    cost.String(),
	})

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.ProviderCurrency
	}

	playCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	resp, err := s.provider.Play(playCtx, &models.ProviderPlayRequest{
		SessionID:      req.SessionID,
		Amount:         req.Amount,
		Currency:       currency,
		Mode:           req.Mode,
		Multiplier:     suggested.InexactFloat64(),
		IdempotencyKey: req.IdempotencyKey,
	})
	cancel()
	if err != nil {
		logger.WithError(err).Warn("Slot provider play failed, refunding reservation")
		if _, refundErr := s.refund(context.WithoutCancel(ctx), req.UserID, round.ID, "provider play failed"); refundErr != nil {
			// The reconciliation sweep retries stale reservations
			logger.WithError(refundErr).Error("Failed to refund slot reservation")
		}
		return nil, fmt.Errorf("%w: play: %w", ErrExternalProvider, err)
	}

	result, err = s.settle(context.WithoutCancel(ctx), req.UserID, round.ID, resp)
	if err != nil {
		logger.WithError(err).Error("Failed to settle slot round")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"multiplier": result.Multiplier.String(),
		"winAmount":  result.WinAmount.String(),
	}).Info("Slot round settled")

	return result, nil
}

// reserve debits the play cost and persists the round before the provider is
// called. A replayed idempotency key returns the stored outcome instead.
func (s *slotService) reserve(ctx context.Context, req models.SlotPlayRequest, bet, cost decimal.Decimal) (*models.SlotRound, decimal.Decimal, *models.SlotPlayResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, req.UserID)
	if err != nil {
		return nil, decimal.Zero, nil, err
	}

	existing, err := uow.SlotRoundRepository().GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if existing != nil {
		if existing.UserID != req.UserID || existing.Status != models.SlotRoundSettled {
			return nil, decimal.Zero, nil, fmt.Errorf("%w: round %s is %s", ErrDuplicateRequest, existing.ID, existing.Status)
		}
		return nil, decimal.Zero, slotResult(existing, user.Balance), nil
	}

	if user.Balance.LessThan(cost) {
		return nil, decimal.Zero, nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, user.Balance.StringFixed(2), cost.StringFixed(2))
	}

	bank, err := bankForGame(ctx, uow, models.GameMinedrop)
	if err != nil {
		return nil, decimal.Zero, nil, err
	}

	bias := s.cfg.SlotNormalBias
	if req.Mode == models.SlotModeBonus {
		bias = s.cfg.SlotBonusBias
	}
	suggested := s.random.BiasedMultiplier(0, MaxAllowedMultiplier(bank, bet).InexactFloat64(), bias)

	round := &models.SlotRound{
		ID:             uuid.New(),
		UserID:         req.UserID,
		BankID:         bank.ID,
		SessionID:      req.SessionID,
		IdempotencyKey: req.IdempotencyKey,
		Mode:           req.Mode,
		Bet:            bet,
		Cost:           cost,
		Status:         models.SlotRoundReserved,
	}
	if err := uow.SlotRoundRepository().Create(ctx, round); err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("failed to reserve slot round: %w", err)
	}

	roundID := round.ID.String()
	if _, err := applyBalanceChange(ctx, uow, user, balanceChange{
		Amount:      cost.Neg(),
		Type:        models.TransactionTypeSlotReserve,
		Metadata:    map[string]any{"mode": req.Mode, "bet": bet.String(), "cost": cost.String()},
		RelatedID:   &roundID,
		RelatedType: relatedType(models.RelatedTypeSlotRound),
	}); err != nil {
		return nil, decimal.Zero, nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, decimal.Zero, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return round, suggested, nil, nil
}

// settle applies the provider outcome to a reserved round. The provider
// multiplier is always clamped to the bank cap first.
func (s *slotService) settle(ctx context.Context, userID int64, roundID uuid.UUID, resp *models.ProviderPlayResponse) (*models.SlotPlayResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, userID)
	if err != nil {
		return nil, err
	}
	round, err := s.lockRound(ctx, uow, roundID)
	if err != nil {
		return nil, err
	}
	// The sweep may have refunded it while the provider was answering
	if round.Status != models.SlotRoundReserved {
		return nil, fmt.Errorf("%w: round %s already %s", ErrExternalProvider, round.ID, round.Status)
	}

	bank, err := uow.BankRepository().GetByIDForUpdate(ctx, round.BankID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bank: %w", err)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: bank %d", ErrBankNotFound, round.BankID)
	}

	multiplier := decimal.Max(ClampMultiplier(bank, resp.PayoutMultiplier, round.Bet), decimal.Zero).Round(2)
	winAmount := round.Bet.Mul(multiplier).Round(2)

	ApplyBet(bank, round.Cost)
	if winAmount.IsPositive() {
		ApplyWin(bank, winAmount)
	}
	if err := saveBank(ctx, uow, bank); err != nil {
		return nil, err
	}

	relatedID := round.ID.String()
	history, err := applyBalanceChange(ctx, uow, user, balanceChange{
		Amount: winAmount,
		Type:   models.TransactionTypeSlotSettle,
		Metadata: map[string]any{
			"mode":                round.Mode,
			"provider_multiplier": resp.PayoutMultiplier.String(),
			"multiplier":          multiplier.String(),
		},
		RelatedID:   &relatedID,
		RelatedType: relatedType(models.RelatedTypeSlotRound),
	})
	if err != nil {
		return nil, err
	}

	round.Status = models.SlotRoundSettled
	round.Multiplier = &multiplier
	round.WinAmount = &winAmount
	round.ProviderResult = resp.Raw
	if err := uow.SlotRoundRepository().Update(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to update slot round: %w", err)
	}

	if err := recordWager(ctx, uow, &models.Bet{
		UserID:           round.UserID,
		BankID:           bank.ID,
		Game:             models.GameMinedrop,
		Amount:           round.Cost,
		Multiplier:       multiplier,
		Won:              winAmount.IsPositive(),
		WinAmount:        winAmount,
		BalanceHistoryID: &history.ID,
	}); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return slotResult(round, user.Balance), nil
}

// refund returns a reservation's cost and reports whether it did. Rounds that
// are no longer reserved are left alone.
func (s *slotService) refund(ctx context.Context, userID int64, roundID uuid.UUID, reason string) (bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := lockUser(ctx, uow, userID)
	if err != nil {
		return false, err
	}
	round, err := s.lockRound(ctx, uow, roundID)
	if err != nil {
		return false, err
	}
	if round.Status != models.SlotRoundReserved {
		return false, nil
	}

	relatedID := round.ID.String()
	if _, err := applyBalanceChange(ctx, uow, user, balanceChange{
		Amount:      round.Cost,
		Type:        models.TransactionTypeSlotRefund,
		Metadata:    map[string]any{"reason": reason},
		RelatedID:   &relatedID,
		RelatedType: relatedType(models.RelatedTypeSlotRound),
	}); err != nil {
		return false, err
	}

	round.Status = models.SlotRoundRefunded
	if err := uow.SlotRoundRepository().Update(ctx, round); err != nil {
		return false, fmt.Errorf("failed to update slot round: %w", err)
	}

	uow.EventBus().Publish(events.SlotRoundRefundedEvent{
		RoundID: relatedID,
		UserID:  round.UserID,
		Amount:  round.Cost,
		Reason:  reason,
	})

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  round.UserID,
		"roundID": round.ID,
		"amount":  round.Cost.String(),
		"reason":  reason,
	}).Info("Slot reservation refunded")

	return true, nil
}

func (s *slotService) lockRound(ctx context.Context, uow UnitOfWork, roundID uuid.UUID) (*models.SlotRound, error) {
	round, err := uow.SlotRoundRepository().GetByIDForUpdate(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot round: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("slot round %s not found", roundID)
	}
	return round, nil
}

func (s *slotService) ReconcileStaleReservations(ctx context.Context) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stale, err := uow.SlotRoundRepository().ListStaleReserved(ctx, s.now().Add(-s.cfg.ReservationTTL), reconcileBatchSize)
	uow.Rollback()
	if err != nil {
		return 0, fmt.Errorf("failed to list stale reservations: %w", err)
	}

	refunded := 0
	var errs []error
	for _, round := range stale {
		ok, err := s.refund(ctx, round.UserID, round.ID, "reservation expired")
		if err != nil {
			errs = append(errs, fmt.Errorf("round %s: %w", round.ID, err))
			continue
		}
		if ok {
			refunded++
		}
	}

	if len(stale) > 0 {
		log.WithFields(log.Fields{
			"stale":    len(stale),
			"refunded": refunded,
		}).Info("Reconciled stale slot reservations")
	}

	return refunded, errors.Join(errs...)
}

func (s *slotService) Authenticate(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	resp, err := s.provider.Authenticate(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: authenticate: %w", ErrExternalProvider, err)
	}
	return resp, nil
}

func (s *slotService) Balance(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	resp, err := s.provider.Balance(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %w", ErrExternalProvider, err)
	}
	return resp, nil
}

func (s *slotService) EndRound(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	resp, err := s.provider.EndRound(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: end round: %w", ErrExternalProvider, err)
	}
	return resp, nil
}

func slotResult(round *models.SlotRound, balance decimal.Decimal) *models.SlotPlayResult {
	result := &models.SlotPlayResult{
		RoundID:        round.ID,
		Mode:           round.Mode,
		Bet:            round.Bet,
		Cost:           round.Cost,
		NewBalance:     balance.Round(2),
		ProviderResult: round.ProviderResult,
	}
	if round.Multiplier != nil {
		result.Multiplier = *round.Multiplier
	}
	if round.WinAmount != nil {
		result.WinAmount = *round.WinAmount
	}
	return result
}
