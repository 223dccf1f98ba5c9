package server

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tgcasino/models"
)

type MockDiceService struct {
	mock.Mock
}

func (m *MockDiceService) Play(ctx context.Context, userID int64, bet decimal.Decimal, chance int, direction models.DiceDirection) (*models.DiceResult, error) {
	args := m.Called(ctx, userID, bet, chance, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DiceResult), args.Error(1)
}

type MockMinesService struct {
	mock.Mock
}

func (m *MockMinesService) Start(ctx context.Context, userID int64, bet decimal.Decimal, mineCount int) (*models.MinesState, error) {
	args := m.Called(ctx, userID, bet, mineCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesState), args.Error(1)
}

func (m *MockMinesService) Pick(ctx context.Context, userID int64, cellID int) (*models.MinesPickResult, error) {
	args := m.Called(ctx, userID, cellID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesPickResult), args.Error(1)
}

func (m *MockMinesService) Cashout(ctx context.Context, userID int64) (*models.MinesCashoutResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesCashoutResult), args.Error(1)
}

func (m *MockMinesService) GetState(ctx context.Context, userID int64) (*models.MinesState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesState), args.Error(1)
}

func (m *MockMinesService) GetMultiplierLadder(ctx context.Context, bet decimal.Decimal, mineCount int) ([]models.LadderStep, error) {
	args := m.Called(ctx, bet, mineCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LadderStep), args.Error(1)
}

type MockSlotService struct {
	mock.Mock
}

func (m *MockSlotService) CreateSession(ctx context.Context, userID int64) (*models.ProviderSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderSession), args.Error(1)
}

func (m *MockSlotService) Play(ctx context.Context, req models.SlotPlayRequest) (*models.SlotPlayResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SlotPlayResult), args.Error(1)
}

func (m *MockSlotService) relay(method string, ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	args := m.MethodCalled(method, ctx, userID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockSlotService) Authenticate(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	return m.relay("Authenticate", ctx, userID, payload)
}

func (m *MockSlotService) Balance(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	return m.relay("Balance", ctx, userID, payload)
}

func (m *MockSlotService) EndRound(ctx context.Context, userID int64, payload map[string]any) (map[string]any, error) {
	return m.relay("EndRound", ctx, userID, payload)
}

func (m *MockSlotService) ReconcileStaleReservations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
