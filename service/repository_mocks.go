package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tgcasino/events"
	"tgcasino/models"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	args := m.Called(ctx, id, newBalance)
	return args.Error(0)
}

// MockBankRepository is a mock implementation of BankRepository
type MockBankRepository struct {
	mock.Mock
}

func (m *MockBankRepository) GetByGame(ctx context.Context, game models.GameCode) (*models.Bank, error) {
	args := m.Called(ctx, game)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bank), args.Error(1)
}

func (m *MockBankRepository) GetByGameForUpdate(ctx context.Context, game models.GameCode) (*models.Bank, error) {
	args := m.Called(ctx, game)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bank), args.Error(1)
}

func (m *MockBankRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Bank, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bank), args.Error(1)
}

func (m *MockBankRepository) Update(ctx context.Context, bank *models.Bank) error {
	args := m.Called(ctx, bank)
	return args.Error(0)
}

func (m *MockBankRepository) List(ctx context.Context) ([]*models.Bank, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bank), args.Error(1)
}

// MockMinesRoundRepository is a mock implementation of MinesRoundRepository
type MockMinesRoundRepository struct {
	mock.Mock
}

func (m *MockMinesRoundRepository) GetActive(ctx context.Context, userID int64) (*models.MinesRound, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesRound), args.Error(1)
}

func (m *MockMinesRoundRepository) GetActiveForUpdate(ctx context.Context, userID int64) (*models.MinesRound, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MinesRound), args.Error(1)
}

func (m *MockMinesRoundRepository) Create(ctx context.Context, round *models.MinesRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockMinesRoundRepository) Update(ctx context.Context, round *models.MinesRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

// MockSlotRoundRepository is a mock implementation of SlotRoundRepository
type MockSlotRoundRepository struct {
	mock.Mock
}

func (m *MockSlotRoundRepository) Create(ctx context.Context, round *models.SlotRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockSlotRoundRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.SlotRound, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SlotRound), args.Error(1)
}

func (m *MockSlotRoundRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SlotRound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SlotRound), args.Error(1)
}

func (m *MockSlotRoundRepository) Update(ctx context.Context, round *models.SlotRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockSlotRoundRepository) ListStaleReserved(ctx context.Context, before time.Time, limit int) ([]*models.SlotRound, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SlotRound), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockEventPublisher records published events for assertions
type MockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns the published events of the given type
func (m *MockEventPublisher) Events(eventType events.EventType) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []events.Event
	for _, e := range m.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	userRepo           UserRepository
	bankRepo           BankRepository
	minesRoundRepo     MinesRoundRepository
	slotRoundRepo      SlotRoundRepository
	balanceHistoryRepo BalanceHistoryRepository
	betRepo            BetRepository
	eventBus           *MockEventPublisher
}

// MockRepositories groups the repositories handed out by a MockUnitOfWork
type MockRepositories struct {
	User           *MockUserRepository
	Bank           *MockBankRepository
	MinesRound     *MockMinesRoundRepository
	SlotRound      *MockSlotRoundRepository
	BalanceHistory *MockBalanceHistoryRepository
	Bet            *MockBetRepository
}

// NewMockRepositories returns a fresh set of repository mocks
func NewMockRepositories() *MockRepositories {
	return &MockRepositories{
		User:           new(MockUserRepository),
		Bank:           new(MockBankRepository),
		MinesRound:     new(MockMinesRoundRepository),
		SlotRound:      new(MockSlotRoundRepository),
		BalanceHistory: new(MockBalanceHistoryRepository),
		Bet:            new(MockBetRepository),
	}
}

// AssertExpectations asserts every repository mock
func (r *MockRepositories) AssertExpectations(t mock.TestingT) {
	r.User.AssertExpectations(t)
	r.Bank.AssertExpectations(t)
	r.MinesRound.AssertExpectations(t)
	r.SlotRound.AssertExpectations(t)
	r.BalanceHistory.AssertExpectations(t)
	r.Bet.AssertExpectations(t)
}

// SetRepositories sets the repositories and a fresh event recorder
func (m *MockUnitOfWork) SetRepositories(repos *MockRepositories) {
	m.userRepo = repos.User
	m.bankRepo = repos.Bank
	m.minesRoundRepo = repos.MinesRound
	m.slotRoundRepo = repos.SlotRound
	m.balanceHistoryRepo = repos.BalanceHistory
	m.betRepo = repos.Bet
	m.eventBus = &MockEventPublisher{}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository                     { return m.userRepo }
func (m *MockUnitOfWork) BankRepository() BankRepository                     { return m.bankRepo }
func (m *MockUnitOfWork) MinesRoundRepository() MinesRoundRepository         { return m.minesRoundRepo }
func (m *MockUnitOfWork) SlotRoundRepository() SlotRoundRepository           { return m.slotRoundRepo }
func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository { return m.balanceHistoryRepo }
func (m *MockUnitOfWork) BetRepository() BetRepository                       { return m.betRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                           { return m.eventBus }

// Published exposes the events recorded by this unit of work
func (m *MockUnitOfWork) Published() *MockEventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockSlotProvider is a mock implementation of SlotProvider
type MockSlotProvider struct {
	mock.Mock
}

func (m *MockSlotProvider) CreateSession(ctx context.Context, balance decimal.Decimal, currency string) (*models.ProviderSession, error) {
	args := m.Called(ctx, balance, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderSession), args.Error(1)
}

func (m *MockSlotProvider) Play(ctx context.Context, req *models.ProviderPlayRequest) (*models.ProviderPlayResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderPlayResponse), args.Error(1)
}

func (m *MockSlotProvider) Authenticate(ctx context.Context, payload map[string]any) (map[string]any, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockSlotProvider) Balance(ctx context.Context, payload map[string]any) (map[string]any, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *MockSlotProvider) EndRound(ctx context.Context, payload map[string]any) (map[string]any, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}
