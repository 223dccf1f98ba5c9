package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tgcasino/models"
)

// rollOf returns the uniform draw that produces roll on the 0..99.99 scale
func rollOf(roll float64) float64 {
	return roll / maxDiceRoll
}

func TestDiceWins_BoundariesAreExclusive(t *testing.T) {
	tests := []struct {
		roll      string
		chance    int
		direction models.DiceDirection
		expected  bool
	}{
		{"75", 50, models.DiceOver, true},
		{"50", 50, models.DiceOver, false},
		{"50.01", 50, models.DiceOver, true},
		{"49.99", 50, models.DiceUnder, true},
		{"50", 50, models.DiceUnder, false},
		{"90", 10, models.DiceOver, false},
		{"90.01", 10, models.DiceOver, true},
		{"0", 1, models.DiceUnder, true},
		{"1", 1, models.DiceUnder, false},
		{"99.99", 99, models.DiceOver, true},
		{"1", 99, models.DiceOver, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DiceWins(d(tt.roll), tt.chance, tt.direction), "roll=%s chance=%d %s", tt.roll, tt.chance, tt.direction)
	}
}

func TestDiceMultiplier(t *testing.T) {
	assertDecimal(t, "1.98", DiceMultiplier(d("1"), 50))
	assertDecimal(t, "99", DiceMultiplier(d("1"), 1))
	assertDecimal(t, "1.9", DiceMultiplier(d("5"), 50))
}

func TestDiceService_Play_WinScenario(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newTestUnitOfWork(ctx)

	user := testUser(1, "1000")
	bank := testBank("100000")

	repos.User.On("GetByIDForUpdate", ctx, int64(1)).Return(user, nil)
	repos.Bank.On("GetByGameForUpdate", ctx, models.GameDice).Return(bank, nil)
	repos.User.On("UpdateBalance", ctx, int64(1), decEq("1298")).Return(nil)
	repos.BalanceHistory.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.UserID == 1 &&
			h.BalanceBefore.Equal(d("1000")) &&
			h.BalanceAfter.Equal(d("1298")) &&
			h.ChangeAmount.Equal(d("298")) &&
			h.TransactionType == models.TransactionTypeDiceWin
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*models.BalanceHistory).ID = 42
	})
	repos.Bank.On("Update", ctx, mock.MatchedBy(func(b *models.Bank) bool {
		return b.Capital.Equal(d("99807")) &&
			b.TotalWagered.Equal(d("100")) &&
			b.TotalWon.Equal(d("198")) &&
			b.RTP.Equal(d("198"))
	})).Return(nil)
	repos.Bet.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return b.Game == models.GameDice &&
			b.Won &&
			b.Amount.Equal(d("100")) &&
			b.Multiplier.Equal(d("1.98")) &&
			b.WinAmount.Equal(d("198")) &&
			*b.BalanceHistoryID == 42
	})).Return(nil)

	service := NewDiceService(factory, fixedRandom(rollOf(75)), d("1"))
	result, err := service.Play(ctx, 1, d("100"), 50, models.DiceOver)

	require.NoError(t, err)
	assertDecimal(t, "75", result.Roll)
	assert.True(t, result.Win)
	assertDecimal(t, "198", result.WinAmount)
	assertDecimal(t, "1.98", result.Multiplier)
	assertDecimal(t, "1298", result.NewBalance)

	assert.Len(t, uow.Published().Events("wager_settled"), 1)
	assert.Len(t, uow.Published().Events("bank_updated"), 1)
	repos.AssertExpectations(t)
	uow.AssertCalled(t, "Commit")
}

func TestDiceService_Play_BoundaryRollLoses(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newTestUnitOfWork(ctx)

	user := testUser(1, "1000")
	bank := testBank("100000")

	repos.User.On("GetByIDForUpdate", ctx, int64(1)).Return(user, nil)
	repos.Bank.On("GetByGameForUpdate", ctx, models.GameDice).Return(bank, nil)
	repos.User.On("UpdateBalance", ctx, int64(1), decEq("900")).Return(nil)
	repos.BalanceHistory.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.ChangeAmount.Equal(d("-100")) && h.TransactionType == models.TransactionTypeDiceLoss
	})).Return(nil)
	repos.Bank.On("Update", ctx, mock.MatchedBy(func(b *models.Bank) bool {
		return b.Capital.Equal(d("100005")) && b.TotalWon.IsZero()
	})).Return(nil)
	repos.Bet.On("Create", ctx, mock.MatchedBy(func(b *models.Bet) bool {
		return !b.Won && b.WinAmount.IsZero()
	})).Return(nil)

	service := NewDiceService(factory, fixedRandom(rollOf(50)), d("1"))
	result, err := service.Play(ctx, 1, d("100"), 50, models.DiceOver)

	require.NoError(t, err)
	assertDecimal(t, "50", result.Roll)
	assert.False(t, result.Win)
	assert.True(t, result.WinAmount.IsZero())
	assertDecimal(t, "1.98", result.Multiplier)
	assertDecimal(t, "900", result.NewBalance)
	repos.AssertExpectations(t)
}

func TestDiceService_Play_MultiplierClampedToBankCap(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newTestUnitOfWork(ctx)

	user := testUser(1, "1000")
	bank := testBank("1000")

	repos.User.On("GetByIDForUpdate", ctx, int64(1)).Return(user, nil)
	repos.Bank.On("GetByGameForUpdate", ctx, models.GameDice).Return(bank, nil)
	repos.User.On("UpdateBalance", ctx, int64(1), decEq("1150")).Return(nil)
	repos.BalanceHistory.On("Record", ctx, mock.Anything).Return(nil)
	repos.Bank.On("Update", ctx, mock.Anything).Return(nil)
	repos.Bet.On("Create", ctx, mock.Anything).Return(nil)

	service := NewDiceService(factory, fixedRandom(rollOf(10)), d("1"))
	result, err := service.Play(ctx, 1, d("100"), 50, models.DiceUnder)

	require.NoError(t, err)
	assert.True(t, result.Win)
	assertDecimal(t, "0.5", result.Multiplier)
	assertDecimal(t, "50", result.WinAmount)
	repos.AssertExpectations(t)
}

func TestDiceService_Play_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newTestUnitOfWork(ctx)

	repos.User.On("GetByIDForUpdate", ctx, int64(1)).Return(testUser(1, "50"), nil)

	service := NewDiceService(factory, fixedRandom(rollOf(75)), d("1"))
	result, err := service.Play(ctx, 1, d("100"), 50, models.DiceOver)

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	repos.User.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	repos.Bank.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "Commit")
}

func TestDiceService_Play_BankNotFound(t *testing.T) {
	ctx := context.Background()
	factory, uow, repos := newTestUnitOfWork(ctx)

	repos.User.On("GetByIDForUpdate", ctx, int64(1)).Return(testUser(1, "1000"), nil)
	repos.Bank.On("GetByGameForUpdate", ctx, models.GameDice).Return(nil, nil)

	service := NewDiceService(factory, fixedRandom(rollOf(75)), d("1"))
	_, err := service.Play(ctx, 1, d("100"), 50, models.DiceOver)

	assert.True(t, errors.Is(err, ErrBankNotFound))
	repos.User.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	uow.AssertNotCalled(t, "Commit")
}

func TestDiceService_Play_UserNotFound(t *testing.T) {
	ctx := context.Background()
	factory, _, repos := newTestUnitOfWork(ctx)

	repos.User.On("GetByIDForUpdate", ctx, int64(9)).Return(nil, nil)

	service := NewDiceService(factory, fixedRandom(0), d("1"))
	_, err := service.Play(ctx, 9, d("100"), 50, models.DiceOver)

	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestDiceService_Play_InvalidInput(t *testing.T) {
	factory := new(MockUnitOfWorkFactory)
	service := NewDiceService(factory, fixedRandom(0), d("1"))
	ctx := context.Background()

	_, err := service.Play(ctx, 1, d("100"), 0, models.DiceOver)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = service.Play(ctx, 1, d("100"), 100, models.DiceOver)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = service.Play(ctx, 1, d("0"), 50, models.DiceOver)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = service.Play(ctx, 1, d("10"), 50, models.DiceDirection("sideways"))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	factory.AssertNotCalled(t, "Create")
}
