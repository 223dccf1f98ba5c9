package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"tgcasino/models"
	"tgcasino/rng"
)

// constSource always draws the same value
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation
func decEq(s string) any {
	want := d(s)
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(want) })
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !actual.Equal(d(expected)) {
		assert.Fail(t, fmt.Sprintf("expected %s, got %s", expected, actual), msgAndArgs...)
	}
}

func testBank(capital string) *models.Bank {
	return &models.Bank{
		ID:                1,
		Name:              "Default Bank",
		Currency:          "RUB",
		Capital:           d(capital),
		TotalWagered:      decimal.Zero,
		TotalWon:          decimal.Zero,
		RTP:               decimal.Zero,
		HouseEdge:         d("0.05"),
		MaxPayoutFraction: d("0.05"),
		IsDefault:         true,
	}
}

func testUser(id int64, balance string) *models.User {
	return &models.User{ID: id, Username: "player", Balance: d(balance)}
}

// newTestUnitOfWork wires a mock factory that hands out one mock unit of work
// for every transaction the service opens.
func newTestUnitOfWork(ctx context.Context) (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockRepositories) {
	repos := NewMockRepositories()
	uow := new(MockUnitOfWork)
	uow.SetRepositories(repos)

	factory := new(MockUnitOfWorkFactory)
	factory.On("Create").Return(uow)
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Commit").Return(nil).Maybe()
	uow.On("Rollback").Return(nil)

	return factory, uow, repos
}

func fixedRandom(v float64) *rng.Random {
	return rng.NewWithSource(constSource(v))
}
