package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgcasino/repository/testutil"
)

func TestUserRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("create and read back", func(t *testing.T) {
		user, err := repo.Create(ctx, 1001, "alice", decimal.RequireFromString("250.50"))
		require.NoError(t, err)
		assert.Equal(t, int64(1001), user.ID)

		got, err := repo.GetByID(ctx, 1001)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.Username)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("250.50")), got.Balance.String())
	})

	t.Run("unknown user is nil", func(t *testing.T) {
		got, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update balance keeps two decimals", func(t *testing.T) {
		require.NoError(t, repo.UpdateBalance(ctx, 1001, decimal.RequireFromString("12.34")))

		got, err := repo.GetByID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, "12.34", got.Balance.StringFixed(2))
	})

	t.Run("update unknown user fails", func(t *testing.T) {
		err := repo.UpdateBalance(ctx, 999999, decimal.NewFromInt(1))
		assert.Error(t, err)
	})

	t.Run("row lock is held until commit", func(t *testing.T) {
		testutil.SeedUser(t, testDB.DB, 1002, "100")

		tx, err := testDB.DB.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		locked, err := newUserRepositoryWithTx(tx).GetByIDForUpdate(ctx, 1002)
		require.NoError(t, err)
		require.NotNil(t, locked)

		other, err := testDB.DB.Begin(ctx)
		require.NoError(t, err)
		defer other.Rollback(ctx)

		_, err = other.Exec(ctx, "SET LOCAL lock_timeout = '100ms'")
		require.NoError(t, err)
		_, err = newUserRepositoryWithTx(other).GetByIDForUpdate(ctx, 1002)
		assert.Error(t, err, "second locker should time out while the first transaction is open")
	})
}
