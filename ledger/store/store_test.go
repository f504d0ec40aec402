package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	_ "github.com/mattn/go-sqlite3" // Register SQLite driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	s, err := OpenSQL(context.Background(), "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]ledger.Store {
	return map[string]ledger.Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	program := common.Address{9}
	other := common.Address{8}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetAccount(ctx, common.Address{1})
			require.ErrorIs(t, err, ledger.ErrAccountNotFound)

			require.NoError(t, s.Apply(ctx, []*ledger.Account{
				{Address: common.Address{2}, Owner: program, Data: []byte{1, 2, 3}},
				{Address: common.Address{1}, Owner: program, Data: []byte{4}},
				{Address: common.Address{3}, Owner: other, Data: []byte{5}},
			}))

			account, err := s.GetAccount(ctx, common.Address{2})
			require.NoError(t, err)
			assert.Equal(t, program, account.Owner)
			assert.Equal(t, []byte{1, 2, 3}, account.Data)

			require.NoError(t, s.Apply(ctx, []*ledger.Account{
				{Address: common.Address{2}, Owner: program, Data: []byte{7}},
			}))
			account, err = s.GetAccount(ctx, common.Address{2})
			require.NoError(t, err)
			assert.Equal(t, []byte{7}, account.Data)

			owned, err := s.ProgramAccounts(ctx, program)
			require.NoError(t, err)
			require.Len(t, owned, 2)
			assert.Equal(t, common.Address{1}, owned[0].Address)
			assert.Equal(t, common.Address{2}, owned[1].Address)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	account := &ledger.Account{Address: common.Address{1}, Data: []byte{1}}
	require.NoError(t, s.Apply(ctx, []*ledger.Account{account}))
	account.Data[0] = 2

	stored, err := s.GetAccount(ctx, common.Address{1})
	require.NoError(t, err)
	stored.Data[0] = 3

	again, err := s.GetAccount(ctx, common.Address{1})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, again.Data)
}

func TestWithTx(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	insert := func(ctx context.Context, tx *sql.Tx, address common.Address) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO accounts (address, owner, data) VALUES ($1, $2, $3)`,
			address[:], common.ZeroAddress[:], []byte{})
		return err
	}

	t.Run("successful transaction", func(t *testing.T) {
		err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return insert(ctx, tx, common.Address{1})
		})
		require.NoError(t, err)
		_, err = s.GetAccount(ctx, common.Address{1})
		assert.NoError(t, err)
	})

	t.Run("error rolls back transaction", func(t *testing.T) {
		err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			require.NoError(t, insert(ctx, tx, common.Address{2}))
			return errors.New("handler error")
		})
		var dbErr *DbError
		require.ErrorAs(t, err, &dbErr)
		assert.Equal(t, "apply", dbErr.Op)
		assert.Contains(t, err.Error(), "handler error")

		_, err = s.GetAccount(ctx, common.Address{2})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("panic rolls back transaction", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
				require.NoError(t, insert(ctx, tx, common.Address{3}))
				panic("test panic")
			})
		})
		_, err := s.GetAccount(ctx, common.Address{3})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("partial apply is discarded", func(t *testing.T) {
		err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			require.NoError(t, insert(ctx, tx, common.Address{4}))
			return insert(ctx, tx, common.Address{1})
		})
		require.Error(t, err)
		_, err = s.GetAccount(ctx, common.Address{4})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})
}

func TestDbError(t *testing.T) {
	t.Run("normal error", func(t *testing.T) {
		err := &DbError{Op: "test_operation", Err: errors.New("test error")}
		assert.Equal(t, "database error during test_operation: test error", err.Error())
	})

	t.Run("panic error", func(t *testing.T) {
		err := &DbError{Op: "test_operation", Err: errors.New("test panic"), IsPanic: true}
		assert.Equal(t, "panic during test_operation: test panic", err.Error())
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore(context.Background(), nil, "mysql")
	assert.ErrorContains(t, err, "unsupported database driver")
}
