package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// DbError represents database-specific errors
type DbError struct {
	Op      string // Operation that failed
	Err     error  // Original error
	IsPanic bool   // Whether this error was from a panic
}

func (e *DbError) Error() string {
	if e.IsPanic {
		return fmt.Sprintf("panic during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DbError) Unwrap() error {
	return e.Err
}

var schemas = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS accounts (
		address BLOB PRIMARY KEY,
		owner BLOB NOT NULL,
		data BLOB NOT NULL
	)`,
	"postgres": `CREATE TABLE IF NOT EXISTS accounts (
		address BYTEA PRIMARY KEY,
		owner BYTEA NOT NULL,
		data BYTEA NOT NULL
	)`,
}

var ownerIndex = `CREATE INDEX IF NOT EXISTS accounts_owner ON accounts (owner)`

// SQLStore keeps accounts in a sqlite or postgres table.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens the database and creates the accounts table if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &DbError{Op: "open", Err: err}
	}
	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == "sqlite3" {
		// A single connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
			return nil, &DbError{Op: "set_busy_timeout", Err: err}
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, &DbError{Op: "create_schema", Err: err}
	}
	if _, err := db.ExecContext(ctx, ownerIndex); err != nil {
		return nil, &DbError{Op: "create_index", Err: err}
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) GetAccount(ctx context.Context, address common.Address) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT owner, data FROM accounts WHERE address = $1`, address[:])
	var owner, data []byte
	if err := row.Scan(&owner, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, &DbError{Op: "get_account", Err: err}
	}
	ownerAddress, err := common.AddressFromBytes(owner)
	if err != nil {
		return nil, &DbError{Op: "get_account", Err: err}
	}
	return &ledger.Account{Address: address, Owner: ownerAddress, Data: data}, nil
}

func (s *SQLStore) ProgramAccounts(ctx context.Context, owner common.Address) ([]*ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, data FROM accounts WHERE owner = $1 ORDER BY address`, owner[:])
	if err != nil {
		return nil, &DbError{Op: "program_accounts", Err: err}
	}
	defer rows.Close()

	var results []*ledger.Account
	for rows.Next() {
		var address, data []byte
		if err := rows.Scan(&address, &data); err != nil {
			return nil, &DbError{Op: "program_accounts", Err: err}
		}
		parsed, err := common.AddressFromBytes(address)
		if err != nil {
			return nil, &DbError{Op: "program_accounts", Err: err}
		}
		results = append(results, &ledger.Account{Address: parsed, Owner: owner, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, &DbError{Op: "program_accounts", Err: err}
	}
	return results, nil
}

// Apply upserts accounts in one database transaction.
func (s *SQLStore) Apply(ctx context.Context, accounts []*ledger.Account) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts (address, owner, data) VALUES ($1, $2, $3)
			ON CONFLICT (address) DO UPDATE SET owner = excluded.owner, data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, account := range accounts {
			data := account.Data
			if data == nil {
				data = []byte{}
			}
			if _, err := stmt.ExecContext(ctx, account.Address[:], account.Owner[:], data); err != nil {
				return fmt.Errorf("failed to write account %s: %w", account.Address, err)
			}
		}
		return nil
	})
}

// WithTx runs fn in a transaction, committing if it returns nil and rolling
// back if it fails or panics.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &DbError{Op: "begin_transaction", Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered in database transaction",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("Failed to rollback transaction after panic",
					"rollback_error", rbErr,
					"original_panic", r,
				)
			}
			panic(&DbError{
				Op:      "transaction_execution",
				Err:     fmt.Errorf("panic: %v", r),
				IsPanic: true,
			})
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Failed to rollback transaction",
				"original_error", err,
				"rollback_error", rbErr,
			)
			return &DbError{Op: "rollback", Err: fmt.Errorf("rollback failed: %v (original error: %v)", rbErr, err)}
		}
		return &DbError{Op: "apply", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &DbError{Op: "commit", Err: err}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
