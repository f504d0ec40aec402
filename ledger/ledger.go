// Package ledger is an account ledger that executes signed transactions
// against registered programs. Each transaction runs against a private write
// set and commits to the store in one step, or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
)

// Ledger serializes submissions over a Store.
type Ledger struct {
	mu        sync.Mutex
	store     Store
	programs  map[common.Address]Program
	processed map[string]struct{}
	events    *EventRouter
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSubscriptionBuffer sets the per-subscription change buffer.
func WithSubscriptionBuffer(size int) Option {
	return func(l *Ledger) {
		l.events = NewEventRouter(size)
	}
}

// New returns a ledger over store executing the given programs.
func New(store Store, programs []Program, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		programs:  make(map[common.Address]Program, len(programs)),
		processed: make(map[string]struct{}),
		events:    NewEventRouter(DefaultSubscriptionBuffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, program := range programs {
		l.programs[program.ID()] = program
	}
	return l
}

// Program returns the registered program with the given ID.
func (l *Ledger) Program(id common.Address) (Program, bool) {
	program, ok := l.programs[id]
	return program, ok
}

func (l *Ledger) kindOf(owner common.Address) string {
	if program, ok := l.programs[owner]; ok {
		return program.Name()
	}
	if owner == SystemProgramID {
		return "system"
	}
	return "unknown"
}

// GetAccount returns the committed state at address.
func (l *Ledger) GetAccount(ctx context.Context, address common.Address) (*Account, error) {
	return l.store.GetAccount(ctx, address)
}

// ProgramAccounts returns the committed accounts owned by owner.
func (l *Ledger) ProgramAccounts(ctx context.Context, owner common.Address) ([]*Account, error) {
	return l.store.ProgramAccounts(ctx, owner)
}

// Submit verifies and executes tx and returns its ID. A failing instruction
// is reported as an *InstructionError and leaves the store untouched.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (string, error) {
	if err := tx.Verify(); err != nil {
		return "", err
	}
	id := tx.ID()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[id]; ok {
		return "", fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	ctx = logging.InitTable(ctx)
	start := time.Now()
	logger := logging.GetLoggerFromContext(ctx)

	exec := newExecutor(l)
	for i, ix := range tx.Instructions {
		if err := exec.execute(ctx, ix, 0); err != nil {
			var ixErr *InstructionError
			if !errors.As(err, &ixErr) {
				return "", err
			}
			failed := *ixErr
			failed.Index = i
			logger.Info("Transaction rejected", "signature", id, "instruction", i, "error", failed.Err)
			logging.LogTable(ctx, time.Since(start), slog.String("signature", id), slog.Bool("committed", false))
			return "", &failed
		}
	}

	writes := exec.writes()
	if err := l.store.Apply(ctx, writes); err != nil {
		return "", fmt.Errorf("failed to commit transaction %s: %w", id, err)
	}
	l.processed[id] = struct{}{}
	l.events.Notify(writes)

	logging.LogTable(ctx, time.Since(start), slog.String("signature", id), slog.Bool("committed", true))
	return id, nil
}

// Subscribe streams committed changes to accounts owned by owner until ctx is
// done or Unsubscribe is called.
func (l *Ledger) Subscribe(ctx context.Context, owner common.Address) (*Subscription, error) {
	return l.events.Register(ctx, owner), nil
}

func (l *Ledger) Unsubscribe(id uuid.UUID) error {
	return l.events.Unregister(id)
}

// Close releases the store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
