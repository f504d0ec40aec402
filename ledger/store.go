package ledger

import (
	"context"

	"github.com/lightsparkdev/kylan-go/common"
)

// Store persists account state.
type Store interface {
	// GetAccount returns ErrAccountNotFound for an address with no state.
	GetAccount(ctx context.Context, address common.Address) (*Account, error)
	// ProgramAccounts returns every account owned by owner, ordered by address.
	ProgramAccounts(ctx context.Context, owner common.Address) ([]*Account, error)
	// Apply writes all accounts or none of them.
	Apply(ctx context.Context, accounts []*Account) error
	Close() error
}
