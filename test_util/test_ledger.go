package testutil

import (
	"context"
	"errors"
	"fmt"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/ledger/store"
	"github.com/lightsparkdev/kylan-go/program"
)

// TestLedger is an in-process ledger running the native programs and the
// issuance program at the default program ID.
type TestLedger struct {
	*ledger.Ledger
	ProgramID common.Address
	// Payer funds account creation in the helpers below.
	Payer *common.Keypair
}

// NewTestLedger returns a ledger over an in-memory store.
func NewTestLedger() (*TestLedger, error) {
	return NewTestLedgerWithStore(store.NewMemoryStore())
}

// NewTestLedgerWithStore returns a ledger over s.
func NewTestLedgerWithStore(s ledger.Store) (*TestLedger, error) {
	payer, err := common.NewKeypair()
	if err != nil {
		return nil, err
	}
	programID := common.MustParseAddress(kylan.DefaultProgramID)
	programs := append(native.Programs(), program.New(programID))
	return &TestLedger{
		Ledger:    ledger.New(s, programs),
		ProgramID: programID,
		Payer:     payer,
	}, nil
}

// NewKeypairs returns n random keypairs.
func NewKeypairs(n int) ([]*common.Keypair, error) {
	keypairs := make([]*common.Keypair, n)
	for i := range keypairs {
		kp, err := common.NewKeypair()
		if err != nil {
			return nil, err
		}
		keypairs[i] = kp
	}
	return keypairs, nil
}

// Send signs instructions with signers and submits them as one transaction.
func (l *TestLedger) Send(ctx context.Context, signers []common.Signer, instructions ...ledger.Instruction) (string, error) {
	tx := ledger.NewTransaction(instructions...)
	if err := tx.Sign(signers...); err != nil {
		return "", err
	}
	return l.Submit(ctx, tx)
}

// CreateMint creates a token mint controlled by authority.
func (l *TestLedger) CreateMint(ctx context.Context, authority common.Address, decimals uint8) (common.Address, error) {
	mint, err := common.NewKeypair()
	if err != nil {
		return common.ZeroAddress, err
	}
	_, err = l.Send(ctx, []common.Signer{l.Payer, mint},
		native.CreateAccount(l.Payer.Address(), mint.Address(), native.MintSize, native.TokenProgramID),
		native.InitializeMint(mint.Address(), decimals, authority, nil),
	)
	if err != nil {
		return common.ZeroAddress, fmt.Errorf("failed to create mint: %w", err)
	}
	return mint.Address(), nil
}

// CreateTokenAccount creates owner's associated token account for mint if absent.
func (l *TestLedger) CreateTokenAccount(ctx context.Context, owner, mint common.Address) (common.Address, error) {
	ix, associated, err := native.CreateAssociatedTokenAccountIdempotent(l.Payer.Address(), owner, mint)
	if err != nil {
		return common.ZeroAddress, err
	}
	if _, err := l.Send(ctx, []common.Signer{l.Payer}, ix); err != nil {
		return common.ZeroAddress, fmt.Errorf("failed to create token account: %w", err)
	}
	return associated, nil
}

// Fund mints amount of mint to owner's associated token account.
func (l *TestLedger) Fund(ctx context.Context, mint common.Address, mintAuthority *common.Keypair, owner common.Address, amount uint64) (common.Address, error) {
	ix, associated, err := native.CreateAssociatedTokenAccountIdempotent(l.Payer.Address(), owner, mint)
	if err != nil {
		return common.ZeroAddress, err
	}
	_, err = l.Send(ctx, []common.Signer{l.Payer, mintAuthority},
		ix,
		native.MintTo(mint, associated, mintAuthority.Address(), amount),
	)
	if err != nil {
		return common.ZeroAddress, fmt.Errorf("failed to fund %s: %w", owner, err)
	}
	return associated, nil
}

// TokenBalance returns the balance of a token account, or zero if it does not exist.
func (l *TestLedger) TokenBalance(ctx context.Context, address common.Address) (uint64, error) {
	account, err := l.GetAccount(ctx, address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	tokenAccount, err := native.UnmarshalTokenAccount(account.Data)
	if err != nil {
		return 0, err
	}
	return tokenAccount.Amount, nil
}

// Balance returns owner's balance of mint.
func (l *TestLedger) Balance(ctx context.Context, owner, mint common.Address) (uint64, error) {
	associated, _, err := native.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, err
	}
	return l.TokenBalance(ctx, associated)
}

// Supply returns the outstanding supply of mint.
func (l *TestLedger) Supply(ctx context.Context, mint common.Address) (uint64, error) {
	account, err := l.GetAccount(ctx, mint)
	if err != nil {
		return 0, err
	}
	m, err := native.UnmarshalMint(account.Data)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}
