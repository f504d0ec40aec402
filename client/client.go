// Package client is the SDK for callers of the issuance program. Every
// operation validates its inputs locally before a transaction is built, and
// maps ledger rejections onto kylan error kinds.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/program"
)

// Ledger is the ledger a client talks to. *ledger.Ledger and the gRPC
// client in ledger/grpc both implement it.
type Ledger interface {
	GetAccount(ctx context.Context, address common.Address) (*ledger.Account, error)
	ProgramAccounts(ctx context.Context, owner common.Address) ([]*ledger.Account, error)
	Submit(ctx context.Context, tx *ledger.Transaction) (string, error)
	Subscribe(ctx context.Context, owner common.Address) (*ledger.Subscription, error)
	Unsubscribe(id uuid.UUID) error
}

// Client submits issuance program instructions on behalf of one signer.
type Client struct {
	Config *Config
	ledger Ledger

	mu      sync.Mutex
	watches map[uuid.UUID]context.CancelFunc
}

// New creates a client over l.
func New(config *Config, l Ledger) *Client {
	return &Client{
		Config:  config,
		ledger:  l,
		watches: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Ledger returns the ledger the client submits to.
func (c *Client) Ledger() Ledger {
	return c.ledger
}

// submit signs instructions with the configured signer plus extra and
// submits them as one transaction.
func (c *Client) submit(ctx context.Context, extra []common.Signer, instructions ...ledger.Instruction) (string, error) {
	tx := ledger.NewTransaction(instructions...)
	signers := append([]common.Signer{c.Config.Signer}, extra...)
	if err := tx.Sign(signers...); err != nil {
		return "", kylan.WrapError(kylan.KindInternal, err, "failed to sign transaction")
	}
	id, err := c.ledger.Submit(ctx, tx)
	if err != nil {
		return "", c.submissionError(err)
	}
	return id, nil
}

var programErrorKinds = []struct {
	err  *ledger.ProgramError
	kind kylan.Kind
}{
	{program.ErrNotPrintable, kylan.KindStateViolation},
	{program.ErrNotBurnable, kylan.KindStateViolation},
	{program.ErrUninitializedCert, kylan.KindStateViolation},
	{program.ErrInsufficientCheque, kylan.KindInsufficientLedgerBalance},
	{program.ErrInvalidAmount, kylan.KindInvalidAmount},
	{program.ErrInvalidPrice, kylan.KindInvalidRateParameters},
	{program.ErrInvalidFee, kylan.KindInvalidRateParameters},
	{program.ErrOverflow, kylan.KindOverflow},
}

// submissionError classifies a rejected submission. Rejections without a
// specific kind keep the program's code and message.
func (c *Client) submissionError(err error) error {
	var ixErr *ledger.InstructionError
	if !errors.As(err, &ixErr) || ixErr.Err == nil {
		return kylan.WrapError(kylan.KindSubmission, err, "submission failed: %v", err)
	}

	kind := kylan.KindSubmission
	switch ixErr.Program {
	case c.Config.ProgramID:
		for _, entry := range programErrorKinds {
			if errors.Is(ixErr.Err, entry.err) {
				kind = entry.kind
				break
			}
		}
	case native.SystemProgramID:
		if errors.Is(ixErr.Err, native.ErrAccountAlreadyInUse) {
			kind = kylan.KindAlreadyInitialized
		}
	}
	return &kylan.Error{Kind: kind, Code: ixErr.Err.Code, Message: ixErr.Err.Message, Cause: err}
}

// requireAddresses rejects zero addresses before any ledger call.
func requireAddresses(fields map[string]common.Address) error {
	for field, address := range fields {
		if address.IsZero() {
			return kylan.NewError(kylan.KindInvalidIdentity, "%s must not be the zero address", field)
		}
	}
	return nil
}
