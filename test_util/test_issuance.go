package testutil

import (
	"context"
	"fmt"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/program"
)

// TestIssuance is a printer with one active cert, ready for print and burn.
type TestIssuance struct {
	Authority       *common.Keypair
	SecureAuthority *common.Keypair
	TaxmanOwner     *common.Keypair
	// Taxman is the secure token account of TaxmanOwner.
	Taxman common.Address
	Key    program.CertKey
}

// SetupIssuance creates a secure token, a printer and a cert with the given
// price and fee.
func (l *TestLedger) SetupIssuance(ctx context.Context, price, fee uint64) (*TestIssuance, error) {
	keypairs, err := NewKeypairs(5)
	if err != nil {
		return nil, err
	}
	issuance := &TestIssuance{
		Authority:       keypairs[0],
		SecureAuthority: keypairs[1],
		TaxmanOwner:     keypairs[2],
	}
	printer, stableToken := keypairs[3], keypairs[4]

	secureToken, err := l.CreateMint(ctx, issuance.SecureAuthority.Address(), kylan.DefaultDecimals)
	if err != nil {
		return nil, err
	}
	issuance.Key = program.CertKey{
		Printer:     printer.Address(),
		StableToken: stableToken.Address(),
		SecureToken: secureToken,
	}
	issuance.Taxman, err = l.CreateTokenAccount(ctx, issuance.TaxmanOwner.Address(), secureToken)
	if err != nil {
		return nil, err
	}

	initPrinter, err := program.InitializePrinter(l.ProgramID, printer.Address(), stableToken.Address(), issuance.Authority.Address(), kylan.DefaultDecimals)
	if err != nil {
		return nil, err
	}
	initCert, err := program.InitializeCert(l.ProgramID, issuance.Key, issuance.Authority.Address(), issuance.Taxman, price, fee)
	if err != nil {
		return nil, err
	}
	if _, err := l.Send(ctx, []common.Signer{issuance.Authority, printer, stableToken}, initPrinter, initCert); err != nil {
		return nil, fmt.Errorf("failed to initialize issuance: %w", err)
	}
	return issuance, nil
}

// NewHolder returns a keypair holding amount secure tokens with an initialized cheque.
func (l *TestLedger) NewHolder(ctx context.Context, issuance *TestIssuance, amount uint64) (*common.Keypair, error) {
	holder, err := common.NewKeypair()
	if err != nil {
		return nil, err
	}
	if _, err := l.Fund(ctx, issuance.Key.SecureToken, issuance.SecureAuthority, holder.Address(), amount); err != nil {
		return nil, err
	}
	ix, err := program.InitializeCheque(l.ProgramID, issuance.Key, holder.Address())
	if err != nil {
		return nil, err
	}
	if _, err := l.Send(ctx, []common.Signer{holder}, ix); err != nil {
		return nil, fmt.Errorf("failed to initialize cheque: %w", err)
	}
	return holder, nil
}
