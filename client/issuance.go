package client

import (
	"context"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/guard"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/program"
	"github.com/lightsparkdev/kylan-go/schema"
)

// PrinterResult is the outcome of creating a printer.
type PrinterResult struct {
	Signature   string
	Printer     common.Address
	StableToken common.Address
}

// ConversionResult is the outcome of a print or burn.
type ConversionResult struct {
	Signature string
	// Destination is the signer's token account that received the proceeds.
	Destination common.Address
	// Amount is what Destination received.
	Amount uint64
	// Fee is the secure units paid to the taxman on a burn.
	Fee uint64
}

// CreatePrinter creates a printer issuing a new stable token with the given
// decimals. The signer becomes its authority.
func (c *Client) CreatePrinter(ctx context.Context, decimals uint8) (*PrinterResult, error) {
	printer, err := common.NewKeypair()
	if err != nil {
		return nil, kylan.WrapError(kylan.KindInternal, err, "failed to generate printer key")
	}
	stableToken, err := common.NewKeypair()
	if err != nil {
		return nil, kylan.WrapError(kylan.KindInternal, err, "failed to generate stable token key")
	}
	ix, err := program.InitializePrinter(c.Config.ProgramID, printer.Address(), stableToken.Address(), c.Config.SignerAddress(), decimals)
	if err != nil {
		return nil, err
	}
	signature, err := c.submit(ctx, []common.Signer{printer, stableToken}, ix)
	if err != nil {
		return nil, err
	}
	return &PrinterResult{Signature: signature, Printer: printer.Address(), StableToken: stableToken.Address()}, nil
}

// certKey reads the printer to complete the instruction key of a pair.
func (c *Client) certKey(ctx context.Context, printer, secureToken common.Address) (program.CertKey, *schema.Printer, error) {
	printerData, err := c.GetPrinterData(ctx, printer)
	if err != nil {
		return program.CertKey{}, nil, err
	}
	return program.CertKey{Printer: printer, StableToken: printerData.StableToken, SecureToken: secureToken}, printerData, nil
}

// InitializeCert whitelists secureToken on printer at price, charging fee on
// burns to the taxman token account. It returns the signature and the cert.
func (c *Client) InitializeCert(ctx context.Context, printer, secureToken, taxman common.Address, price, fee uint64) (string, common.Address, error) {
	if err := requireAddresses(map[string]common.Address{"printer": printer, "secure token": secureToken, "taxman": taxman}); err != nil {
		return "", common.ZeroAddress, err
	}
	if err := guard.ValidateRate(price, fee); err != nil {
		return "", common.ZeroAddress, err
	}
	cert, err := c.DeriveCertAddress(ctx, printer, secureToken, false)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	key, _, err := c.certKey(ctx, printer, secureToken)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	ix, err := program.InitializeCert(c.Config.ProgramID, key, c.Config.SignerAddress(), taxman, price, fee)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	signature, err := c.submit(ctx, nil, ix)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	return signature, cert, nil
}

// InitializeCheque opens the signer's cheque for the pair.
func (c *Client) InitializeCheque(ctx context.Context, printer, secureToken common.Address) (string, common.Address, error) {
	if _, err := c.DeriveCertAddress(ctx, printer, secureToken, true); err != nil {
		return "", common.ZeroAddress, err
	}
	cheque, err := c.DeriveChequeAddress(ctx, printer, secureToken, c.Config.SignerAddress(), false)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	key, _, err := c.certKey(ctx, printer, secureToken)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	ix, err := program.InitializeCheque(c.Config.ProgramID, key, c.Config.SignerAddress())
	if err != nil {
		return "", common.ZeroAddress, err
	}
	signature, err := c.submit(ctx, nil, ix)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	return signature, cheque, nil
}

// Print deposits amount secure units and mints the stable equivalent to the
// signer. The signer's cheque must exist.
func (c *Client) Print(ctx context.Context, printer, secureToken common.Address, amount uint64) (*ConversionResult, error) {
	if err := guard.ValidateAmount(amount); err != nil {
		return nil, err
	}
	certAddress, err := c.DeriveCertAddress(ctx, printer, secureToken, true)
	if err != nil {
		return nil, err
	}
	if _, err := c.DeriveChequeAddress(ctx, printer, secureToken, c.Config.SignerAddress(), true); err != nil {
		return nil, err
	}
	cert, err := c.GetCertData(ctx, certAddress)
	if err != nil {
		return nil, err
	}
	minted, err := guard.Print(cert, amount)
	if err != nil {
		return nil, err
	}
	key, printerData, err := c.certKey(ctx, printer, secureToken)
	if err != nil {
		return nil, err
	}
	destination, _, err := native.FindAssociatedTokenAddress(c.Config.SignerAddress(), printerData.StableToken)
	if err != nil {
		return nil, err
	}

	ix, err := program.Print(c.Config.ProgramID, key, c.Config.SignerAddress(), amount)
	if err != nil {
		return nil, err
	}
	signature, err := c.submit(ctx, nil, ix)
	if err != nil {
		return nil, err
	}
	return &ConversionResult{Signature: signature, Destination: destination, Amount: minted}, nil
}

// Burn destroys amount stable units of the signer and releases the secure
// equivalent less the cert fee. The signer's cheque is debited by amount.
func (c *Client) Burn(ctx context.Context, printer, secureToken common.Address, amount uint64) (*ConversionResult, error) {
	if err := guard.ValidateAmount(amount); err != nil {
		return nil, err
	}
	certAddress, err := c.DeriveCertAddress(ctx, printer, secureToken, true)
	if err != nil {
		return nil, err
	}
	chequeAddress, err := c.DeriveChequeAddress(ctx, printer, secureToken, c.Config.SignerAddress(), true)
	if err != nil {
		return nil, err
	}
	cert, err := c.GetCertData(ctx, certAddress)
	if err != nil {
		return nil, err
	}
	cheque, err := c.GetChequeData(ctx, chequeAddress)
	if err != nil {
		return nil, err
	}
	burn, err := guard.Burn(cert, cheque, amount)
	if err != nil {
		return nil, err
	}
	key, _, err := c.certKey(ctx, printer, secureToken)
	if err != nil {
		return nil, err
	}
	destination, _, err := native.FindAssociatedTokenAddress(c.Config.SignerAddress(), secureToken)
	if err != nil {
		return nil, err
	}

	ix, err := program.Burn(c.Config.ProgramID, key, c.Config.SignerAddress(), cert.Taxman, amount)
	if err != nil {
		return nil, err
	}
	signature, err := c.submit(ctx, nil, ix)
	if err != nil {
		return nil, err
	}
	return &ConversionResult{Signature: signature, Destination: destination, Amount: burn.Net, Fee: burn.Fee}, nil
}

// adminKey reads the cert at address and its printer.
func (c *Client) adminKey(ctx context.Context, certAddress common.Address) (program.CertKey, error) {
	if err := requireAddresses(map[string]common.Address{"cert": certAddress}); err != nil {
		return program.CertKey{}, err
	}
	cert, err := c.GetCertData(ctx, certAddress)
	if err != nil {
		return program.CertKey{}, err
	}
	key, _, err := c.certKey(ctx, cert.Printer, cert.SecureToken)
	return key, err
}

// SetCertState moves the cert at certAddress to state.
func (c *Client) SetCertState(ctx context.Context, certAddress common.Address, state schema.CertState) (string, error) {
	if err := guard.ValidateState(state); err != nil {
		return "", err
	}
	key, err := c.adminKey(ctx, certAddress)
	if err != nil {
		return "", err
	}
	ix, err := program.SetCertState(c.Config.ProgramID, key, c.Config.SignerAddress(), state)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, nil, ix)
}

// SetCertFee changes the burn fee of the cert at certAddress.
func (c *Client) SetCertFee(ctx context.Context, certAddress common.Address, fee uint64) (string, error) {
	if err := guard.ValidateFee(fee); err != nil {
		return "", err
	}
	key, err := c.adminKey(ctx, certAddress)
	if err != nil {
		return "", err
	}
	ix, err := program.SetCertFee(c.Config.ProgramID, key, c.Config.SignerAddress(), fee)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, nil, ix)
}

// SetCertTaxman sends future fees of the cert at certAddress to the secure
// token account of taxmanAuthority, and returns that account.
func (c *Client) SetCertTaxman(ctx context.Context, certAddress, taxmanAuthority common.Address) (string, common.Address, error) {
	if err := requireAddresses(map[string]common.Address{"taxman authority": taxmanAuthority}); err != nil {
		return "", common.ZeroAddress, err
	}
	key, err := c.adminKey(ctx, certAddress)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	ix, taxman, err := program.SetCertTaxman(c.Config.ProgramID, key, c.Config.SignerAddress(), taxmanAuthority)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	signature, err := c.submit(ctx, nil, ix)
	if err != nil {
		return "", common.ZeroAddress, err
	}
	return signature, taxman, nil
}

// TransferAuthority hands printer to newAuthority, effective immediately.
func (c *Client) TransferAuthority(ctx context.Context, printer, newAuthority common.Address) (string, error) {
	if err := requireAddresses(map[string]common.Address{"printer": printer, "new authority": newAuthority}); err != nil {
		return "", err
	}
	ix := program.TransferAuthority(c.Config.ProgramID, printer, c.Config.SignerAddress(), newAuthority)
	return c.submit(ctx, nil, ix)
}
