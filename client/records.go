package client

import (
	"context"
	"errors"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/schema"
)

// ParsePrinterData decodes a printer record.
func ParsePrinterData(data []byte) (*schema.Printer, error) {
	return schema.UnmarshalPrinter(data)
}

// ParseCertData decodes a cert record.
func ParseCertData(data []byte) (*schema.Cert, error) {
	return schema.UnmarshalCert(data)
}

// ParseChequeData decodes a cheque record.
func ParseChequeData(data []byte) (*schema.Cheque, error) {
	return schema.UnmarshalCheque(data)
}

// fetch reads the account at address, which the program must own.
func (c *Client) fetch(ctx context.Context, address common.Address) (*ledger.Account, error) {
	account, err := c.ledger.GetAccount(ctx, address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, kylan.WrapError(kylan.KindNotFound, err, "no account at %s", address)
	}
	if err != nil {
		return nil, kylan.WrapError(kylan.KindInternal, err, "failed to read %s", address)
	}
	if account.Owner != c.Config.ProgramID {
		return nil, kylan.WrapError(kylan.KindNotFound, ledger.ErrAccountNotFound,
			"account %s is not owned by program %s", address, c.Config.ProgramID)
	}
	return account, nil
}

// GetPrinterData reads the printer at address.
func (c *Client) GetPrinterData(ctx context.Context, address common.Address) (*schema.Printer, error) {
	account, err := c.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return ParsePrinterData(account.Data)
}

// GetCertData reads the cert at address.
func (c *Client) GetCertData(ctx context.Context, address common.Address) (*schema.Cert, error) {
	account, err := c.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return ParseCertData(account.Data)
}

// GetChequeData reads the cheque at address.
func (c *Client) GetChequeData(ctx context.Context, address common.Address) (*schema.Cheque, error) {
	account, err := c.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return ParseChequeData(account.Data)
}
