package client

import (
	"context"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/derive"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/schema"
)

// binding is what a strict derivation reads back: the record expected at the
// derived address and the field that must equal the caller's input.
type binding struct {
	recordType schema.RecordType
	// missing is the kind returned when no record exists.
	missing  kylan.Kind
	field    func(record any) common.Address
	expected common.Address
}

// deriveAndVerify returns address, and with strict set first checks that the
// record stored there is bound to b.expected.
func (c *Client) deriveAndVerify(ctx context.Context, address common.Address, strict bool, b binding) (common.Address, error) {
	if !strict {
		return address, nil
	}
	account, err := c.fetch(ctx, address)
	if kylan.IsKind(err, kylan.KindNotFound) {
		return common.ZeroAddress, kylan.WrapError(b.missing, err, "no %s exists at %s", b.recordType, address)
	}
	if err != nil {
		return common.ZeroAddress, err
	}
	recordType, record, err := schema.Decode(account.Data)
	if err != nil || recordType != b.recordType {
		return common.ZeroAddress, kylan.NewError(kylan.KindCertificateViolation, "account %s does not hold a %s", address, b.recordType)
	}
	if got := b.field(record); got != b.expected {
		return common.ZeroAddress, kylan.NewError(kylan.KindCertificateViolation,
			"%s at %s is bound to %s, not %s", b.recordType, address, got, b.expected)
	}
	return address, nil
}

// DeriveTreasurerAddress returns the custodian of every treasury of the
// printer issuing stableToken.
func (c *Client) DeriveTreasurerAddress(stableToken common.Address) (common.Address, error) {
	if err := requireAddresses(map[string]common.Address{"stable token": stableToken}); err != nil {
		return common.ZeroAddress, err
	}
	treasurer, _, err := derive.TreasurerAddress(stableToken, c.Config.ProgramID)
	return treasurer, err
}

// DeriveTreasuryAddress returns the account holding the secureToken
// collateral of the printer issuing stableToken.
func (c *Client) DeriveTreasuryAddress(stableToken, secureToken common.Address) (common.Address, error) {
	treasurer, err := c.DeriveTreasurerAddress(stableToken)
	if err != nil {
		return common.ZeroAddress, err
	}
	if err := requireAddresses(map[string]common.Address{"secure token": secureToken}); err != nil {
		return common.ZeroAddress, err
	}
	treasury, _, err := native.FindAssociatedTokenAddress(treasurer, secureToken)
	return treasury, err
}

// DeriveCertAddress returns the cert of the pair. With strict set it fails
// with KindCertificateViolation unless that cert exists for secureToken.
func (c *Client) DeriveCertAddress(ctx context.Context, printer, secureToken common.Address, strict bool) (common.Address, error) {
	if err := requireAddresses(map[string]common.Address{"printer": printer, "secure token": secureToken}); err != nil {
		return common.ZeroAddress, err
	}
	cert, _, err := derive.CertAddress(printer, secureToken, c.Config.ProgramID)
	if err != nil {
		return common.ZeroAddress, err
	}
	return c.deriveAndVerify(ctx, cert, strict, binding{
		recordType: schema.RecordTypeCert,
		missing:    kylan.KindCertificateViolation,
		field:      func(record any) common.Address { return record.(*schema.Cert).SecureToken },
		expected:   secureToken,
	})
}

// DeriveChequeAddress returns the cheque of owner for the pair. With strict
// set it fails with KindLedgerRecordUninitialized unless the cheque exists.
func (c *Client) DeriveChequeAddress(ctx context.Context, printer, secureToken, owner common.Address, strict bool) (common.Address, error) {
	if err := requireAddresses(map[string]common.Address{"printer": printer, "secure token": secureToken, "owner": owner}); err != nil {
		return common.ZeroAddress, err
	}
	cheque, _, err := derive.ChequeAddress(printer, secureToken, owner, c.Config.ProgramID)
	if err != nil {
		return common.ZeroAddress, err
	}
	return c.deriveAndVerify(ctx, cheque, strict, binding{
		recordType: schema.RecordTypeCheque,
		missing:    kylan.KindLedgerRecordUninitialized,
		field:      func(record any) common.Address { return record.(*schema.Cheque).SecureToken },
		expected:   secureToken,
	})
}
