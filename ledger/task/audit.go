package task

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/conversion"
	"github.com/lightsparkdev/kylan-go/derive"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/schema"
)

// CertCustody compares what a cert's treasury holds with what its cheques
// can redeem.
type CertCustody struct {
	Cert     common.Address
	Treasury common.Address
	// Held is the treasury balance of the secure token.
	Held uint64
	// Owed is the secure value of every outstanding cheque at the cert price.
	Owed    uint64
	Cheques int
}

// Covered reports whether the treasury can honor every cheque.
func (c CertCustody) Covered() bool {
	return c.Held >= c.Owed
}

type certKey struct {
	printer     common.Address
	secureToken common.Address
}

type certEntry struct {
	address common.Address
	cert    *schema.Cert
	owed    uint64
	cheques int
}

// AuditCustody checks every cert of the program at programID and logs a
// warning for each one whose treasury is short.
func AuditCustody(ctx context.Context, l Reader, programID common.Address) ([]CertCustody, error) {
	logger := logging.GetLoggerFromContext(ctx)

	accounts, err := l.ProgramAccounts(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list program accounts: %w", err)
	}

	printers := make(map[common.Address]*schema.Printer)
	certs := make(map[certKey]*certEntry)
	var order []certKey
	var cheques []*schema.Cheque
	for _, account := range accounts {
		recordType, record, err := schema.Decode(account.Data)
		if err != nil {
			logger.Warn("Skipping undecodable program account", "address", account.Address, "error", err)
			continue
		}
		switch recordType {
		case schema.RecordTypePrinter:
			printers[account.Address] = record.(*schema.Printer)
		case schema.RecordTypeCert:
			cert := record.(*schema.Cert)
			key := certKey{printer: cert.Printer, secureToken: cert.SecureToken}
			certs[key] = &certEntry{address: account.Address, cert: cert}
			order = append(order, key)
		case schema.RecordTypeCheque:
			cheques = append(cheques, record.(*schema.Cheque))
		}
	}

	for _, cheque := range cheques {
		entry, ok := certs[certKey{printer: cheque.Printer, secureToken: cheque.SecureToken}]
		if !ok {
			continue
		}
		value, err := conversion.SecureValue(cheque.Amount, entry.cert.Price)
		if err != nil {
			return nil, err
		}
		sum, carry := bits.Add64(entry.owed, value, 0)
		if carry != 0 {
			return nil, kylan.NewError(kylan.KindOverflow, "outstanding value of cert %s overflows", entry.address)
		}
		entry.owed = sum
		entry.cheques++
	}

	report := make([]CertCustody, 0, len(order))
	for _, key := range order {
		entry := certs[key]
		printer, ok := printers[key.printer]
		if !ok {
			logger.Warn("Cert without printer", "cert", entry.address, "printer", key.printer)
			continue
		}
		treasurer, _, err := derive.TreasurerAddress(printer.StableToken, programID)
		if err != nil {
			return nil, err
		}
		treasury, _, err := native.FindAssociatedTokenAddress(treasurer, key.secureToken)
		if err != nil {
			return nil, err
		}
		held, err := tokenBalance(ctx, l, treasury)
		if err != nil {
			return nil, err
		}

		custody := CertCustody{
			Cert:     entry.address,
			Treasury: treasury,
			Held:     held,
			Owed:     entry.owed,
			Cheques:  entry.cheques,
		}
		if !custody.Covered() {
			logger.Warn("Custody shortfall",
				"cert", custody.Cert,
				"treasury", custody.Treasury,
				"held", custody.Held,
				"owed", custody.Owed,
			)
		}
		report = append(report, custody)
	}

	logger.Info("Custody audit complete", "certs", len(report), "cheques", len(cheques))
	return report, nil
}

func tokenBalance(ctx context.Context, l Reader, address common.Address) (uint64, error) {
	account, err := l.GetAccount(ctx, address)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	tokenAccount, err := native.UnmarshalTokenAccount(account.Data)
	if err != nil {
		return 0, fmt.Errorf("treasury %s is not a token account: %w", address, err)
	}
	return tokenAccount.Amount, nil
}
