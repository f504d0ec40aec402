package program

import (
	"errors"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/derive"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/schema"
)

func loadRecord(ic *ledger.InvokeContext, i int, recordType schema.RecordType) (*ledger.Account, error) {
	account, err := ic.Load(i)
	if err != nil {
		return nil, err
	}
	if account.IsEmpty() {
		return nil, ErrAccountNotInitialized.Withf("%s account %s is not initialized", recordType, account.Address)
	}
	if account.Owner != ic.ProgramID() {
		return nil, ErrAccountOwnedByWrongProgram.Withf("%s account %s is owned by %s", recordType, account.Address, account.Owner)
	}
	return account, nil
}

func decodeError(err error) error {
	if errors.Is(err, schema.ErrDiscriminatorMismatch) {
		return ErrAccountDiscriminatorMismatch.Withf("%v", err)
	}
	return ErrAccountDidNotDeserialize.Withf("%v", err)
}

func loadPrinter(ic *ledger.InvokeContext, i int) (*ledger.Account, *schema.Printer, error) {
	account, err := loadRecord(ic, i, schema.RecordTypePrinter)
	if err != nil {
		return nil, nil, err
	}
	printer, err := schema.UnmarshalPrinter(account.Data)
	if err != nil {
		return nil, nil, decodeError(err)
	}
	return account, printer, nil
}

func loadCert(ic *ledger.InvokeContext, i int) (*ledger.Account, *schema.Cert, error) {
	account, err := loadRecord(ic, i, schema.RecordTypeCert)
	if err != nil {
		return nil, nil, err
	}
	cert, err := schema.UnmarshalCert(account.Data)
	if err != nil {
		return nil, nil, decodeError(err)
	}
	expected, _, err := derive.CertAddress(cert.Printer, cert.SecureToken, ic.ProgramID())
	if err != nil || expected != account.Address {
		return nil, nil, ErrConstraintSeeds.Withf("cert %s is not at its derived address", account.Address)
	}
	return account, cert, nil
}

func loadCheque(ic *ledger.InvokeContext, i int) (*ledger.Account, *schema.Cheque, error) {
	account, err := loadRecord(ic, i, schema.RecordTypeCheque)
	if err != nil {
		return nil, nil, err
	}
	cheque, err := schema.UnmarshalCheque(account.Data)
	if err != nil {
		return nil, nil, decodeError(err)
	}
	return account, cheque, nil
}

func loadMint(ic *ledger.InvokeContext, i int) (*native.Mint, error) {
	account, err := ic.Load(i)
	if err != nil {
		return nil, err
	}
	if account.Owner != native.TokenProgramID {
		return nil, ErrAccountOwnedByWrongProgram.Withf("mint %s is owned by %s", account.Address, account.Owner)
	}
	mint, err := native.UnmarshalMint(account.Data)
	if err != nil || !mint.IsInitialized {
		return nil, ErrAccountDidNotDeserialize.Withf("account %s is not a mint", account.Address)
	}
	return mint, nil
}

func loadTokenAccount(ic *ledger.InvokeContext, i int) (*native.TokenAccount, error) {
	account, err := ic.Load(i)
	if err != nil {
		return nil, err
	}
	if account.Owner != native.TokenProgramID {
		return nil, ErrAccountOwnedByWrongProgram.Withf("token account %s is owned by %s", account.Address, account.Owner)
	}
	tokenAccount, err := native.UnmarshalTokenAccount(account.Data)
	if err != nil || !tokenAccount.IsInitialized {
		return nil, ErrAccountDidNotDeserialize.Withf("account %s is not a token account", account.Address)
	}
	return tokenAccount, nil
}

// hasOne fails with ConstraintHasOne unless the i-th account is expected.
func hasOne(ic *ledger.InvokeContext, i int, field string, expected common.Address) error {
	address, err := ic.Address(i)
	if err != nil {
		return err
	}
	if address != expected {
		return ErrConstraintHasOne.Withf("%s is %s, got %s", field, expected, address)
	}
	return nil
}

// derivedAt fails with ConstraintSeeds unless the i-th account is derived.
func derivedAt(ic *ledger.InvokeContext, i int, derived common.Address) error {
	address, err := ic.Address(i)
	if err != nil {
		return err
	}
	if address != derived {
		return ErrConstraintSeeds.Withf("expected %s, got %s", derived, address)
	}
	return nil
}

// createRecord allocates a record owned by this program at the i-th account,
// paid by the payer-th account, signing with seeds when it is derived.
func createRecord(ic *ledger.InvokeContext, payer, i int, size int, seeds ...[][]byte) (*ledger.Account, error) {
	payerAddress, err := ic.Address(payer)
	if err != nil {
		return nil, err
	}
	address, err := ic.Address(i)
	if err != nil {
		return nil, err
	}
	if err := ic.Invoke(native.CreateAccount(payerAddress, address, uint64(size), ic.ProgramID()), seeds...); err != nil {
		return nil, err
	}
	return ic.Load(i)
}

// ensureAssociated creates owner's token account for mint if it is absent and
// checks that it is the i-th account.
func ensureAssociated(ic *ledger.InvokeContext, i int, payer, owner, mint common.Address) error {
	ix, associated, err := native.CreateAssociatedTokenAccountIdempotent(payer, owner, mint)
	if err != nil {
		return err
	}
	address, err := ic.Address(i)
	if err != nil {
		return err
	}
	if address != associated {
		return ErrConstraintAssociated.Withf("token account of %s for %s is %s, got %s", owner, mint, associated, address)
	}
	return ic.Invoke(ix)
}
