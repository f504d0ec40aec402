// Package program is the issuance program: printers, certs and cheques, and
// the print and burn conversions between a secure token and a stable token.
package program

import (
	"encoding/binary"
	"math"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/derive"
	"github.com/lightsparkdev/kylan-go/guard"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/schema"
)

type handler struct {
	name    string
	argSize int
	exec    func(ic *ledger.InvokeContext, args []byte) error
}

var handlers = map[[schema.DiscriminatorLength]byte]handler{}

func register(name string, argSize int, exec func(ic *ledger.InvokeContext, args []byte) error) {
	handlers[schema.InstructionDiscriminator(name)] = handler{name: name, argSize: argSize, exec: exec}
}

func init() {
	register(InstructionInitializePrinter, 1, initializePrinter)
	register(InstructionInitializeCert, 16, initializeCert)
	register(InstructionInitializeCheque, 0, initializeCheque)
	register(InstructionPrint, 8, processPrint)
	register(InstructionBurn, 8, processBurn)
	register(InstructionSetCertState, 1, setCertState)
	register(InstructionSetCertFee, 8, setCertFee)
	register(InstructionSetCertTaxman, 0, setCertTaxman)
	register(InstructionTransferAuthority, 0, transferAuthority)
}

// Program executes the issuance instructions.
type Program struct {
	id common.Address
}

func New(id common.Address) *Program {
	return &Program{id: id}
}

func (p *Program) ID() common.Address { return p.id }

func (p *Program) Name() string { return "kylan" }

var _ ledger.Program = (*Program)(nil)

func (p *Program) Process(ic *ledger.InvokeContext, data []byte) error {
	if len(data) < schema.DiscriminatorLength {
		return ErrInvalidInstruction
	}
	h, ok := handlers[[schema.DiscriminatorLength]byte(data[:schema.DiscriminatorLength])]
	if !ok {
		return ErrInvalidInstruction
	}
	args := data[schema.DiscriminatorLength:]
	if len(args) != h.argSize {
		return ErrInstructionDidNotDeserialize.Withf("%s takes %d bytes of arguments, got %d", h.name, h.argSize, len(args))
	}
	return h.exec(ic, args)
}

// accounts [stable_token, authority, treasurer, printer, system, token]
func initializePrinter(ic *ledger.InvokeContext, args []byte) error {
	decimals := args[0]
	if err := ic.RequireSigner(1); err != nil {
		return err
	}
	stableToken, _ := ic.Address(0)
	authority, _ := ic.Address(1)

	treasurer, _, err := derive.TreasurerAddress(stableToken, ic.ProgramID())
	if err != nil {
		return ErrConstraintSeeds.Withf("%v", err)
	}
	if err := derivedAt(ic, 2, treasurer); err != nil {
		return err
	}

	if err := ic.Invoke(native.CreateAccount(authority, stableToken, native.MintSize, native.TokenProgramID)); err != nil {
		return err
	}
	if err := ic.Invoke(native.InitializeMint(stableToken, decimals, treasurer, &treasurer)); err != nil {
		return err
	}

	account, err := createRecord(ic, 1, 3, schema.PrinterSize)
	if err != nil {
		return err
	}
	account.Data = (&schema.Printer{StableToken: stableToken, Authority: authority, Decimals: decimals}).Marshal()
	return ic.Store(3, account)
}

// accounts [stable_token, secure_token, authority, printer, cert, taxman, system]
func initializeCert(ic *ledger.InvokeContext, args []byte) error {
	price := binary.LittleEndian.Uint64(args[0:8])
	fee := binary.LittleEndian.Uint64(args[8:16])

	if err := ic.RequireSigner(2); err != nil {
		return err
	}
	printerAccount, printer, err := loadPrinter(ic, 3)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 2, "authority", printer.Authority); err != nil {
		return err
	}
	if err := hasOne(ic, 0, "stable_token", printer.StableToken); err != nil {
		return err
	}
	if _, err := loadMint(ic, 1); err != nil {
		return err
	}
	secureToken, _ := ic.Address(1)

	if price == 0 {
		return ErrInvalidPrice
	}
	if err := guard.ValidateFee(fee); err != nil {
		return ErrInvalidFee.Withf("%v", err)
	}

	taxman, err := loadTokenAccount(ic, 5)
	if err != nil {
		return err
	}
	if taxman.Mint != secureToken {
		return ErrConstraintTokenMint.Withf("taxman holds %s, not %s", taxman.Mint, secureToken)
	}
	taxmanAddress, _ := ic.Address(5)

	cert, bump, err := derive.CertAddress(printerAccount.Address, secureToken, ic.ProgramID())
	if err != nil {
		return ErrConstraintSeeds.Withf("%v", err)
	}
	if err := derivedAt(ic, 4, cert); err != nil {
		return err
	}
	account, err := createRecord(ic, 2, 4, schema.CertSize, derive.CertSeeds(printerAccount.Address, secureToken, bump))
	if err != nil {
		return err
	}
	account.Data = (&schema.Cert{
		Printer:     printerAccount.Address,
		SecureToken: secureToken,
		Price:       price,
		Fee:         fee,
		Taxman:      taxmanAddress,
		State:       schema.CertStateActive,
	}).Marshal()
	return ic.Store(4, account)
}

// accounts [stable_token, secure_token, authority, printer, cert, cheque, system]
func initializeCheque(ic *ledger.InvokeContext, _ []byte) error {
	if err := ic.RequireSigner(2); err != nil {
		return err
	}
	owner, _ := ic.Address(2)
	printerAccount, printer, err := loadPrinter(ic, 3)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 0, "stable_token", printer.StableToken); err != nil {
		return err
	}
	_, cert, err := loadCert(ic, 4)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 3, "printer", cert.Printer); err != nil {
		return err
	}
	if err := hasOne(ic, 1, "secure_token", cert.SecureToken); err != nil {
		return err
	}

	cheque, bump, err := derive.ChequeAddress(printerAccount.Address, cert.SecureToken, owner, ic.ProgramID())
	if err != nil {
		return ErrConstraintSeeds.Withf("%v", err)
	}
	if err := derivedAt(ic, 5, cheque); err != nil {
		return err
	}
	account, err := createRecord(ic, 2, 5, schema.ChequeSize,
		derive.ChequeSeeds(printerAccount.Address, cert.SecureToken, owner, bump))
	if err != nil {
		return err
	}
	account.Data = (&schema.Cheque{
		Printer:     printerAccount.Address,
		SecureToken: cert.SecureToken,
		Authority:   owner,
	}).Marshal()
	return ic.Store(5, account)
}

// conversion holds the records print and burn both validate.
type conversion struct {
	owner         common.Address
	stableToken   common.Address
	secureToken   common.Address
	treasurer     common.Address
	treasurerBump uint8
	cert          *schema.Cert
	chequeAccount *ledger.Account
	cheque        *schema.Cheque
}

// accounts [stable_token, secure_token, authority, treasurer, treasury, _, _,
// printer, cert, cheque, ...]
func loadConversion(ic *ledger.InvokeContext) (*conversion, error) {
	if err := ic.RequireSigner(2); err != nil {
		return nil, err
	}
	c := &conversion{}
	c.owner, _ = ic.Address(2)

	printerAccount, printer, err := loadPrinter(ic, 7)
	if err != nil {
		return nil, err
	}
	if err := hasOne(ic, 0, "stable_token", printer.StableToken); err != nil {
		return nil, err
	}
	c.stableToken = printer.StableToken

	_, c.cert, err = loadCert(ic, 8)
	if err != nil {
		return nil, err
	}
	if c.cert.Printer != printerAccount.Address {
		return nil, ErrConstraintHasOne.Withf("cert belongs to printer %s", c.cert.Printer)
	}
	if err := hasOne(ic, 1, "secure_token", c.cert.SecureToken); err != nil {
		return nil, err
	}
	c.secureToken = c.cert.SecureToken

	c.chequeAccount, c.cheque, err = loadCheque(ic, 9)
	if err != nil {
		return nil, err
	}
	if c.cheque.Printer != printerAccount.Address || c.cheque.SecureToken != c.secureToken {
		return nil, ErrConstraintHasOne.Withf("cheque %s belongs to another cert", c.chequeAccount.Address)
	}
	if c.cheque.Authority != c.owner {
		return nil, ErrConstraintHasOne.Withf("cheque %s belongs to %s", c.chequeAccount.Address, c.cheque.Authority)
	}

	c.treasurer, c.treasurerBump, err = derive.TreasurerAddress(c.stableToken, ic.ProgramID())
	if err != nil {
		return nil, ErrConstraintSeeds.Withf("%v", err)
	}
	if err := derivedAt(ic, 3, c.treasurer); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *conversion) treasurerSeeds() [][]byte {
	return derive.TreasurerSeeds(c.stableToken, c.treasurerBump)
}

// accounts [stable_token, secure_token, authority, treasurer, treasury,
// src secure account, dst stable account, printer, cert, cheque, system,
// token, associated token]
func processPrint(ic *ledger.InvokeContext, args []byte) error {
	amount := binary.LittleEndian.Uint64(args)
	c, err := loadConversion(ic)
	if err != nil {
		return err
	}
	minted, err := guard.Print(c.cert, amount)
	if err != nil {
		return fromGuard(err, ErrNotPrintable)
	}
	if c.cheque.Amount > math.MaxUint64-minted {
		return ErrOverflow.Withf("cheque balance %d cannot grow by %d", c.cheque.Amount, minted)
	}

	if err := ensureAssociated(ic, 4, c.owner, c.treasurer, c.secureToken); err != nil {
		return err
	}
	if err := ensureAssociated(ic, 6, c.owner, c.owner, c.stableToken); err != nil {
		return err
	}
	source, _ := ic.Address(5)
	treasury, _ := ic.Address(4)
	destination, _ := ic.Address(6)

	if err := ic.Invoke(native.Transfer(source, treasury, c.owner, amount)); err != nil {
		return err
	}
	if err := ic.Invoke(native.MintTo(c.stableToken, destination, c.treasurer, minted), c.treasurerSeeds()); err != nil {
		return err
	}

	c.cheque.Amount += minted
	c.chequeAccount.Data = c.cheque.Marshal()
	return ic.Store(9, c.chequeAccount)
}

// accounts [stable_token, secure_token, authority, treasurer, treasury,
// src stable account, dst secure account, printer, cert, cheque, taxman,
// system, token, associated token]
func processBurn(ic *ledger.InvokeContext, args []byte) error {
	amount := binary.LittleEndian.Uint64(args)
	c, err := loadConversion(ic)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 10, "taxman", c.cert.Taxman); err != nil {
		return err
	}
	treasury, _, err := native.FindAssociatedTokenAddress(c.treasurer, c.secureToken)
	if err != nil {
		return err
	}
	if address, _ := ic.Address(4); address != treasury {
		return ErrConstraintAssociated.Withf("treasury is %s, got %s", treasury, address)
	}

	result, err := guard.Burn(c.cert, c.cheque, amount)
	if err != nil {
		return fromGuard(err, ErrNotBurnable)
	}

	source, _ := ic.Address(5)
	if err := ic.Invoke(native.Burn(source, c.stableToken, c.owner, amount)); err != nil {
		return err
	}
	c.cheque.Amount -= amount

	if err := ensureAssociated(ic, 6, c.owner, c.owner, c.secureToken); err != nil {
		return err
	}
	destination, _ := ic.Address(6)
	if result.Fee > 0 {
		if err := ic.Invoke(native.Transfer(treasury, c.cert.Taxman, c.treasurer, result.Fee), c.treasurerSeeds()); err != nil {
			return err
		}
	}
	if result.Net > 0 {
		if err := ic.Invoke(native.Transfer(treasury, destination, c.treasurer, result.Net), c.treasurerSeeds()); err != nil {
			return err
		}
	}

	c.chequeAccount.Data = c.cheque.Marshal()
	return ic.Store(9, c.chequeAccount)
}

// loadCertAdmin checks the printer authority for a cert mutation.
// accounts [authority, printer, cert, ...]
func loadCertAdmin(ic *ledger.InvokeContext) (*ledger.Account, *schema.Cert, error) {
	if err := ic.RequireSigner(0); err != nil {
		return nil, nil, err
	}
	printerAccount, printer, err := loadPrinter(ic, 1)
	if err != nil {
		return nil, nil, err
	}
	if err := hasOne(ic, 0, "authority", printer.Authority); err != nil {
		return nil, nil, err
	}
	certAccount, cert, err := loadCert(ic, 2)
	if err != nil {
		return nil, nil, err
	}
	if cert.Printer != printerAccount.Address {
		return nil, nil, ErrConstraintHasOne.Withf("cert belongs to printer %s", cert.Printer)
	}
	return certAccount, cert, nil
}

func storeCert(ic *ledger.InvokeContext, account *ledger.Account, cert *schema.Cert) error {
	account.Data = cert.Marshal()
	return ic.Store(2, account)
}

func setCertState(ic *ledger.InvokeContext, args []byte) error {
	state := schema.CertState(args[0])
	if !state.Valid() {
		return ErrInstructionDidNotDeserialize.Withf("unknown cert state %d", args[0])
	}
	if err := guard.ValidateState(state); err != nil {
		return ErrUninitializedCert
	}
	account, cert, err := loadCertAdmin(ic)
	if err != nil {
		return err
	}
	cert.State = state
	return storeCert(ic, account, cert)
}

func setCertFee(ic *ledger.InvokeContext, args []byte) error {
	fee := binary.LittleEndian.Uint64(args)
	if err := guard.ValidateFee(fee); err != nil {
		return ErrInvalidFee.Withf("%v", err)
	}
	account, cert, err := loadCertAdmin(ic)
	if err != nil {
		return err
	}
	cert.Fee = fee
	return storeCert(ic, account, cert)
}

// accounts [authority, printer, cert, secure_token, taxman, taxman_authority,
// system, token, associated token]
func setCertTaxman(ic *ledger.InvokeContext, _ []byte) error {
	account, cert, err := loadCertAdmin(ic)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 3, "secure_token", cert.SecureToken); err != nil {
		return err
	}
	authority, _ := ic.Address(0)
	taxmanAuthority, err := ic.Address(5)
	if err != nil {
		return err
	}
	if err := ensureAssociated(ic, 4, authority, taxmanAuthority, cert.SecureToken); err != nil {
		return err
	}
	cert.Taxman, _ = ic.Address(4)
	return storeCert(ic, account, cert)
}

// accounts [authority, printer, new_authority]
func transferAuthority(ic *ledger.InvokeContext, _ []byte) error {
	if err := ic.RequireSigner(0); err != nil {
		return err
	}
	account, printer, err := loadPrinter(ic, 1)
	if err != nil {
		return err
	}
	if err := hasOne(ic, 0, "authority", printer.Authority); err != nil {
		return err
	}
	newAuthority, err := ic.Address(2)
	if err != nil {
		return err
	}
	printer.Authority = newAuthority
	account.Data = printer.Marshal()
	return ic.Store(1, account)
}
