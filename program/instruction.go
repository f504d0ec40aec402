package program

import (
	"encoding/binary"
	"fmt"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/derive"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/schema"
)

// Instruction names. Each instruction's data starts with the discriminator of its name.
const (
	InstructionInitializePrinter = "initialize_printer"
	InstructionInitializeCert    = "initialize_cert"
	InstructionInitializeCheque  = "initialize_cheque"
	InstructionPrint             = "print"
	InstructionBurn              = "burn"
	InstructionSetCertState      = "set_cert_state"
	InstructionSetCertFee        = "set_cert_fee"
	InstructionSetCertTaxman     = "set_cert_taxman"
	InstructionTransferAuthority = "transfer_authority"
)

// CertKey names a cert by its printer and secure token, with the printer's
// stable token that most instructions also reference.
type CertKey struct {
	Printer     common.Address
	StableToken common.Address
	SecureToken common.Address
}

func instructionData(name string, args ...any) []byte {
	discriminator := schema.InstructionDiscriminator(name)
	data := append([]byte{}, discriminator[:]...)
	for _, arg := range args {
		switch v := arg.(type) {
		case uint8:
			data = append(data, v)
		case uint64:
			data = binary.LittleEndian.AppendUint64(data, v)
		default:
			panic(fmt.Sprintf("unsupported instruction argument %T", arg))
		}
	}
	return data
}

func newInstruction(programID common.Address, name string, accounts []ledger.AccountMeta, args ...any) ledger.Instruction {
	return ledger.Instruction{ProgramID: programID, Accounts: accounts, Data: instructionData(name, args...)}
}

// InitializePrinter creates the stable token mint and the printer record.
// Both stableToken and printer are new accounts and must sign.
func InitializePrinter(programID, printer, stableToken, authority common.Address, decimals uint8) (ledger.Instruction, error) {
	treasurer, _, err := derive.TreasurerAddress(stableToken, programID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionInitializePrinter, []ledger.AccountMeta{
		ledger.Signer(stableToken),
		ledger.Signer(authority),
		ledger.Readonly(treasurer),
		ledger.Signer(printer),
		ledger.Readonly(native.SystemProgramID),
		ledger.Readonly(native.TokenProgramID),
	}, decimals), nil
}

// InitializeCert creates the cert for key. taxman is the token account that
// collects burn fees and must hold the secure token.
func InitializeCert(programID common.Address, key CertKey, authority, taxman common.Address, price, fee uint64) (ledger.Instruction, error) {
	cert, _, err := derive.CertAddress(key.Printer, key.SecureToken, programID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionInitializeCert, []ledger.AccountMeta{
		ledger.Readonly(key.StableToken),
		ledger.Readonly(key.SecureToken),
		ledger.Signer(authority),
		ledger.Readonly(key.Printer),
		ledger.Writable(cert),
		ledger.Readonly(taxman),
		ledger.Readonly(native.SystemProgramID),
	}, price, fee), nil
}

// InitializeCheque creates owner's cheque for the cert of key.
func InitializeCheque(programID common.Address, key CertKey, owner common.Address) (ledger.Instruction, error) {
	cert, _, err := derive.CertAddress(key.Printer, key.SecureToken, programID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	cheque, _, err := derive.ChequeAddress(key.Printer, key.SecureToken, owner, programID)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionInitializeCheque, []ledger.AccountMeta{
		ledger.Readonly(key.StableToken),
		ledger.Readonly(key.SecureToken),
		ledger.Signer(owner),
		ledger.Readonly(key.Printer),
		ledger.Readonly(cert),
		ledger.Writable(cheque),
		ledger.Readonly(native.SystemProgramID),
	}), nil
}

// conversionAccounts are the accounts shared by print and burn.
type conversionAccounts struct {
	treasurer common.Address
	treasury  common.Address
	stable    common.Address // owner's stable token account
	secure    common.Address // owner's secure token account
	cert      common.Address
	cheque    common.Address
}

func deriveConversionAccounts(programID common.Address, key CertKey, owner common.Address) (*conversionAccounts, error) {
	var (
		accounts conversionAccounts
		err      error
	)
	if accounts.treasurer, _, err = derive.TreasurerAddress(key.StableToken, programID); err != nil {
		return nil, err
	}
	if accounts.treasury, _, err = native.FindAssociatedTokenAddress(accounts.treasurer, key.SecureToken); err != nil {
		return nil, err
	}
	if accounts.stable, _, err = native.FindAssociatedTokenAddress(owner, key.StableToken); err != nil {
		return nil, err
	}
	if accounts.secure, _, err = native.FindAssociatedTokenAddress(owner, key.SecureToken); err != nil {
		return nil, err
	}
	if accounts.cert, _, err = derive.CertAddress(key.Printer, key.SecureToken, programID); err != nil {
		return nil, err
	}
	if accounts.cheque, _, err = derive.ChequeAddress(key.Printer, key.SecureToken, owner, programID); err != nil {
		return nil, err
	}
	return &accounts, nil
}

// Print deposits amount secure tokens from owner into the treasury and mints
// the stable equivalent to owner.
func Print(programID common.Address, key CertKey, owner common.Address, amount uint64) (ledger.Instruction, error) {
	accounts, err := deriveConversionAccounts(programID, key, owner)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionPrint, []ledger.AccountMeta{
		ledger.Writable(key.StableToken),
		ledger.Readonly(key.SecureToken),
		ledger.Signer(owner),
		ledger.Readonly(accounts.treasurer),
		ledger.Writable(accounts.treasury),
		ledger.Writable(accounts.secure),
		ledger.Writable(accounts.stable),
		ledger.Readonly(key.Printer),
		ledger.Readonly(accounts.cert),
		ledger.Writable(accounts.cheque),
		ledger.Readonly(native.SystemProgramID),
		ledger.Readonly(native.TokenProgramID),
		ledger.Readonly(native.AssociatedTokenProgramID),
	}, amount), nil
}

// Burn destroys amount stable tokens of owner and releases the secure
// equivalent from the treasury, less the fee paid to taxman.
func Burn(programID common.Address, key CertKey, owner, taxman common.Address, amount uint64) (ledger.Instruction, error) {
	accounts, err := deriveConversionAccounts(programID, key, owner)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionBurn, []ledger.AccountMeta{
		ledger.Writable(key.StableToken),
		ledger.Readonly(key.SecureToken),
		ledger.Signer(owner),
		ledger.Readonly(accounts.treasurer),
		ledger.Writable(accounts.treasury),
		ledger.Writable(accounts.stable),
		ledger.Writable(accounts.secure),
		ledger.Readonly(key.Printer),
		ledger.Readonly(accounts.cert),
		ledger.Writable(accounts.cheque),
		ledger.Writable(taxman),
		ledger.Readonly(native.SystemProgramID),
		ledger.Readonly(native.TokenProgramID),
		ledger.Readonly(native.AssociatedTokenProgramID),
	}, amount), nil
}

func certAdminAccounts(programID common.Address, key CertKey, authority common.Address) ([]ledger.AccountMeta, error) {
	cert, _, err := derive.CertAddress(key.Printer, key.SecureToken, programID)
	if err != nil {
		return nil, err
	}
	return []ledger.AccountMeta{
		ledger.Signer(authority),
		ledger.Readonly(key.Printer),
		ledger.Writable(cert),
	}, nil
}

// SetCertState sets the state of the cert of key.
func SetCertState(programID common.Address, key CertKey, authority common.Address, state schema.CertState) (ledger.Instruction, error) {
	accounts, err := certAdminAccounts(programID, key, authority)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionSetCertState, accounts, uint8(state)), nil
}

// SetCertFee sets the burn fee of the cert of key.
func SetCertFee(programID common.Address, key CertKey, authority common.Address, fee uint64) (ledger.Instruction, error) {
	accounts, err := certAdminAccounts(programID, key, authority)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return newInstruction(programID, InstructionSetCertFee, accounts, fee), nil
}

// SetCertTaxman points the cert's fees at the secure token account of
// taxmanAuthority, creating it if needed. It returns that account.
func SetCertTaxman(programID common.Address, key CertKey, authority, taxmanAuthority common.Address) (ledger.Instruction, common.Address, error) {
	accounts, err := certAdminAccounts(programID, key, authority)
	if err != nil {
		return ledger.Instruction{}, common.ZeroAddress, err
	}
	taxman, _, err := native.FindAssociatedTokenAddress(taxmanAuthority, key.SecureToken)
	if err != nil {
		return ledger.Instruction{}, common.ZeroAddress, err
	}
	accounts = append(accounts,
		ledger.Readonly(key.SecureToken),
		ledger.Writable(taxman),
		ledger.Readonly(taxmanAuthority),
		ledger.Readonly(native.SystemProgramID),
		ledger.Readonly(native.TokenProgramID),
		ledger.Readonly(native.AssociatedTokenProgramID),
	)
	return newInstruction(programID, InstructionSetCertTaxman, accounts), taxman, nil
}

// TransferAuthority hands the printer to newAuthority.
func TransferAuthority(programID, printer, authority, newAuthority common.Address) ledger.Instruction {
	return newInstruction(programID, InstructionTransferAuthority, []ledger.AccountMeta{
		ledger.Signer(authority),
		ledger.Writable(printer),
		ledger.Readonly(newAuthority),
	})
}
