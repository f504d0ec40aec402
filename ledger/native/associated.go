package native

import (
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
)

var AssociatedTokenProgramID = common.MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

const (
	associatedCreate           byte = 0
	associatedCreateIdempotent byte = 1
)

var ErrInvalidOwner = ledger.NewCustomError(0, "InvalidOwner", "associated token account owner does not match address derivation")

// FindAssociatedTokenAddress returns the canonical token account of owner for mint.
func FindAssociatedTokenAddress(owner, mint common.Address) (common.Address, uint8, error) {
	return common.FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
}

// AssociatedTokenProgram creates token accounts at addresses derived from
// their owner and mint.
type AssociatedTokenProgram struct{}

func (AssociatedTokenProgram) ID() common.Address { return AssociatedTokenProgramID }

func (AssociatedTokenProgram) Name() string { return "associated_token" }

// Process handles Create and CreateIdempotent: accounts [payer, associated
// account, owner, mint, system program, token program].
func (AssociatedTokenProgram) Process(ic *ledger.InvokeContext, data []byte) error {
	idempotent := false
	switch {
	case len(data) == 0 || data[0] == associatedCreate:
	case data[0] == associatedCreateIdempotent:
		idempotent = true
	default:
		return ledger.ErrInvalidInstructionData.Withf("unknown associated token instruction %d", data[0])
	}

	payer, err := ic.Address(0)
	if err != nil {
		return err
	}
	associated, err := ic.Load(1)
	if err != nil {
		return err
	}
	owner, err := ic.Address(2)
	if err != nil {
		return err
	}
	mint, err := ic.Address(3)
	if err != nil {
		return err
	}

	expected, bump, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return ledger.ErrInvalidSeeds.Withf("%v", err)
	}
	if expected != associated.Address {
		return ledger.ErrInvalidSeeds.Withf("associated address for %s and mint %s is %s", owner, mint, expected)
	}

	if idempotent && associated.Owner == TokenProgramID {
		existing, err := UnmarshalTokenAccount(associated.Data)
		if err != nil {
			return ledger.ErrInvalidAccountData.Withf("%v", err)
		}
		if existing.Owner != owner {
			return ErrInvalidOwner
		}
		if existing.Mint != mint {
			return ErrMintMismatch
		}
		return nil
	}

	seeds := [][]byte{owner[:], TokenProgramID[:], mint[:], {bump}}
	if err := ic.Invoke(CreateAccount(payer, associated.Address, TokenAccountSize, TokenProgramID), seeds); err != nil {
		return err
	}
	return ic.Invoke(InitializeAccount(associated.Address, mint, owner))
}

func associatedInstruction(tag byte, payer, owner, mint common.Address) (ledger.Instruction, common.Address, error) {
	associated, _, err := FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return ledger.Instruction{}, common.ZeroAddress, err
	}
	return ledger.Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Signer(payer),
			ledger.Writable(associated),
			ledger.Readonly(owner),
			ledger.Readonly(mint),
			ledger.Readonly(SystemProgramID),
			ledger.Readonly(TokenProgramID),
		},
		Data: []byte{tag},
	}, associated, nil
}

// CreateAssociatedTokenAccount creates the account and fails if it exists.
func CreateAssociatedTokenAccount(payer, owner, mint common.Address) (ledger.Instruction, common.Address, error) {
	return associatedInstruction(associatedCreate, payer, owner, mint)
}

// CreateAssociatedTokenAccountIdempotent creates the account unless it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint common.Address) (ledger.Instruction, common.Address, error) {
	return associatedInstruction(associatedCreateIdempotent, payer, owner, mint)
}
