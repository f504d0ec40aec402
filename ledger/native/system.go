// Package native holds the programs every ledger runs: account creation,
// tokens, and associated token accounts.
package native

import (
	"encoding/binary"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// MaxAccountSize bounds the data of a new account.
const MaxAccountSize = 10 * 1024 * 1024

var SystemProgramID = ledger.SystemProgramID

const systemCreateAccount uint32 = 0

var (
	ErrAccountAlreadyInUse      = ledger.NewCustomError(0, "AccountAlreadyInUse", "an account with the same address already exists")
	ErrInvalidAccountDataLength = ledger.NewCustomError(3, "InvalidAccountDataLength", "requested account data length is too large")
)

// SystemProgram creates accounts and assigns them to their owning program.
type SystemProgram struct{}

func (SystemProgram) ID() common.Address { return SystemProgramID }

func (SystemProgram) Name() string { return "system" }

// Process handles CreateAccount: accounts [payer, new account], both signing.
func (SystemProgram) Process(ic *ledger.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return ledger.ErrInvalidInstructionData
	}
	switch binary.LittleEndian.Uint32(data) {
	case systemCreateAccount:
		if len(data) != 4+8+32 {
			return ledger.ErrInvalidInstructionData.Withf("create account data is %d bytes", len(data))
		}
		space := binary.LittleEndian.Uint64(data[4:12])
		owner := common.Address(data[12:44])
		return createAccount(ic, space, owner)
	default:
		return ledger.ErrInvalidInstructionData.Withf("unknown system instruction")
	}
}

func createAccount(ic *ledger.InvokeContext, space uint64, owner common.Address) error {
	if err := ic.RequireSigner(0); err != nil {
		return err
	}
	if err := ic.RequireSigner(1); err != nil {
		return err
	}
	account, err := ic.Load(1)
	if err != nil {
		return err
	}
	if !account.IsEmpty() {
		return ErrAccountAlreadyInUse.Withf("account %s already in use", account.Address)
	}
	if space > MaxAccountSize {
		return ErrInvalidAccountDataLength.Withf("requested %d bytes", space)
	}
	account.Owner = owner
	account.Data = make([]byte, space)
	return ic.Store(1, account)
}

// CreateAccount allocates space bytes at newAccount and assigns it to owner.
func CreateAccount(payer, newAccount common.Address, space uint64, owner common.Address) ledger.Instruction {
	data := make([]byte, 4+8+32)
	binary.LittleEndian.PutUint32(data, systemCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], space)
	copy(data[12:], owner[:])
	return ledger.Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Signer(payer), ledger.Signer(newAccount)},
		Data:      data,
	}
}

// Programs returns the native programs.
func Programs() []ledger.Program {
	return []ledger.Program{SystemProgram{}, TokenProgram{}, AssociatedTokenProgram{}}
}
