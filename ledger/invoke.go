package ledger

import (
	"context"
	"errors"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
)

// MaxInvokeDepth bounds nested cross-program invocation.
const MaxInvokeDepth = 4

// Program executes instructions addressed to its ID.
type Program interface {
	ID() common.Address
	Name() string
	Process(ic *InvokeContext, data []byte) error
}

// InvokeContext is a program's view of the accounts of the instruction it is
// executing. Account indices follow the instruction's account list.
type InvokeContext struct {
	ctx       context.Context
	exec      *executor
	programID common.Address
	accounts  []AccountMeta
	depth     int
}

func (ic *InvokeContext) Context() context.Context {
	return ic.ctx
}

// ProgramID is the program currently executing.
func (ic *InvokeContext) ProgramID() common.Address {
	return ic.programID
}

// NumAccounts is the number of accounts passed to the instruction.
func (ic *InvokeContext) NumAccounts() int {
	return len(ic.accounts)
}

// Meta returns the i-th account reference.
func (ic *InvokeContext) Meta(i int) (AccountMeta, error) {
	if i < 0 || i >= len(ic.accounts) {
		return AccountMeta{}, ErrNotEnoughAccountKeys.Withf("instruction needs account %d but has %d", i, len(ic.accounts))
	}
	return ic.accounts[i], nil
}

// Address returns the address of the i-th account.
func (ic *InvokeContext) Address(i int) (common.Address, error) {
	meta, err := ic.Meta(i)
	return meta.Address, err
}

// IsSigner reports whether the i-th account signed the instruction, either
// directly or as a derived address of the invoking program.
func (ic *InvokeContext) IsSigner(i int) bool {
	meta, err := ic.Meta(i)
	return err == nil && meta.IsSigner
}

// RequireSigner fails unless the i-th account signed.
func (ic *InvokeContext) RequireSigner(i int) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	if !meta.IsSigner {
		return ErrMissingRequiredSignature.Withf("account %s must sign", meta.Address)
	}
	return nil
}

// Load returns a copy of the i-th account. An address with no stored state is
// returned as an empty system account.
func (ic *InvokeContext) Load(i int) (*Account, error) {
	meta, err := ic.Meta(i)
	if err != nil {
		return nil, err
	}
	return ic.exec.load(ic.ctx, meta.Address)
}

// Store replaces the i-th account. The instruction must mark it writable and
// the program must own it.
func (ic *InvokeContext) Store(i int, account *Account) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	if account.Address != meta.Address {
		return ErrInvalidArgument.Withf("account %d is %s, not %s", i, meta.Address, account.Address)
	}
	current, err := ic.exec.load(ic.ctx, meta.Address)
	if err != nil {
		return err
	}
	if current.Equal(account) {
		return nil
	}
	if !meta.IsWritable {
		return ErrReadonlyDataModified.Withf("account %s is read-only", meta.Address)
	}
	if current.Owner != ic.programID {
		return ErrExternalAccountDataModified.Withf("account %s is owned by %s", meta.Address, current.Owner)
	}
	if account.Owner != current.Owner && len(current.Data) > 0 {
		return ErrModifiedProgramID.Withf("account %s already holds data", meta.Address)
	}
	ic.exec.store(ic.ctx, account)
	return nil
}

// Invoke executes ix as a nested call. Each seed set signs for the address it
// derives under the calling program.
func (ic *InvokeContext) Invoke(ix Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}
	derived := make(map[common.Address]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		address, err := common.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return ErrInvalidSeeds.Withf("%v", err)
		}
		derived[address] = true
	}

	granted := make(map[common.Address]AccountMeta, len(ic.accounts))
	for _, meta := range ic.accounts {
		prior := granted[meta.Address]
		granted[meta.Address] = AccountMeta{
			Address:    meta.Address,
			IsSigner:   prior.IsSigner || meta.IsSigner,
			IsWritable: prior.IsWritable || meta.IsWritable,
		}
	}
	for _, meta := range ix.Accounts {
		caller, ok := granted[meta.Address]
		if !ok {
			return ErrNotEnoughAccountKeys.Withf("account %s is not available to the caller", meta.Address)
		}
		if meta.IsSigner && !caller.IsSigner && !derived[meta.Address] {
			return ErrPrivilegeEscalation.Withf("account %s did not sign", meta.Address)
		}
		if meta.IsWritable && !caller.IsWritable {
			return ErrPrivilegeEscalation.Withf("account %s is read-only", meta.Address)
		}
	}
	return ic.exec.execute(ic.ctx, ix, ic.depth+1)
}

// executor applies instructions to a write set layered over the store.
type executor struct {
	ledger  *Ledger
	loaded  map[common.Address]*Account
	written map[common.Address]bool
}

func newExecutor(l *Ledger) *executor {
	return &executor{
		ledger:  l,
		loaded:  make(map[common.Address]*Account),
		written: make(map[common.Address]bool),
	}
}

func (e *executor) load(ctx context.Context, address common.Address) (*Account, error) {
	if account, ok := e.loaded[address]; ok {
		return account.Clone(), nil
	}
	account, err := e.ledger.store.GetAccount(ctx, address)
	if errors.Is(err, ErrAccountNotFound) {
		account = emptyAccount(address)
	} else if err != nil {
		return nil, err
	}
	logging.ObserveRead(ctx, e.ledger.kindOf(account.Owner))
	e.loaded[address] = account
	return account.Clone(), nil
}

func (e *executor) store(ctx context.Context, account *Account) {
	logging.ObserveWrite(ctx, e.ledger.kindOf(account.Owner))
	e.loaded[account.Address] = account.Clone()
	e.written[account.Address] = true
}

// writes returns the modified accounts ordered by address.
func (e *executor) writes() []*Account {
	writes := make([]*Account, 0, len(e.written))
	for _, address := range common.SortedAddresses(e.written) {
		writes = append(writes, e.loaded[address].Clone())
	}
	return writes
}

// execute runs one instruction. A failure is reported as an *InstructionError
// naming the innermost program that raised it.
func (e *executor) execute(ctx context.Context, ix Instruction, depth int) error {
	program, ok := e.ledger.programs[ix.ProgramID]
	if !ok {
		return &InstructionError{Program: ix.ProgramID, Err: ErrUnknownProgram.Withf("program %s is not registered", ix.ProgramID)}
	}
	ic := &InvokeContext{
		ctx:       ctx,
		exec:      e,
		programID: program.ID(),
		accounts:  ix.Accounts,
		depth:     depth,
	}
	err := program.Process(ic, ix.Data)
	if err == nil {
		return nil
	}
	var nested *InstructionError
	if errors.As(err, &nested) {
		return nested
	}
	return &InstructionError{Program: program.ID(), Err: toProgramError(err)}
}
