package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
)

var TokenProgramID = common.MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

const (
	// MintSize is mint_authority option, mint_authority, supply, decimals, is_initialized, freeze_authority option, freeze_authority.
	MintSize = 1 + 32 + 8 + 1 + 1 + 1 + 32
	// TokenAccountSize is mint, owner, amount, state.
	TokenAccountSize = 32 + 32 + 8 + 1
)

const (
	tokenInitializeMint    byte = 0
	tokenInitializeAccount byte = 1
	tokenTransfer          byte = 3
	tokenMintTo            byte = 7
	tokenBurn              byte = 8
)

var (
	ErrInsufficientFunds   = ledger.NewCustomError(1, "InsufficientFunds", "insufficient funds")
	ErrInvalidMint         = ledger.NewCustomError(2, "InvalidMint", "invalid mint")
	ErrMintMismatch        = ledger.NewCustomError(3, "MintMismatch", "account not associated with this mint")
	ErrOwnerMismatch       = ledger.NewCustomError(4, "OwnerMismatch", "owner does not match")
	ErrFixedSupply         = ledger.NewCustomError(5, "FixedSupply", "this token's supply is fixed and new tokens cannot be minted")
	ErrTokenAlreadyInUse   = ledger.NewCustomError(6, "AlreadyInUse", "the account cannot be initialized because it is already being used")
	ErrUninitializedState  = ledger.NewCustomError(9, "UninitializedState", "state is uninitialized")
	ErrTokenOverflow       = ledger.NewCustomError(14, "Overflow", "operation overflowed")
	ErrNotTokenProgramData = ledger.NewCustomError(18, "NotTokenAccount", "account is not owned by the token program")
)

// Mint is the supply and authorities of one token.
type Mint struct {
	MintAuthority   *common.Address
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *common.Address
}

func putOptionalAddress(b []byte, address *common.Address) {
	if address == nil {
		return
	}
	b[0] = 1
	copy(b[1:33], address[:])
}

func optionalAddress(b []byte) *common.Address {
	if b[0] == 0 {
		return nil
	}
	address := common.Address(b[1:33])
	return &address
}

func (m *Mint) Marshal() []byte {
	data := make([]byte, MintSize)
	putOptionalAddress(data[0:33], m.MintAuthority)
	binary.LittleEndian.PutUint64(data[33:41], m.Supply)
	data[41] = m.Decimals
	if m.IsInitialized {
		data[42] = 1
	}
	putOptionalAddress(data[43:76], m.FreezeAuthority)
	return data
}

func UnmarshalMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("mint must be %d bytes, got %d", MintSize, len(data))
	}
	return &Mint{
		MintAuthority:   optionalAddress(data[0:33]),
		Supply:          binary.LittleEndian.Uint64(data[33:41]),
		Decimals:        data[41],
		IsInitialized:   data[42] == 1,
		FreezeAuthority: optionalAddress(data[43:76]),
	}, nil
}

// TokenAccount is one owner's balance of one mint.
type TokenAccount struct {
	Mint          common.Address
	Owner         common.Address
	Amount        uint64
	IsInitialized bool
}

func (a *TokenAccount) Marshal() []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	if a.IsInitialized {
		data[72] = 1
	}
	return data
}

func UnmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("token account must be %d bytes, got %d", TokenAccountSize, len(data))
	}
	return &TokenAccount{
		Mint:          common.Address(data[0:32]),
		Owner:         common.Address(data[32:64]),
		Amount:        binary.LittleEndian.Uint64(data[64:72]),
		IsInitialized: data[72] == 1,
	}, nil
}

// TokenProgram keeps balances and supply for every mint.
type TokenProgram struct{}

func (TokenProgram) ID() common.Address { return TokenProgramID }

func (TokenProgram) Name() string { return "token" }

func (TokenProgram) Process(ic *ledger.InvokeContext, data []byte) error {
	if len(data) == 0 {
		return ledger.ErrInvalidInstructionData
	}
	switch data[0] {
	case tokenInitializeMint:
		if len(data) != 1+1+33+33 {
			return ledger.ErrInvalidInstructionData.Withf("initialize mint data is %d bytes", len(data))
		}
		return initializeMint(ic, data[1], optionalAddress(data[2:35]), optionalAddress(data[35:68]))
	case tokenInitializeAccount:
		return initializeAccount(ic)
	case tokenTransfer, tokenMintTo, tokenBurn:
		if len(data) != 9 {
			return ledger.ErrInvalidInstructionData.Withf("amount instruction data is %d bytes", len(data))
		}
		amount := binary.LittleEndian.Uint64(data[1:9])
		switch data[0] {
		case tokenTransfer:
			return transfer(ic, amount)
		case tokenMintTo:
			return mintTo(ic, amount)
		default:
			return burn(ic, amount)
		}
	default:
		return ledger.ErrInvalidInstructionData.Withf("unknown token instruction %d", data[0])
	}
}

func loadOwned(ic *ledger.InvokeContext, i int) (*ledger.Account, error) {
	account, err := ic.Load(i)
	if err != nil {
		return nil, err
	}
	if account.Owner != TokenProgramID {
		return nil, ErrNotTokenProgramData.Withf("account %s is owned by %s", account.Address, account.Owner)
	}
	return account, nil
}

func loadMint(ic *ledger.InvokeContext, i int) (*ledger.Account, *Mint, error) {
	account, err := loadOwned(ic, i)
	if err != nil {
		return nil, nil, err
	}
	mint, err := UnmarshalMint(account.Data)
	if err != nil {
		return nil, nil, ErrInvalidMint.Withf("%v", err)
	}
	if !mint.IsInitialized {
		return nil, nil, ErrUninitializedState.Withf("mint %s is not initialized", account.Address)
	}
	return account, mint, nil
}

func loadTokenAccount(ic *ledger.InvokeContext, i int) (*ledger.Account, *TokenAccount, error) {
	account, err := loadOwned(ic, i)
	if err != nil {
		return nil, nil, err
	}
	tokenAccount, err := UnmarshalTokenAccount(account.Data)
	if err != nil {
		return nil, nil, ledger.ErrInvalidAccountData.Withf("%v", err)
	}
	if !tokenAccount.IsInitialized {
		return nil, nil, ErrUninitializedState.Withf("token account %s is not initialized", account.Address)
	}
	return account, tokenAccount, nil
}

func requireAuthority(ic *ledger.InvokeContext, i int, expected common.Address) error {
	authority, err := ic.Address(i)
	if err != nil {
		return err
	}
	if authority != expected {
		return ErrOwnerMismatch.Withf("authority is %s, expected %s", authority, expected)
	}
	return ic.RequireSigner(i)
}

// accounts [mint]
func initializeMint(ic *ledger.InvokeContext, decimals uint8, mintAuthority, freezeAuthority *common.Address) error {
	account, err := loadOwned(ic, 0)
	if err != nil {
		return err
	}
	if len(account.Data) != MintSize {
		return ErrInvalidMint.Withf("mint account is %d bytes", len(account.Data))
	}
	if account.Data[42] == 1 {
		return ErrTokenAlreadyInUse
	}
	mint := &Mint{MintAuthority: mintAuthority, Decimals: decimals, IsInitialized: true, FreezeAuthority: freezeAuthority}
	account.Data = mint.Marshal()
	return ic.Store(0, account)
}

// accounts [account, mint, owner]
func initializeAccount(ic *ledger.InvokeContext) error {
	account, err := loadOwned(ic, 0)
	if err != nil {
		return err
	}
	if len(account.Data) != TokenAccountSize {
		return ledger.ErrInvalidAccountData.Withf("token account is %d bytes", len(account.Data))
	}
	if account.Data[72] == 1 {
		return ErrTokenAlreadyInUse
	}
	mintAccount, _, err := loadMint(ic, 1)
	if err != nil {
		return err
	}
	owner, err := ic.Address(2)
	if err != nil {
		return err
	}
	tokenAccount := &TokenAccount{Mint: mintAccount.Address, Owner: owner, IsInitialized: true}
	account.Data = tokenAccount.Marshal()
	return ic.Store(0, account)
}

// accounts [source, destination, authority]
func transfer(ic *ledger.InvokeContext, amount uint64) error {
	sourceAccount, source, err := loadTokenAccount(ic, 0)
	if err != nil {
		return err
	}
	destinationAccount, destination, err := loadTokenAccount(ic, 1)
	if err != nil {
		return err
	}
	if source.Mint != destination.Mint {
		return ErrMintMismatch
	}
	if err := requireAuthority(ic, 2, source.Owner); err != nil {
		return err
	}
	if source.Amount < amount {
		return ErrInsufficientFunds.Withf("balance %d is less than %d", source.Amount, amount)
	}
	if sourceAccount.Address == destinationAccount.Address {
		return nil
	}
	if destination.Amount > math.MaxUint64-amount {
		return ErrTokenOverflow
	}
	source.Amount -= amount
	destination.Amount += amount
	sourceAccount.Data = source.Marshal()
	destinationAccount.Data = destination.Marshal()
	if err := ic.Store(0, sourceAccount); err != nil {
		return err
	}
	return ic.Store(1, destinationAccount)
}

// accounts [mint, destination, mint authority]
func mintTo(ic *ledger.InvokeContext, amount uint64) error {
	mintAccount, mint, err := loadMint(ic, 0)
	if err != nil {
		return err
	}
	destinationAccount, destination, err := loadTokenAccount(ic, 1)
	if err != nil {
		return err
	}
	if destination.Mint != mintAccount.Address {
		return ErrMintMismatch
	}
	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := requireAuthority(ic, 2, *mint.MintAuthority); err != nil {
		return err
	}
	if mint.Supply > math.MaxUint64-amount || destination.Amount > math.MaxUint64-amount {
		return ErrTokenOverflow
	}
	mint.Supply += amount
	destination.Amount += amount
	mintAccount.Data = mint.Marshal()
	destinationAccount.Data = destination.Marshal()
	if err := ic.Store(0, mintAccount); err != nil {
		return err
	}
	return ic.Store(1, destinationAccount)
}

// accounts [account, mint, owner]
func burn(ic *ledger.InvokeContext, amount uint64) error {
	sourceAccount, source, err := loadTokenAccount(ic, 0)
	if err != nil {
		return err
	}
	mintAccount, mint, err := loadMint(ic, 1)
	if err != nil {
		return err
	}
	if source.Mint != mintAccount.Address {
		return ErrMintMismatch
	}
	if err := requireAuthority(ic, 2, source.Owner); err != nil {
		return err
	}
	if source.Amount < amount {
		return ErrInsufficientFunds.Withf("balance %d is less than %d", source.Amount, amount)
	}
	source.Amount -= amount
	mint.Supply -= amount
	sourceAccount.Data = source.Marshal()
	mintAccount.Data = mint.Marshal()
	if err := ic.Store(0, sourceAccount); err != nil {
		return err
	}
	return ic.Store(1, mintAccount)
}

// InitializeMint sets up a mint account created with MintSize bytes.
func InitializeMint(mint common.Address, decimals uint8, mintAuthority common.Address, freezeAuthority *common.Address) ledger.Instruction {
	data := make([]byte, 1+1+33+33)
	data[0] = tokenInitializeMint
	data[1] = decimals
	putOptionalAddress(data[2:35], &mintAuthority)
	putOptionalAddress(data[35:68], freezeAuthority)
	return ledger.Instruction{
		ProgramID: TokenProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(mint)},
		Data:      data,
	}
}

// InitializeAccount sets up a token account created with TokenAccountSize bytes.
func InitializeAccount(account, mint, owner common.Address) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: TokenProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(account), ledger.Readonly(mint), ledger.Readonly(owner)},
		Data:      []byte{tokenInitializeAccount},
	}
}

func amountInstruction(tag byte, amount uint64, accounts ...ledger.AccountMeta) ledger.Instruction {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return ledger.Instruction{ProgramID: TokenProgramID, Accounts: accounts, Data: data}
}

func authorityMeta(authority common.Address) ledger.AccountMeta {
	return ledger.AccountMeta{Address: authority, IsSigner: true}
}

// Transfer moves amount from source to destination, signed by the source owner.
func Transfer(source, destination, authority common.Address, amount uint64) ledger.Instruction {
	return amountInstruction(tokenTransfer, amount,
		ledger.Writable(source), ledger.Writable(destination), authorityMeta(authority))
}

// MintTo creates amount new tokens in destination, signed by the mint authority.
func MintTo(mint, destination, authority common.Address, amount uint64) ledger.Instruction {
	return amountInstruction(tokenMintTo, amount,
		ledger.Writable(mint), ledger.Writable(destination), authorityMeta(authority))
}

// Burn destroys amount tokens held by account, signed by its owner.
func Burn(account, mint, authority common.Address, amount uint64) ledger.Instruction {
	return amountInstruction(tokenBurn, amount,
		ledger.Writable(account), ledger.Writable(mint), authorityMeta(authority))
}
