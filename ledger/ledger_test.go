package ledger_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/ledger/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var probeID = common.Address{9, 9, 9}

// probe runs fn for every instruction addressed to it.
type probe struct {
	fn func(ic *ledger.InvokeContext, data []byte) error
}

func (p *probe) ID() common.Address { return probeID }

func (p *probe) Name() string { return "probe" }

func (p *probe) Process(ic *ledger.InvokeContext, data []byte) error {
	return p.fn(ic, data)
}

func newLedger(t *testing.T, programs ...ledger.Program) (*ledger.Ledger, ledger.Store) {
	s := store.NewMemoryStore()
	l := ledger.New(s, append(native.Programs(), programs...))
	t.Cleanup(func() { _ = l.Close() })
	return l, s
}

func newKeypair(t *testing.T) *common.Keypair {
	kp, err := common.NewKeypair()
	require.NoError(t, err)
	return kp
}

func send(t *testing.T, l *ledger.Ledger, signers []common.Signer, ixs ...ledger.Instruction) (string, error) {
	tx := ledger.NewTransaction(ixs...)
	require.NoError(t, tx.Sign(signers...))
	return l.Submit(context.Background(), tx)
}

func createMint(payer, mint, authority common.Address) []ledger.Instruction {
	return []ledger.Instruction{
		native.CreateAccount(payer, mint, native.MintSize, native.TokenProgramID),
		native.InitializeMint(mint, 6, authority, nil),
	}
}

func TestTransactionCodec(t *testing.T) {
	payer, mint := newKeypair(t), newKeypair(t)
	tx := ledger.NewTransaction(createMint(payer.Address(), mint.Address(), payer.Address())...)
	require.NoError(t, tx.Sign(payer, mint))
	require.NoError(t, tx.Verify())

	decoded, err := ledger.UnmarshalTransaction(ledger.MarshalTransaction(tx))
	require.NoError(t, err)
	assert.Equal(t, tx.Nonce, decoded.Nonce)
	assert.Equal(t, tx.Message(), decoded.Message())
	assert.Equal(t, tx.ID(), decoded.ID())
	assert.Equal(t, []common.Address{payer.Address(), mint.Address()}, decoded.RequiredSigners())
	assert.NoError(t, decoded.Verify())

	_, err = ledger.UnmarshalTransaction([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)
}

func TestAccountCodec(t *testing.T) {
	account := &ledger.Account{Address: common.Address{1}, Owner: native.TokenProgramID, Data: []byte{1, 2, 3}}
	decoded, err := ledger.UnmarshalAccount(ledger.MarshalAccount(account))
	require.NoError(t, err)
	assert.True(t, account.Equal(decoded))
}

func TestVerify(t *testing.T) {
	payer, mint := newKeypair(t), newKeypair(t)

	t.Run("no instructions", func(t *testing.T) {
		assert.ErrorIs(t, ledger.NewTransaction().Verify(), ledger.ErrNoInstructions)
	})

	t.Run("missing signer", func(t *testing.T) {
		tx := ledger.NewTransaction(createMint(payer.Address(), mint.Address(), payer.Address())...)
		require.NoError(t, tx.Sign(payer))
		assert.ErrorIs(t, tx.Verify(), ledger.ErrSignatureVerification)
	})

	t.Run("tampered message", func(t *testing.T) {
		tx := ledger.NewTransaction(createMint(payer.Address(), mint.Address(), payer.Address())...)
		require.NoError(t, tx.Sign(payer, mint))
		tx.Instructions[1].Data[1] = 9
		assert.ErrorIs(t, tx.Verify(), ledger.ErrSignatureVerification)
	})

	t.Run("resigning replaces", func(t *testing.T) {
		tx := ledger.NewTransaction(createMint(payer.Address(), mint.Address(), payer.Address())...)
		require.NoError(t, tx.Sign(payer, mint))
		require.NoError(t, tx.Sign(payer))
		assert.Len(t, tx.Signatures, 2)
		assert.NoError(t, tx.Verify())
	})

	assert.Empty(t, ledger.NewTransaction().ID())
}

func TestSubmitCommits(t *testing.T) {
	l, _ := newLedger(t)
	payer, mint := newKeypair(t), newKeypair(t)

	id, err := send(t, l, []common.Signer{payer, mint}, createMint(payer.Address(), mint.Address(), payer.Address())...)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	account, err := l.GetAccount(context.Background(), mint.Address())
	require.NoError(t, err)
	assert.Equal(t, native.TokenProgramID, account.Owner)
	m, err := native.UnmarshalMint(account.Data)
	require.NoError(t, err)
	assert.True(t, m.IsInitialized)

	accounts, err := l.ProgramAccounts(context.Background(), native.TokenProgramID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestSubmitIsAtomic(t *testing.T) {
	l, _ := newLedger(t)
	payer, mint := newKeypair(t), newKeypair(t)

	ixs := createMint(payer.Address(), mint.Address(), payer.Address())
	ixs = append(ixs, native.InitializeMint(mint.Address(), 6, payer.Address(), nil))
	_, err := send(t, l, []common.Signer{payer, mint}, ixs...)

	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, 2, ixErr.Index)
	assert.Equal(t, native.TokenProgramID, ixErr.Program)
	assert.ErrorIs(t, err, native.ErrTokenAlreadyInUse)

	_, err = l.GetAccount(context.Background(), mint.Address())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestSubmitRejectsReplay(t *testing.T) {
	l, _ := newLedger(t)
	payer, mint := newKeypair(t), newKeypair(t)

	tx := ledger.NewTransaction(createMint(payer.Address(), mint.Address(), payer.Address())...)
	require.NoError(t, tx.Sign(payer, mint))
	_, err := l.Submit(context.Background(), tx)
	require.NoError(t, err)

	_, err = l.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
}

func TestSubmitUnknownProgram(t *testing.T) {
	l, _ := newLedger(t)
	payer := newKeypair(t)
	unknown := common.Address{7}

	_, err := send(t, l, []common.Signer{payer}, ledger.Instruction{
		ProgramID: unknown,
		Accounts:  []ledger.AccountMeta{ledger.Signer(payer.Address())},
	})
	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, unknown, ixErr.Program)
	assert.ErrorIs(t, err, ledger.ErrUnknownProgram)
}

func TestInvokeRequiresCallerPrivileges(t *testing.T) {
	payer, target := newKeypair(t), newKeypair(t)
	p := &probe{fn: func(ic *ledger.InvokeContext, _ []byte) error {
		return ic.Invoke(native.CreateAccount(payer.Address(), target.Address(), 8, probeID))
	}}
	l, _ := newLedger(t, p)

	tests := []struct {
		name     string
		accounts []ledger.AccountMeta
		want     error
	}{
		{
			name:     "unsigned new account",
			accounts: []ledger.AccountMeta{ledger.Signer(payer.Address()), ledger.Writable(target.Address()), ledger.Readonly(native.SystemProgramID)},
			want:     ledger.ErrPrivilegeEscalation,
		},
		{
			name:     "missing account",
			accounts: []ledger.AccountMeta{ledger.Signer(payer.Address()), ledger.Readonly(native.SystemProgramID)},
			want:     ledger.ErrNotEnoughAccountKeys,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := send(t, l, []common.Signer{payer}, ledger.Instruction{ProgramID: probeID, Accounts: tt.accounts})
			var ixErr *ledger.InstructionError
			require.ErrorAs(t, err, &ixErr)
			assert.Equal(t, probeID, ixErr.Program)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	ix := ledger.Instruction{ProgramID: probeID, Accounts: []ledger.AccountMeta{
		ledger.Signer(payer.Address()), ledger.Signer(target.Address()), ledger.Readonly(native.SystemProgramID),
	}}
	_, err := send(t, l, []common.Signer{payer, target}, ix)
	require.NoError(t, err)
	account, err := l.GetAccount(context.Background(), target.Address())
	require.NoError(t, err)
	assert.Equal(t, probeID, account.Owner)
	assert.Len(t, account.Data, 8)
}

func TestInvokeDerivedSigner(t *testing.T) {
	payer := newKeypair(t)
	seeds := [][]byte{[]byte("vault")}
	vault, bump, err := common.FindProgramAddress(seeds, probeID)
	require.NoError(t, err)

	p := &probe{fn: func(ic *ledger.InvokeContext, _ []byte) error {
		return ic.Invoke(native.CreateAccount(payer.Address(), vault, 4, probeID), [][]byte{[]byte("vault"), {bump}})
	}}
	l, _ := newLedger(t, p)

	_, err = send(t, l, []common.Signer{payer}, ledger.Instruction{ProgramID: probeID, Accounts: []ledger.AccountMeta{
		ledger.Signer(payer.Address()), ledger.Writable(vault), ledger.Readonly(native.SystemProgramID),
	}})
	require.NoError(t, err)
	account, err := l.GetAccount(context.Background(), vault)
	require.NoError(t, err)
	assert.Equal(t, probeID, account.Owner)
}

func TestStoreEnforcesOwnership(t *testing.T) {
	owned := &ledger.Account{Address: common.Address{1}, Owner: probeID, Data: []byte{1}}
	foreign := &ledger.Account{Address: common.Address{2}, Owner: native.TokenProgramID, Data: []byte{1}}
	payer := newKeypair(t)

	tests := []struct {
		name   string
		meta   ledger.AccountMeta
		mutate func(a *ledger.Account)
		want   error
	}{
		{
			name:   "read-only",
			meta:   ledger.Readonly(owned.Address),
			mutate: func(a *ledger.Account) { a.Data = []byte{2} },
			want:   ledger.ErrReadonlyDataModified,
		},
		{
			name:   "foreign owner",
			meta:   ledger.Writable(foreign.Address),
			mutate: func(a *ledger.Account) { a.Data = []byte{2} },
			want:   ledger.ErrExternalAccountDataModified,
		},
		{
			name:   "reassign with data",
			meta:   ledger.Writable(owned.Address),
			mutate: func(a *ledger.Account) { a.Owner = native.TokenProgramID },
			want:   ledger.ErrModifiedProgramID,
		},
		{
			name:   "writable",
			meta:   ledger.Writable(owned.Address),
			mutate: func(a *ledger.Account) { a.Data = []byte{2} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &probe{fn: func(ic *ledger.InvokeContext, _ []byte) error {
				account, err := ic.Load(1)
				if err != nil {
					return err
				}
				tt.mutate(account)
				return ic.Store(1, account)
			}}
			l, s := newLedger(t, p)
			require.NoError(t, s.Apply(context.Background(), []*ledger.Account{owned, foreign}))

			_, err := send(t, l, []common.Signer{payer}, ledger.Instruction{
				ProgramID: probeID,
				Accounts:  []ledger.AccountMeta{ledger.Signer(payer.Address()), tt.meta},
			})
			if tt.want == nil {
				require.NoError(t, err)
				account, err := l.GetAccount(context.Background(), owned.Address)
				require.NoError(t, err)
				assert.Equal(t, []byte{2}, account.Data)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvokeDepth(t *testing.T) {
	payer := newKeypair(t)
	calls := 0
	p := &probe{fn: func(ic *ledger.InvokeContext, _ []byte) error {
		calls++
		return ic.Invoke(ledger.Instruction{ProgramID: probeID})
	}}
	l, _ := newLedger(t, p)

	_, err := send(t, l, []common.Signer{payer}, ledger.Instruction{
		ProgramID: probeID,
		Accounts:  []ledger.AccountMeta{ledger.Signer(payer.Address())},
	})
	assert.ErrorIs(t, err, ledger.ErrCallDepth)
	assert.Equal(t, ledger.MaxInvokeDepth, calls)
}

func TestProgramErrorWrapping(t *testing.T) {
	payer := newKeypair(t)
	p := &probe{fn: func(*ledger.InvokeContext, []byte) error {
		return errors.New("boom")
	}}
	l, _ := newLedger(t, p)

	_, err := send(t, l, []common.Signer{payer}, ledger.Instruction{
		ProgramID: probeID,
		Accounts:  []ledger.AccountMeta{ledger.Signer(payer.Address())},
	})
	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.ErrorIs(t, err, ledger.ErrGenericProgram)
	assert.Contains(t, ixErr.Err.Message, "boom")
}

func TestSubscribe(t *testing.T) {
	l, _ := newLedger(t)
	payer, mint := newKeypair(t), newKeypair(t)

	sub, err := l.Subscribe(context.Background(), native.TokenProgramID)
	require.NoError(t, err)

	_, err = send(t, l, []common.Signer{payer, mint}, createMint(payer.Address(), mint.Address(), payer.Address())...)
	require.NoError(t, err)

	select {
	case account := <-sub.Updates:
		assert.Equal(t, mint.Address(), account.Address)
		assert.Equal(t, native.TokenProgramID, account.Owner)
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	require.NoError(t, l.Unsubscribe(sub.ID))
	_, ok := <-sub.Updates
	assert.False(t, ok)
	assert.ErrorIs(t, l.Unsubscribe(sub.ID), ledger.ErrSubscriptionNotFound)
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	router := ledger.NewEventRouter(1)
	ctx, cancel := context.WithCancel(context.Background())
	sub := router.Register(ctx, native.TokenProgramID)
	assert.Equal(t, 1, router.Len())

	cancel()
	assert.Eventually(t, func() bool { return router.Len() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-sub.Updates
	assert.False(t, ok)
}

func TestUnregisterReleasesWatcher(t *testing.T) {
	router := ledger.NewEventRouter(1)
	before := runtime.NumGoroutine()

	ids := make([]uuid.UUID, 0, 32)
	for range 32 {
		ids = append(ids, router.Register(context.Background(), native.TokenProgramID).ID)
	}
	for _, id := range ids {
		require.NoError(t, router.Unregister(id))
	}
	assert.Zero(t, router.Len())
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, time.Second, 10*time.Millisecond)
}

func TestDroppedSubscriptionReleasesWatcher(t *testing.T) {
	router := ledger.NewEventRouter(1)
	before := runtime.NumGoroutine()

	for range 16 {
		router.Register(context.Background(), native.TokenProgramID)
	}
	router.Notify([]*ledger.Account{
		{Address: common.Address{1}, Owner: native.TokenProgramID},
		{Address: common.Address{2}, Owner: native.TokenProgramID},
	})
	assert.Zero(t, router.Len())
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, time.Second, 10*time.Millisecond)
}

func TestFullSubscriptionIsDropped(t *testing.T) {
	router := ledger.NewEventRouter(1)
	sub := router.Register(context.Background(), native.TokenProgramID)
	other := router.Register(context.Background(), probeID)

	router.Notify([]*ledger.Account{
		{Address: common.Address{1}, Owner: native.TokenProgramID},
		{Address: common.Address{2}, Owner: native.TokenProgramID},
	})
	assert.Equal(t, 1, router.Len())

	account, ok := <-sub.Updates
	require.True(t, ok)
	assert.Equal(t, common.Address{1}, account.Address)
	_, ok = <-sub.Updates
	assert.False(t, ok)

	require.NoError(t, router.Unregister(other.ID))
}
