package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/client"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"github.com/lightsparkdev/kylan-go/schema"
	testutil "github.com/lightsparkdev/kylan-go/test_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, price, fee uint64) (*testutil.TestLedger, *testutil.TestIssuance) {
	l, err := testutil.NewTestLedger()
	require.NoError(t, err)
	issuance, err := l.SetupIssuance(context.Background(), price, fee)
	require.NoError(t, err)
	return l, issuance
}

func newClient(l *testutil.TestLedger, signer common.Signer) *client.Client {
	return client.New(&client.Config{ProgramID: l.ProgramID, Signer: signer}, l)
}

func requireKind(t *testing.T, err error, kind kylan.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, kylan.KindOf(err), "unexpected error: %v", err)
}

func TestDefaultConfig(t *testing.T) {
	signer, err := common.NewKeypair()
	require.NoError(t, err)
	config := client.DefaultConfig(signer)
	assert.Equal(t, common.MustParseAddress(kylan.DefaultProgramID), config.ProgramID)
	assert.Equal(t, signer.Address(), config.SignerAddress())
}

func TestDeriveCertAddress(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, kylan.Precision, 0)
	c := newClient(l, issuance.Authority)
	key := issuance.Key

	loose, err := c.DeriveCertAddress(ctx, key.Printer, key.SecureToken, false)
	require.NoError(t, err)
	again, err := c.DeriveCertAddress(ctx, key.Printer, key.SecureToken, false)
	require.NoError(t, err)
	assert.Equal(t, loose, again)

	strict, err := c.DeriveCertAddress(ctx, key.Printer, key.SecureToken, true)
	require.NoError(t, err)
	assert.Equal(t, loose, strict)

	other, err := c.DeriveCertAddress(ctx, key.Printer, key.StableToken, false)
	require.NoError(t, err)
	assert.NotEqual(t, loose, other)

	tests := []struct {
		name        string
		printer     common.Address
		secureToken common.Address
		want        kylan.Kind
	}{
		{name: "not whitelisted", printer: key.Printer, secureToken: key.StableToken, want: kylan.KindCertificateViolation},
		{name: "unknown printer", printer: common.Address{7}, secureToken: key.SecureToken, want: kylan.KindCertificateViolation},
		{name: "zero printer", printer: common.ZeroAddress, secureToken: key.SecureToken, want: kylan.KindInvalidIdentity},
		{name: "zero secure token", printer: key.Printer, secureToken: common.ZeroAddress, want: kylan.KindInvalidIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DeriveCertAddress(ctx, tt.printer, tt.secureToken, true)
			requireKind(t, err, tt.want)
		})
	}
}

func TestDeriveChequeAddress(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, kylan.Precision, 0)
	owner, err := common.NewKeypair()
	require.NoError(t, err)
	c := newClient(l, owner)
	key := issuance.Key

	_, err = c.DeriveChequeAddress(ctx, key.Printer, key.SecureToken, owner.Address(), true)
	requireKind(t, err, kylan.KindLedgerRecordUninitialized)

	_, cheque, err := c.InitializeCheque(ctx, key.Printer, key.SecureToken)
	require.NoError(t, err)

	strict, err := c.DeriveChequeAddress(ctx, key.Printer, key.SecureToken, owner.Address(), true)
	require.NoError(t, err)
	assert.Equal(t, cheque, strict)

	data, err := c.GetChequeData(ctx, cheque)
	require.NoError(t, err)
	assert.Equal(t, &schema.Cheque{Printer: key.Printer, SecureToken: key.SecureToken, Authority: owner.Address()}, data)

	_, _, err = c.InitializeCheque(ctx, key.Printer, key.SecureToken)
	requireKind(t, err, kylan.KindAlreadyInitialized)
	assert.Equal(t, uint32(0), kylan.CodeOf(err))

	cert, err := c.DeriveCertAddress(ctx, key.Printer, key.SecureToken, false)
	require.NoError(t, err)
	_, err = c.GetChequeData(ctx, cert)
	assert.ErrorIs(t, err, schema.ErrDiscriminatorMismatch)
}

func TestTreasuryAddresses(t *testing.T) {
	l, issuance := setup(t, kylan.Precision, 0)
	c := newClient(l, issuance.Authority)

	treasurer, err := c.DeriveTreasurerAddress(issuance.Key.StableToken)
	require.NoError(t, err)
	assert.False(t, treasurer.IsOnCurve())

	treasury, err := c.DeriveTreasuryAddress(issuance.Key.StableToken, issuance.Key.SecureToken)
	require.NoError(t, err)
	assert.NotEqual(t, treasurer, treasury)

	_, err = c.DeriveTreasuryAddress(issuance.Key.StableToken, common.ZeroAddress)
	requireKind(t, err, kylan.KindInvalidIdentity)
}

func TestCreatePrinterAndCert(t *testing.T) {
	ctx := context.Background()
	l, err := testutil.NewTestLedger()
	require.NoError(t, err)
	keypairs, err := testutil.NewKeypairs(2)
	require.NoError(t, err)
	authority, taxmanOwner := keypairs[0], keypairs[1]
	c := newClient(l, authority)

	result, err := c.CreatePrinter(ctx, 9)
	require.NoError(t, err)
	printer, err := c.GetPrinterData(ctx, result.Printer)
	require.NoError(t, err)
	assert.Equal(t, &schema.Printer{StableToken: result.StableToken, Authority: authority.Address(), Decimals: 9}, printer)

	secureToken, err := l.CreateMint(ctx, taxmanOwner.Address(), 6)
	require.NoError(t, err)
	taxman, err := l.CreateTokenAccount(ctx, taxmanOwner.Address(), secureToken)
	require.NoError(t, err)

	_, _, err = c.InitializeCert(ctx, result.Printer, secureToken, taxman, 0, 0)
	requireKind(t, err, kylan.KindInvalidRateParameters)
	_, _, err = c.InitializeCert(ctx, result.Printer, secureToken, taxman, kylan.Precision, kylan.Precision+1)
	requireKind(t, err, kylan.KindInvalidRateParameters)

	_, certAddress, err := c.InitializeCert(ctx, result.Printer, secureToken, taxman, 2*kylan.Precision, 1_000)
	require.NoError(t, err)
	cert, err := c.GetCertData(ctx, certAddress)
	require.NoError(t, err)
	assert.Equal(t, &schema.Cert{
		Printer:     result.Printer,
		SecureToken: secureToken,
		Price:       2 * kylan.Precision,
		Fee:         1_000,
		Taxman:      taxman,
		State:       schema.CertStateActive,
	}, cert)

	_, err = c.GetPrinterData(ctx, common.Address{3})
	requireKind(t, err, kylan.KindNotFound)
}

func TestPrintAndBurn(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, 100_000, 5_000)
	holder, err := l.NewHolder(ctx, issuance, 50_000_000_000)
	require.NoError(t, err)
	c := newClient(l, holder)
	key := issuance.Key

	printed, err := c.Print(ctx, key.Printer, key.SecureToken, 50_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), printed.Amount)
	balance, err := l.TokenBalance(ctx, printed.Destination)
	require.NoError(t, err)
	assert.Equal(t, printed.Amount, balance)

	burned, err := c.Burn(ctx, key.Printer, key.SecureToken, 500_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_975_000_000), burned.Amount)
	assert.Equal(t, uint64(25_000_000), burned.Fee)
	balance, err = l.TokenBalance(ctx, burned.Destination)
	require.NoError(t, err)
	assert.Equal(t, burned.Amount, balance)

	cheque, err := c.DeriveChequeAddress(ctx, key.Printer, key.SecureToken, holder.Address(), true)
	require.NoError(t, err)
	data, err := c.GetChequeData(ctx, cheque)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_500_000_000), data.Amount)

	_, err = c.Burn(ctx, key.Printer, key.SecureToken, 4_500_000_001)
	requireKind(t, err, kylan.KindInsufficientLedgerBalance)
}

func TestConversionRejectedLocally(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, kylan.Precision, 0)
	holder, err := l.NewHolder(ctx, issuance, 1_000)
	require.NoError(t, err)
	stranger, err := common.NewKeypair()
	require.NoError(t, err)
	key := issuance.Key
	admin := newClient(l, issuance.Authority)
	holderClient := newClient(l, holder)

	_, err = holderClient.Print(ctx, key.Printer, key.SecureToken, 0)
	requireKind(t, err, kylan.KindInvalidAmount)
	_, err = holderClient.Burn(ctx, key.Printer, key.SecureToken, 0)
	requireKind(t, err, kylan.KindInvalidAmount)
	_, err = newClient(l, stranger).Print(ctx, key.Printer, key.SecureToken, 1)
	requireKind(t, err, kylan.KindLedgerRecordUninitialized)
	_, err = holderClient.Print(ctx, key.Printer, key.StableToken, 1)
	requireKind(t, err, kylan.KindCertificateViolation)

	cert, err := admin.DeriveCertAddress(ctx, key.Printer, key.SecureToken, true)
	require.NoError(t, err)
	_, err = admin.SetCertState(ctx, cert, schema.CertStatePrintOnly)
	require.NoError(t, err)

	_, err = holderClient.Print(ctx, key.Printer, key.SecureToken, 1_000)
	require.NoError(t, err)
	_, err = holderClient.Burn(ctx, key.Printer, key.SecureToken, 1_000)
	requireKind(t, err, kylan.KindStateViolation)

	balance, err := l.Balance(ctx, holder.Address(), key.SecureToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, kylan.Precision, 0)
	admin := newClient(l, issuance.Authority)
	cert, err := admin.DeriveCertAddress(ctx, issuance.Key.Printer, issuance.Key.SecureToken, true)
	require.NoError(t, err)

	_, err = admin.SetCertState(ctx, cert, schema.CertStateUninitialized)
	requireKind(t, err, kylan.KindStateViolation)
	_, err = admin.SetCertFee(ctx, cert, kylan.Precision+1)
	requireKind(t, err, kylan.KindInvalidRateParameters)

	_, err = admin.SetCertState(ctx, cert, schema.CertStatePaused)
	require.NoError(t, err)
	_, err = admin.SetCertFee(ctx, cert, 10_000)
	require.NoError(t, err)
	collector, err := common.NewKeypair()
	require.NoError(t, err)
	_, taxman, err := admin.SetCertTaxman(ctx, cert, collector.Address())
	require.NoError(t, err)

	data, err := admin.GetCertData(ctx, cert)
	require.NoError(t, err)
	assert.Equal(t, schema.CertStatePaused, data.State)
	assert.Equal(t, uint64(10_000), data.Fee)
	assert.Equal(t, taxman, data.Taxman)

	intruder, err := common.NewKeypair()
	require.NoError(t, err)
	_, err = newClient(l, intruder).SetCertFee(ctx, cert, 0)
	requireKind(t, err, kylan.KindSubmission)
	assert.Equal(t, uint32(2001), kylan.CodeOf(err))

	successor, err := common.NewKeypair()
	require.NoError(t, err)
	_, err = admin.TransferAuthority(ctx, issuance.Key.Printer, successor.Address())
	require.NoError(t, err)
	printer, err := admin.GetPrinterData(ctx, issuance.Key.Printer)
	require.NoError(t, err)
	assert.Equal(t, successor.Address(), printer.Authority)

	_, err = admin.SetCertFee(ctx, cert, 0)
	requireKind(t, err, kylan.KindSubmission)
	_, err = newClient(l, successor).SetCertFee(ctx, cert, 0)
	assert.NoError(t, err)
}

func TestWatch(t *testing.T) {
	ctx := context.Background()
	l, issuance := setup(t, kylan.Precision, 0)
	holder, err := l.NewHolder(ctx, issuance, 1_000)
	require.NoError(t, err)
	c := newClient(l, holder)

	changes := make(chan *client.Change, 16)
	handle, err := c.Watch(ctx, func(change *client.Change, err error) {
		assert.NoError(t, err)
		changes <- change
	})
	require.NoError(t, err)

	_, err = c.Print(ctx, issuance.Key.Printer, issuance.Key.SecureToken, 400)
	require.NoError(t, err)

	select {
	case change := <-changes:
		assert.Equal(t, schema.RecordTypeCheque, change.Type)
		cheque, ok := change.Record.(*schema.Cheque)
		require.True(t, ok)
		assert.Equal(t, uint64(400), cheque.Amount)
		assert.Equal(t, holder.Address(), cheque.Authority)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	require.NoError(t, c.Unwatch(handle))
	requireKind(t, c.Unwatch(handle), kylan.KindNotFound)
	requireKind(t, c.Unwatch(uuid.New()), kylan.KindNotFound)
}

// feed is a ledger whose subscriptions deliver whatever the test sends.
type feed struct {
	client.Ledger
	updates chan *ledger.Account
}

func (f *feed) Subscribe(_ context.Context, owner common.Address) (*ledger.Subscription, error) {
	return &ledger.Subscription{ID: uuid.New(), Owner: owner, Updates: f.updates}, nil
}

func (f *feed) Unsubscribe(uuid.UUID) error {
	return nil
}

func TestWatchClassifiesByLength(t *testing.T) {
	programID := common.MustParseAddress(kylan.DefaultProgramID)
	f := &feed{updates: make(chan *ledger.Account, 4)}
	signer, err := common.NewKeypair()
	require.NoError(t, err)
	c := client.New(&client.Config{ProgramID: programID, Signer: signer}, f)

	type delivery struct {
		change *client.Change
		err    error
	}
	deliveries := make(chan delivery, 4)
	_, err = c.Watch(context.Background(), func(change *client.Change, err error) {
		deliveries <- delivery{change, err}
	})
	require.NoError(t, err)

	printer := &schema.Printer{StableToken: common.Address{1}, Authority: common.Address{2}, Decimals: 6}
	cert := &schema.Cert{Printer: common.Address{3}, SecureToken: common.Address{4}, Price: 7, State: schema.CertStateBurnOnly}
	f.updates <- &ledger.Account{Address: common.Address{10}, Owner: programID, Data: printer.Marshal()}
	f.updates <- &ledger.Account{Address: common.Address{11}, Owner: programID, Data: cert.Marshal()}
	f.updates <- &ledger.Account{Address: common.Address{12}, Owner: programID, Data: make([]byte, 50)}
	close(f.updates)

	tests := []struct {
		address common.Address
		kind    schema.RecordType
		record  any
		err     error
	}{
		{address: common.Address{10}, kind: schema.RecordTypePrinter, record: printer},
		{address: common.Address{11}, kind: schema.RecordTypeCert, record: cert},
		{address: common.Address{12}, err: schema.ErrUnmatchedType},
	}
	for _, tt := range tests {
		select {
		case got := <-deliveries:
			assert.Equal(t, tt.address, got.change.Address)
			if tt.err != nil {
				assert.True(t, errors.Is(got.err, tt.err))
				continue
			}
			require.NoError(t, got.err)
			assert.Equal(t, tt.kind, got.change.Type)
			assert.Equal(t, tt.record, got.change.Record)
		case <-time.After(5 * time.Second):
			t.Fatal("missing delivery")
		}
	}
}
