package grpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	ledgergrpc "github.com/lightsparkdev/kylan-go/ledger/grpc"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	testutil "github.com/lightsparkdev/kylan-go/test_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func startServer(t *testing.T) (*testutil.TestLedger, *ledgergrpc.Client, *grpc.ClientConn) {
	l, err := testutil.NewTestLedger()
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(ledgergrpc.ServerOptions()...)
	ledgergrpc.RegisterLedgerServer(server, ledgergrpc.NewServer(l.Ledger))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return l, ledgergrpc.NewClient(conn), conn
}

func mintTransaction(t *testing.T, payer *common.Keypair, extra ...ledger.Instruction) (*ledger.Transaction, common.Address) {
	mint, err := common.NewKeypair()
	require.NoError(t, err)
	ixs := []ledger.Instruction{
		native.CreateAccount(payer.Address(), mint.Address(), native.MintSize, native.TokenProgramID),
		native.InitializeMint(mint.Address(), 6, payer.Address(), nil),
	}
	for _, ix := range extra {
		ix.Accounts[0] = ledger.Writable(mint.Address())
		ixs = append(ixs, ix)
	}
	tx := ledger.NewTransaction(ixs...)
	require.NoError(t, tx.Sign(payer, mint))
	return tx, mint.Address()
}

func TestSubmitAndGetAccount(t *testing.T) {
	ctx := context.Background()
	l, client, _ := startServer(t)

	tx, mint := mintTransaction(t, l.Payer)
	id, err := client.Submit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), id)

	account, err := client.GetAccount(ctx, mint)
	require.NoError(t, err)
	local, err := l.GetAccount(ctx, mint)
	require.NoError(t, err)
	assert.True(t, local.Equal(account))

	accounts, err := client.ProgramAccounts(ctx, native.TokenProgramID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, mint, accounts[0].Address)

	_, err = client.Submit(ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
}

func TestGetAccountNotFound(t *testing.T) {
	_, client, _ := startServer(t)
	_, err := client.GetAccount(context.Background(), common.Address{1})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestSubmitReportsInstructionError(t *testing.T) {
	l, client, _ := startServer(t)

	tx, mint := mintTransaction(t, l.Payer, native.InitializeMint(common.ZeroAddress, 6, l.Payer.Address(), nil))
	_, err := client.Submit(context.Background(), tx)

	var ixErr *ledger.InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, 2, ixErr.Index)
	assert.Equal(t, native.TokenProgramID, ixErr.Program)
	assert.Equal(t, "AlreadyInUse", ixErr.Err.Name)
	assert.ErrorIs(t, err, native.ErrTokenAlreadyInUse)

	_, err = client.GetAccount(context.Background(), mint)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestSubmitRejectsBadEncoding(t *testing.T) {
	l, client, conn := startServer(t)

	out := new(wrapperspb.StringValue)
	err := conn.Invoke(context.Background(), ledgergrpc.SubmitMethod, wrapperspb.Bytes([]byte{0xff, 0xff}), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.ErrorIs(t, ledgergrpc.FromGRPCError(err), ledger.ErrInvalidTransaction)

	tx, _ := mintTransaction(t, l.Payer)
	tx.Signatures = tx.Signatures[:1]
	_, err = client.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ledger.ErrSignatureVerification)

	err = conn.Invoke(context.Background(), ledgergrpc.GetAccountMethod, wrapperspb.Bytes([]byte{1}), new(wrapperspb.BytesValue))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	l, client, _ := startServer(t)

	sub, err := client.Subscribe(ctx, native.TokenProgramID)
	require.NoError(t, err)

	tx, mint := mintTransaction(t, l.Payer)
	_, err = client.Submit(ctx, tx)
	require.NoError(t, err)

	select {
	case account := <-sub.Updates:
		assert.Equal(t, mint, account.Address)
		assert.Equal(t, native.TokenProgramID, account.Owner)
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
	}

	require.NoError(t, client.Unsubscribe(sub.ID))
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Updates:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, client.Unsubscribe(sub.ID), ledger.ErrSubscriptionNotFound)
}

func TestFromGRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: status.Error(codes.NotFound, "account not found"), want: ledger.ErrAccountNotFound},
		{name: "replay", err: status.Error(codes.AlreadyExists, "transaction already processed: abc"), want: ledger.ErrAlreadyProcessed},
		{name: "unrelated", err: status.Error(codes.Internal, "boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledgergrpc.FromGRPCError(tt.err)
			if tt.want == nil {
				assert.Equal(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
			assert.Equal(t, status.Convert(tt.err).Message(), got.Error())
		})
	}
	assert.NoError(t, ledgergrpc.FromGRPCError(nil))
}
