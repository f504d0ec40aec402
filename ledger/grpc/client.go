package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a ledger reached over a gRPC connection.
type Client struct {
	conn *grpc.ClientConn

	mu            sync.Mutex
	subscriptions map[uuid.UUID]context.CancelFunc
}

// NewClient creates a client over conn. The caller keeps ownership of conn.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, subscriptions: make(map[uuid.UUID]context.CancelFunc)}
}

// GetAccount returns the committed account at address.
func (c *Client) GetAccount(ctx context.Context, address common.Address) (*ledger.Account, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, GetAccountMethod, wrapperspb.Bytes(address[:]), out); err != nil {
		return nil, FromGRPCError(err)
	}
	return ledger.UnmarshalAccount(out.GetValue())
}

func (c *Client) openStream(ctx context.Context, method string, desc *grpc.StreamDesc, req *wrapperspb.BytesValue) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	stream, err := c.conn.NewStream(ctx, desc, method)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ProgramAccounts returns the committed accounts owned by owner.
func (c *Client) ProgramAccounts(ctx context.Context, owner common.Address) ([]*ledger.Account, error) {
	stream, err := c.openStream(ctx, GetProgramAccountsMethod, &LedgerServiceDesc.Streams[0], wrapperspb.Bytes(owner[:]))
	if err != nil {
		return nil, FromGRPCError(err)
	}
	var accounts []*ledger.Account
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return accounts, nil
		}
		if err != nil {
			return nil, FromGRPCError(err)
		}
		account, err := ledger.UnmarshalAccount(msg.GetValue())
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
}

// Submit sends a signed transaction and returns its ID.
func (c *Client) Submit(ctx context.Context, tx *ledger.Transaction) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, SubmitMethod, wrapperspb.Bytes(ledger.MarshalTransaction(tx)), out); err != nil {
		return "", FromGRPCError(err)
	}
	return out.GetValue(), nil
}

// Subscribe streams committed changes to accounts owned by owner. It returns
// once the server has registered the subscription.
func (c *Client) Subscribe(ctx context.Context, owner common.Address) (*ledger.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.openStream(ctx, SubscribeMethod, &LedgerServiceDesc.Streams[1], wrapperspb.Bytes(owner[:]))
	if err != nil {
		cancel()
		return nil, FromGRPCError(err)
	}
	if _, err := stream.Header(); err != nil {
		cancel()
		return nil, FromGRPCError(err)
	}

	id := uuid.New()
	c.mu.Lock()
	c.subscriptions[id] = cancel
	c.mu.Unlock()

	updates := make(chan *ledger.Account, ledger.DefaultSubscriptionBuffer)
	go func() {
		defer close(updates)
		defer c.forget(id)
		for {
			msg, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					slog.Error("Subscription stream ended", "error", err, "owner", owner)
				}
				return
			}
			account, err := ledger.UnmarshalAccount(msg.GetValue())
			if err != nil {
				slog.Error("Dropping undecodable account update", "error", err, "owner", owner)
				continue
			}
			select {
			case updates <- account:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &ledger.Subscription{ID: id, Owner: owner, Updates: updates}, nil
}

func (c *Client) forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subscriptions[id]; ok {
		cancel()
		delete(c.subscriptions, id)
	}
}

// Unsubscribe ends a subscription opened by Subscribe.
func (c *Client) Unsubscribe(id uuid.UUID) error {
	c.mu.Lock()
	cancel, ok := c.subscriptions[id]
	delete(c.subscriptions, id)
	c.mu.Unlock()
	if !ok {
		return ledger.ErrSubscriptionNotFound
	}
	cancel()
	return nil
}
