package grpc

import (
	"context"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/ledger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SubscriptionHeader is sent once a subscription is registered, so the
// client knows that later commits will be delivered.
const SubscriptionHeader = "x-kylan-subscription"

// Server serves a ledger.
type Server struct {
	ledger *ledger.Ledger
}

var _ LedgerServer = (*Server)(nil)

// NewServer creates a new Server.
func NewServer(l *ledger.Ledger) *Server {
	return &Server{ledger: l}
}

func parseAddress(req *wrapperspb.BytesValue) (common.Address, error) {
	address, err := common.AddressFromBytes(req.GetValue())
	if err != nil {
		return common.ZeroAddress, status.Errorf(codes.InvalidArgument, "invalid address: %v", err)
	}
	return address, nil
}

// GetAccount returns the committed account at the requested address.
func (s *Server) GetAccount(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	address, err := parseAddress(req)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.GetAccount(ctx, address)
	if err != nil {
		return wrapWithGRPCError[*wrapperspb.BytesValue](nil, err)
	}
	return wrapperspb.Bytes(ledger.MarshalAccount(account)), nil
}

// GetProgramAccounts streams every committed account owned by the requested program.
func (s *Server) GetProgramAccounts(req *wrapperspb.BytesValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	owner, err := parseAddress(req)
	if err != nil {
		return err
	}
	accounts, err := s.ledger.ProgramAccounts(stream.Context(), owner)
	if err != nil {
		return toGRPCError(err)
	}
	for _, account := range accounts {
		if err := stream.Send(wrapperspb.Bytes(ledger.MarshalAccount(account))); err != nil {
			return err
		}
	}
	return nil
}

// Submit executes an encoded transaction and returns its ID.
func (s *Server) Submit(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	tx, err := ledger.UnmarshalTransaction(req.GetValue())
	if err != nil {
		return wrapWithGRPCError[*wrapperspb.StringValue](nil, err)
	}
	id, err := s.ledger.Submit(ctx, tx)
	if err != nil {
		return wrapWithGRPCError[*wrapperspb.StringValue](nil, err)
	}
	return wrapperspb.String(id), nil
}

// Subscribe streams committed changes to accounts of the requested owner
// until the client goes away.
func (s *Server) Subscribe(req *wrapperspb.BytesValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	owner, err := parseAddress(req)
	if err != nil {
		return err
	}
	ctx := stream.Context()
	logger := logging.GetLoggerFromContext(ctx)

	sub, err := s.ledger.Subscribe(ctx, owner)
	if err != nil {
		return toGRPCError(err)
	}
	defer func() { _ = s.ledger.Unsubscribe(sub.ID) }()

	if err := stream.SendHeader(metadata.Pairs(SubscriptionHeader, sub.ID.String())); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case account, ok := <-sub.Updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return status.Error(codes.ResourceExhausted, "subscription fell behind and was dropped")
			}
			if err := stream.Send(wrapperspb.Bytes(ledger.MarshalAccount(account))); err != nil {
				if !isStreamClosedError(err) {
					logger.Error("Unexpected error sending account to stream",
						"error", err,
						"subscription", sub.ID,
						"owner", owner,
					)
				}
				return err
			}
		}
	}
}
