// Package grpc serves a ledger over gRPC. Accounts and transactions travel in
// their ledger wire encoding inside well-known wrapper messages.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "kylan.ledger.v1.Ledger"

const (
	GetAccountMethod         = "/" + ServiceName + "/GetAccount"
	GetProgramAccountsMethod = "/" + ServiceName + "/GetProgramAccounts"
	SubmitMethod             = "/" + ServiceName + "/Submit"
	SubscribeMethod          = "/" + ServiceName + "/Subscribe"
)

// LedgerServer is the server API of the ledger service.
type LedgerServer interface {
	// GetAccount takes an address and returns the encoded account.
	GetAccount(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// GetProgramAccounts takes an owner and streams every encoded account it owns.
	GetProgramAccounts(*wrapperspb.BytesValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	// Submit takes an encoded transaction and returns its ID.
	Submit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	// Subscribe takes an owner and streams every committed change to its accounts.
	Subscribe(*wrapperspb.BytesValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

// RegisterLedgerServer registers srv on s.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func getAccountHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).GetAccount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAccountMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).GetAccount(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func submitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getProgramAccountsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LedgerServer).GetProgramAccounts(in, &grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ServerStream: stream})
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LedgerServer).Subscribe(in, &grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// LedgerServiceDesc describes the ledger service.
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAccount", Handler: getAccountHandler},
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "GetProgramAccounts", Handler: getProgramAccountsHandler, ServerStreams: true},
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
}
