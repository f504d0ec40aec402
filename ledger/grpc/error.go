package grpc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/ledger"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain marks the error details of failed instructions.
const ErrorDomain = "ledger"

var sentinels = []struct {
	err  error
	code codes.Code
}{
	{ledger.ErrAccountNotFound, codes.NotFound},
	{ledger.ErrSubscriptionNotFound, codes.NotFound},
	{ledger.ErrNoInstructions, codes.InvalidArgument},
	{ledger.ErrInvalidTransaction, codes.InvalidArgument},
	{ledger.ErrSignatureVerification, codes.Unauthenticated},
	{ledger.ErrAlreadyProcessed, codes.AlreadyExists},
}

// wrapWithGRPCError wraps a response and an error into a gRPC error
func wrapWithGRPCError[T any](resp T, err error) (T, error) {
	if err != nil {
		return resp, toGRPCError(err)
	}
	return resp, nil
}

// toGRPCError converts any error to an appropriate gRPC error
func toGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	var ixErr *ledger.InstructionError
	if errors.As(err, &ixErr) {
		return instructionStatus(ixErr)
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return status.Error(s.code, err.Error())
		}
	}

	// Default to Internal error
	return status.Error(codes.Internal, err.Error())
}

func instructionStatus(ixErr *ledger.InstructionError) error {
	st := status.New(codes.Aborted, ixErr.Error())
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: ixErr.Err.Name,
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"index":   strconv.Itoa(ixErr.Index),
			"program": ixErr.Program.String(),
			"code":    strconv.FormatUint(uint64(ixErr.Err.Code), 10),
			"custom":  strconv.FormatBool(ixErr.Err.Custom),
			"message": ixErr.Err.Message,
		},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// FromGRPCError recovers the ledger error a server reported, so that callers
// can match it with errors.Is and errors.As as if the ledger were local.
func FromGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	if st.Code() == codes.Aborted {
		for _, detail := range st.Details() {
			info, ok := detail.(*errdetails.ErrorInfo)
			if !ok || info.Domain != ErrorDomain {
				continue
			}
			if ixErr, decodeErr := decodeInstructionError(info); decodeErr == nil {
				return ixErr
			}
		}
	}
	for _, s := range sentinels {
		if st.Code() == s.code && strings.HasPrefix(st.Message(), s.err.Error()) {
			return fmt.Errorf("%w%s", s.err, strings.TrimPrefix(st.Message(), s.err.Error()))
		}
	}
	return err
}

func decodeInstructionError(info *errdetails.ErrorInfo) (*ledger.InstructionError, error) {
	index, err := strconv.Atoi(info.Metadata["index"])
	if err != nil {
		return nil, err
	}
	program, err := common.ParseAddress(info.Metadata["program"])
	if err != nil {
		return nil, err
	}
	code, err := strconv.ParseUint(info.Metadata["code"], 10, 32)
	if err != nil {
		return nil, err
	}
	custom, err := strconv.ParseBool(info.Metadata["custom"])
	if err != nil {
		return nil, err
	}
	return &ledger.InstructionError{
		Index:   index,
		Program: program,
		Err: &ledger.ProgramError{
			Code:    uint32(code),
			Name:    info.Reason,
			Message: info.Metadata["message"],
			Custom:  custom,
		},
	}, nil
}
