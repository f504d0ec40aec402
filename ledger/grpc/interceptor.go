package grpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func requestLogger(ctx context.Context, method string) *slog.Logger {
	var ip string
	if p, ok := peer.FromContext(ctx); ok {
		ip = p.Addr.String()
	}

	var traceID string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if traceVals := md.Get("x-amzn-trace-id"); len(traceVals) > 0 {
			traceID = traceVals[0]
		}
	}

	return logging.GetLoggerFromContext(ctx).With(
		"request_id", uuid.New().String(),
		"method", method,
		"caller_ip", ip,
		"x_amzn_trace_id", traceID,
	)
}

// LogInterceptor attaches a request scoped logger to the context and logs each call.
func LogInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	logger := requestLogger(ctx, info.FullMethod)
	ctx = logging.Inject(ctx, logger)

	logger.Info("grpc call started")
	startTime := time.Now()
	response, err := handler(ctx, req)
	duration := time.Since(startTime).Seconds()

	if err != nil {
		logger.Error("error in grpc", "error", err, "code", status.Code(err), "duration", duration)
	} else {
		logger.Info("grpc call successful", "duration", duration)
	}
	return response, err
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context {
	return s.ctx
}

// StreamLogInterceptor is LogInterceptor for streaming calls.
func StreamLogInterceptor(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	logger := requestLogger(stream.Context(), info.FullMethod)
	ctx := logging.Inject(stream.Context(), logger)

	logger.Info("grpc stream started")
	startTime := time.Now()
	err := handler(srv, &loggedStream{ServerStream: stream, ctx: ctx})
	duration := time.Since(startTime).Seconds()

	if err != nil && !isStreamClosedError(err) {
		logger.Error("error in grpc stream", "error", err, "duration", duration)
	} else {
		logger.Info("grpc stream closed", "duration", duration)
	}
	return err
}

func recoverPanic(ctx context.Context, p interface{}) error {
	logging.GetLoggerFromContext(ctx).Error("panic in grpc handler", "panic", p)
	return status.Errorf(codes.Internal, "internal error")
}

// ServerOptions returns the interceptor chain every ledger server runs.
func ServerOptions() []grpc.ServerOption {
	recovery := grpc_recovery.WithRecoveryHandlerContext(recoverPanic)
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			LogInterceptor,
			grpc_recovery.UnaryServerInterceptor(recovery),
		)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			StreamLogInterceptor,
			grpc_recovery.StreamServerInterceptor(recovery),
		)),
	}
}

func isStreamClosedError(err error) bool {
	if err == nil {
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Canceled, codes.Unavailable, codes.DeadlineExceeded:
			return true
		default:
			return false
		}
	}
	return false
}
