package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *serverImpl) unaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(s.recoveryUnaryInterceptor, s.loggingUnaryInterceptor)
}

func (s *serverImpl) streamInterceptors() grpc.ServerOption {
	return grpc.ChainStreamInterceptor(s.recoveryStreamInterceptor, s.loggingStreamInterceptor)
}

// recoverRPC converts a panic in a handler into codes.Internal.
func (s *serverImpl) recoverRPC(method string, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	s.logger.Error("Panic in gRPC handler",
		"method", method,
		"panic", rec,
		"stack", string(debug.Stack()),
	)
	*err = status.Error(codes.Internal, "Internal server error")
}

func (s *serverImpl) recoveryUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer s.recoverRPC(info.FullMethod, &err)
	return handler(ctx, req)
}

func (s *serverImpl) recoveryStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer s.recoverRPC(info.FullMethod, &err)
	return handler(srv, ss)
}

func (s *serverImpl) loggingUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logRPC(ctx, "gRPC request", info.FullMethod, start, err)
	return resp, err
}

func (s *serverImpl) loggingStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logRPC(ss.Context(), "gRPC stream", info.FullMethod, start, err)
	return err
}

func (s *serverImpl) logRPC(ctx context.Context, msg, method string, start time.Time, err error) {
	code := status.Code(err)
	attrs := []any{
		"method", method,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.Log(ctx, rpcLogLevel(ctx, code), msg, attrs...)
}

// rpcLogLevel keeps Error for server faults. Caller mistakes and
// cancellations are Info and Warn.
func rpcLogLevel(ctx context.Context, code codes.Code) slog.Level {
	switch code {
	case codes.OK, codes.NotFound, codes.AlreadyExists, codes.InvalidArgument,
		codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return slog.LevelInfo
	case codes.Canceled, codes.DeadlineExceeded:
		return slog.LevelWarn
	}
	if ctx.Err() != nil {
		return slog.LevelWarn
	}
	return slog.LevelError
}
