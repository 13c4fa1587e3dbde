package server

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
)

// Service owns the process's HTTP and gRPC listeners. Routes and gRPC
// services are registered before Start; readiness is flipped separately
// once the pipeline behind them is running.
type Service interface {
	// Start binds both listeners and serves until ctx ends or a listener fails.
	Start(ctx context.Context) error
	// Stop drains in-flight requests, forcing gRPC closed if ctx expires first.
	Stop(ctx context.Context) error

	RegisterHTTPHandler(pattern string, handler http.Handler)
	RegisterGRPCService(desc *grpc.ServiceDesc, impl any)
	HTTPMux() *http.ServeMux

	// SetServing drives GET /ready and the gRPC health status.
	SetServing(serving bool)
}
