package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/syntrixbase/tripsync/internal/server/ratelimit"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is the gRPC health service reported for the trips API.
const HealthServiceName = "tripsync.Trips"

type serverImpl struct {
	cfg    Config
	logger *slog.Logger

	httpMux    *http.ServeMux
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	mutationLimiter ratelimit.Stoppable
	relayLimiter    ratelimit.Stoppable

	serving atomic.Bool

	mu      sync.Mutex
	started bool
}

// New builds the server with /metrics and /ready already routed. The service
// reports not-ready until SetServing(true).
func New(cfg Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &serverImpl{
		cfg:     cfg,
		logger:  logger.With("component", "server"),
		httpMux: http.NewServeMux(),
		health:  health.NewServer(),
	}
	if cfg.RateLimit.Enabled {
		s.mutationLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit)
	}
	if cfg.RelayRateLimit.Enabled {
		s.relayLimiter = ratelimit.NewMemoryLimiter(cfg.RelayRateLimit)
	}

	opts := []grpc.ServerOption{s.unaryInterceptors(), s.streamInterceptors()}
	if cfg.GRPCMaxConcurrent > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.GRPCMaxConcurrent)))
	}
	s.grpcServer = grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	if cfg.EnableReflection {
		reflection.Register(s.grpcServer)
	}
	s.setHealth(false)

	s.httpMux.Handle("GET /metrics", promhttp.Handler())
	s.httpMux.HandleFunc("GET /ready", s.handleReady)
	return s
}

func (s *serverImpl) addr(port int) string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
}

func (s *serverImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true
	s.httpServer = &http.Server{
		Handler:      s.wrapMiddleware(s.httpMux),
		ReadTimeout:  s.cfg.HTTPReadTimeout,
		WriteTimeout: s.cfg.HTTPWriteTimeout,
		IdleTimeout:  s.cfg.HTTPIdleTimeout,
	}
	s.mu.Unlock()

	httpLis, err := net.Listen("tcp", s.addr(s.cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	grpcLis, err := net.Listen("tcp", s.addr(s.cfg.GRPCPort))
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("grpc listen: %w", err)
	}

	failed := make(chan error, 2)
	go func() {
		s.logger.Info("HTTP listening", "addr", httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		s.logger.Info("gRPC listening", "addr", grpcLis.Addr().String())
		if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			failed <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	select {
	case err := <-failed:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *serverImpl) Stop(ctx context.Context) error {
	s.SetServing(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	var g errgroup.Group
	if s.httpServer != nil {
		g.Go(func() error {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		drained := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			s.logger.Warn("gRPC drain timed out, closing connections")
			s.grpcServer.Stop()
		}
		return nil
	})
	err := g.Wait()

	for _, l := range []ratelimit.Stoppable{s.mutationLimiter, s.relayLimiter} {
		if l != nil {
			l.Stop()
		}
	}
	return err
}

func (s *serverImpl) RegisterHTTPHandler(pattern string, handler http.Handler) {
	s.httpMux.Handle(pattern, handler)
}

func (s *serverImpl) RegisterGRPCService(desc *grpc.ServiceDesc, impl any) {
	s.grpcServer.RegisterService(desc, impl)
}

func (s *serverImpl) HTTPMux() *http.ServeMux { return s.httpMux }

func (s *serverImpl) SetServing(serving bool) {
	if s.serving.Swap(serving) == serving {
		return
	}
	s.setHealth(serving)
	s.logger.Info("Readiness changed", "serving", serving)
}

func (s *serverImpl) setHealth(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	for _, name := range []string{"", HealthServiceName} {
		s.health.SetServingStatus(name, status)
	}
}

func (s *serverImpl) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.serving.Load() {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Not ready")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
