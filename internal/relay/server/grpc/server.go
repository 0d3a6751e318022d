package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/autopeer-io/dronerelay/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
	"github.com/autopeer-io/dronerelay/pkg/options"
)

// SessionService is the health service name that tracks the drone session.
// It is SERVING while a session is connected and NOT_SERVING otherwise.
const SessionService = "dronerelay.Session"

type Server struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
}

func NewServer(opts *options.GrpcOptions) *Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(grpcmw.UnaryTimeoutInterceptor(opts.Timeout)))
	hs := health.NewServer()
	hs.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)

	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	return &Server{
		server:  s,
		health:  hs,
		options: opts,
	}
}

// ObserveTransition updates the session health status; register it with
// the session manager.
func (s *Server) ObserveTransition(_, to core.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if to.Connected() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(SessionService, status)
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}
