package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"room-chat/internal/observability"
)

// ServiceName is the health service key reported for the chat core.
const ServiceName = "room-chat"

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer serves the standard gRPC health protocol for orchestrators.
type HealthServer struct {
	server *gogrpc.Server
	health *health.Server
	store  Pinger
	log    zerolog.Logger
}

// NewHealthServer builds the server. store may be nil when the message store
// is embedded.
func NewHealthServer(store Pinger, log zerolog.Logger) *HealthServer {
	srv := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		server: srv,
		health: hs,
		store:  store,
		log:    log.With().Str("component", "grpc").Logger(),
	}
}

// Refresh probes the store and updates the reported status.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		if err := s.store.PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Msg("store ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve blocks accepting connections on lis.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Shutdown marks every service as not serving and drains in-flight calls.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
