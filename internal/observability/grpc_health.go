package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the readiness checks over the standard gRPC health protocol
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []DependencyCheck
	interval time.Duration
}

// NewHealthServer creates a gRPC health server backed by the given checks
func NewHealthServer(interval time.Duration, checks ...DependencyCheck) *HealthServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		interval: interval,
	}
}

// Refresh re-runs the checks and publishes SERVING or NOT_SERVING
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	_, ok := RunChecks(ctx, s.checks...)

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	// Empty service name is the overall server status.
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(serviceName, status)

	return status
}

// Serve listens on addr and blocks until ctx is done or the listener fails
func (s *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC health on %s: %w", addr, err)
	}

	s.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.server.GracefulStop()
				return
			case <-ticker.C:
				s.Refresh(ctx)
			}
		}
	}()

	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("gRPC health server failed: %w", err)
	}

	return nil
}
