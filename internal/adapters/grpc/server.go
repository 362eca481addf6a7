package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to grpc health clients alongside the overall "" status.
const ServiceName = "fraud.v1.FraudDetectionEngine"

type ReadinessCheck func(ctx context.Context) error

// HealthServer keeps the standard grpc health service in step with dependency readiness.
type HealthServer struct {
	health *health.Server
	check  ReadinessCheck
	logger *slog.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthServer(logger *slog.Logger, check ReadinessCheck) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &HealthServer{health: health.NewServer(), check: check, logger: logger}
	srv.set(healthpb.HealthCheckResponse_SERVING)
	return srv
}

func Register(server grpc.ServiceRegistrar, srv *HealthServer) {
	healthpb.RegisterHealthServer(server, srv.health)
}

// Refresh runs the readiness check once and publishes the result.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		if err := s.check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if s.last != status {
				s.logger.WarnContext(ctx, "dependency readiness lost",
					"module", "grpc.health",
					"layer", "adapter",
					"operation", "refresh",
					"outcome", "failure",
					"error", err,
				)
			}
		}
	}
	s.set(status)
	return status
}

// Monitor refreshes on every tick until ctx is done.
func (s *HealthServer) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			s.Refresh(checkCtx)
			cancel()
		}
	}
}

// Shutdown reports NOT_SERVING to every watcher and ignores later updates.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}

func (s *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.last = status
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
