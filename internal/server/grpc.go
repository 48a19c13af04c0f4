package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the grpc.health.v1 protocol. The overall status ("") and
// one status per dependency follow the readiness probes.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	logger   zerolog.Logger
}

func NewHealthServer(checks map[string]Pinger, interval time.Duration, logger zerolog.Logger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		logger:   logger.With().Str("component", "grpc_health").Logger(),
	}
}

// Serve probes dependencies and serves on lis until ctx is done.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.probe(ctx)
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.server.GracefulStop()
				return
			case <-ticker.C:
				h.probe(ctx)
			}
		}
	}()

	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return h.server.Serve(lis)
}

func (h *HealthServer) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, p := range h.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := p.PingContext(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			h.logger.Warn().Err(err).Str("dependency", name).Msg("dependency not ready")
		}
		h.health.SetServingStatus(name, status)
	}
	h.health.SetServingStatus("", overall)
}
