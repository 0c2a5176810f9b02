package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the API
const ServiceName = "medassist.api"

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer publishes grpc.health.v1 status derived from database reachability
type HealthServer struct {
	health *health.Server
	db     Pinger
	logger *slog.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthServer creates a health server that starts out NOT_SERVING
func NewHealthServer(db Pinger, logger *slog.Logger) *HealthServer {
	h := &HealthServer{
		health: health.NewServer(),
		db:     db,
		logger: logger,
		last:   healthpb.HealthCheckResponse_UNKNOWN,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to a gRPC server
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe pings the database once and updates the published status
func (h *HealthServer) Probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.Ping(pingCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if h.last != status {
			h.logger.Warn("⚠️ [Health] Database unreachable", "error", err)
		}
	} else if h.last != status {
		h.logger.Info("💚 [Health] Database reachable")
	}
	h.set(status)
}

// Shutdown marks every service NOT_SERVING
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.last = status
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}
