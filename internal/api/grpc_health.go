package api

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// GRPCHealthServer exposes grpc.health.v1 for orchestrators. The overall
// status follows the database check.
type GRPCHealthServer struct {
	Server   *grpc.Server
	health   *health.Server
	check    HealthCheck
	interval time.Duration
	logger   *logrus.Logger
}

func NewGRPCHealthServer(check HealthCheck, interval time.Duration, logger *logrus.Logger) *GRPCHealthServer {
	hs := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &GRPCHealthServer{
		Server:   server,
		health:   hs,
		check:    check,
		interval: interval,
		logger:   logger,
	}
}

// Watch refreshes the serving status until ctx is done, then marks the
// server as shutting down.
func (g *GRPCHealthServer) Watch(ctx context.Context) {
	g.refresh(ctx)
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.health.Shutdown()
			return
		case <-ticker.C:
			g.refresh(ctx)
		}
	}
}

func (g *GRPCHealthServer) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if g.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := g.check(checkCtx)
		cancel()
		if err != nil {
			g.logger.WithError(err).Warn("health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(healthpb.Health_ServiceDesc.ServiceName, status)
}
