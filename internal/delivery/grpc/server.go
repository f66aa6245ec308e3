package grpc

import (
	"context"
	"net"
	"time"

	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported alongside the
// server-wide "" entry.
const ServiceName = "checkout.v1.CheckoutService"

// Server exposes grpc.health.v1 and reflection. It reports NOT_SERVING
// until the ticket catalog is ready.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	l      logger.Logger
}

func NewServer(l logger.Logger) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(l)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{srv: srv, health: hs, l: l}
	s.SetReady(false)
	return s
}

func (s *Server) SetReady(ready bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// WatchReady flips the status to SERVING once ready is closed.
func (s *Server) WatchReady(ctx context.Context, ready <-chan struct{}) {
	go func() {
		select {
		case <-ready:
			s.SetReady(true)
			s.l.Info(ctx, "grpc.Server.WatchReady: serving")
		case <-ctx.Done():
		}
	}()
}

func (s *Server) Serve(lnr net.Listener) error {
	return s.srv.Serve(lnr)
}

// GracefulStop marks every service NOT_SERVING before draining.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func unaryLogger(l logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l.Debugf(ctx, "gRPC %s code=%s duration_ms=%d", info.FullMethod, status.Code(err), time.Since(start).Milliseconds())
		return resp, err
	}
}
