package grpc

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name the health service reports status under.
const ServiceName = "textbook.orders.v1.OrderService"

type Server struct {
	log    *slog.Logger
	gs     *grpc.Server
	health *health.Server
}

func NewServer(log *slog.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{log: log, gs: gs, health: hs}
}

// SetServing flips both the overall and the order service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc listening", "addr", lis.Addr().String())
	return s.gs.Serve(lis)
}

func Run(log *slog.Logger, addr string, srv *Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc server stopped", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.gs.GracefulStop()
}
