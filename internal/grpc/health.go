package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name reported through grpc.health.v1.
const ServiceName = "mm.shoppingcart"

// Probe reports whether one dependency is usable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthServer serves grpc.health.v1 for the cart service. The status of
// ServiceName (and of the empty name) follows the probes: SERVING when every
// probe passes, NOT_SERVING otherwise.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
}

func NewHealthServer(interval time.Duration, probes ...Probe) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	server := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(server)

	return &HealthServer{
		server:   server,
		health:   hs,
		probes:   probes,
		interval: interval,
		timeout:  interval / 2,
	}
}

// Watch runs the probes once, then every interval until ctx is done.
func (s *HealthServer) Watch(ctx context.Context) {
	s.check(ctx)
	go s.loop(ctx)
}

// Serve blocks serving lis until Stop.
func (s *HealthServer) Serve(lis net.Listener) error {
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for _, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "health probe failed", "probe", p.Name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

// Stop marks the service NOT_SERVING and drains in-flight RPCs.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
