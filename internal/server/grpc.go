package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "geotrack/backend/internal/health/handler"
)

// Deps holds the dependencies of the gRPC surface.
type Deps struct {
	// Health answers grpc.health.v1.Health/Check. If nil, the health service is not registered.
	Health *healthhandler.Server
	// Reflection registers the gRPC reflection service (useful with grpcurl in development).
	Reflection bool
}

// NewGRPCServer returns a gRPC server instrumented with the otelgrpc stats handler
// and with the services in deps registered.
func NewGRPCServer(deps Deps) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterServices(s, deps)
	if deps.Reflection {
		reflection.Register(s)
	}
	return s
}

// RegisterServices registers the gRPC services with the given registrar.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}
