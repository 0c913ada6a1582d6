// Package launcherserver exposes the bootstrap state over gRPC as a
// standard health service, so a supervisor can tell whether the engine
// currently owns the process.
package launcherserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/xaionaro-go/enginelauncher/pkg/launcher"
	"github.com/xaionaro-go/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name which mirrors the bootstrap state.
const ServiceName = "enginelauncher"

// StateSource is the part of launcher.Launcher the server observes.
type StateSource interface {
	SubscribeStates(ctx context.Context) <-chan launcher.State
}

type Server struct {
	Source        StateSource
	Observability *belt.Belt
	Health        *health.Server
	GRPCServer    *grpc.Server
}

func New(
	ctx context.Context,
	source StateSource,
) *Server {
	srv := &Server{
		Source:        source,
		Observability: belt.CtxBelt(ctx),
		Health:        health.NewServer(),
	}
	srv.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv.GRPCServer = grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(
			srv.unaryLoggingInterceptor,
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandlerContext(srv.recoveryHandler)),
		),
		grpc_middleware.WithStreamServerChain(
			srv.streamLoggingInterceptor,
			grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandlerContext(srv.recoveryHandler)),
		),
	)
	healthpb.RegisterHealthServer(srv.GRPCServer, srv.Health)
	reflection.Register(srv.GRPCServer)
	return srv
}

func (srv *Server) ctx(ctx context.Context) context.Context {
	return belt.CtxWithBelt(ctx, srv.Observability)
}

// ServingStatus maps a bootstrap state to the health status: SERVING
// only while the engine entry owns the process.
func ServingStatus(state launcher.State) healthpb.HealthCheckResponse_ServingStatus {
	if state == launcher.StateEngineEntryInvoked {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// MirrorStates follows the source until it reaches the terminal state or
// ctx is cancelled.
func (srv *Server) MirrorStates(ctx context.Context) {
	logger.Debugf(ctx, "MirrorStates")
	defer func() { logger.Debugf(ctx, "/MirrorStates") }()
	for state := range srv.Source.SubscribeStates(ctx) {
		st := ServingStatus(state)
		logger.Debugf(ctx, "state %s -> %s", state, st)
		srv.Health.SetServingStatus(ServiceName, st)
	}
	srv.Health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// ServeContext serves until ctx is cancelled or the listener fails.
func (srv *Server) ServeContext(
	ctx context.Context,
	listener net.Listener,
) (_err error) {
	logger.Debugf(ctx, "ServeContext(ctx, %s)", listener.Addr())
	defer func() { logger.Debugf(ctx, "/ServeContext(ctx, %s): %v", listener.Addr(), _err) }()

	observability.Go(ctx, func(ctx context.Context) {
		srv.MirrorStates(ctx)
	})
	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		srv.Health.Shutdown()
		srv.GRPCServer.GracefulStop()
	})

	err := srv.GRPCServer.Serve(listener)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("unable to serve: %w", err)
	}
	return nil
}

func (srv *Server) recoveryHandler(ctx context.Context, p any) error {
	logger.Errorf(srv.ctx(ctx), "panic in a gRPC handler: %v", p)
	return status.Errorf(codes.Internal, "internal error")
}

func (srv *Server) unaryLoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (_ret any, _err error) {
	ctx = srv.ctx(ctx)
	logger.Tracef(ctx, "%s(%v)", info.FullMethod, req)
	defer func() { logger.Tracef(ctx, "/%s(%v): %v %v", info.FullMethod, req, _ret, _err) }()
	return handler(ctx, req)
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s serverStream) Context() context.Context {
	return s.ctx
}

func (srv *Server) streamLoggingInterceptor(
	s any,
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) (_err error) {
	ctx := srv.ctx(ss.Context())
	logger.Debugf(ctx, "%s", info.FullMethod)
	defer func() { logger.Debugf(ctx, "/%s: %v", info.FullMethod, _err) }()
	return handler(s, serverStream{ServerStream: ss, ctx: ctx})
}
