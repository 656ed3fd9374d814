/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package grpc hosts the gRPC health endpoint of the presence daemon.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

var errInternalError = errors.New("internal error")

// Server wraps a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	srv         *grpc.Server
	healthCheck *health.Server
	addr        string
	logger      logger.Logger
	mu          sync.Mutex
	listener    net.Listener
}

// NewServer creates a server with logging, recovery and OTel stats handling.
func NewServer(addr string, log logger.Logger) *Server {
	s := &Server{
		addr:        addr,
		logger:      log,
		healthCheck: health.NewServer(),
	}

	s.srv = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(log),
			RecoveryInterceptor(log),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 10 * time.Minute,
			Time:              120 * time.Second,
			Timeout:           20 * time.Second,
		}),
	)

	healthpb.RegisterHealthServer(s.srv, s.healthCheck)

	return s
}

// SetServing flips the health status of service and of the server as a whole.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.healthCheck.SetServingStatus(service, status)
	s.healthCheck.SetServingStatus("", status)
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lc := &net.ListenConfig{}

	lis, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	return nil
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop marks everything NOT_SERVING and stops gracefully, forcing after ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.healthCheck.Shutdown()

	stopped := make(chan struct{})

	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC server shutdown timed out, forcing stop")
		s.srv.Stop()
	}
}

// LoggingInterceptor logs each RPC at debug level.
func LoggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		log.Debug().
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("gRPC call")

		return resp, err
	}
}

// RecoveryInterceptor handles panics in RPC handlers.
func RecoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("method", info.FullMethod).Interface("panic", r).Msg("Recovered from panic")

				err = errInternalError
			}
		}()

		return handler(ctx, req)
	}
}
