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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwills/NetAlertX/pkg/grpc"
	"github.com/bryanwills/NetAlertX/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var errServiceNil = errors.New("service is required")

// Service is a long-running component driven by RunServer.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HealthAware services receive a callback for reporting their serving state.
type HealthAware interface {
	SetHealthReporter(report func(serving bool))
}

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr  string
	ServiceName string
	Service     Service
	Logger      logger.Logger
}

// RunServer starts the service and, when ListenAddr is set, a gRPC health server
// reporting it. It blocks until ctx is cancelled or the health server fails, then
// stops both.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.Service == nil {
		return errServiceNil
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	errCh := make(chan error, 1)

	var server *grpc.Server

	if opts.ListenAddr != "" {
		server = grpc.NewServer(opts.ListenAddr, log)

		if aware, ok := opts.Service.(HealthAware); ok {
			aware.SetHealthReporter(func(serving bool) {
				server.SetServing(opts.ServiceName, serving)
			})
		}
	}

	if err := opts.Service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.ServiceName, err)
	}

	if server != nil {
		server.SetServing(opts.ServiceName, true)

		go func() {
			errCh <- server.Start()
		}()
	}

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Shutdown requested")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("Health server exited")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if server != nil {
		server.Stop(stopCtx)
	}

	if err := opts.Service.Stop(stopCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to stop %s: %w", opts.ServiceName, err))
	}

	return runErr
}
