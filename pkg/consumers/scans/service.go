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

package scans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/lifecycle"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var (
	ErrJetStreamNil = errors.New("jetstream handle is required")
	ErrConfigNil    = errors.New("nats configuration is required")
)

// Service runs the scan consumer under lifecycle.RunServer.
type Service struct {
	cfg       *models.NATSConfig
	js        jetstream.JetStream
	runner    CycleRunner
	processor *Processor
	ackWait   time.Duration
	logger    logger.Logger

	consumer *Consumer
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	health   lifecycle.HealthAware
}

// NewService consumes cfg.Subject from cfg.Stream and runs each report
// through runner, bounded by cycleTimeout.
func NewService(
	cfg *models.NATSConfig, js jetstream.JetStream, runner CycleRunner, cycleTimeout time.Duration, log logger.Logger,
) (*Service, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if js == nil {
		return nil, ErrJetStreamNil
	}

	if runner == nil {
		return nil, ErrRunnerNil
	}

	svc := &Service{
		cfg:       cfg,
		js:        js,
		runner:    runner,
		processor: NewProcessor(runner, cycleTimeout, log),
		ackWait:   2 * cycleTimeout,
		logger:    log,
	}

	if aware, ok := runner.(lifecycle.HealthAware); ok {
		svc.health = aware
	}

	if svc.ackWait <= 0 {
		svc.ackWait = 30 * time.Second
	}

	return svc, nil
}

// SetHealthReporter forwards the health callback to the runner.
func (s *Service) SetHealthReporter(report func(serving bool)) {
	if s.health != nil {
		s.health.SetHealthReporter(report)
	}
}

// Start creates the consumer and launches the fetch loop.
func (s *Service) Start(ctx context.Context) error {
	consumer, err := NewConsumer(ctx, s.js, s.cfg.Stream, s.cfg.Consumer, s.cfg.Subject, s.ackWait, s.logger)
	if err != nil {
		return fmt.Errorf("failed to start scan consumer: %w", err)
	}

	s.consumer = consumer

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.consumer.ProcessMessages(loopCtx, s.processor)
	}()

	s.logger.Info().
		Str("stream", s.cfg.Stream).
		Str("consumer", s.cfg.Consumer).
		Str("subject", s.cfg.Subject).
		Msg("Scan consumer started")

	return nil
}

// Stop cancels the loop and waits for the in-flight cycle, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scan consumer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scan consumer did not stop: %w", ctx.Err())
	}
}

var (
	_ lifecycle.Service     = (*Service)(nil)
	_ lifecycle.HealthAware = (*Service)(nil)
)
