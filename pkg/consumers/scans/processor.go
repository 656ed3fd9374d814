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

// Package scans consumes scan reports from JetStream and runs one presence
// cycle per report.
package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/cycle"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var (
	ErrEmptyMessage = errors.New("empty message received")
	ErrUnmarshal    = errors.New("failed to unmarshal scan report")
	ErrRunnerNil    = errors.New("cycle runner is required")
)

// CycleRunner runs one presence cycle.
type CycleRunner interface {
	Run(ctx context.Context, report *models.ScanReport) (*cycle.Outcome, error)
}

// Processor decodes a report and hands it to the runner.
type Processor struct {
	runner  CycleRunner
	timeout time.Duration
	logger  logger.Logger
}

// NewProcessor bounds every cycle by timeout when it is positive.
func NewProcessor(runner CycleRunner, timeout time.Duration, log logger.Logger) *Processor {
	return &Processor{runner: runner, timeout: timeout, logger: log}
}

// permanent marks errors a redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrUnmarshal)
}

// Process runs the cycle for one message payload. Reports without a cycle id
// take one from the stream sequence so a redelivery replays the same cycle.
func (p *Processor) Process(ctx context.Context, data []byte, meta *jetstream.MsgMetadata) error {
	if p.runner == nil {
		return ErrRunnerNil
	}

	if len(data) == 0 {
		return ErrEmptyMessage
	}

	var report models.ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshal, err)
	}

	if report.CycleID == "" && meta != nil {
		report.CycleID = fmt.Sprintf("%s-%d", meta.Stream, meta.Sequence.Stream)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	outcome, err := p.runner.Run(ctx, &report)
	if err != nil {
		return err
	}

	p.logger.Debug().
		Str("cycle_id", outcome.CycleID).
		Str("source", report.Source).
		Int("rows", len(report.Rows)).
		Msg("Processed scan report")

	return nil
}
