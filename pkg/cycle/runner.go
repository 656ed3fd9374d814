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

// Package cycle runs one presence cycle end to end: snapshot, diff, session
// pairing and snapshot clear commit together, then the notification gate runs
// in a second transaction over the committed events.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/presence"
	"github.com/bryanwills/NetAlertX/pkg/sessions"
	"github.com/bryanwills/NetAlertX/pkg/settings"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

const tracerName = "netalertx.presence.cycle"

var (
	ErrStoreRequired      = errors.New("cycle store is required")
	ErrDispatcherRequired = errors.New("cycle dispatcher is required")
	ErrReportRequired     = errors.New("scan report is required")
	ErrDetect             = errors.New("presence detection failed")
	ErrDispatch           = errors.New("notification dispatch failed")
)

// Dispatcher turns pending events into a batch inside the given transaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, store db.NotificationStore, cycleID string) (*models.NotificationBatch, error)
}

// Publisher hands a non-empty batch to the delivery side. A failed publish
// rolls the dispatch back so the events stay pending.
type Publisher interface {
	PublishBatch(ctx context.Context, batch *models.NotificationBatch) error
}

// Config wires a Runner.
type Config struct {
	Store      db.TxRunner
	Dispatcher Dispatcher
	// Publisher is optional. Without one, batches are only returned.
	Publisher Publisher
	Clock     timeutil.Clock
	// Defaults are used for settings keys that are not stored.
	Defaults map[string]string
	Logger   logger.Logger
}

// Outcome is what one cycle did.
type Outcome struct {
	CycleID   string
	ScannedAt time.Time
	Presence  *presence.Result
	Sessions  *sessions.Result
	Batch     *models.NotificationBatch
	Published bool
}

// Runner executes cycles one at a time.
type Runner struct {
	store      db.TxRunner
	dispatcher Dispatcher
	publisher  Publisher
	clock      timeutil.Clock
	defaults   map[string]string
	logger     logger.Logger
	engine     *presence.Engine
	pairer     *sessions.Pairer
	tracer     trace.Tracer

	mu     sync.Mutex
	report func(serving bool)
}

// NewRunner validates cfg and builds the engine and pairer.
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, ErrStoreRequired
	}

	if cfg.Dispatcher == nil {
		return nil, ErrDispatcherRequired
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	return &Runner{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		publisher:  cfg.Publisher,
		clock:      clock,
		defaults:   cfg.Defaults,
		logger:     log,
		engine:     presence.NewEngine(log),
		pairer:     sessions.NewPairer(log),
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// SetHealthReporter receives the serving-state callback of the health server.
func (r *Runner) SetHealthReporter(report func(serving bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report = report
}

// Run processes one scan report. A report without a cycle id gets a fresh one,
// and one without a scan time is stamped with the clock.
func (r *Runner) Run(ctx context.Context, report *models.ScanReport) (*Outcome, error) {
	if report == nil {
		return nil, ErrReportRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()

	outcome := &Outcome{
		CycleID:   report.CycleID,
		ScannedAt: report.ScannedAt,
	}

	if outcome.CycleID == "" {
		outcome.CycleID = uuid.NewString()
	}

	if outcome.ScannedAt.IsZero() {
		outcome.ScannedAt = r.clock.Now()
	}

	outcome.ScannedAt = outcome.ScannedAt.UTC()
	rows := report.NormalizedRows()

	ctx, span := r.tracer.Start(ctx, "presence.cycle", trace.WithAttributes(
		attribute.String("cycle.id", outcome.CycleID),
		attribute.String("scan.source", report.Source),
		attribute.Int("scan.rows", len(rows)),
	))
	defer span.End()

	if err := r.detect(ctx, outcome, report.Source, rows); err != nil {
		r.fail(ctx, span, started, "detect", err)
		return nil, fmt.Errorf("%w: cycle %s: %w", ErrDetect, outcome.CycleID, err)
	}

	r.setServing(true)

	if err := r.dispatch(ctx, outcome); err != nil {
		r.fail(ctx, span, started, "dispatch", err)
		return outcome, fmt.Errorf("%w: cycle %s: %w", ErrDispatch, outcome.CycleID, err)
	}

	recordPresence(ctx, outcome.Presence)
	recordSessions(ctx, outcome.Sessions)
	recordBatch(ctx, outcome.Batch)
	recordCycle(ctx, "success", time.Since(started))

	span.SetAttributes(
		attribute.Int("presence.events", len(outcome.Presence.Events)),
		attribute.Int("notify.rows", outcome.Batch.Count()),
	)

	r.logger.Info().
		Str("cycle_id", outcome.CycleID).
		Str("source", report.Source).
		Int("rows", len(rows)).
		Int("events", len(outcome.Presence.Events)).
		Int("sessions_opened", outcome.Sessions.Opened).
		Int("sessions_closed", outcome.Sessions.Closed).
		Int("notified", outcome.Batch.Count()).
		Bool("published", outcome.Published).
		Dur("took", time.Since(started)).
		Msg("presence cycle complete")

	return outcome, nil
}

// detect is the first transaction: snapshot, diff, pairing and snapshot clear.
func (r *Runner) detect(ctx context.Context, outcome *Outcome, source string, rows []models.ScanRow) error {
	return r.store.InTx(ctx, func(ctx context.Context, tx db.CycleTx) error {
		cfg, err := settings.Load(ctx, tx, r.defaults)
		if err != nil {
			return err
		}

		if err := tx.SaveSnapshot(ctx, outcome.CycleID, source, rows, outcome.ScannedAt); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		result, err := r.engine.Process(ctx, tx, presence.Cycle{
			ID:        outcome.CycleID,
			ScannedAt: outcome.ScannedAt,
			Settings:  cfg,
		})
		if err != nil {
			return err
		}

		paired, err := r.pairer.Pair(ctx, tx, result.Events)
		if err != nil {
			return err
		}

		cleared, err := tx.ClearSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}

		r.logger.Debug().
			Str("cycle_id", outcome.CycleID).
			Int64("snapshot_rows_cleared", cleared).
			Msg("snapshot cleared")

		outcome.Presence = result
		outcome.Sessions = paired

		return nil
	})
}

// dispatch is the second transaction. Publishing happens before commit, so a
// failed publish leaves every event pending for the next cycle.
func (r *Runner) dispatch(ctx context.Context, outcome *Outcome) error {
	return r.store.InTx(ctx, func(ctx context.Context, tx db.CycleTx) error {
		batch, err := r.dispatcher.Dispatch(ctx, tx, outcome.CycleID)
		if err != nil {
			return err
		}

		if batch == nil {
			batch = &models.NotificationBatch{CycleID: outcome.CycleID}
		}

		outcome.Batch = batch
		outcome.Published = false

		if r.publisher == nil || batch.Empty() {
			return nil
		}

		if err := r.publisher.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publish batch: %w", err)
		}

		outcome.Published = true

		return nil
	})
}

func (r *Runner) fail(ctx context.Context, span trace.Span, started time.Time, stage string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")

	recordCycle(ctx, "error", time.Since(started))

	if isFatal(err) {
		r.setServing(false)
	}

	r.logger.Error().
		Err(err).
		Str("stage", stage).
		Msg("presence cycle failed")
}

func (r *Runner) setServing(serving bool) {
	if r.report != nil {
		r.report(serving)
	}
}

// isFatal reports storage failures that will not heal by retrying the report.
func isFatal(err error) bool {
	return errors.Is(err, db.ErrBeginTx) ||
		errors.Is(err, db.ErrCommitTx) ||
		errors.Is(err, db.ErrCycleLock) ||
		errors.Is(err, db.ErrNilPool)
}
