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

package cycle

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/presence"
	"github.com/bryanwills/NetAlertX/pkg/sessions"
)

const (
	meterName = "netalertx.presence"

	metricCyclesTotal         = "presence_cycles_total"
	metricCycleDuration       = "presence_cycle_duration_seconds"
	metricEventsTotal         = "presence_events_total"
	metricSessionsTotal       = "presence_sessions_total"
	metricNotificationsTotal  = "presence_notifications_total"
	metricSectionFailureTotal = "presence_section_failures_total"
	metricPrunedRowsTotal     = "presence_pruned_rows_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	cyclesCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	cycleLatency metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	eventsCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionsCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	notificationsCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sectionFailureCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	prunedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	if counter, err := meter.Int64Counter(
		metricCyclesTotal,
		metric.WithDescription("Presence cycles run, by outcome"),
	); err != nil {
		otel.Handle(err)
	} else {
		cyclesCounter = counter
	}

	if hist, err := meter.Float64Histogram(
		metricCycleDuration,
		metric.WithDescription("Wall time of one presence cycle including dispatch"),
		metric.WithUnit("s"),
	); err != nil {
		otel.Handle(err)
	} else {
		cycleLatency = hist
	}

	if counter, err := meter.Int64Counter(
		metricEventsTotal,
		metric.WithDescription("Presence events emitted, by event type"),
	); err != nil {
		otel.Handle(err)
	} else {
		eventsCounter = counter
	}

	if counter, err := meter.Int64Counter(
		metricSessionsTotal,
		metric.WithDescription("Session writes, by action"),
	); err != nil {
		otel.Handle(err)
	} else {
		sessionsCounter = counter
	}

	if counter, err := meter.Int64Counter(
		metricNotificationsTotal,
		metric.WithDescription("Rows consumed into notification batches, by section"),
	); err != nil {
		otel.Handle(err)
	} else {
		notificationsCounter = counter
	}

	if counter, err := meter.Int64Counter(
		metricSectionFailureTotal,
		metric.WithDescription("Notification section queries that failed"),
	); err != nil {
		otel.Handle(err)
	} else {
		sectionFailureCounter = counter
	}

	if counter, err := meter.Int64Counter(
		metricPrunedRowsTotal,
		metric.WithDescription("History rows removed by retention, by table"),
	); err != nil {
		otel.Handle(err)
	} else {
		prunedCounter = counter
	}
}

func recordCycle(ctx context.Context, outcome string, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	if cyclesCounter != nil {
		cyclesCounter.Add(ctx, 1, attrs)
	}

	if cycleLatency != nil {
		if duration < 0 {
			duration = 0
		}

		cycleLatency.Record(ctx, duration.Seconds(), attrs)
	}
}

func recordPresence(ctx context.Context, result *presence.Result) {
	meterOnce.Do(initMeter)

	if eventsCounter == nil || result == nil {
		return
	}

	for eventType, n := range result.Counts {
		eventsCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("event_type", string(eventType))))
	}
}

func recordSessions(ctx context.Context, result *sessions.Result) {
	meterOnce.Do(initMeter)

	if sessionsCounter == nil || result == nil {
		return
	}

	for action, n := range map[string]int{
		"opened":  result.Opened,
		"closed":  result.Closed,
		"orphan":  result.Orphans,
		"skipped": result.Skipped,
	} {
		if n > 0 {
			sessionsCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("action", action)))
		}
	}
}

func recordBatch(ctx context.Context, batch *models.NotificationBatch) {
	meterOnce.Do(initMeter)

	if batch == nil {
		return
	}

	for i := range batch.Sections {
		section := &batch.Sections[i]
		attrs := metric.WithAttributes(attribute.String("section", section.Name))

		if section.Failed && sectionFailureCounter != nil {
			sectionFailureCounter.Add(ctx, 1, attrs)
		}

		if n := len(section.Rows); n > 0 && notificationsCounter != nil {
			notificationsCounter.Add(ctx, int64(n), attrs)
		}
	}
}

func recordPrune(ctx context.Context, result db.PruneResult) {
	meterOnce.Do(initMeter)

	if prunedCounter == nil {
		return
	}

	prunedCounter.Add(ctx, result.Sessions, metric.WithAttributes(attribute.String("table", "sessions")))
	prunedCounter.Add(ctx, result.Events, metric.WithAttributes(attribute.String("table", "events")))
}
