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
	"time"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

// Pruner deletes closed sessions and events older than a number of days.
type Pruner interface {
	PruneHistory(ctx context.Context, days int, now time.Time) (db.PruneResult, error)
}

// HistoryReaper periodically trims presence history.
type HistoryReaper struct {
	pruner   Pruner
	clock    timeutil.Clock
	logger   logger.Logger
	interval time.Duration
	days     int
}

// NewHistoryReaper creates a reaper keeping days of history. A non-positive
// days disables it.
func NewHistoryReaper(pruner Pruner, clock timeutil.Clock, log logger.Logger, interval time.Duration, days int) *HistoryReaper {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	return &HistoryReaper{
		pruner:   pruner,
		clock:    clock,
		logger:   log,
		interval: interval,
		days:     days,
	}
}

// Start prunes once, then on every tick until ctx is cancelled.
func (r *HistoryReaper) Start(ctx context.Context) {
	if r.pruner == nil || r.days <= 0 || r.interval <= 0 {
		r.logger.Info().Msg("History retention disabled")
		return
	}

	r.logger.Info().
		Str("interval", r.interval.String()).
		Int("days", r.days).
		Msg("Starting history reaper")

	r.reap(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("History reaper stopping")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *HistoryReaper) reap(ctx context.Context) {
	result, err := r.pruner.PruneHistory(ctx, r.days, r.clock.Now())
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Failed to prune presence history")
		}

		return
	}

	recordPrune(ctx, result)
}
