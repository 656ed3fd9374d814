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

// Package notify decides which pending events become notifications. Each
// dispatch pre-filters opted-out and repeated alerts, queries the configured
// sections, consumes exactly the rows it reports and returns them as a batch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/condition"
	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/settings"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

var ErrStoreRequired = errors.New("notification store is required")

// Gate runs dispatches against a notification store.
type Gate struct {
	logger   logger.Logger
	compiler *condition.Compiler
	clock    timeutil.Clock
	defaults map[string]string
	timezone string
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces the wall clock.
func WithClock(clock timeutil.Clock) Option {
	return func(g *Gate) {
		g.clock = clock
	}
}

// WithDefaults sets the settings used when a key is not stored.
func WithDefaults(defaults map[string]string) Option {
	return func(g *Gate) {
		g.defaults = defaults
	}
}

// WithTimezone sets the display timezone used when TIMEZONE is not stored.
func WithTimezone(name string) Option {
	return func(g *Gate) {
		g.timezone = name
	}
}

// WithCompiler replaces the condition compiler.
func WithCompiler(c *condition.Compiler) Option {
	return func(g *Gate) {
		g.compiler = c
	}
}

// NewGate returns a gate with the default compiler and the system clock.
func NewGate(log logger.Logger, opts ...Option) *Gate {
	g := &Gate{
		logger: log,
		clock:  timeutil.SystemClock{},
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.compiler == nil {
		g.compiler = condition.NewCompiler(log)
	}

	return g
}

// sectionRun is the raw outcome of one section query.
type sectionRun struct {
	section Section
	result  *db.QueryResult
	failed  bool
}

// Dispatch runs one notification pass inside the caller's transaction.
// Section query failures are isolated; any other store failure aborts the
// pass and the caller must roll back.
func (g *Gate) Dispatch(ctx context.Context, store db.NotificationStore, cycleID string) (*models.NotificationBatch, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	cfg, err := settings.Load(ctx, store, g.defaults)
	if err != nil {
		return nil, err
	}

	now := g.clock.Now()
	downCutoff := now.Add(-cfg.AlertDownDelay())
	loc := g.location(cfg)

	optedOut, err := store.ClearOptedOutAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear opted-out alerts: %w", err)
	}

	repeated, err := store.ClearRepeatedAlerts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("clear repeated alerts: %w", err)
	}

	runs := g.querySections(ctx, store, cfg, downCutoff)

	if err := g.consume(ctx, store, runs); err != nil {
		return nil, err
	}

	remaining, err := store.ClearRemainingAlerts(ctx, downCutoff, failedEventTypes(runs))
	if err != nil {
		return nil, fmt.Errorf("clear remaining alerts: %w", err)
	}

	if macs := deliveredMACs(runs); len(macs) > 0 {
		if err := store.MarkNotified(ctx, macs, now); err != nil {
			return nil, fmt.Errorf("mark notified: %w", err)
		}
	}

	batch := &models.NotificationBatch{
		CycleID:     cycleID,
		GeneratedAt: now,
		Timezone:    loc.String(),
		Sections:    make([]models.SectionResult, 0, len(runs)),
	}

	for _, run := range runs {
		batch.Sections = append(batch.Sections, g.render(run, loc))
	}

	g.logger.Info().
		Str("cycle_id", cycleID).
		Int64("opted_out", optedOut).
		Int64("repeated", repeated).
		Int64("cleared", remaining).
		Int("sections", len(batch.Sections)).
		Int("rows", batch.Count()).
		Msg("notification dispatch complete")

	return batch, nil
}

func (g *Gate) location(cfg *settings.Settings) *time.Location {
	name := cfg.Timezone(g.timezone)

	loc, err := timeutil.LoadLocation(name)
	if err != nil {
		g.logger.Warn().Err(err).Str("timezone", name).Msg("unknown timezone, using UTC")
		return time.UTC
	}

	return loc
}

func (g *Gate) querySections(
	ctx context.Context, store db.NotificationStore, cfg *settings.Settings, downCutoff time.Time,
) []sectionRun {
	var runs []sectionRun

	seen := make(map[string]struct{})

	for _, name := range cfg.IncludedSections() {
		section, ok := LookupSection(name)
		if !ok {
			g.logger.Warn().Str("section", name).Msg("skipping unknown notification section")
			continue
		}

		if _, dup := seen[section.Name]; dup {
			continue
		}

		seen[section.Name] = struct{}{}

		args := pgx.NamedArgs{"down_cutoff": downCutoff}
		fragment := ""

		if section.AcceptsCondition {
			compiled := g.compiler.Compile(cfg.SectionCondition(section.Name))
			fragment = compiled.Fragment

			for k, v := range compiled.Params {
				args[k] = v
			}
		}

		result, err := store.QuerySection(ctx, section.render(fragment), args)
		if err != nil {
			g.logger.Warn().
				Err(err).
				Str("section", section.Name).
				Msg("section query failed, reporting it empty")

			runs = append(runs, sectionRun{section: section, result: &db.QueryResult{}, failed: true})

			continue
		}

		runs = append(runs, sectionRun{section: section, result: result})
	}

	return runs
}

// consume clears the pending state of every reported row and drops the rows
// another consumer cleared first.
func (*Gate) consume(ctx context.Context, store db.NotificationStore, runs []sectionRun) error {
	var eventIDs, pluginIDs []int64

	for _, run := range runs {
		for _, row := range run.result.Rows {
			id, ok := rowID(row)
			if !ok {
				continue
			}

			if run.section.source == sourcePlugins {
				pluginIDs = append(pluginIDs, id)
			} else {
				eventIDs = append(eventIDs, id)
			}
		}
	}

	consumedEvents, err := consumeIDs(ctx, dedupe(eventIDs), store.ConsumeEvents)
	if err != nil {
		return fmt.Errorf("consume events: %w", err)
	}

	consumedPlugins, err := consumeIDs(ctx, dedupe(pluginIDs), store.ConsumePluginEvents)
	if err != nil {
		return fmt.Errorf("consume plugin events: %w", err)
	}

	for i := range runs {
		consumed := consumedEvents
		if runs[i].section.source == sourcePlugins {
			consumed = consumedPlugins
		}

		kept := runs[i].result.Rows[:0]

		for _, row := range runs[i].result.Rows {
			if id, ok := rowID(row); ok {
				if _, done := consumed[id]; done {
					kept = append(kept, row)
				}
			}
		}

		runs[i].result.Rows = kept
	}

	return nil
}

func consumeIDs(
	ctx context.Context, ids []int64, fn func(context.Context, []int64) ([]int64, error),
) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	consumed, err := fn(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range consumed {
		out[id] = struct{}{}
	}

	return out, nil
}

func deliveredMACs(runs []sectionRun) []string {
	set := make(map[string]struct{})

	for _, run := range runs {
		for _, row := range run.result.Rows {
			if mac, ok := row[colMAC].(string); ok && mac != "" {
				set[mac] = struct{}{}
			}
		}
	}

	macs := make([]string, 0, len(set))
	for mac := range set {
		macs = append(macs, mac)
	}

	sort.Strings(macs)

	return macs
}

// failedEventTypes lists the event kinds of failed sections. Their pending
// rows stay pending for the next dispatch.
func failedEventTypes(runs []sectionRun) []models.EventType {
	var out []models.EventType

	seen := make(map[models.EventType]struct{})

	for _, run := range runs {
		if !run.failed {
			continue
		}

		for _, typ := range run.section.eventTypes {
			if _, ok := seen[typ]; ok {
				continue
			}

			seen[typ] = struct{}{}
			out = append(out, typ)
		}
	}

	return out
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func rowID(row map[string]interface{}) (int64, bool) {
	switch v := row[colRowID].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
