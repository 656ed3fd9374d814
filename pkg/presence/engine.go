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

// Package presence diffs a cycle's scan snapshot against the device registry
// and records the resulting state transitions as events.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/settings"
)

var (
	ErrCycleIDRequired = errors.New("cycle id is required")
	ErrNoSettings      = errors.New("cycle settings are required")
)

// Store is the slice of the cycle transaction the engine reads and writes.
type Store interface {
	db.SnapshotStore
	db.DeviceStore
	db.EventStore
}

// Cycle identifies the snapshot to diff.
type Cycle struct {
	ID        string
	ScannedAt time.Time
	Settings  *settings.Settings
}

// Result summarizes one diff. Events carry their stored ids.
type Result struct {
	Events   []*models.Event
	Counts   map[models.EventType]int
	Scanned  int
	Ignored  int
	Archived int
}

// Engine turns snapshots into presence transitions.
type Engine struct {
	logger logger.Logger
}

// NewEngine returns an engine logging through log.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Process diffs the snapshot of cycle against the registry. For every known,
// non-archived device it emits at most one event per transition:
//
//   - absent to present: Down Reconnected after a Device Down, Connected otherwise
//   - present to absent: Device Down when the device alerts on down, Disconnected otherwise
//   - present with a new IP: IP Changed
//   - unknown MAC: New Device, and the device is registered
//
// Devices that keep their state produce nothing, so replaying a cycle is a no-op.
func (e *Engine) Process(ctx context.Context, store Store, cycle Cycle) (*Result, error) {
	if cycle.ID == "" {
		return nil, ErrCycleIDRequired
	}

	if cycle.Settings == nil {
		return nil, ErrNoSettings
	}

	rows, err := store.SnapshotRows(ctx, cycle.ID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	devices, err := store.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("read devices: %w", err)
	}

	// Stored MACs may predate normalization, so both sides of the join are keyed
	// by the normalized form while writes keep the stored one.
	registry := make(map[string]*models.Device, len(devices))
	for i := range devices {
		registry[models.NormalizeMAC(devices[i].MAC)] = &devices[i]
	}

	result := &Result{Counts: make(map[models.EventType]int)}

	seen, ignored := ExcludeIgnored(rows, cycle.Settings.IgnoreList())
	result.Ignored = ignored

	d := &diff{
		cycle:    cycle,
		defaults: cycle.Settings.NewDeviceDefaults(),
	}

	for _, row := range seen {
		dev, known := registry[models.NormalizeMAC(row.MAC)]

		switch {
		case !known:
			d.newDevice(row)
		case dev.IsArchived:
			result.Archived++
		case !dev.PresentLastScan:
			d.reconnect(dev, row)
		default:
			d.stillPresent(dev, row)
		}
	}

	present := make(map[string]struct{}, len(seen))
	for _, row := range seen {
		present[models.NormalizeMAC(row.MAC)] = struct{}{}
	}

	for i := range devices {
		dev := &devices[i]
		if _, ok := present[models.NormalizeMAC(dev.MAC)]; ok || dev.IsArchived || !dev.PresentLastScan {
			continue
		}

		if ignoredDevice(cycle.Settings.IgnoreList(), dev) {
			continue
		}

		d.disappear(dev)
	}

	if err := d.resolveReconnects(ctx, store); err != nil {
		return nil, err
	}

	if err := e.persist(ctx, store, d); err != nil {
		return nil, err
	}

	result.Scanned = len(seen)
	result.Events = d.events

	for _, ev := range d.events {
		result.Counts[ev.Type]++
	}

	e.logger.Info().
		Str("cycle_id", cycle.ID).
		Int("scanned", result.Scanned).
		Int("ignored", result.Ignored).
		Int("archived", result.Archived).
		Int("events", len(result.Events)).
		Int("new_devices", result.Counts[models.EventNewDevice]).
		Msg("presence diff complete")

	return result, nil
}

func (e *Engine) persist(ctx context.Context, store Store, d *diff) error {
	if len(d.newDevices) > 0 {
		if err := store.InsertDevices(ctx, d.newDevices); err != nil {
			return fmt.Errorf("register devices: %w", err)
		}
	}

	if len(d.updates) > 0 {
		if err := store.UpdatePresence(ctx, d.updates); err != nil {
			return fmt.Errorf("update presence: %w", err)
		}
	}

	sort.SliceStable(d.events, func(i, j int) bool { return d.events[i].MAC < d.events[j].MAC })

	if len(d.events) > 0 {
		if err := store.InsertEvents(ctx, d.events); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
	}

	for _, ev := range d.events {
		e.logger.Debug().
			Str("mac", ev.MAC).
			Str("ip", ev.IP).
			Str("event_type", string(ev.Type)).
			Int64("event_id", ev.ID).
			Msg("presence event")
	}

	return nil
}

// ExcludeIgnored drops rows matching the ignore list and returns how many it dropped.
func ExcludeIgnored(rows []models.ScanRow, ignore *settings.IgnoreList) ([]models.ScanRow, int) {
	if ignore.Empty() {
		return rows, 0
	}

	kept := make([]models.ScanRow, 0, len(rows))

	for _, row := range rows {
		if ignore.Match(row.MAC, row.IP) {
			continue
		}

		kept = append(kept, row)
	}

	return kept, len(rows) - len(kept)
}

func ignoredDevice(ignore *settings.IgnoreList, dev *models.Device) bool {
	return ignore.Match(dev.MAC, dev.LastIP)
}
