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

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/models"
)

const (
	selectDevicesSQL = `SELECT
	"devMac", "devName", "devVendor", "devLastIP",
	"devPresentLastScan", "devAlertDown", "devAlertEvents", "devIsArchived", "devIsNew",
	"devFirstConnection", "devLastConnection", "devLastNotification", "devSkipRepeated"
FROM "Devices"
ORDER BY "devMac"`

	insertDeviceSQL = `INSERT INTO "Devices" (
	"devMac", "devName", "devVendor", "devLastIP",
	"devPresentLastScan", "devAlertDown", "devAlertEvents", "devIsArchived", "devIsNew",
	"devFirstConnection", "devLastConnection", "devSkipRepeated"
) VALUES (
	@mac, @name, @vendor, @ip,
	@present, @alert_down, @alert_events, 0, 1,
	@first_seen, @last_seen, @skip_repeated
) ON CONFLICT DO NOTHING`

	updatePresentSQL = `UPDATE "Devices" SET
	"devPresentLastScan" = 1,
	"devLastIP" = CASE WHEN @ip = '' THEN "devLastIP" ELSE @ip END,
	"devLastConnection" = @seen_at
WHERE "devMac" = @mac`

	updateAbsentSQL = `UPDATE "Devices" SET "devPresentLastScan" = 0 WHERE "devMac" = @mac`
)

// Devices returns the whole registry, archived rows included.
func (t *Tx) Devices(ctx context.Context) ([]models.Device, error) {
	rows, err := t.tx.Query(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: devices: %w", ErrFailedToQuery, err)
	}

	devices, err := pgx.CollectRows(rows, scanDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: devices: %w", ErrFailedToScan, err)
	}

	return devices, nil
}

func scanDevice(row pgx.CollectableRow) (models.Device, error) {
	var d models.Device

	var present, alertDown, alertEvents, archived, isNew int16

	var lastNotification *time.Time

	err := row.Scan(
		&d.MAC, &d.Name, &d.Vendor, &d.LastIP,
		&present, &alertDown, &alertEvents, &archived, &isNew,
		&d.FirstConnection, &d.LastConnection, &lastNotification, &d.SkipRepeated,
	)
	if err != nil {
		return d, err
	}

	d.PresentLastScan = present == 1
	d.AlertDown = alertDown == 1
	d.AlertEvents = alertEvents == 1
	d.IsArchived = archived == 1
	d.IsNew = isNew == 1
	d.LastNotification = lastNotification

	return d, nil
}

// InsertDevices registers first sightings.
func (t *Tx) InsertDevices(ctx context.Context, devices []*models.Device) error {
	batch := &pgx.Batch{}

	for _, d := range devices {
		if d == nil {
			return ErrDeviceNil
		}

		if d.MAC == "" {
			return ErrDeviceMACRequired
		}

		batch.Queue(insertDeviceSQL, pgx.NamedArgs{
			"mac":           d.MAC,
			"name":          d.Name,
			"vendor":        d.Vendor,
			"ip":            d.LastIP,
			"present":       boolToSmallint(d.PresentLastScan),
			"alert_down":    boolToSmallint(d.AlertDown),
			"alert_events":  boolToSmallint(d.AlertEvents),
			"first_seen":    d.FirstConnection,
			"last_seen":     d.LastConnection,
			"skip_repeated": d.SkipRepeated,
		})
	}

	if err := sendBatchExecAll(ctx, batch, t.tx.SendBatch, "insert devices"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

// UpdatePresence writes the presence flag, and for present devices the last IP
// and last connection time.
func (t *Tx) UpdatePresence(ctx context.Context, updates []DevicePresence) error {
	batch := &pgx.Batch{}

	for i := range updates {
		u := &updates[i]
		if u.MAC == "" {
			return ErrDeviceMACRequired
		}

		if u.Present {
			batch.Queue(updatePresentSQL, pgx.NamedArgs{"mac": u.MAC, "ip": u.LastIP, "seen_at": u.SeenAt})
			continue
		}

		batch.Queue(updateAbsentSQL, pgx.NamedArgs{"mac": u.MAC})
	}

	if err := sendBatchExecAll(ctx, batch, t.tx.SendBatch, "update presence"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToUpdate, err)
	}

	return nil
}
