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
	insertSnapshotSQL = `INSERT INTO "CurrentScan" (
	"scanCycle", "scanMac", "scanLastIP", "scanVendor", "scanName", "scanSourcePlugin", "scanDateTime"
) VALUES (@cycle, @mac, @ip, @vendor, @name, @source, @seen_at)
ON CONFLICT ("scanCycle", "scanMac") DO UPDATE SET
	"scanLastIP" = EXCLUDED."scanLastIP",
	"scanVendor" = EXCLUDED."scanVendor",
	"scanName" = EXCLUDED."scanName",
	"scanSourcePlugin" = EXCLUDED."scanSourcePlugin",
	"scanDateTime" = EXCLUDED."scanDateTime"`

	selectSnapshotSQL = `SELECT "scanMac", "scanLastIP", "scanVendor", "scanName"
FROM "CurrentScan"
WHERE "scanCycle" = @cycle
ORDER BY "scanMac"`

	clearSnapshotSQL = `DELETE FROM "CurrentScan"`
)

// SaveSnapshot stores the normalized rows of one cycle.
func (t *Tx) SaveSnapshot(ctx context.Context, cycleID, source string, rows []models.ScanRow, seenAt time.Time) error {
	if cycleID == "" {
		return ErrCycleIDRequired
	}

	batch := &pgx.Batch{}

	for i := range rows {
		row := &rows[i]
		batch.Queue(insertSnapshotSQL, pgx.NamedArgs{
			"cycle":   cycleID,
			"mac":     row.MAC,
			"ip":      row.IP,
			"vendor":  row.Vendor,
			"name":    row.Name,
			"source":  source,
			"seen_at": seenAt,
		})
	}

	if err := sendBatchExecAll(ctx, batch, t.tx.SendBatch, "save snapshot"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

// SnapshotRows returns only the rows tagged with cycleID. Rows left behind by an
// older cycle are invisible here.
func (t *Tx) SnapshotRows(ctx context.Context, cycleID string) ([]models.ScanRow, error) {
	rows, err := t.tx.Query(ctx, selectSnapshotSQL, pgx.NamedArgs{"cycle": cycleID})
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrFailedToQuery, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ScanRow, error) {
		var r models.ScanRow
		err := row.Scan(&r.MAC, &r.IP, &r.Vendor, &r.Name)

		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrFailedToScan, err)
	}

	return out, nil
}

// ClearSnapshot removes every snapshot row, whatever cycle wrote it.
func (t *Tx) ClearSnapshot(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, clearSnapshotSQL)
	if err != nil {
		return 0, fmt.Errorf("%w: snapshot: %w", ErrFailedToDelete, err)
	}

	return tag.RowsAffected(), nil
}
