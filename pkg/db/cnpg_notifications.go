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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/models"
)

const (
	selectSettingsSQL = `SELECT "setKey", "setValue" FROM "Settings"`

	// General events of devices that opted out of event alerts.
	clearEventOptOutSQL = `UPDATE "Events" SET "eve_PendingAlertEmail" = 0
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" NOT IN ('Device Down', 'Down Reconnected', 'New Device')
	AND "eve_MAC" IN (SELECT "devMac" FROM "Devices" WHERE "devAlertEvents" = 0)`

	// Down and reconnect events of devices that opted out of down alerts.
	clearDownOptOutSQL = `UPDATE "Events" SET "eve_PendingAlertEmail" = 0
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" IN ('Device Down', 'Down Reconnected')
	AND "eve_MAC" IN (SELECT "devMac" FROM "Devices" WHERE "devAlertDown" = 0)`

	// Minute granularity keeps the comparison in small integers.
	clearRepeatedSQL = `UPDATE "Events" SET "eve_PendingAlertEmail" = 0
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_MAC" IN (
		SELECT "devMac" FROM "Devices"
		WHERE "devLastNotification" IS NOT NULL
			AND "devSkipRepeated" > 0
			AND FLOOR(EXTRACT(EPOCH FROM "devLastNotification") / 60) + "devSkipRepeated"
				> FLOOR(EXTRACT(EPOCH FROM @now::timestamptz) / 60)
	)`

	consumeEventsSQL = `UPDATE "Events" SET "eve_PendingAlertEmail" = 0
WHERE "eve_id" = ANY(@ids) AND "eve_PendingAlertEmail" = 1
RETURNING "eve_id"`

	consumePluginEventsSQL = `DELETE FROM "Plugins_Events"
WHERE "Index" = ANY(@ids)
RETURNING "Index"`

	clearRemainingSQL = `UPDATE "Events" SET "eve_PendingAlertEmail" = 0
WHERE "eve_PendingAlertEmail" = 1
	AND ("eve_EventType" <> 'Device Down' OR "eve_DateTime" < @down_cutoff)
	AND "eve_EventType" <> ALL(@keep_types)`

	markNotifiedSQL = `UPDATE "Devices" SET "devLastNotification" = @at WHERE "devMac" = ANY(@macs)`
)

// Settings reads the whole settings table.
func (t *Tx) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := t.tx.Query(ctx, selectSettingsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: settings: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	out := make(map[string]string)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: settings: %w", ErrFailedToScan, err)
		}

		out[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: settings: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

// ClearOptedOutAlerts runs both opt-out pre-filters and returns the total cleared.
func (t *Tx) ClearOptedOutAlerts(ctx context.Context) (int64, error) {
	events, err := t.exec(ctx, "clear event opt-outs", clearEventOptOutSQL, nil)
	if err != nil {
		return 0, err
	}

	down, err := t.exec(ctx, "clear down opt-outs", clearDownOptOutSQL, nil)
	if err != nil {
		return events, err
	}

	return events + down, nil
}

// ClearRepeatedAlerts clears pending events of devices notified less than
// devSkipRepeated minutes before now.
func (t *Tx) ClearRepeatedAlerts(ctx context.Context, now time.Time) (int64, error) {
	return t.exec(ctx, "clear repeated alerts", clearRepeatedSQL, pgx.NamedArgs{"now": now})
}

// QuerySection runs a section query under a savepoint. A failing query rolls
// back to the savepoint so the surrounding transaction stays usable.
func (t *Tx) QuerySection(ctx context.Context, query string, args pgx.NamedArgs) (result *QueryResult, err error) {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: savepoint: %w", ErrSectionQuery, err)
	}

	defer func() {
		if err == nil {
			err = sp.Commit(ctx)
			return
		}

		if rbErr := sp.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, rbErr)
		}
	}()

	result, err = newTx(sp, t.logger).ExecuteQuery(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSectionQuery, err)
	}

	return result, nil
}

// ConsumeEvents clears pending flags on ids still pending and returns them.
// Ids already cleared by another consumer are not returned.
func (t *Tx) ConsumeEvents(ctx context.Context, ids []int64) ([]int64, error) {
	return t.returningIDs(ctx, "consume events", consumeEventsSQL, ids)
}

// ConsumePluginEvents deletes reported plugin event rows.
func (t *Tx) ConsumePluginEvents(ctx context.Context, ids []int64) ([]int64, error) {
	return t.returningIDs(ctx, "consume plugin events", consumePluginEventsSQL, ids)
}

func (t *Tx) returningIDs(ctx context.Context, operation, query string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := t.tx.Query(ctx, query, pgx.NamedArgs{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToUpdate, operation, err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToScan, operation, err)
	}

	return out, nil
}

// ClearRemainingAlerts clears what the dispatch did not report, except Device
// Down events still inside the alert delay and events of the kept types.
func (t *Tx) ClearRemainingAlerts(ctx context.Context, downCutoff time.Time, keep []models.EventType) (int64, error) {
	// A NULL array would make the ALL comparison NULL and clear nothing.
	keepTypes := make([]string, 0, len(keep))
	for _, typ := range keep {
		keepTypes = append(keepTypes, string(typ))
	}

	return t.exec(ctx, "clear remaining alerts", clearRemainingSQL, pgx.NamedArgs{
		"down_cutoff": downCutoff,
		"keep_types":  keepTypes,
	})
}

// MarkNotified stamps devLastNotification for the devices of delivered events.
func (t *Tx) MarkNotified(ctx context.Context, macs []string, at time.Time) error {
	if len(macs) == 0 {
		return nil
	}

	_, err := t.exec(ctx, "mark notified", markNotifiedSQL, pgx.NamedArgs{"macs": macs, "at": at})

	return err
}
