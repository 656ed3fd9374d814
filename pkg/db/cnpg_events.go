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

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/models"
)

const (
	insertEventSQL = `INSERT INTO "Events" (
	"eve_MAC", "eve_IP", "eve_DateTime", "eve_EventType", "eve_AdditionalInfo", "eve_PendingAlertEmail", "eve_PairEventRowid"
) VALUES (@mac, @ip, @at, @type, @info, @pending, @pair)
RETURNING "eve_id"`

	lastTerminalEventsSQL = `SELECT DISTINCT ON (lower("eve_MAC")) lower("eve_MAC"), "eve_EventType"
FROM "Events"
WHERE lower("eve_MAC") = ANY(@macs) AND "eve_EventType" IN ('Device Down', 'Disconnected')
ORDER BY lower("eve_MAC"), "eve_DateTime" DESC, "eve_id" DESC`

	setEventPairSQL = `UPDATE "Events" SET "eve_PairEventRowid" = @pair WHERE "eve_id" = @id`
)

// InsertEvents appends events in order and writes the generated ids back.
func (t *Tx) InsertEvents(ctx context.Context, events []*models.Event) error {
	batch := &pgx.Batch{}

	for _, ev := range events {
		if ev == nil {
			return ErrEventNil
		}

		if ev.MAC == "" {
			return ErrEventMACRequired
		}

		batch.Queue(insertEventSQL, pgx.NamedArgs{
			"mac":     ev.MAC,
			"ip":      ev.IP,
			"at":      ev.DateTime,
			"type":    string(ev.Type),
			"info":    ev.AdditionalInfo,
			"pending": boolToSmallint(ev.PendingAlert),
			"pair":    ev.PairEventID,
		})
	}

	ids, err := sendBatchReturningIDs(ctx, batch, t.tx.SendBatch, "insert events")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	for i, id := range ids {
		events[i].ID = id
	}

	return nil
}

// LastTerminalEvents looks up the latest Disconnected or Device Down event per MAC.
// MACs match case-insensitively and the map is keyed by the normalized MAC.
// MACs without a terminal event are absent from the map.
func (t *Tx) LastTerminalEvents(ctx context.Context, macs []string) (map[string]models.EventType, error) {
	out := make(map[string]models.EventType, len(macs))
	if len(macs) == 0 {
		return out, nil
	}

	normalized := make([]string, len(macs))
	for i, mac := range macs {
		normalized[i] = models.NormalizeMAC(mac)
	}

	rows, err := t.tx.Query(ctx, lastTerminalEventsSQL, pgx.NamedArgs{"macs": normalized})
	if err != nil {
		return nil, fmt.Errorf("%w: terminal events: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var mac, eventType string
		if err := rows.Scan(&mac, &eventType); err != nil {
			return nil, fmt.Errorf("%w: terminal events: %w", ErrFailedToScan, err)
		}

		out[mac] = models.EventType(eventType)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: terminal events: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

// SetEventPairs stores the back-reference from each terminal event to its connect event.
func (t *Tx) SetEventPairs(ctx context.Context, pairs map[int64]int64) error {
	batch := &pgx.Batch{}

	for id, pair := range pairs {
		batch.Queue(setEventPairSQL, pgx.NamedArgs{"id": id, "pair": pair})
	}

	if err := sendBatchExecAll(ctx, batch, t.tx.SendBatch, "set event pairs"); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToUpdate, err)
	}

	return nil
}
