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
	selectOpenSessionsSQL = `SELECT
	"ses_id", "ses_MAC", "ses_IP", "ses_EventTypeConnection", "ses_DateTimeConnection",
	"ses_ConnectEventRowid", "ses_AdditionalInfo"
FROM "Sessions"
WHERE "ses_StillConnected" = 1
ORDER BY "ses_MAC"`

	insertSessionSQL = `INSERT INTO "Sessions" (
	"ses_MAC", "ses_IP", "ses_EventTypeConnection", "ses_DateTimeConnection", "ses_ConnectEventRowid",
	"ses_EventTypeDisconnection", "ses_DateTimeDisconnection", "ses_StillConnected", "ses_AdditionalInfo"
) VALUES (@mac, @ip, @conn_type, @conn_at, @conn_event, @disc_type, @disc_at, @still, @info)
RETURNING "ses_id"`

	closeSessionSQL = `UPDATE "Sessions" SET
	"ses_EventTypeDisconnection" = @disc_type,
	"ses_DateTimeDisconnection" = @disc_at,
	"ses_StillConnected" = 0,
	"ses_AdditionalInfo" = @info
WHERE "ses_id" = @id`
)

// OpenSessions returns every session still waiting for its terminal event.
func (t *Tx) OpenSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := t.tx.Query(ctx, selectOpenSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %w", ErrFailedToQuery, err)
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Session, error) {
		var (
			s         models.Session
			connType  string
			connAt    *time.Time
			connEvent *int64
		)

		if err := row.Scan(&s.ID, &s.MAC, &s.IP, &connType, &connAt, &connEvent, &s.AdditionalInfo); err != nil {
			return s, err
		}

		s.ConnectionType = models.EventType(connType)
		s.ConnectedAt = connAt
		s.ConnectEventID = connEvent
		s.StillConnected = true

		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %w", ErrFailedToScan, err)
	}

	return sessions, nil
}

// InsertSession stores a new session and assigns its id.
func (t *Tx) InsertSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return ErrSessionNil
	}

	err := t.tx.QueryRow(ctx, insertSessionSQL, pgx.NamedArgs{
		"mac":        session.MAC,
		"ip":         session.IP,
		"conn_type":  string(session.ConnectionType),
		"conn_at":    session.ConnectedAt,
		"conn_event": session.ConnectEventID,
		"disc_type":  string(session.DisconnectionType),
		"disc_at":    session.DisconnectedAt,
		"still":      boolToSmallint(session.StillConnected),
		"info":       session.AdditionalInfo,
	}).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("%w: session %s: %w", ErrFailedToInsert, session.MAC, err)
	}

	return nil
}

// CloseSession records the terminal side of a stored session.
func (t *Tx) CloseSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return ErrSessionNil
	}

	if session.ID == 0 {
		return ErrSessionNotStored
	}

	_, err := t.exec(ctx, "close session", closeSessionSQL, pgx.NamedArgs{
		"id":        session.ID,
		"disc_type": string(session.DisconnectionType),
		"disc_at":   session.DisconnectedAt,
		"info":      session.AdditionalInfo,
	})

	return err
}
