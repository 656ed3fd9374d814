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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/bryanwills/NetAlertX/pkg/db SettingsStore,NotificationStore

// QueryResult holds the rows of an ad hoc query together with the column order.
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// DevicePresence is the per-cycle presence write for one registry row.
type DevicePresence struct {
	MAC     string
	Present bool
	// LastIP and SeenAt are only written when Present is true.
	LastIP string
	SeenAt time.Time
}

// PruneResult reports how many history rows a retention pass removed.
type PruneResult struct {
	Sessions int64
	Events   int64
}

// SnapshotStore holds the ephemeral scan rows of the running cycle.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, cycleID, source string, rows []models.ScanRow, seenAt time.Time) error
	SnapshotRows(ctx context.Context, cycleID string) ([]models.ScanRow, error)
	ClearSnapshot(ctx context.Context) (int64, error)
}

// DeviceStore is the durable device registry.
type DeviceStore interface {
	Devices(ctx context.Context) ([]models.Device, error)
	InsertDevices(ctx context.Context, devices []*models.Device) error
	UpdatePresence(ctx context.Context, updates []DevicePresence) error
}

// EventStore is the append-only event log.
type EventStore interface {
	// InsertEvents appends the events and assigns their IDs in place.
	InsertEvents(ctx context.Context, events []*models.Event) error
	// LastTerminalEvents returns the most recent Disconnected or Device Down type per MAC.
	LastTerminalEvents(ctx context.Context, macs []string) (map[string]models.EventType, error)
	// SetEventPairs links terminal event IDs to the connect event IDs they close.
	SetEventPairs(ctx context.Context, pairs map[int64]int64) error
}

// SessionStore persists connectivity intervals.
type SessionStore interface {
	OpenSessions(ctx context.Context) ([]models.Session, error)
	// InsertSession stores the session and assigns its ID in place.
	InsertSession(ctx context.Context, session *models.Session) error
	CloseSession(ctx context.Context, session *models.Session) error
}

// SettingsStore reads the dynamic key/value settings.
type SettingsStore interface {
	Settings(ctx context.Context) (map[string]string, error)
}

// NotificationStore is what the notification gate needs from one transaction.
type NotificationStore interface {
	SettingsStore

	// ClearOptedOutAlerts clears pending flags of events whose device opted out.
	ClearOptedOutAlerts(ctx context.Context) (int64, error)
	// ClearRepeatedAlerts clears pending flags of devices still inside their skip window.
	ClearRepeatedAlerts(ctx context.Context, now time.Time) (int64, error)
	// QuerySection runs one section query isolated by a savepoint.
	QuerySection(ctx context.Context, query string, args pgx.NamedArgs) (*QueryResult, error)
	// ConsumeEvents clears the pending flag on ids and returns the ids it cleared.
	ConsumeEvents(ctx context.Context, ids []int64) ([]int64, error)
	// ConsumePluginEvents removes reported plugin rows and returns the removed ids.
	ConsumePluginEvents(ctx context.Context, ids []int64) ([]int64, error)
	// ClearRemainingAlerts clears pending flags not reported this dispatch, keeping
	// Device Down events newer than downCutoff and every event of the kept types.
	ClearRemainingAlerts(ctx context.Context, downCutoff time.Time, keep []models.EventType) (int64, error)
	MarkNotified(ctx context.Context, macs []string, at time.Time) error
}

// CycleTx is the full transactional surface a presence cycle works against.
type CycleTx interface {
	SnapshotStore
	DeviceStore
	EventStore
	SessionStore
	NotificationStore
}

// TxRunner runs fn inside one locked transaction, committing when fn returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx CycleTx) error) error
}
