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

package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/db/dbtest"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

const mac = "aa:aa:aa:aa:aa:aa"

var (
	errCloseFailed = errors.New("close failed")
	t0             = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
)

func ev(eventType models.EventType, at time.Time) *models.Event {
	return &models.Event{MAC: mac, IP: "10.0.0.5", DateTime: at, Type: eventType, PendingAlert: true}
}

func pair(t *testing.T, mem *dbtest.Memory, events ...*models.Event) (*Result, error) {
	t.Helper()

	var result *Result

	err := mem.InTx(context.Background(), func(ctx context.Context, tx db.CycleTx) error {
		if err := tx.InsertEvents(ctx, events); err != nil {
			return err
		}

		var err error

		result, err = NewPairer(logger.NewTestLogger()).Pair(ctx, tx, events)

		return err
	})

	return result, err
}

func TestConnectThenDisconnectClosesSession(t *testing.T) {
	mem := dbtest.NewMemory()

	connect := ev(models.EventConnected, t0)
	down := ev(models.EventDeviceDown, t0.Add(90*time.Minute))

	result, err := pair(t, mem, connect, down)
	require.NoError(t, err)
	assert.Equal(t, &Result{Opened: 1, Closed: 1}, result)

	sessions := mem.Sessions()
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, models.EventConnected, s.ConnectionType)
	assert.Equal(t, models.EventDeviceDown, s.DisconnectionType)
	assert.False(t, s.StillConnected)
	assert.Equal(t, "Duration: 0d 01:30", s.AdditionalInfo)
	require.NotNil(t, s.ConnectEventID)
	assert.Equal(t, connect.ID, *s.ConnectEventID)

	events := mem.Events()
	require.Len(t, events, 2)
	assert.Nil(t, events[0].PairEventID)
	require.NotNil(t, events[1].PairEventID)
	assert.Equal(t, connect.ID, *events[1].PairEventID)
}

func TestSessionSpansTransactions(t *testing.T) {
	mem := dbtest.NewMemory()

	_, err := pair(t, mem, ev(models.EventNewDevice, t0))
	require.NoError(t, err)

	sessions := mem.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].StillConnected)

	result, err := pair(t, mem, ev(models.EventDisconnected, t0.Add(26*time.Hour+5*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)

	sessions = mem.Sessions()
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].StillConnected)
	assert.Equal(t, "Duration: 1d 02:05", sessions[0].AdditionalInfo)
}

func TestDuplicateConnectIsSkipped(t *testing.T) {
	mem := dbtest.NewMemory()

	result, err := pair(t, mem,
		ev(models.EventConnected, t0),
		ev(models.EventDownReconnected, t0.Add(time.Minute)),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Opened)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, mem.Sessions(), 1)
}

func TestTerminalWithoutOpenSessionIsOrphan(t *testing.T) {
	mem := dbtest.NewMemory()

	result, err := pair(t, mem, ev(models.EventDeviceDown, t0))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Orphans)

	sessions := mem.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, models.MissingEvent, sessions[0].ConnectionType)
	assert.Nil(t, sessions[0].ConnectedAt)
	assert.Equal(t, models.EventDeviceDown, sessions[0].DisconnectionType)
	assert.False(t, sessions[0].StillConnected)

	assert.Nil(t, mem.Events()[0].PairEventID)
}

func TestEventsAreAppliedInTimeOrder(t *testing.T) {
	mem := dbtest.NewMemory()

	later := ev(models.EventDisconnected, t0.Add(10*time.Minute))
	earlier := ev(models.EventConnected, t0)

	result, err := pair(t, mem, later, earlier)
	require.NoError(t, err)
	assert.Equal(t, &Result{Opened: 1, Closed: 1}, result)
}

func TestIPChangedDoesNotTouchSessions(t *testing.T) {
	mem := dbtest.NewMemory()

	result, err := pair(t, mem, ev(models.EventIPChanged, t0))
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)
	assert.Empty(t, mem.Sessions())
}

func TestCloseFailureRollsBack(t *testing.T) {
	mem := dbtest.NewMemory()

	_, err := pair(t, mem, ev(models.EventConnected, t0))
	require.NoError(t, err)

	mem.Fail["CloseSession"] = errCloseFailed

	_, err = pair(t, mem, ev(models.EventDeviceDown, t0.Add(time.Minute)))
	require.ErrorIs(t, err, errCloseFailed)

	sessions := mem.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].StillConnected)
	assert.Len(t, mem.Events(), 1)
}
