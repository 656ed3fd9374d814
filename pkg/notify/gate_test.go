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

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

const (
	macAA = "aa:aa:aa:aa:aa:aa"
	macBB = "bb:bb:bb:bb:bb:bb"
)

var (
	errQueryFailed = errors.New("relation does not exist")
	errStoreDown   = errors.New("connection reset")
	now            = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

func newTestGate() *Gate {
	return NewGate(logger.NewTestLogger(), WithClock(timeutil.StaticClock{At: now}))
}

func emptyResult() *db.QueryResult {
	return &db.QueryResult{Columns: []string{colRowID, colMAC}}
}

func TestDispatchConsumesReportedRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockNotificationStore(ctrl)

	newDevices := &db.QueryResult{
		Columns: []string{colRowID, colMAC, "MAC", "Datetime", "IP", "Event Type", "Device name", "Comments"},
		Rows: []map[string]interface{}{
			{colRowID: int64(1), colMAC: macAA, "MAC": macAA, "Datetime": now.Add(-time.Hour), "IP": "10.0.0.5"},
			{colRowID: int64(2), colMAC: macBB, "MAC": macBB, "Datetime": now.Add(-time.Hour), "IP": "10.0.0.6"},
		},
	}

	plugins := &db.QueryResult{
		Columns: []string{colRowID, "Plugin", "DateTimeChanged"},
		Rows: []map[string]interface{}{
			{colRowID: int64(7), "Plugin": "ARPSCAN", "DateTimeChanged": "2024-03-10 10:00:00"},
		},
	}

	gomock.InOrder(
		store.EXPECT().Settings(gomock.Any()).Return(map[string]string{
			"NTFPRCS_INCLUDED_SECTIONS":     `["new_devices", "down_devices", "bogus", "plugins"]`,
			"NTFPRCS_alert_down_time":       "5",
			"TIMEZONE":                      "Europe/Berlin",
			"NTFPRCS_new_devices_condition": "AND devVendor LIKE '%Apple%'",
		}, nil),
		store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(2), nil),
		store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(1), nil),
		store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, query string, args pgx.NamedArgs) (*db.QueryResult, error) {
				assert.Contains(t, query, `"Events_Devices"`)
				assert.Contains(t, query, `AND ("devVendor" LIKE @cond_0)`)
				assert.NotContains(t, query, conditionSlot)
				assert.Equal(t, "%Apple%", args["cond_0"])
				assert.Equal(t, now.Add(-5*time.Minute), args["down_cutoff"])

				return newDevices, nil
			}),
		store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errQueryFailed),
		store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, query string, _ pgx.NamedArgs) (*db.QueryResult, error) {
				assert.Contains(t, query, `"Plugins_Events"`)
				return plugins, nil
			}),
		store.EXPECT().ConsumeEvents(gomock.Any(), []int64{1, 2}).Return([]int64{1}, nil),
		store.EXPECT().ConsumePluginEvents(gomock.Any(), []int64{7}).Return([]int64{7}, nil),
		store.EXPECT().ClearRemainingAlerts(gomock.Any(), now.Add(-5*time.Minute),
			[]models.EventType{models.EventDeviceDown}).Return(int64(3), nil),
		store.EXPECT().MarkNotified(gomock.Any(), []string{macAA}, now).Return(nil),
	)

	batch, err := newTestGate().Dispatch(context.Background(), store, "cycle-1")
	require.NoError(t, err)

	assert.Equal(t, "cycle-1", batch.CycleID)
	assert.Equal(t, "Europe/Berlin", batch.Timezone)
	assert.Equal(t, now, batch.GeneratedAt)
	assert.Equal(t, 2, batch.Count())
	require.Len(t, batch.Sections, 3)

	nd := batch.Section("new_devices")
	require.NotNil(t, nd)
	assert.Equal(t, "🆕 New devices", nd.Title)
	assert.Equal(t, []string{"MAC", "Datetime", "IP", "Event Type", "Device name", "Comments"}, nd.Columns)
	require.Len(t, nd.Rows, 1)
	assert.Equal(t, macAA, nd.Rows[0]["MAC"])
	assert.Equal(t, "2024-03-10T12:00:00+01:00", nd.Rows[0]["Datetime"])
	assert.NotContains(t, nd.Rows[0], colRowID)
	assert.NotContains(t, nd.Rows[0], colMAC)

	down := batch.Section("down_devices")
	require.NotNil(t, down)
	assert.True(t, down.Failed)
	assert.Empty(t, down.Rows)

	pl := batch.Section("plugins")
	require.NotNil(t, pl)
	require.Len(t, pl.Rows, 1)
	assert.Equal(t, "2024-03-10T10:00:00+01:00", pl.Rows[0]["DateTimeChanged"])

	assert.Nil(t, batch.Section("bogus"))
}

func TestDispatchDefaultSectionsWithNothingPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockNotificationStore(ctrl)

	var queries []string

	store.EXPECT().Settings(gomock.Any()).Return(map[string]string{}, nil)
	store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), nil)
	store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(0), nil)
	store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query string, _ pgx.NamedArgs) (*db.QueryResult, error) {
			queries = append(queries, query)
			return emptyResult(), nil
		}).Times(3)
	store.EXPECT().ClearRemainingAlerts(gomock.Any(), now, gomock.Nil()).Return(int64(0), nil)

	batch, err := newTestGate().Dispatch(context.Background(), store, "cycle-2")
	require.NoError(t, err)

	assert.True(t, batch.Empty())
	assert.Equal(t, "UTC", batch.Timezone)
	require.Len(t, queries, 3)
	assert.Contains(t, queries[0], "'New Device'")
	assert.Contains(t, queries[1], "'Device Down'")
	assert.Contains(t, queries[2], "'IP Changed'")
	assert.Equal(t, []string{"new_devices", "down_devices", "events"},
		[]string{batch.Sections[0].Name, batch.Sections[1].Name, batch.Sections[2].Name})
}

func TestDispatchAddsDowntimeToReconnectedDevices(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockNotificationStore(ctrl)

	downSince := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	back := time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)

	store.EXPECT().Settings(gomock.Any()).Return(map[string]string{
		"NTFPRCS_INCLUDED_SECTIONS": "down_reconnected",
	}, nil)
	store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), nil)
	store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(0), nil)
	store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).Return(&db.QueryResult{
		Columns: []string{colRowID, colMAC, colDownSince, "devName", "eve_MAC", "eve_DateTime", "eve_EventType"},
		Rows: []map[string]interface{}{{
			colRowID: int64(9), colMAC: macAA, colDownSince: downSince,
			"devName": "nas", "eve_MAC": macAA, "eve_DateTime": back, "eve_EventType": "Down Reconnected",
		}},
	}, nil)
	store.EXPECT().ConsumeEvents(gomock.Any(), []int64{9}).Return([]int64{9}, nil)
	store.EXPECT().ClearRemainingAlerts(gomock.Any(), now, gomock.Nil()).Return(int64(0), nil)
	store.EXPECT().MarkNotified(gomock.Any(), []string{macAA}, now).Return(nil)

	batch, err := newTestGate().Dispatch(context.Background(), store, "cycle-3")
	require.NoError(t, err)

	section := batch.Section("down_reconnected")
	require.NotNil(t, section)
	assert.Equal(t, []string{"devName", "eve_MAC", "eve_DateTime", "eve_EventType", colDowntime}, section.Columns)
	require.Len(t, section.Rows, 1)
	assert.Equal(t, "0d 01:30", section.Rows[0][colDowntime])
	assert.Equal(t, "2024-03-10T10:30:00Z", section.Rows[0]["eve_DateTime"])
	assert.NotContains(t, section.Rows[0], colDownSince)
}

func TestDispatchInvalidConditionRunsUnfiltered(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockNotificationStore(ctrl)

	store.EXPECT().Settings(gomock.Any()).Return(map[string]string{
		"NTFPRCS_INCLUDED_SECTIONS": "events",
		"NTFPRCS_event_condition":   "AND devName = 'x'; DROP TABLE Devices",
	}, nil)
	store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), nil)
	store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(0), nil)
	store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query string, args pgx.NamedArgs) (*db.QueryResult, error) {
			assert.NotContains(t, query, "@cond_")
			assert.NotContains(t, query, "DROP")
			assert.Len(t, args, 1)

			return emptyResult(), nil
		})
	store.EXPECT().ClearRemainingAlerts(gomock.Any(), now, gomock.Nil()).Return(int64(0), nil)

	_, err := newTestGate().Dispatch(context.Background(), store, "cycle-4")
	require.NoError(t, err)
}

func TestDispatchQueriesAliasedSectionOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockNotificationStore(ctrl)

	store.EXPECT().Settings(gomock.Any()).Return(map[string]string{
		"NTFPRCS_INCLUDED_SECTIONS": "plugins,plugin_events",
	}, nil)
	store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), nil)
	store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(0), nil)
	store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).Return(emptyResult(), nil).Times(1)
	store.EXPECT().ClearRemainingAlerts(gomock.Any(), now, gomock.Nil()).Return(int64(0), nil)

	batch, err := newTestGate().Dispatch(context.Background(), store, "cycle-5")
	require.NoError(t, err)
	require.Len(t, batch.Sections, 1)
	assert.Equal(t, "plugins", batch.Sections[0].Name)
}

func TestDispatchAbortsOnStoreFailure(t *testing.T) {
	t.Run("pre-filter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := db.NewMockNotificationStore(ctrl)

		store.EXPECT().Settings(gomock.Any()).Return(nil, nil)
		store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), errStoreDown)

		_, err := newTestGate().Dispatch(context.Background(), store, "c")
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("consume", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := db.NewMockNotificationStore(ctrl)

		store.EXPECT().Settings(gomock.Any()).Return(map[string]string{"NTFPRCS_INCLUDED_SECTIONS": "events"}, nil)
		store.EXPECT().ClearOptedOutAlerts(gomock.Any()).Return(int64(0), nil)
		store.EXPECT().ClearRepeatedAlerts(gomock.Any(), now).Return(int64(0), nil)
		store.EXPECT().QuerySection(gomock.Any(), gomock.Any(), gomock.Any()).Return(&db.QueryResult{
			Columns: []string{colRowID, colMAC},
			Rows:    []map[string]interface{}{{colRowID: int64(4), colMAC: macAA}},
		}, nil)
		store.EXPECT().ConsumeEvents(gomock.Any(), []int64{4}).Return(nil, errStoreDown)

		_, err := newTestGate().Dispatch(context.Background(), store, "c")
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("settings", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := db.NewMockNotificationStore(ctrl)

		store.EXPECT().Settings(gomock.Any()).Return(nil, errStoreDown)

		_, err := newTestGate().Dispatch(context.Background(), store, "c")
		require.ErrorIs(t, err, errStoreDown)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := newTestGate().Dispatch(context.Background(), nil, "c")
		require.ErrorIs(t, err, ErrStoreRequired)
	})
}

func TestLookupSection(t *testing.T) {
	s, ok := LookupSection(" Plugin_Events ")
	require.True(t, ok)
	assert.Equal(t, "plugins", s.Name)

	_, ok = LookupSection("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"new_devices", "down_devices", "down_reconnected", "events", "plugins"}, SectionNames())

	for _, name := range SectionNames() {
		section, _ := LookupSection(name)
		assert.Contains(t, section.Query, conditionSlot, name)
		assert.NotContains(t, section.render(""), conditionSlot, name)
	}
}

func TestFailedEventTypes(t *testing.T) {
	newDevices, _ := LookupSection("new_devices")
	events, _ := LookupSection("events")
	reconnected, _ := LookupSection("down_reconnected")
	plugins, _ := LookupSection("plugins")

	tests := []struct {
		name string
		runs []sectionRun
		want []models.EventType
	}{
		{
			name: "nothing failed",
			runs: []sectionRun{{section: newDevices}, {section: events}},
		},
		{
			name: "plugin section has no event types",
			runs: []sectionRun{{section: plugins, failed: true}},
		},
		{
			name: "only failed sections contribute",
			runs: []sectionRun{{section: newDevices, failed: true}, {section: events}},
			want: []models.EventType{models.EventNewDevice},
		},
		{
			name: "shared types are listed once",
			runs: []sectionRun{{section: reconnected, failed: true}, {section: events, failed: true}},
			want: []models.EventType{
				models.EventDownReconnected, models.EventConnected, models.EventDisconnected, models.EventIPChanged,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failedEventTypes(tt.runs))
		})
	}
}
