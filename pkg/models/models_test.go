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

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanReportNormalizedRows(t *testing.T) {
	report := ScanReport{
		Rows: []ScanRow{
			{MAC: " AA:BB:CC:00:00:02 ", IP: "192.168.1.2"},
			{MAC: "", IP: "192.168.1.9"},
			{MAC: "aa:bb:cc:00:00:01", IP: "192.168.1.1"},
			{MAC: "AA:BB:CC:00:00:02", IP: "192.168.1.20 "},
		},
	}

	rows := report.NormalizedRows()

	require.Len(t, rows, 2)
	assert.Equal(t, ScanRow{MAC: "aa:bb:cc:00:00:01", IP: "192.168.1.1"}, rows[0])
	assert.Equal(t, ScanRow{MAC: "aa:bb:cc:00:00:02", IP: "192.168.1.20"}, rows[1])
}

func TestScanReportJSON(t *testing.T) {
	payload := `{"scanned_at":"2025-01-02T03:04:05Z","source":"arp-scan","rows":[{"mac":"AA:BB","ip":"10.0.0.1","vendor":"Apple"}]}`

	var report ScanReport
	require.NoError(t, json.Unmarshal([]byte(payload), &report))

	assert.Empty(t, report.CycleID)
	assert.Equal(t, "arp-scan", report.Source)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), report.ScannedAt)
	assert.Equal(t, "Apple", report.Rows[0].Vendor)
}

func TestEventTypeSessionRoles(t *testing.T) {
	tests := []struct {
		eventType EventType
		opens     bool
		closes    bool
	}{
		{EventNewDevice, true, false},
		{EventConnected, true, false},
		{EventDownReconnected, true, false},
		{EventDisconnected, false, true},
		{EventDeviceDown, false, true},
		{EventIPChanged, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.opens, tt.eventType.OpensSession())
			assert.Equal(t, tt.closes, tt.eventType.ClosesSession())
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var cfg struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"a":"90s","b":1000000000}`), &cfg))
	assert.Equal(t, Duration(90*time.Second), cfg.A)
	assert.Equal(t, Duration(time.Second), cfg.B)

	require.Error(t, json.Unmarshal([]byte(`{"a":true}`), &cfg))
	require.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &cfg))

	out, err := json.Marshal(Duration(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))
}

func TestPresenceConfigDefaultsAndValidate(t *testing.T) {
	cfg := PresenceConfig{
		Database: &CNPGDatabase{Host: "db", Database: "netalertx"},
		NATS:     &NATSConfig{URL: "nats://localhost:4222"},
	}

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, Duration(DefaultCycleTimeout), cfg.CycleTimeout)
	assert.Equal(t, DefaultScanSubject, cfg.NATS.Subject)
	assert.Equal(t, DefaultNotifySubject, cfg.NATS.NotifySubject)
	assert.Equal(t, "netalertx-presence", cfg.Database.ApplicationName)
}

func TestPresenceConfigValidateJoinsErrors(t *testing.T) {
	cfg := PresenceConfig{
		Database:  &CNPGDatabase{},
		NATS:      &NATSConfig{},
		Timezone:  "Mars/Olympus",
		Retention: RetentionConfig{DaysToKeepEvents: -1},
	}

	err := cfg.Validate()

	require.Error(t, err)
	require.ErrorIs(t, err, errDatabaseHost)
	require.ErrorIs(t, err, errDatabaseName)
	require.ErrorIs(t, err, errNATSURLRequired)
	require.ErrorIs(t, err, errNATSStream)
	require.ErrorIs(t, err, errInvalidTimezone)
	require.ErrorIs(t, err, errNegativeRetention)
}

func TestNotificationBatchCount(t *testing.T) {
	batch := NotificationBatch{
		Sections: []SectionResult{
			{Name: "new_devices", Rows: []map[string]interface{}{{"eve_MAC": "aa"}}},
			{Name: "events"},
		},
	}

	assert.Equal(t, 1, batch.Count())
	assert.False(t, batch.Empty())
	assert.NotNil(t, batch.Section("events"))
	assert.Nil(t, batch.Section("plugins"))
	assert.True(t, (&NotificationBatch{}).Empty())
}
