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
	"sort"
	"strings"
	"time"
)

// Device is one row of the device registry, keyed by MAC.
type Device struct {
	MAC              string     `json:"devMac"`
	Name             string     `json:"devName"`
	Vendor           string     `json:"devVendor"`
	LastIP           string     `json:"devLastIP"`
	PresentLastScan  bool       `json:"devPresentLastScan"`
	AlertDown        bool       `json:"devAlertDown"`
	AlertEvents      bool       `json:"devAlertEvents"`
	IsArchived       bool       `json:"devIsArchived"`
	IsNew            bool       `json:"devIsNew"`
	FirstConnection  time.Time  `json:"devFirstConnection"`
	LastConnection   time.Time  `json:"devLastConnection"`
	LastNotification *time.Time `json:"devLastNotification,omitempty"`
	SkipRepeated     int        `json:"devSkipRepeated"`
}

// ScanRow is a single device observed by a scanner during the current cycle.
type ScanRow struct {
	MAC    string `json:"mac"`
	IP     string `json:"ip"`
	Vendor string `json:"vendor,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ScanReport is the payload a scanner publishes for one cycle.
type ScanReport struct {
	CycleID   string    `json:"cycle_id,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
	Source    string    `json:"source"`
	Rows      []ScanRow `json:"rows"`
}

// NormalizeMAC lower-cases and trims a hardware address.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}

// NormalizedRows returns the report rows keyed by normalized MAC. Rows without a
// MAC are dropped and a repeated MAC keeps its last row. Output is sorted by MAC.
func (r *ScanReport) NormalizedRows() []ScanRow {
	byMAC := make(map[string]ScanRow, len(r.Rows))

	for _, row := range r.Rows {
		mac := NormalizeMAC(row.MAC)
		if mac == "" {
			continue
		}

		row.MAC = mac
		row.IP = strings.TrimSpace(row.IP)
		byMAC[mac] = row
	}

	rows := make([]ScanRow, 0, len(byMAC))
	for _, row := range byMAC {
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].MAC < rows[j].MAC })

	return rows
}
