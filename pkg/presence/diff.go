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

package presence

import (
	"context"
	"fmt"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/settings"
)

// diff accumulates the writes of one cycle before they are persisted.
type diff struct {
	cycle    Cycle
	defaults settings.DeviceDefaults

	newDevices []*models.Device
	updates    []db.DevicePresence
	events     []*models.Event

	// reconnecting events get their final type once the terminal history is known.
	reconnecting []*models.Event
}

func (d *diff) event(mac, ip string, eventType models.EventType, info string) *models.Event {
	ev := &models.Event{
		MAC:            mac,
		IP:             ip,
		DateTime:       d.cycle.ScannedAt,
		Type:           eventType,
		AdditionalInfo: info,
		PendingAlert:   true,
	}

	d.events = append(d.events, ev)

	return ev
}

func (d *diff) newDevice(row models.ScanRow) {
	d.newDevices = append(d.newDevices, &models.Device{
		MAC:             row.MAC,
		Name:            row.Name,
		Vendor:          row.Vendor,
		LastIP:          row.IP,
		PresentLastScan: true,
		AlertDown:       d.defaults.AlertDown,
		AlertEvents:     d.defaults.AlertEvents,
		IsNew:           true,
		FirstConnection: d.cycle.ScannedAt,
		LastConnection:  d.cycle.ScannedAt,
		SkipRepeated:    d.defaults.SkipRepeated,
	})

	d.event(row.MAC, row.IP, models.EventNewDevice, "")
}

func (d *diff) reconnect(dev *models.Device, row models.ScanRow) {
	ip := row.IP
	if ip == "" {
		ip = dev.LastIP
	}

	ev := d.event(dev.MAC, ip, models.EventConnected, "")
	d.reconnecting = append(d.reconnecting, ev)
	d.markPresent(dev, row)
}

func (d *diff) stillPresent(dev *models.Device, row models.ScanRow) {
	if row.IP != "" && dev.LastIP != "" && row.IP != dev.LastIP {
		d.event(dev.MAC, row.IP, models.EventIPChanged, "Previous IP: "+dev.LastIP)
	}

	d.markPresent(dev, row)
}

func (d *diff) disappear(dev *models.Device) {
	eventType := models.EventDisconnected
	if dev.AlertDown {
		eventType = models.EventDeviceDown
	}

	d.event(dev.MAC, dev.LastIP, eventType, "")
	d.updates = append(d.updates, db.DevicePresence{MAC: dev.MAC, Present: false})
}

func (d *diff) markPresent(dev *models.Device, row models.ScanRow) {
	d.updates = append(d.updates, db.DevicePresence{
		MAC:     dev.MAC,
		Present: true,
		LastIP:  row.IP,
		SeenAt:  d.cycle.ScannedAt,
	})
}

// resolveReconnects upgrades Connected to Down Reconnected for devices whose
// latest terminal event was Device Down.
func (d *diff) resolveReconnects(ctx context.Context, store db.EventStore) error {
	if len(d.reconnecting) == 0 {
		return nil
	}

	macs := make([]string, len(d.reconnecting))
	for i, ev := range d.reconnecting {
		macs[i] = models.NormalizeMAC(ev.MAC)
	}

	last, err := store.LastTerminalEvents(ctx, macs)
	if err != nil {
		return fmt.Errorf("read terminal events: %w", err)
	}

	for _, ev := range d.reconnecting {
		if last[models.NormalizeMAC(ev.MAC)] == models.EventDeviceDown {
			ev.Type = models.EventDownReconnected
		}
	}

	return nil
}
