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
	"time"
)

// EventType is the eve_EventType of a presence event.
type EventType string

const (
	EventNewDevice       EventType = "New Device"
	EventConnected       EventType = "Connected"
	EventDisconnected    EventType = "Disconnected"
	EventDeviceDown      EventType = "Device Down"
	EventDownReconnected EventType = "Down Reconnected"
	EventIPChanged       EventType = "IP Changed"

	// MissingEvent marks the connect side of a session closed without a known start.
	MissingEvent EventType = "<missing event>"
)

// OpensSession reports whether the event starts a connectivity interval.
func (t EventType) OpensSession() bool {
	return t == EventNewDevice || t == EventConnected || t == EventDownReconnected
}

// ClosesSession reports whether the event ends a connectivity interval.
func (t EventType) ClosesSession() bool {
	return t == EventDisconnected || t == EventDeviceDown
}

// Event is one row of the append-only event log.
type Event struct {
	ID             int64     `json:"eve_id"`
	MAC            string    `json:"eve_MAC"`
	IP             string    `json:"eve_IP"`
	DateTime       time.Time `json:"eve_DateTime"`
	Type           EventType `json:"eve_EventType"`
	AdditionalInfo string    `json:"eve_AdditionalInfo"`
	PendingAlert   bool      `json:"eve_PendingAlertEmail"`
	PairEventID    *int64    `json:"eve_PairEventRowid,omitempty"`
}

// Session is a connectivity interval derived from a connect/terminal event pair.
type Session struct {
	ID                int64      `json:"ses_id"`
	MAC               string     `json:"ses_MAC"`
	IP                string     `json:"ses_IP"`
	ConnectionType    EventType  `json:"ses_EventTypeConnection"`
	ConnectedAt       *time.Time `json:"ses_DateTimeConnection,omitempty"`
	ConnectEventID    *int64     `json:"ses_ConnectEventRowid,omitempty"`
	DisconnectionType EventType  `json:"ses_EventTypeDisconnection,omitempty"`
	DisconnectedAt    *time.Time `json:"ses_DateTimeDisconnection,omitempty"`
	StillConnected    bool       `json:"ses_StillConnected"`
	AdditionalInfo    string     `json:"ses_AdditionalInfo"`
}

// CloudEvent is the envelope used on the NATS notification subject.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}
