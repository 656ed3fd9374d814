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
	"strings"

	"github.com/bryanwills/NetAlertX/pkg/models"
)

// conditionSlot is where a compiled condition is spliced into a template.
const conditionSlot = "{condition}"

// Hidden columns start with an underscore. The gate reads them and strips them
// before rows reach the batch.
const (
	colRowID     = "_row_id"
	colMAC       = "_mac"
	colDownSince = "_down_since"
	hiddenPrefix = "_"

	colDowntime = "Downtime"
)

type rowSource int

const (
	sourceEvents rowSource = iota
	sourcePlugins
)

// Section is one reportable category of pending rows.
type Section struct {
	Name  string
	Title string
	// Query is a template with a single {condition} slot.
	Query string
	// DateTimeField names the column rendered in the display timezone.
	DateTimeField string
	// AcceptsCondition is true for sections that read an operator condition.
	AcceptsCondition bool

	source rowSource
	// eventTypes are the pending event kinds the section reports.
	eventTypes []models.EventType
}

const (
	newDevicesQuery = `SELECT
	"eve_id" AS "_row_id", "eve_MAC" AS "_mac",
	"eve_MAC" AS "MAC", "eve_DateTime" AS "Datetime", "devLastIP" AS "IP",
	"eve_EventType" AS "Event Type", "devName" AS "Device name", "devComments" AS "Comments"
FROM "Events_Devices"
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" = 'New Device'
	{condition}
ORDER BY "eve_DateTime"`

	downDevicesQuery = `SELECT
	"eve_id" AS "_row_id", "eve_MAC" AS "_mac",
	"devName", "eve_MAC", "devVendor", "eve_IP", "eve_DateTime", "eve_EventType"
FROM "Events_Devices" ed
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" = 'Device Down'
	AND "eve_DateTime" < @down_cutoff
	AND NOT EXISTS (
		SELECT 1 FROM "Events" later
		WHERE later."eve_MAC" = ed."eve_MAC"
			AND later."eve_EventType" IN ('Connected', 'Down Reconnected')
			AND later."eve_DateTime" > ed."eve_DateTime"
	)
	{condition}
ORDER BY "eve_DateTime"`

	downReconnectedQuery = `SELECT
	"eve_id" AS "_row_id", "eve_MAC" AS "_mac",
	(
		SELECT MAX(down."eve_DateTime") FROM "Events" down
		WHERE down."eve_MAC" = ed."eve_MAC"
			AND down."eve_EventType" = 'Device Down'
			AND down."eve_DateTime" <= ed."eve_DateTime"
	) AS "_down_since",
	"devName", "eve_MAC", "devVendor", "eve_IP", "eve_DateTime", "eve_EventType"
FROM "Events_Devices" ed
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" = 'Down Reconnected'
	{condition}
ORDER BY "eve_DateTime"`

	eventsQuery = `SELECT
	"eve_id" AS "_row_id", "eve_MAC" AS "_mac",
	"eve_MAC" AS "MAC", "eve_DateTime" AS "Datetime", "eve_IP" AS "IP",
	"eve_EventType" AS "Event Type", "devName" AS "Device name",
	"eve_AdditionalInfo" AS "Additional info", "devComments" AS "Comments"
FROM "Events_Devices"
WHERE "eve_PendingAlertEmail" = 1
	AND "eve_EventType" IN ('Connected', 'Down Reconnected', 'Disconnected', 'IP Changed')
	{condition}
ORDER BY "eve_DateTime"`

	pluginsQuery = `SELECT
	"Index" AS "_row_id",
	"Plugin", "Object_PrimaryId", "Object_SecondaryId", "DateTimeChanged",
	"Watched_Value1", "Watched_Value2", "Watched_Value3", "Watched_Value4", "Status"
FROM "Plugins_Events"
WHERE TRUE
	{condition}
ORDER BY "DateTimeChanged"`
)

var catalogue = []Section{
	{
		Name:             "new_devices",
		Title:            "🆕 New devices",
		Query:            newDevicesQuery,
		DateTimeField:    "Datetime",
		AcceptsCondition: true,
		source:           sourceEvents,
		eventTypes:       []models.EventType{models.EventNewDevice},
	},
	{
		Name:          "down_devices",
		Title:         "🔴 Down devices",
		Query:         downDevicesQuery,
		DateTimeField: "eve_DateTime",
		source:        sourceEvents,
		eventTypes:    []models.EventType{models.EventDeviceDown},
	},
	{
		Name:          "down_reconnected",
		Title:         "🔁 Reconnected down devices",
		Query:         downReconnectedQuery,
		DateTimeField: "eve_DateTime",
		source:        sourceEvents,
		eventTypes:    []models.EventType{models.EventDownReconnected},
	},
	{
		Name:             "events",
		Title:            "⚡ Events",
		Query:            eventsQuery,
		DateTimeField:    "Datetime",
		AcceptsCondition: true,
		source:           sourceEvents,
		eventTypes: []models.EventType{
			models.EventConnected, models.EventDownReconnected, models.EventDisconnected, models.EventIPChanged,
		},
	},
	{
		Name:          "plugins",
		Title:         "🔌 Plugins",
		Query:         pluginsQuery,
		DateTimeField: "DateTimeChanged",
		source:        sourcePlugins,
	},
}

var sectionAliases = map[string]string{
	"plugin_events": "plugins",
}

// LookupSection resolves a section name or alias, case-insensitively.
func LookupSection(name string) (Section, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := sectionAliases[key]; ok {
		key = canonical
	}

	for _, s := range catalogue {
		if s.Name == key {
			return s, true
		}
	}

	return Section{}, false
}

// SectionNames lists the canonical section names in report order.
func SectionNames() []string {
	names := make([]string, len(catalogue))
	for i, s := range catalogue {
		names[i] = s.Name
	}

	return names
}

// render splices fragment into the template. The slot is the only place
// anything is inserted.
func (s Section) render(fragment string) string {
	return strings.Replace(s.Query, conditionSlot, fragment, 1)
}

// isDateTimeColumn reports whether column is rendered in the display timezone.
func (s Section) isDateTimeColumn(column string) bool {
	if s.DateTimeField != "" {
		return column == s.DateTimeField
	}

	lower := strings.ToLower(column)

	return strings.Contains(lower, "date") || strings.Contains(lower, "time")
}
