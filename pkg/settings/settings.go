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

// Package settings reads the dynamic key/value settings every cycle. Stored
// values win over the configured defaults, and keys that changed name over time
// are resolved through explicit precedence tables.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	KeyIncludedSections = "NTFPRCS_INCLUDED_SECTIONS"
	KeyAlertDownTime    = "NTFPRCS_alert_down_time"
	KeyIgnoredMACs      = "NEWDEV_ignored_MACs"
	KeyIgnoredIPs       = "NEWDEV_ignored_IPs"
	KeyNewDevAlertDown  = "NEWDEV_devAlertDown"
	KeyNewDevAlertEvent = "NEWDEV_devAlertEvents"
	KeyNewDevSkipRepeat = "NEWDEV_devSkipRepeated"
	KeyTimezone         = "TIMEZONE"
)

// DefaultIncludedSections applies when NTFPRCS_INCLUDED_SECTIONS is unset.
var DefaultIncludedSections = []string{"new_devices", "down_devices", "events"}

// conditionKeys lists, per section, the keys holding its filter condition in
// lookup order. The first non-empty value wins.
var conditionKeys = map[string][]string{
	"new_devices": {"NTFPRCS_new_devices_condition", "NTFPRCS_new_dev_condition"},
	"events":      {"NTFPRCS_events_condition", "NTFPRCS_event_condition"},
}

// ConditionKeys returns the precedence list for a section's condition.
func ConditionKeys(section string) []string {
	if keys, ok := conditionKeys[section]; ok {
		return keys
	}

	return []string{fmt.Sprintf("NTFPRCS_%s_condition", section)}
}

// Source provides the stored settings.
type Source interface {
	Settings(ctx context.Context) (map[string]string, error)
}

// Settings is an immutable view of one cycle's settings.
type Settings struct {
	values   map[string]string
	defaults map[string]string
}

// New builds a view from stored values and fallback defaults. Either may be nil.
func New(values, defaults map[string]string) *Settings {
	return &Settings{values: values, defaults: defaults}
}

// Load reads the stored settings from src.
func Load(ctx context.Context, src Source, defaults map[string]string) (*Settings, error) {
	values, err := src.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return New(values, defaults), nil
}

// Get returns the stored value, or the default when the stored one is blank.
func (s *Settings) Get(key string) string {
	if v := strings.TrimSpace(s.values[key]); v != "" {
		return v
	}

	return strings.TrimSpace(s.defaults[key])
}

// First walks keys in order and returns the first non-empty value and its key.
func (s *Settings) First(keys ...string) (key, value string) {
	for _, k := range keys {
		if v := s.Get(k); v != "" {
			return k, v
		}
	}

	return "", ""
}

// Int parses key as an integer, returning fallback when unset or invalid.
func (s *Settings) Int(key string, fallback int) int {
	v := unquote(s.Get(key))
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

// Bool accepts 1/0, true/false, yes/no and on/off.
func (s *Settings) Bool(key string, fallback bool) bool {
	switch strings.ToLower(unquote(s.Get(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// List parses key as a JSON list, a Python-style list or a comma list.
func (s *Settings) List(key string) []string {
	return ParseList(s.Get(key))
}

// SectionCondition resolves a section's condition through its precedence table.
func (s *Settings) SectionCondition(section string) string {
	_, v := s.First(ConditionKeys(section)...)

	return v
}

// IncludedSections returns the configured report sections in order, without
// duplicates.
func (s *Settings) IncludedSections() []string {
	raw := s.List(KeyIncludedSections)
	if len(raw) == 0 {
		return append([]string(nil), DefaultIncludedSections...)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, section := range raw {
		if _, ok := seen[section]; ok {
			continue
		}

		seen[section] = struct{}{}
		out = append(out, section)
	}

	return out
}

// AlertDownDelay is how long a Device Down event waits before it is reported.
func (s *Settings) AlertDownDelay() time.Duration {
	minutes := s.Int(KeyAlertDownTime, 0)
	if minutes < 0 {
		minutes = 0
	}

	return time.Duration(minutes) * time.Minute
}

// Timezone returns the display timezone name, or fallback when unset.
func (s *Settings) Timezone(fallback string) string {
	if tz := unquote(s.Get(KeyTimezone)); tz != "" {
		return tz
	}

	return fallback
}

// DeviceDefaults are the alert flags given to newly discovered devices.
type DeviceDefaults struct {
	AlertDown    bool
	AlertEvents  bool
	SkipRepeated int
}

// NewDeviceDefaults reads the NEWDEV_* defaults.
func (s *Settings) NewDeviceDefaults() DeviceDefaults {
	return DeviceDefaults{
		AlertDown:    s.Bool(KeyNewDevAlertDown, false),
		AlertEvents:  s.Bool(KeyNewDevAlertEvent, true),
		SkipRepeated: s.Int(KeyNewDevSkipRepeat, 0),
	}
}

// IgnoreList builds the MAC/IP ignore matcher.
func (s *Settings) IgnoreList() *IgnoreList {
	return NewIgnoreList(s.List(KeyIgnoredMACs), s.List(KeyIgnoredIPs))
}

// ParseList splits a stored list value. Empty items are dropped.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var items []string

	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			// Python list repr uses single quotes.
			if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &items); err != nil {
				items = strings.Split(strings.Trim(raw, "[]"), ",")
			}
		}
	} else {
		items = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if item = unquote(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}

	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return strings.TrimSpace(v[1 : len(v)-1])
		}
	}

	return v
}
