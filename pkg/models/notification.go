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

import "time"

// SectionResult is the bucket one report section contributes to a batch.
type SectionResult struct {
	Name    string                   `json:"name"`
	Title   string                   `json:"title"`
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
	Failed  bool                     `json:"failed,omitempty"`
}

// NotificationBatch groups the events consumed by one dispatch, per section.
type NotificationBatch struct {
	CycleID     string          `json:"cycle_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Timezone    string          `json:"timezone"`
	Sections    []SectionResult `json:"sections"`
}

// Count returns the number of rows across all sections.
func (b *NotificationBatch) Count() int {
	total := 0
	for i := range b.Sections {
		total += len(b.Sections[i].Rows)
	}

	return total
}

// Empty reports whether no section produced a row.
func (b *NotificationBatch) Empty() bool {
	return b.Count() == 0
}

// Section returns the named section, or nil.
func (b *NotificationBatch) Section(name string) *SectionResult {
	for i := range b.Sections {
		if b.Sections[i].Name == name {
			return &b.Sections[i]
		}
	}

	return nil
}
