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
	"time"

	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

// render turns a section run into its batch bucket: hidden columns stripped,
// timestamps in loc, and the downtime column for reconnected devices.
func (g *Gate) render(run sectionRun, loc *time.Location) models.SectionResult {
	out := models.SectionResult{
		Name:    run.section.Name,
		Title:   run.section.Title,
		Columns: visibleColumns(run.result.Columns),
		Rows:    make([]map[string]interface{}, 0, len(run.result.Rows)),
		Failed:  run.failed,
	}

	withDowntime := hasColumn(run.result.Columns, colDownSince)
	if withDowntime {
		out.Columns = append(out.Columns, colDowntime)
	}

	for _, raw := range run.result.Rows {
		row := make(map[string]interface{}, len(out.Columns))

		for _, col := range out.Columns {
			v, ok := raw[col]
			if !ok {
				continue
			}

			if run.section.isDateTimeColumn(col) {
				if display, ok := timeutil.ToDisplay(v, loc); ok {
					v = display
				}
			}

			row[col] = v
		}

		if withDowntime {
			row[colDowntime] = g.downtime(raw, loc)
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

func (g *Gate) downtime(raw map[string]interface{}, loc *time.Location) string {
	diff, err := timeutil.DiffValues(raw[colDownSince], raw["eve_DateTime"], loc)
	if err != nil {
		g.logger.Debug().Err(err).Msg("downtime unavailable")
		return ""
	}

	return diff.Text
}

func visibleColumns(columns []string) []string {
	out := make([]string, 0, len(columns))

	for _, c := range columns {
		if strings.HasPrefix(c, hiddenPrefix) {
			continue
		}

		out = append(out, c)
	}

	return out
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}

	return false
}
