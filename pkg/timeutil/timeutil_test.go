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

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()

	loc, err := LoadLocation(name)
	require.NoError(t, err)

	return loc
}

func TestNormalize(t *testing.T) {
	berlin := mustLocation(t, "Europe/Berlin")
	want := time.Date(2024, 3, 10, 9, 30, 0, 0, berlin)

	tests := []struct {
		name  string
		value interface{}
		want  time.Time
	}{
		{name: "naive pattern in configured zone", value: "2024-03-10 09:30:00", want: want},
		{name: "naive iso", value: "2024-03-10T09:30:00", want: want},
		{name: "extra whitespace", value: "  2024-03-10   09:30:00 ", want: want},
		{name: "rfc3339 keeps its offset", value: "2024-03-10T08:30:00Z", want: want},
		{name: "time value", value: want, want: want},
		{name: "pointer", value: &want, want: want},
		{name: "epoch seconds", value: want.Unix(), want: want},
		{name: "epoch string", value: "1710059400", want: want},
		{name: "epoch float", value: float64(want.Unix()), want: want},
		{name: "bytes", value: []byte("2024-03-10 09:30:00"), want: want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.value, berlin)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, v := range []interface{}{nil, "", "yesterday", time.Time{}, struct{}{}, (*time.Time)(nil)} {
		_, err := Normalize(v, time.UTC)
		assert.Error(t, err, "value %#v", v)
	}
}

func TestToDisplay(t *testing.T) {
	tokyo := mustLocation(t, "Asia/Tokyo")

	got, ok := ToDisplay(time.Date(2024, 1, 20, 7, 58, 18, 0, time.UTC), tokyo)
	require.True(t, ok)
	assert.Equal(t, "2024-01-20T16:58:18+09:00", got)

	got, ok = ToDisplay("2024-01-20 07:58:18", tokyo)
	require.True(t, ok)
	assert.Equal(t, "2024-01-20T07:58:18+09:00", got)

	_, ok = ToDisplay("not a date", tokyo)
	assert.False(t, ok)
}

func TestFormatDiff(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want Diff
	}{
		{
			name: "minutes only",
			end:  start.Add(5*time.Minute + 59*time.Second),
			want: Diff{Text: "0d 00:05", Minutes: 5, TotalMinutes: 5},
		},
		{
			name: "days hours minutes",
			end:  start.Add(50*time.Hour + 7*time.Minute),
			want: Diff{Text: "2d 02:07", Days: 2, Hours: 2, Minutes: 7, TotalMinutes: 3007},
		},
		{
			name: "negative span floors",
			end:  start.Add(-30 * time.Second),
			want: Diff{Text: "-1d 23:59", Days: -1, Hours: 23, Minutes: 59, TotalMinutes: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDiff(start, tt.end))
		})
	}
}

func TestDiffValues(t *testing.T) {
	d, err := DiffValues("2024-01-01 10:00:00", time.Date(2024, 1, 1, 11, 30, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "0d 01:30", d.Text)

	_, err = DiffValues("bogus", time.Now(), time.UTC)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestClocks(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, StaticClock{At: at}.Now())
	assert.Equal(t, 0, SystemClock{}.Now().Nanosecond())
}
