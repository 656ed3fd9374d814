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

// Package timeutil normalizes stored timestamps and renders them in the
// configured display timezone. The timezone is always passed in explicitly.
package timeutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateTimePattern is the naive layout timestamps are stored with as text.
const DateTimePattern = "2006-01-02 15:04:05"

var (
	ErrEmptyTimestamp       = errors.New("empty timestamp")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
	ErrUnsupportedTimestamp = errors.New("unsupported timestamp type")
)

// naiveLayouts carry no zone; they are read in the configured location.
var naiveLayouts = []string{
	DateTimePattern,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC1123,
	time.RFC1123Z,
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock with second precision.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().Truncate(time.Second)
}

// StaticClock always returns the same instant.
type StaticClock struct {
	At time.Time
}

func (c StaticClock) Now() time.Time {
	return c.At
}

// LoadLocation resolves an IANA zone name. An empty name is UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}

	return loc, nil
}

// Normalize turns a stored value into a time. Naive strings are interpreted in
// loc; numbers are Unix seconds.
func Normalize(v interface{}, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch value := v.(type) {
	case nil:
		return time.Time{}, ErrEmptyTimestamp
	case time.Time:
		if value.IsZero() {
			return time.Time{}, ErrEmptyTimestamp
		}

		return value, nil
	case *time.Time:
		if value == nil || value.IsZero() {
			return time.Time{}, ErrEmptyTimestamp
		}

		return *value, nil
	case string:
		return parseString(value, loc)
	case []byte:
		return parseString(string(value), loc)
	case int:
		return time.Unix(int64(value), 0), nil
	case int32:
		return time.Unix(int64(value), 0), nil
	case int64:
		return time.Unix(value, 0), nil
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return time.Time{}, ErrInvalidTimestamp
		}

		sec, frac := math.Modf(value)

		return time.Unix(int64(sec), int64(frac*float64(time.Second))), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrUnsupportedTimestamp, v)
	}
}

func parseString(raw string, loc *time.Location) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	if isDigits(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.Unix(sec, 0), nil
		}
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return s != ""
}

// ToDisplay renders v as RFC3339 in loc. ok is false when v is not a timestamp;
// callers keep the original value then.
func ToDisplay(v interface{}, loc *time.Location) (string, bool) {
	if loc == nil {
		loc = time.UTC
	}

	t, err := Normalize(v, loc)
	if err != nil {
		return "", false
	}

	return t.In(loc).Format(time.RFC3339), true
}

// Diff is a duration split into display units.
type Diff struct {
	Text         string `json:"text"`
	Days         int    `json:"days"`
	Hours        int    `json:"hours"`
	Minutes      int    `json:"minutes"`
	TotalMinutes int    `json:"total_minutes"`
}

// FormatDiff renders end-start as "Xd HH:MM". Minutes are floored, so a negative
// span counts down from the previous whole minute.
func FormatDiff(start, end time.Time) Diff {
	total := int(math.Floor(end.Sub(start).Minutes()))
	days, rem := floorDiv(total, 1440), floorMod(total, 1440)
	hours, minutes := rem/60, rem%60

	return Diff{
		Text:         fmt.Sprintf("%dd %02d:%02d", days, hours, minutes),
		Days:         days,
		Hours:        hours,
		Minutes:      minutes,
		TotalMinutes: total,
	}
}

// DiffValues normalizes both values in loc before calling FormatDiff.
func DiffValues(start, end interface{}, loc *time.Location) (Diff, error) {
	s, err := Normalize(start, loc)
	if err != nil {
		return Diff{}, err
	}

	e, err := Normalize(end, loc)
	if err != nil {
		return Diff{}, err
	}

	return FormatDiff(s, e), nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
