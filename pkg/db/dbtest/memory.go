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

// Package dbtest provides an in-memory db.TxRunner for tests that exercise
// whole cycles without PostgreSQL.
package dbtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

// ErrQueryUnsupported is returned by the SQL entry points the fake cannot evaluate.
var ErrQueryUnsupported = errors.New("dbtest: ad hoc SQL is not supported")

type snapshotRow struct {
	cycleID string
	source  string
	row     models.ScanRow
	seenAt  time.Time
}

type state struct {
	snapshot    []snapshotRow
	devices     map[string]models.Device
	events      []models.Event
	sessions    []models.Session
	settings    map[string]string
	nextEventID int64
	nextSession int64
}

func (s *state) clone() *state {
	out := &state{
		snapshot:    append([]snapshotRow(nil), s.snapshot...),
		devices:     make(map[string]models.Device, len(s.devices)),
		events:      make([]models.Event, len(s.events)),
		sessions:    make([]models.Session, len(s.sessions)),
		settings:    make(map[string]string, len(s.settings)),
		nextEventID: s.nextEventID,
		nextSession: s.nextSession,
	}

	for k, v := range s.devices {
		out.devices[k] = v
	}

	for k, v := range s.settings {
		out.settings[k] = v
	}

	copy(out.events, s.events)
	copy(out.sessions, s.sessions)

	return out
}

// Memory is a db.TxRunner backed by maps. A transaction works on a copy of
// the state that replaces the committed state only when fn returns nil.
type Memory struct {
	mu    sync.Mutex
	state *state

	// Fail makes the named method return the error inside every transaction.
	Fail map[string]error

	commits   int
	rollbacks int
}

var _ db.TxRunner = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		state: &state{
			devices:  make(map[string]models.Device),
			settings: make(map[string]string),
		},
		Fail: make(map[string]error),
	}
}

// InTx runs fn against a private copy of the state.
func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx db.CycleTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{st: m.state.clone(), fail: m.Fail}

	if err := fn(ctx, tx); err != nil {
		m.rollbacks++
		return err
	}

	m.state = tx.st
	m.commits++

	return nil
}

// PruneHistory applies the retention rules of db.Store.PruneHistory.
func (m *Memory) PruneHistory(_ context.Context, days int, now time.Time) (db.PruneResult, error) {
	var result db.PruneResult

	if days <= 0 {
		return result, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	sessions := m.state.sessions[:0]

	for _, s := range m.state.sessions {
		if !s.StillConnected && s.ConnectedAt != nil && !s.ConnectedAt.After(cutoff) {
			result.Sessions++
			continue
		}

		sessions = append(sessions, s)
	}

	m.state.sessions = sessions

	latest := make(map[string]models.Event)

	for _, ev := range m.state.events {
		if !ev.Type.ClosesSession() {
			continue
		}

		mac := models.NormalizeMAC(ev.MAC)

		prev, seen := latest[mac]
		if !seen || ev.DateTime.After(prev.DateTime) || (ev.DateTime.Equal(prev.DateTime) && ev.ID > prev.ID) {
			latest[mac] = ev
		}
	}

	events := m.state.events[:0]

	for _, ev := range m.state.events {
		keep := latest[models.NormalizeMAC(ev.MAC)].ID == ev.ID && ev.Type.ClosesSession()
		if !keep && !ev.PendingAlert && !ev.DateTime.After(cutoff) {
			result.Events++
			continue
		}

		events = append(events, ev)
	}

	m.state.events = events

	m.commits++

	return result, nil
}

// Commits returns how many transactions committed.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.commits
}

// Rollbacks returns how many transactions rolled back.
func (m *Memory) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rollbacks
}

// PutDevice seeds or replaces a registry row.
func (m *Memory) PutDevice(d models.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.devices[d.MAC] = d
}

// PutSetting stores a settings row.
func (m *Memory) PutSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.settings[key] = value
}

// PutSnapshot seeds snapshot rows outside any cycle, e.g. leftovers of a crash.
func (m *Memory) PutSnapshot(cycleID string, rows ...models.ScanRow) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		m.state.snapshot = append(m.state.snapshot, snapshotRow{cycleID: cycleID, row: row})
	}
}

// AppendEvent seeds a committed event and returns its id.
func (m *Memory) AppendEvent(ev models.Event) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.nextEventID++
	ev.ID = m.state.nextEventID
	m.state.events = append(m.state.events, ev)

	return ev.ID
}

// Device returns the committed registry row for mac.
func (m *Memory) Device(mac string) (models.Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.state.devices[mac]

	return d, ok
}

// Events returns the committed event log in id order.
func (m *Memory) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.Event(nil), m.state.events...)
}

// EventsFor returns the committed events of one MAC.
func (m *Memory) EventsFor(mac string) []models.Event {
	var out []models.Event

	for _, ev := range m.Events() {
		if ev.MAC == mac {
			out = append(out, ev)
		}
	}

	return out
}

// Sessions returns the committed sessions in id order.
func (m *Memory) Sessions() []models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.Session(nil), m.state.sessions...)
}

// SnapshotLen returns the number of committed snapshot rows.
func (m *Memory) SnapshotLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.state.snapshot)
}

type memTx struct {
	st   *state
	fail map[string]error
}

var _ db.CycleTx = (*memTx)(nil)

func (t *memTx) failure(method string) error {
	return t.fail[method]
}

func (t *memTx) SaveSnapshot(_ context.Context, cycleID, source string, rows []models.ScanRow, seenAt time.Time) error {
	if err := t.failure("SaveSnapshot"); err != nil {
		return err
	}

	if cycleID == "" {
		return db.ErrCycleIDRequired
	}

	for _, row := range rows {
		replaced := false

		for i := range t.st.snapshot {
			if t.st.snapshot[i].cycleID == cycleID && t.st.snapshot[i].row.MAC == row.MAC {
				t.st.snapshot[i] = snapshotRow{cycleID: cycleID, source: source, row: row, seenAt: seenAt}
				replaced = true

				break
			}
		}

		if !replaced {
			t.st.snapshot = append(t.st.snapshot, snapshotRow{cycleID: cycleID, source: source, row: row, seenAt: seenAt})
		}
	}

	return nil
}

func (t *memTx) SnapshotRows(_ context.Context, cycleID string) ([]models.ScanRow, error) {
	if err := t.failure("SnapshotRows"); err != nil {
		return nil, err
	}

	var out []models.ScanRow

	for _, r := range t.st.snapshot {
		if r.cycleID == cycleID {
			out = append(out, r.row)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })

	return out, nil
}

func (t *memTx) ClearSnapshot(_ context.Context) (int64, error) {
	if err := t.failure("ClearSnapshot"); err != nil {
		return 0, err
	}

	n := int64(len(t.st.snapshot))
	t.st.snapshot = nil

	return n, nil
}

func (t *memTx) Devices(_ context.Context) ([]models.Device, error) {
	if err := t.failure("Devices"); err != nil {
		return nil, err
	}

	out := make([]models.Device, 0, len(t.st.devices))
	for _, d := range t.st.devices {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })

	return out, nil
}

func (t *memTx) InsertDevices(_ context.Context, devices []*models.Device) error {
	if err := t.failure("InsertDevices"); err != nil {
		return err
	}

	for _, d := range devices {
		if d == nil {
			return db.ErrDeviceNil
		}

		if d.MAC == "" {
			return db.ErrDeviceMACRequired
		}

		if t.hasDevice(d.MAC) {
			continue
		}

		t.st.devices[d.MAC] = *d
	}

	return nil
}

// hasDevice mirrors the case-insensitive unique index on devMac.
func (t *memTx) hasDevice(mac string) bool {
	want := models.NormalizeMAC(mac)

	for stored := range t.st.devices {
		if models.NormalizeMAC(stored) == want {
			return true
		}
	}

	return false
}

func (t *memTx) UpdatePresence(_ context.Context, updates []db.DevicePresence) error {
	if err := t.failure("UpdatePresence"); err != nil {
		return err
	}

	for _, u := range updates {
		if u.MAC == "" {
			return db.ErrDeviceMACRequired
		}

		d, ok := t.st.devices[u.MAC]
		if !ok {
			continue
		}

		d.PresentLastScan = u.Present

		if u.Present {
			if u.LastIP != "" {
				d.LastIP = u.LastIP
			}

			d.LastConnection = u.SeenAt
		}

		t.st.devices[u.MAC] = d
	}

	return nil
}

func (t *memTx) InsertEvents(_ context.Context, events []*models.Event) error {
	if err := t.failure("InsertEvents"); err != nil {
		return err
	}

	for _, ev := range events {
		if ev == nil {
			return db.ErrEventNil
		}

		if ev.MAC == "" {
			return db.ErrEventMACRequired
		}

		t.st.nextEventID++
		ev.ID = t.st.nextEventID
		t.st.events = append(t.st.events, *ev)
	}

	return nil
}

func (t *memTx) LastTerminalEvents(_ context.Context, macs []string) (map[string]models.EventType, error) {
	if err := t.failure("LastTerminalEvents"); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(macs))
	for _, mac := range macs {
		wanted[models.NormalizeMAC(mac)] = struct{}{}
	}

	out := make(map[string]models.EventType)
	latest := make(map[string]models.Event)

	for _, ev := range t.st.events {
		mac := models.NormalizeMAC(ev.MAC)
		if _, ok := wanted[mac]; !ok || !ev.Type.ClosesSession() {
			continue
		}

		prev, seen := latest[mac]
		if !seen || !ev.DateTime.Before(prev.DateTime) {
			latest[mac] = ev
			out[mac] = ev.Type
		}
	}

	return out, nil
}

func (t *memTx) SetEventPairs(_ context.Context, pairs map[int64]int64) error {
	if err := t.failure("SetEventPairs"); err != nil {
		return err
	}

	for i := range t.st.events {
		if pair, ok := pairs[t.st.events[i].ID]; ok {
			p := pair
			t.st.events[i].PairEventID = &p
		}
	}

	return nil
}

func (t *memTx) OpenSessions(_ context.Context) ([]models.Session, error) {
	if err := t.failure("OpenSessions"); err != nil {
		return nil, err
	}

	var out []models.Session

	for _, s := range t.st.sessions {
		if s.StillConnected {
			out = append(out, s)
		}
	}

	return out, nil
}

func (t *memTx) InsertSession(_ context.Context, session *models.Session) error {
	if err := t.failure("InsertSession"); err != nil {
		return err
	}

	if session == nil {
		return db.ErrSessionNil
	}

	t.st.nextSession++
	session.ID = t.st.nextSession
	t.st.sessions = append(t.st.sessions, *session)

	return nil
}

func (t *memTx) CloseSession(_ context.Context, session *models.Session) error {
	if err := t.failure("CloseSession"); err != nil {
		return err
	}

	if session == nil {
		return db.ErrSessionNil
	}

	for i := range t.st.sessions {
		if t.st.sessions[i].ID == session.ID {
			t.st.sessions[i] = *session
			return nil
		}
	}

	return db.ErrSessionNotStored
}

func (t *memTx) Settings(_ context.Context) (map[string]string, error) {
	if err := t.failure("Settings"); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(t.st.settings))
	for k, v := range t.st.settings {
		out[k] = v
	}

	return out, nil
}

func (t *memTx) ClearOptedOutAlerts(_ context.Context) (int64, error) {
	if err := t.failure("ClearOptedOutAlerts"); err != nil {
		return 0, err
	}

	return t.clearPending(func(ev *models.Event) bool {
		d, ok := t.st.devices[ev.MAC]
		if !ok {
			return false
		}

		switch ev.Type {
		case models.EventDeviceDown, models.EventDownReconnected:
			return !d.AlertDown
		case models.EventNewDevice:
			return false
		default:
			return !d.AlertEvents
		}
	}), nil
}

func (t *memTx) ClearRepeatedAlerts(_ context.Context, now time.Time) (int64, error) {
	if err := t.failure("ClearRepeatedAlerts"); err != nil {
		return 0, err
	}

	return t.clearPending(func(ev *models.Event) bool {
		d, ok := t.st.devices[ev.MAC]
		if !ok || d.LastNotification == nil || d.SkipRepeated <= 0 {
			return false
		}

		// Whole minutes, as the SQL compares them.
		until := d.LastNotification.Truncate(time.Minute).Add(time.Duration(d.SkipRepeated) * time.Minute)

		return until.After(now.Truncate(time.Minute))
	}), nil
}

func (t *memTx) QuerySection(_ context.Context, _ string, _ pgx.NamedArgs) (*db.QueryResult, error) {
	if err := t.failure("QuerySection"); err != nil {
		return nil, err
	}

	return nil, ErrQueryUnsupported
}

func (t *memTx) ConsumeEvents(_ context.Context, ids []int64) ([]int64, error) {
	if err := t.failure("ConsumeEvents"); err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var out []int64

	for i := range t.st.events {
		ev := &t.st.events[i]
		if _, ok := wanted[ev.ID]; ok && ev.PendingAlert {
			ev.PendingAlert = false
			out = append(out, ev.ID)
		}
	}

	return out, nil
}

func (t *memTx) ConsumePluginEvents(_ context.Context, _ []int64) ([]int64, error) {
	if err := t.failure("ConsumePluginEvents"); err != nil {
		return nil, err
	}

	return nil, nil
}

func (t *memTx) ClearRemainingAlerts(_ context.Context, downCutoff time.Time, keep []models.EventType) (int64, error) {
	if err := t.failure("ClearRemainingAlerts"); err != nil {
		return 0, err
	}

	kept := make(map[models.EventType]struct{}, len(keep))
	for _, typ := range keep {
		kept[typ] = struct{}{}
	}

	return t.clearPending(func(ev *models.Event) bool {
		if _, ok := kept[ev.Type]; ok {
			return false
		}

		return ev.Type != models.EventDeviceDown || ev.DateTime.Before(downCutoff)
	}), nil
}

func (t *memTx) MarkNotified(_ context.Context, macs []string, at time.Time) error {
	if err := t.failure("MarkNotified"); err != nil {
		return err
	}

	for _, mac := range macs {
		d, ok := t.st.devices[mac]
		if !ok {
			continue
		}

		ts := at
		d.LastNotification = &ts
		t.st.devices[mac] = d
	}

	return nil
}

func (t *memTx) clearPending(match func(ev *models.Event) bool) int64 {
	var n int64

	for i := range t.st.events {
		ev := &t.st.events[i]
		if ev.PendingAlert && match(ev) {
			ev.PendingAlert = false
			n++
		}
	}

	return n
}
