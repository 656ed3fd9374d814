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

// Package sessions folds presence events into connectivity intervals.
package sessions

import (
	"context"
	"fmt"
	"sort"

	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/timeutil"
)

// Store is the slice of the cycle transaction the pairer needs.
type Store interface {
	db.SessionStore
	db.EventStore
}

// Result counts the session writes of one pass.
type Result struct {
	Opened  int
	Closed  int
	Orphans int
	Skipped int
}

// Pairer opens a session on every connect event and closes it on the next
// terminal event of the same MAC.
type Pairer struct {
	logger logger.Logger
}

// NewPairer returns a pairer logging through log.
func NewPairer(log logger.Logger) *Pairer {
	return &Pairer{logger: log}
}

// Pair applies events in (DateTime, ID) order. A connect event for a MAC that
// already has an open session is skipped. A terminal event without an open
// session is stored as a closed session whose connect side is MissingEvent.
// Terminal events that closed a session are linked to its connect event.
func (p *Pairer) Pair(ctx context.Context, store Store, events []*models.Event) (*Result, error) {
	result := &Result{}

	if len(events) == 0 {
		return result, nil
	}

	existing, err := store.OpenSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read open sessions: %w", err)
	}

	open := make(map[string]*models.Session, len(existing))
	for i := range existing {
		open[existing[i].MAC] = &existing[i]
	}

	ordered := append([]*models.Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].DateTime.Equal(ordered[j].DateTime) {
			return ordered[i].DateTime.Before(ordered[j].DateTime)
		}

		return ordered[i].ID < ordered[j].ID
	})

	pairs := make(map[int64]int64)

	for _, ev := range ordered {
		switch {
		case ev.Type.OpensSession():
			if _, ok := open[ev.MAC]; ok {
				result.Skipped++
				continue
			}

			session, err := p.open(ctx, store, ev)
			if err != nil {
				return nil, err
			}

			open[ev.MAC] = session
			result.Opened++

		case ev.Type.ClosesSession():
			session, ok := open[ev.MAC]
			if !ok {
				if err := p.orphan(ctx, store, ev); err != nil {
					return nil, err
				}

				result.Orphans++

				continue
			}

			if err := p.close(ctx, store, session, ev); err != nil {
				return nil, err
			}

			if session.ConnectEventID != nil {
				pairs[ev.ID] = *session.ConnectEventID
			}

			delete(open, ev.MAC)
			result.Closed++
		}
	}

	if len(pairs) > 0 {
		if err := store.SetEventPairs(ctx, pairs); err != nil {
			return nil, fmt.Errorf("link event pairs: %w", err)
		}
	}

	p.logger.Debug().
		Int("opened", result.Opened).
		Int("closed", result.Closed).
		Int("orphans", result.Orphans).
		Int("skipped", result.Skipped).
		Msg("sessions paired")

	return result, nil
}

func (*Pairer) open(ctx context.Context, store Store, ev *models.Event) (*models.Session, error) {
	at := ev.DateTime
	id := ev.ID

	session := &models.Session{
		MAC:            ev.MAC,
		IP:             ev.IP,
		ConnectionType: ev.Type,
		ConnectedAt:    &at,
		ConnectEventID: &id,
		StillConnected: true,
	}

	if err := store.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", ev.MAC, err)
	}

	return session, nil
}

func (*Pairer) close(ctx context.Context, store Store, session *models.Session, ev *models.Event) error {
	at := ev.DateTime

	session.DisconnectionType = ev.Type
	session.DisconnectedAt = &at
	session.StillConnected = false

	if session.ConnectedAt != nil {
		session.AdditionalInfo = "Duration: " + timeutil.FormatDiff(*session.ConnectedAt, at).Text
	}

	if err := store.CloseSession(ctx, session); err != nil {
		return fmt.Errorf("close session for %s: %w", ev.MAC, err)
	}

	return nil
}

func (*Pairer) orphan(ctx context.Context, store Store, ev *models.Event) error {
	at := ev.DateTime

	session := &models.Session{
		MAC:               ev.MAC,
		IP:                ev.IP,
		ConnectionType:    models.MissingEvent,
		DisconnectionType: ev.Type,
		DisconnectedAt:    &at,
	}

	if err := store.InsertSession(ctx, session); err != nil {
		return fmt.Errorf("store orphan session for %s: %w", ev.MAC, err)
	}

	return nil
}
