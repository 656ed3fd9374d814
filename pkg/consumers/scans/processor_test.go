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

package scans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwills/NetAlertX/pkg/cycle"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var errCycleFailed = errors.New("cycle failed")

// fakeRunner fails the first failures[cycleID] runs of a cycle.
type fakeRunner struct {
	mu       sync.Mutex
	reports  []models.ScanReport
	failures map[string]int
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, report *models.ScanReport) (*cycle.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := ctx.Deadline(); ok {
		f.deadline = true
	}

	f.reports = append(f.reports, *report)

	if f.failures[report.CycleID] > 0 {
		f.failures[report.CycleID]--
		return nil, errCycleFailed
	}

	return &cycle.Outcome{CycleID: report.CycleID}, nil
}

func (f *fakeRunner) cycleIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, len(f.reports))
	for i, r := range f.reports {
		ids[i] = r.CycleID
	}

	return ids
}

func TestProcessDecodesReport(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProcessor(runner, time.Minute, logger.NewTestLogger())

	payload := []byte(`{"cycle_id":"c1","scanned_at":"2024-03-10T08:00:00Z","source":"arp-scan","rows":[{"mac":"AA:AA:AA:AA:AA:AA","ip":"10.0.0.5"}]}`)

	require.NoError(t, p.Process(context.Background(), payload, nil))
	require.Len(t, runner.reports, 1)

	report := runner.reports[0]
	assert.Equal(t, "c1", report.CycleID)
	assert.Equal(t, "arp-scan", report.Source)
	assert.Equal(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), report.ScannedAt)
	assert.Len(t, report.Rows, 1)
	assert.True(t, runner.deadline)
}

func TestProcessDerivesCycleIDFromSequence(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProcessor(runner, 0, logger.NewTestLogger())

	meta := &jetstream.MsgMetadata{Stream: "NETALERTX", Sequence: jetstream.SequencePair{Stream: 42}}

	require.NoError(t, p.Process(context.Background(), []byte(`{"rows":[]}`), meta))
	assert.Equal(t, []string{"NETALERTX-42"}, runner.cycleIDs())
	assert.False(t, runner.deadline)
}

func TestProcessErrors(t *testing.T) {
	runner := &fakeRunner{failures: map[string]int{"c1": 1}}
	p := NewProcessor(runner, 0, logger.NewTestLogger())

	err := p.Process(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.True(t, permanent(err))

	err = p.Process(context.Background(), []byte(`{"rows":`), nil)
	require.ErrorIs(t, err, ErrUnmarshal)
	assert.True(t, permanent(err))

	err = p.Process(context.Background(), []byte(`{"cycle_id":"c1"}`), nil)
	require.ErrorIs(t, err, errCycleFailed)
	assert.False(t, permanent(err))

	err = NewProcessor(nil, 0, logger.NewTestLogger()).Process(context.Background(), []byte(`{}`), nil)
	require.ErrorIs(t, err, ErrRunnerNil)
}
