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

package natsutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "netalertx.notifications",
			want:     []string{"netalertx.notifications"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"netalertx.*"},
			subject:  "netalertx.notifications",
			want:     []string{"netalertx.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"netalertx.>"},
			subject:  "netalertx.scans.arp",
			want:     []string{"netalertx.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"netalertx.scans.>"},
			subject:  "netalertx.notifications",
			want:     []string{"netalertx.scans.>", "netalertx.notifications"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "netalertx.notifications", "netalertx.notifications", true},
		{"single wildcard", "netalertx.*.arp", "netalertx.scans.arp", true},
		{"greater wildcard", "netalertx.scans.>", "netalertx.scans.arp", true},
		{"greater wildcard needs a token", "netalertx.scans.>", "netalertx.scans", false},
		{"no match length", "netalertx.*", "netalertx.scans.arp", false},
		{"no match tokens", "logs.syslog.*", "netalertx.scans.arp", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestTLSConfig(t *testing.T) {
	t.Parallel()

	conf, err := TLSConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, conf)

	conf, err = TLSConfig(&models.SecurityConfig{Mode: models.SecurityModeNone})
	require.NoError(t, err)
	assert.Nil(t, conf)

	_, err = TLSConfig(&models.SecurityConfig{Mode: "spiffe"})
	require.ErrorIs(t, err, ErrUnknownSecurityMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.pem"), []byte("not a certificate"), 0o600))

	_, err = TLSConfig(&models.SecurityConfig{
		Mode:    models.SecurityModeTLS,
		CertDir: dir,
		TLS:     models.TLSConfig{CAFile: "root.pem"},
	})
	require.ErrorIs(t, err, ErrCAParsingFailed)

	_, err = TLSConfig(&models.SecurityConfig{
		Mode:    models.SecurityModeMTLS,
		CertDir: dir,
		TLS:     models.TLSConfig{CertFile: "missing.pem", KeyFile: "missing-key.pem"},
	})
	require.Error(t, err)

	conf, err = TLSConfig(&models.SecurityConfig{Mode: models.SecurityModeTLS, ServerName: "nats.local"})
	require.NoError(t, err)
	assert.Equal(t, "nats.local", conf.ServerName)
	assert.Nil(t, conf.RootCAs)
}

func TestEnsureStreamCreatesThenExtends(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)
	t.Cleanup(srv.Shutdown)

	nc, err := Connect(ctx, &models.NATSConfig{URL: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := JetStream(nc, "")
	require.NoError(t, err)

	stream, err := EnsureStream(ctx, js, "NETALERTX", "netalertx.scans.>")
	require.NoError(t, err)
	assert.Equal(t, []string{"netalertx.scans.>"}, stream.CachedInfo().Config.Subjects)

	stream, err = EnsureStream(ctx, js, "NETALERTX", "netalertx.scans.arp", "netalertx.notifications")
	require.NoError(t, err)
	assert.Equal(t, []string{"netalertx.scans.>", "netalertx.notifications"}, stream.CachedInfo().Config.Subjects)
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	return srv
}
