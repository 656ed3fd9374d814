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
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

const clientName = "netalertx-presence"

// Connect opens a NATS connection for cfg with reconnects enabled and the
// connection lifecycle logged through log.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	tlsConf, err := TLSConfig(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
	}

	if tlsConf != nil {
		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}

	return nc, nil
}

// JetStream returns a JetStream handle, scoped to domain when one is set.
func JetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain != "" {
		js, err := jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		return js, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return js, nil
}

// EnsureStream makes sure name exists and captures every subject in subjects.
// An existing stream is only updated when one of the subjects is not covered.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string, subjects ...string) (jetstream.Stream, error) {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return nil, fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		created, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: subjects,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return created, nil
	}

	cfg := stream.CachedInfo().Config
	updated := append([]string(nil), cfg.Subjects...)

	for _, subject := range subjects {
		updated = ensureSubjectList(updated, subject)
	}

	if len(updated) == len(cfg.Subjects) {
		return stream, nil
	}

	cfg.Subjects = updated

	stream, err = js.UpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to add subjects to stream %s: %w", name, err)
	}

	return stream, nil
}

// ensureSubjectList appends subject unless a pattern already matches it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject applies NATS wildcard rules: * is one token, > is the rest.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if p != "*" && p != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}
