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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

// cycleLockKey serializes presence cycles across every process sharing the database.
const cycleLockKey int64 = 0x4e41_5850 // "NAXP"

// Store is the pgx-backed persistence layer. Every cycle step runs inside a Tx
// obtained from InTx.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ TxRunner = (*Store)(nil)

// NewStore wraps an initialized pool.
func NewStore(pool *pgxpool.Pool, log logger.Logger) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	return &Store{pool: pool, logger: log}, nil
}

// Ping checks connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// InTx begins a transaction, takes the cycle advisory lock and runs fn. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx CycleTx) error) error {
	return s.withLockedTx(ctx, func(pgxTx pgx.Tx) error {
		return fn(ctx, newTx(pgxTx, s.logger))
	})
}

func (s *Store) withLockedTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	pgxTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTx, err)
	}

	defer func() {
		if err == nil {
			return
		}

		if rbErr := pgxTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
	}()

	if _, err = pgxTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, cycleLockKey); err != nil {
		return fmt.Errorf("%w: %w", ErrCycleLock, err)
	}

	if err = fn(pgxTx); err != nil {
		return err
	}

	if err = pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitTx, err)
	}

	return nil
}

const (
	pruneSessionsSQL = `DELETE FROM "Sessions"
WHERE "ses_StillConnected" = 0 AND "ses_DateTimeConnection" <= @cutoff`

	// The latest terminal event of each MAC survives so a reconnect is still
	// classified against it.
	pruneEventsSQL = `DELETE FROM "Events"
WHERE "eve_PendingAlertEmail" = 0 AND "eve_DateTime" <= @cutoff
	AND "eve_id" NOT IN (
		SELECT DISTINCT ON (lower("eve_MAC")) "eve_id" FROM "Events"
		WHERE "eve_EventType" IN ('Disconnected', 'Device Down')
		ORDER BY lower("eve_MAC"), "eve_DateTime" DESC, "eve_id" DESC
	)`
)

// PruneHistory deletes closed sessions and delivered events older than days,
// keeping the latest terminal event of every MAC. A non-positive window is a
// no-op.
func (s *Store) PruneHistory(ctx context.Context, days int, now time.Time) (PruneResult, error) {
	var result PruneResult

	if days <= 0 {
		return result, nil
	}

	args := pgx.NamedArgs{"cutoff": now.Add(-time.Duration(days) * 24 * time.Hour)}

	err := s.withLockedTx(ctx, func(pgxTx pgx.Tx) error {
		tag, err := pgxTx.Exec(ctx, pruneSessionsSQL, args)
		if err != nil {
			return fmt.Errorf("%w: prune sessions: %w", ErrFailedToDelete, err)
		}

		result.Sessions = tag.RowsAffected()

		tag, err = pgxTx.Exec(ctx, pruneEventsSQL, args)
		if err != nil {
			return fmt.Errorf("%w: prune events: %w", ErrFailedToDelete, err)
		}

		result.Events = tag.RowsAffected()

		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}

	s.logger.Info().
		Int("days", days).
		Int64("sessions", result.Sessions).
		Int64("events", result.Events).
		Msg("pruned presence history")

	return result, nil
}

func collectResult(rows pgx.Rows) (*QueryResult, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &QueryResult{Columns: make([]string, len(fields))}

	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		row := make(map[string]interface{}, len(values))
		for i, v := range values {
			row[result.Columns[i]] = v
		}

		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return result, nil
}
