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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

// Tx is one locked cycle transaction. All repository reads and writes of a
// cycle go through it so they commit or roll back together.
type Tx struct {
	tx     pgx.Tx
	logger logger.Logger
}

var _ CycleTx = (*Tx)(nil)

func newTx(tx pgx.Tx, log logger.Logger) *Tx {
	return &Tx{tx: tx, logger: log}
}

// ExecuteQuery runs a query inside the transaction and collects every row.
func (t *Tx) ExecuteQuery(ctx context.Context, query string, args pgx.NamedArgs) (*QueryResult, error) {
	rows, err := t.tx.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return collectResult(rows)
}

func (t *Tx) exec(ctx context.Context, operation, query string, args pgx.NamedArgs) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFailedToUpdate, operation, err)
	}

	return tag.RowsAffected(), nil
}

func boolToSmallint(v bool) int16 {
	if v {
		return 1
	}

	return 0
}
