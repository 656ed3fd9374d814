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
)

type batchSender func(context.Context, *pgx.Batch) pgx.BatchResults

// sendBatchExecAll sends the batch and drains every result, closing the
// results even when a command fails.
func sendBatchExecAll(ctx context.Context, batch *pgx.Batch, send batchSender, operation string) (err error) {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	br := send(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%s batch close: %w", operation, closeErr)
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			return fmt.Errorf("%s batch exec (command %d): %w", operation, i, err)
		}
	}

	return nil
}

// sendBatchReturningIDs sends a batch of single-row RETURNING statements and
// returns the scanned ids in queue order.
func sendBatchReturningIDs(ctx context.Context, batch *pgx.Batch, send batchSender, operation string) (ids []int64, err error) {
	if batch == nil || batch.Len() == 0 {
		return nil, nil
	}

	br := send(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%s batch close: %w", operation, closeErr)
		}
	}()

	ids = make([]int64, batch.Len())

	for i := 0; i < batch.Len(); i++ {
		if err = br.QueryRow().Scan(&ids[i]); err != nil {
			return nil, fmt.Errorf("%s batch returning (command %d): %w", operation, i, err)
		}
	}

	return ids, nil
}
