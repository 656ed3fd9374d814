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

import "errors"

var (
	ErrNilPool = errors.New("database pool is nil")

	// Operation errors.

	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToUpdate = errors.New("failed to update")
	ErrFailedToDelete = errors.New("failed to delete")

	// Transaction errors.

	ErrBeginTx      = errors.New("failed to begin transaction")
	ErrCommitTx     = errors.New("failed to commit transaction")
	ErrCycleLock    = errors.New("failed to acquire cycle lock")
	ErrSectionQuery = errors.New("section query failed")

	// CNPG connection errors.

	ErrCNPGTLSDisabled    = errors.New("cnpg tls: tls is configured but ssl_mode is disable")
	ErrCNPGTLSIncomplete  = errors.New("cnpg tls: cert_file, key_file, and ca_file are required")
	ErrCNPGCAAppendFailed = errors.New("cnpg tls: unable to append CA certificate")

	// Validation errors.

	ErrEventNil          = errors.New("event is nil")
	ErrEventMACRequired  = errors.New("event mac is required")
	ErrDeviceNil         = errors.New("device is nil")
	ErrDeviceMACRequired = errors.New("device mac is required")
	ErrSessionNil        = errors.New("session is nil")
	ErrSessionNotStored  = errors.New("session has no id")
	ErrCycleIDRequired   = errors.New("cycle id is required")
)
