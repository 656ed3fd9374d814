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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

const (
	// BatchEventType is the CloudEvent type of a notification batch.
	BatchEventType = "com.netalertx.notification.batch"
	batchSource    = "netalertx/presence"
)

var ErrBatchNil = errors.New("notification batch is nil")

// BatchPublisher publishes notification batches as CloudEvents on JetStream.
type BatchPublisher struct {
	js      jetstream.JetStream
	subject string
	logger  logger.Logger
}

// NewBatchPublisher publishes on subject through js.
func NewBatchPublisher(js jetstream.JetStream, subject string, log logger.Logger) *BatchPublisher {
	return &BatchPublisher{js: js, subject: subject, logger: log}
}

// PublishBatch waits for the stream ack so the caller can roll back on failure.
func (p *BatchPublisher) PublishBatch(ctx context.Context, batch *models.NotificationBatch) error {
	if batch == nil {
		return ErrBatchNil
	}

	generated := batch.GeneratedAt

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          batchSource,
		Type:            BatchEventType,
		DataContentType: "application/json",
		Subject:         p.subject,
		Time:            &generated,
		Data:            batch,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification batch: %w", err)
	}

	ack, err := p.js.Publish(ctx, p.subject, payload, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish notification batch: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("cycle_id", batch.CycleID).
		Str("subject", p.subject).
		Uint64("seq", ack.Sequence).
		Int("rows", batch.Count()).
		Msg("Published notification batch")

	return nil
}
