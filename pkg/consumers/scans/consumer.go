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
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

const (
	defaultMaxPullMessages = 1
	defaultPullExpiry      = 5 * time.Second
	defaultMaxDeliver      = 3
	defaultNakDelay        = 5 * time.Second
	fetchErrorBackoff      = time.Second
)

// Consumer pulls scan reports one at a time from a durable consumer.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     jetstream.Consumer
	maxDeliver   int
	pullExpiry   time.Duration
	nakDelay     time.Duration
	logger       logger.Logger
}

// NewConsumer gets or creates the durable pull consumer. ackWait should cover
// the longest cycle.
func NewConsumer(
	ctx context.Context, js jetstream.JetStream, streamName, consumerName, subject string,
	ackWait time.Duration, log logger.Logger,
) (*Consumer, error) {
	log.Info().
		Str("stream", streamName).
		Str("consumer", consumerName).
		Msg("Creating/getting pull consumer")

	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       ackWait,
			MaxDeliver:    defaultMaxDeliver,
			MaxAckPending: 1,
		}

		if subject != "" {
			cfg.FilterSubject = subject
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer %s on %s: %w", consumerName, streamName, err)
		}
	}

	return &Consumer{
		streamName:   streamName,
		consumerName: consumerName,
		consumer:     consumer,
		maxDeliver:   defaultMaxDeliver,
		pullExpiry:   defaultPullExpiry,
		nakDelay:     defaultNakDelay,
		logger:       log,
	}, nil
}

// handleMessage acks on success, terminates messages that can never succeed,
// and naks the rest until the delivery budget is spent.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	metadata, err := msg.Metadata()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to read message metadata")
		_ = msg.Term()

		return
	}

	c.logger.Debug().
		Str("subject", msg.Subject()).
		Uint64("seq", metadata.Sequence.Stream).
		Uint64("tries", metadata.NumDelivered).
		Msg("Processing scan report")

	err = processor.Process(ctx, msg.Data(), metadata)
	if err == nil {
		_ = msg.Ack()
		return
	}

	switch {
	case permanent(err):
		c.logger.Warn().Err(err).Uint64("seq", metadata.Sequence.Stream).Msg("Dropping malformed scan report")
		_ = msg.TermWithReason(err.Error())
	case metadata.NumDelivered >= uint64(c.maxDeliver):
		c.logger.Error().Err(err).Uint64("seq", metadata.Sequence.Stream).Msg("Max retries reached, acknowledging message")
		_ = msg.Ack()
	default:
		c.logger.Warn().Err(err).Uint64("seq", metadata.Sequence.Stream).Msg("Cycle failed, scheduling redelivery")
		_ = msg.NakWithDelay(c.nakDelay)
	}
}

// ProcessMessages runs the fetch loop until ctx is cancelled.
func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping message processing due to context cancellation")
			return
		default:
		}

		msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(c.pullExpiry))
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchErrorBackoff):
			}

			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg, processor)
		}

		if fetchErr := msgs.Error(); fetchErr != nil && ctx.Err() == nil {
			c.logger.Debug().Err(fetchErr).Msg("Fetch error")
		}
	}
}
