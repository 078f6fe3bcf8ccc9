// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pulsedev/pulsestream/internal/logging"
	"github.com/pulsedev/pulsestream/internal/metrics"
)

// NewPubSub builds the in-process message bus that decouples the upload
// handler from the moderation pipeline. Persistent mode buffers messages
// published before the consumer subscribes; the HTTP and messaging layers
// start concurrently, so an upload can land in that window. Messages are
// still lost across restarts; the recovery endpoint exists to resolve
// records orphaned that way.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
		Persistent:          true,
	}, NewWatermillLogger())
}

// PublishUploaded enqueues one moderation run for the given video.
func PublishUploaded(publisher message.Publisher, videoID string) error {
	payload, err := json.Marshal(UploadedEvent{VideoID: videoID})
	if err != nil {
		return fmt.Errorf("marshal uploaded event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := publisher.Publish(TopicVideoUploaded, msg); err != nil {
		return fmt.Errorf("publish uploaded event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(TopicVideoUploaded).Inc()
	return nil
}

// Service consumes TopicVideoUploaded and drives the Processor. It
// implements suture.Service and is restarted by the supervisor on failure.
type Service struct {
	subscriber message.Subscriber
	processor  *Processor
}

// NewService wires the pipeline consumer.
func NewService(subscriber message.Subscriber, processor *Processor) *Service {
	return &Service{subscriber: subscriber, processor: processor}
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "moderation-pipeline"
}

// Serve subscribes to the upload topic and runs moderation for every
// message until the context is canceled. Runs execute concurrently, one
// goroutine per message; the per-ID guard in the Processor keeps duplicate
// deliveries harmless. Serve drains in-flight runs before returning.
func (s *Service) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, TopicVideoUploaded)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicVideoUploaded, err)
	}

	logging.Info().Str("topic", TopicVideoUploaded).Msg("Moderation pipeline consuming uploads")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			s.handle(ctx, msg, &wg)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg *message.Message, wg *sync.WaitGroup) {
	var event UploadedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil || event.VideoID == "" {
		metrics.EventsParseFailed.Inc()
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Discarding malformed upload event")
		msg.Ack()
		return
	}
	metrics.EventsConsumed.WithLabelValues(TopicVideoUploaded).Inc()

	// Ack before processing: a run that faults resolves its own record
	// via the fail-safe path, so redelivery would add nothing.
	msg.Ack()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processor.Process(ctx, event.VideoID)
	}()
}
