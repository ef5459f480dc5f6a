package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	vkafka "VoxMind/backend/go/internal/database/kafka"
	"VoxMind/backend/go/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// UploadEvent is the message published when an audio upload finishes.
// A consumed event starts a pipeline run for the referenced audio.
type UploadEvent struct {
	OwnerID  string `json:"ownerId"`
	AudioRef string `json:"audioRef"`
}

// Consumer reads upload events from Kafka and feeds them into the
// orchestrator. It is an alternative ingestion path next to the HTTP
// process endpoint; deployments without Kafka simply do not run it.
type Consumer struct {
	log          *logger.Logger
	reader       *kafka.Reader
	orchestrator *Orchestrator
}

// NewConsumer creates a Consumer on top of the shared Kafka client.
func NewConsumer(client *vkafka.KafkaClient, orchestrator *Orchestrator, log *logger.Logger) *Consumer {
	return &Consumer{
		log:          log,
		reader:       client.Reader,
		orchestrator: orchestrator,
	}
}

// Run consumes events until the context is cancelled. Malformed messages
// are logged and skipped, the consumer never dies on bad input.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		var event UploadEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.WithError(err).Warn("skipping malformed upload event")
			continue
		}

		runID, err := c.orchestrator.Start(ctx, event.OwnerID, event.AudioRef)
		if err != nil {
			c.log.WithError(err).WithOwner(event.OwnerID).Error("failed to start pipeline run from upload event")
			continue
		}
		c.log.WithRun(runID).WithOwner(event.OwnerID).Info("pipeline run started from upload event")
	}
}

// PublishUpload emits an upload event for later processing.
func PublishUpload(ctx context.Context, client *vkafka.KafkaClient, event UploadEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return client.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OwnerID),
		Value: value,
	})
}
