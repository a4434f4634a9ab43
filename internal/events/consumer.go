// Package events consumes subject-photo upload notifications so validations
// start without the uploader having to call the HTTP API.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"verifid/internal/platform/config"
	"verifid/internal/results"
)

// UploadEvent is the notification emitted when a subject photo lands in the
// bucket. Key is the object key inside the subjects bucket.
type UploadEvent struct {
	Bucket     string    `json:"bucket"`
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Validator is the slice of the validation service the consumer drives.
type Validator interface {
	ValidateStoredSubject(ctx context.Context, subjectKey string) (results.ComparisonResult, error)
}

// Consumer polls the uploads topic and feeds each key through validation.
type Consumer struct {
	client    *kgo.Client
	validator Validator
	logger    *slog.Logger
	topic     string
}

func NewConsumer(cfg config.KafkaConfig, validator Validator, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Consumer{
		client:    client,
		validator: validator,
		logger:    logger,
		topic:     cfg.Topic,
	}, nil
}

// EnsureTopic creates the uploads topic if the cluster does not have it,
// using broker defaults for partitions and replication.
func (c *Consumer) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(c.client)
	_, err := adm.CreateTopic(ctx, -1, -1, nil, c.topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", c.topic, err)
	}
	return nil
}

// Run polls until the context is cancelled. Records that fail validation are
// still marked: the result row (or its absence) is the source of truth, and
// the uploader can always retry through the HTTP API.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
			c.client.MarkCommitRecords(record)
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	var event UploadEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		c.logger.Warn("discarding malformed upload event",
			"topic", record.Topic,
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return
	}
	if event.Key == "" {
		c.logger.Warn("discarding upload event without key", "offset", record.Offset)
		return
	}

	result, err := c.validator.ValidateStoredSubject(ctx, event.Key)
	if err != nil {
		c.logger.Error("validation from upload event failed",
			"subject_key", event.Key,
			"error", err,
		)
		return
	}
	c.logger.Info("upload event validated",
		"subject_key", event.Key,
		"comparison_id", result.ComparisonID,
		"status", result.Status,
	)
}
