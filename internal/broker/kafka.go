package broker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"changeprop/internal/config"
	"changeprop/internal/logger"
	"changeprop/pkg/errors"
	"changeprop/pkg/logging"
	"changeprop/pkg/metrics"
	"changeprop/pkg/models"
	"changeprop/pkg/retry"
	"changeprop/pkg/tracing"
)

// KafkaConsumer reads one topic with manual offset commit: a message's
// offset is only committed after handler returns nil, so a crash mid-
// batch redelivers it rather than silently dropping it (spec.md §5).
type KafkaConsumer struct {
	cfg    config.KafkaConfig
	wg     sync.WaitGroup
	reader *kafka.Reader
	logger logger.Logger
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{cfg: cfg, logger: log}
}

func (c *KafkaConsumer) startOffset() int64 {
	if c.cfg.AutoOffsetReset == "smallest" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("creating kafka reader",
		"topic", topic,
		"brokers", c.cfg.MetadataBrokerList,
		"group_id", c.cfg.GroupID,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.MetadataBrokerList,
		GroupID:     c.cfg.GroupID,
		Topic:       topic,
		StartOffset: c.startOffset(),
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithTopic(logging.WithServiceName(ctx, "changeprop-worker"), topic)
		c.logger.InfowCtx(consumeCtx, "started consuming", "topic", topic)

		policy := retryPolicyFrom(c.cfg.Retry)

		for {
			var m kafka.Message
			fetchErr := retry.RetryWithCallback(ctx, policy, func() error {
				var err error
				m, err = c.reader.FetchMessage(ctx)
				return err
			}, func(attempt int, err error, nextDelay time.Duration) {
				c.logger.WarnwCtx(consumeCtx, "retrying kafka fetch",
					"attempt", attempt,
					"error", err,
					"next_delay", nextDelay,
					"topic", topic,
				)
			})
			if fetchErr != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "kafka fetch retries exhausted",
					"error", fetchErr,
					"topic", topic,
				)
				continue
			}

			metrics.KafkaMessagesReadTotal.WithLabelValues(topic).Inc()

			var event models.Event
			if err := event.UnmarshalJSON(m.Value); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "failed to unmarshal event, skipping",
					"error", err,
					"topic", topic,
				)
				metrics.EventsDecodeFailedTotal.WithLabelValues(topic).Inc()
				_ = c.reader.CommitMessages(ctx, m)
				continue
			}

			msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", topic, m.Headers)
			msgCtx = logging.WithMessageID(msgCtx, event.Meta.RequestID)
			msgCtx = logging.WithServiceName(msgCtx, "changeprop-worker")
			msgCtx = logging.WithTopic(msgCtx, topic)

			if err := c.processMessage(msgCtx, &event, handler, topic); err != nil {
				c.logger.ErrorwCtx(msgCtx, "handler failed, offset will not be committed",
					"error", err,
					"topic", topic,
					"uri", event.Meta.URI,
				)
				span.End()
				continue
			}

			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(msgCtx, "failed to commit offset",
					"error", err,
					"topic", topic,
				)
			} else {
				metrics.OffsetsCommittedTotal.WithLabelValues(topic).Inc()
			}
			span.End()
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) processMessage(ctx context.Context, event *models.Event, handler HandlerFunc, topic string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanicFromTopic(r, topic)
			c.logger.ErrorwCtx(ctx, "panic recovered while processing event",
				"error", err,
				"topic", topic,
			)
		}
	}()
	return handler(ctx, event)
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}
