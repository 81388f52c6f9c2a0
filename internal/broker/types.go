package broker

import (
	"context"

	"changeprop/pkg/models"
)

// Producer publishes an event onto a topic under a partition key.
// GuaranteedProducer is the only implementation: every Produce call
// blocks until the broker has acknowledged the write.
type Producer interface {
	Produce(ctx context.Context, topic, key string, event interface{}) error
	Close() error
}

// Consumer reads events from a topic and hands them to handler one at
// a time, committing the offset only after handler returns nil.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
}

// HandlerFunc processes one decoded event. Returning a non-nil error
// leaves the offset uncommitted, so the same message is redelivered on
// the next FetchMessage after a restart.
type HandlerFunc func(ctx context.Context, event *models.Event) error
