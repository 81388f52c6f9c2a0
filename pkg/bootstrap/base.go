// Package bootstrap collects the App-lifecycle plumbing shared by a
// service's cmd/*/app.go: wiring the broker and tearing everything
// down in the right order, grounded on the teacher's pkg/bootstrap.
package bootstrap

import (
	"context"
	"fmt"

	"changeprop/internal/broker"
	"changeprop/internal/config"
	"changeprop/internal/logger"
)

// Base holds the collaborators every changeprop-worker instance needs
// regardless of which topics it ends up consuming.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker builds the one producer and one consumer the worker needs;
// consumer.Consume is called once per topic the worker ends up reading,
// all sharing this single underlying reader group.
func (b *Base) InitBroker() error {
	b.Producer = broker.NewProducer(b.Config.Broker.Kafka, b.Logger)
	b.Consumer = broker.NewConsumer(b.Config.Broker.Kafka, b.Logger)
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	return errs
}

// Shutdown runs the broker teardown followed by any service-specific
// teardown the caller supplies, collecting every error rather than
// stopping at the first one.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("shutting down application...")

	var errs []error
	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("application exited successfully")
	return nil
}
