package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"changeprop/internal/config"
	"changeprop/internal/constants"
	"changeprop/internal/logger"
	"changeprop/pkg/metrics"
	"changeprop/pkg/retry"
	"changeprop/pkg/tracing"
)

// DuplicateKeyError is returned by GuaranteedProducer.Produce when a
// produce call for the same topic+key is already in flight. The
// executor handles it like any other Produce error: it logs it and
// emits an error envelope with reason "produce_failure".
type DuplicateKeyError struct {
	Topic string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q already in flight for topic %q", e.Key, e.Topic)
}

// EmptyKeyError is returned immediately, without ever touching the
// writer, when Produce is called with an empty key (spec.md §4.5:
// "rejects immediately if key is empty, delivery correlation requires
// it").
type EmptyKeyError struct {
	Topic string
}

func (e *EmptyKeyError) Error() string {
	return fmt.Sprintf("produce to topic %q rejected: key is empty", e.Topic)
}

// pendingProduce is one in-flight produce call awaiting a delivery
// report. resolved carries the eventual outcome — nil for a successful
// delivery, non-nil for a send error or a stale timeout.
type pendingProduce struct {
	resolved  chan error
	createdAt time.Time
}

// GuaranteedProducer is a delivery-confirmed producer: Produce returns
// a future<ReportOrError> modeled as a blocking read off a one-shot
// channel, resolved by the writer's asynchronous delivery callback
// rather than by WriteMessages itself (spec.md §4.5). A second
// concurrent produce for a key already in flight is rejected outright
// rather than risk two copies of the same retry/error envelope landing
// out of order.
type GuaranteedProducer struct {
	writer      *kafka.Writer
	logger      logger.Logger
	retryPolicy retry.Policy

	mu      sync.Mutex
	pending map[string]*pendingProduce

	stopPoll chan struct{}
	stopped  sync.Once
}

func NewGuaranteedProducer(cfg config.KafkaConfig, log logger.Logger) *GuaranteedProducer {
	p := &GuaranteedProducer{
		logger:      log,
		pending:     make(map[string]*pendingProduce),
		stopPoll:    make(chan struct{}),
		retryPolicy: retryPolicyFrom(cfg.Retry),
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.MetadataBrokerList...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion:   p.onDeliveryReport,
	}

	go p.pollLoop()
	return p
}

// Produce enqueues message for asynchronous delivery and blocks until
// the writer's Completion callback reports the outcome, ctx is
// cancelled, or the poll loop times the entry out as stale — whichever
// comes first (spec.md §4.5 "future<ReportOrError>").
func (p *GuaranteedProducer) Produce(ctx context.Context, topic, key string, event interface{}) error {
	if key == "" {
		return &EmptyKeyError{Topic: topic}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pendingKey := topic + "\x00" + key
	entry, ok := p.reserve(pendingKey)
	if !ok {
		metrics.DuplicateKeyTotal.WithLabelValues(topic).Inc()
		return &DuplicateKeyError{Topic: topic, Key: key}
	}

	metrics.GuaranteedProducerPending.WithLabelValues(topic).Set(float64(p.pendingCount()))

	headers := tracing.InjectTraceContext(ctx, nil)

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}

	// WriteMessages only enqueues onto the writer's batch; a transient
	// connection/broker error here is retried with the bus-level retry
	// policy before giving up, distinct from the delivery-report wait
	// below which covers the batch actually landing.
	enqueueErr := retry.RetryWithCallback(ctx, p.retryPolicy, func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		p.logger.WarnwCtx(ctx, "retrying kafka enqueue",
			"attempt", attempt,
			"error", err,
			"next_delay", nextDelay,
			"topic", topic,
		)
	})
	if enqueueErr != nil {
		p.release(pendingKey)
		metrics.GuaranteedProducerPending.WithLabelValues(topic).Set(float64(p.pendingCount()))
		return fmt.Errorf("failed to enqueue kafka message to %s after retries: %w", topic, enqueueErr)
	}

	select {
	case err := <-entry.resolved:
		if err != nil {
			return fmt.Errorf("failed to write kafka message to %s: %w", topic, err)
		}
		metrics.KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onDeliveryReport is kafka.Writer's Completion callback: it fires
// once per batch, asynchronously, with every message that was in it
// and either nil (all delivered) or the error the batch failed with.
// This is the delivery report spec.md §4.5 requires the pending map to
// resolve against.
func (p *GuaranteedProducer) onDeliveryReport(messages []kafka.Message, err error) {
	for _, msg := range messages {
		pendingKey := msg.Topic + "\x00" + string(msg.Key)
		p.resolve(pendingKey, err)
	}
}

// pollLoop ticks every constants.KafkaPollInterval to surface reports
// for entries that have been waiting past the write timeout without a
// Completion callback firing — a defensive liveness backstop (spec.md
// §4.5: "polls the underlying producer on a 500ms tick to surface
// reports"), since a writer/broker fault can otherwise leave an entry
// pending forever.
func (p *GuaranteedProducer) pollLoop() {
	ticker := time.NewTicker(constants.KafkaPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapStale()
		case <-p.stopPoll:
			return
		}
	}
}

func (p *GuaranteedProducer) reapStale() {
	deadline := time.Now().Add(-constants.KafkaWriteTimeout)
	var stale []string

	p.mu.Lock()
	for key, entry := range p.pending {
		if entry.createdAt.Before(deadline) {
			stale = append(stale, key)
		}
	}
	p.mu.Unlock()

	for _, key := range stale {
		p.resolve(key, fmt.Errorf("produce delivery report timed out"))
	}
}

func (p *GuaranteedProducer) reserve(key string) (*pendingProduce, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.pending[key]; exists {
		return nil, false
	}
	entry := &pendingProduce{resolved: make(chan error, 1), createdAt: time.Now()}
	p.pending[key] = entry
	return entry, true
}

// resolve delivers err to the waiting future and clears the pending
// entry exactly once; a second resolution for an already-cleared key
// (e.g. a stale-timeout race with a late Completion callback) is a
// no-op.
func (p *GuaranteedProducer) resolve(key string, err error) {
	p.mu.Lock()
	entry, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}
	entry.resolved <- err
}

func (p *GuaranteedProducer) release(key string) {
	p.mu.Lock()
	delete(p.pending, key)
	p.mu.Unlock()
}

func (p *GuaranteedProducer) pendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *GuaranteedProducer) Close() error {
	p.stopped.Do(func() { close(p.stopPoll) })
	return p.writer.Close()
}
