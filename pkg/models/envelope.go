package models

import "time"

// RetryEnvelope is produced onto change-prop.retry.<rule_name> when an
// exec step is classified retryable and the rule still has attempts left.
type RetryEnvelope struct {
	Meta          EventMeta `json:"meta"`
	TriggeredBy   string    `json:"triggered_by"`
	EmitterID     string    `json:"emitter_id"`
	RetriesLeft   int       `json:"retries_left"`
	OriginalEvent Event     `json:"original_event"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	NotBefore     time.Time `json:"not_before"`
}

// ErrorEnvelope is produced onto change-prop.error for a terminal
// failure: a fatal classification, or retry exhaustion.
type ErrorEnvelope struct {
	Meta        EventMeta `json:"meta"`
	RuleName    string    `json:"rule_name"`
	TriggeredBy string    `json:"triggered_by"`
	Reason      string    `json:"reason"`
	Status      int       `json:"status,omitempty"`
	Body        string    `json:"body,omitempty"`
	Event       Event     `json:"event"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RetryEnvelopeBuilder assembles a RetryEnvelope one field at a time,
// mirroring the fluent builder the teacher uses for its own envelopes.
type RetryEnvelopeBuilder struct {
	envelope RetryEnvelope
}

func NewRetryEnvelopeBuilder() *RetryEnvelopeBuilder {
	return &RetryEnvelopeBuilder{}
}

func (b *RetryEnvelopeBuilder) WithRuleName(name string) *RetryEnvelopeBuilder {
	b.envelope.Meta.Topic = RetryTopicName(name)
	return b
}

func (b *RetryEnvelopeBuilder) WithTriggeredBy(chain string) *RetryEnvelopeBuilder {
	b.envelope.TriggeredBy = chain
	return b
}

func (b *RetryEnvelopeBuilder) WithEmitterID(id string) *RetryEnvelopeBuilder {
	b.envelope.EmitterID = id
	return b
}

func (b *RetryEnvelopeBuilder) WithRetriesLeft(n int) *RetryEnvelopeBuilder {
	b.envelope.RetriesLeft = n
	return b
}

func (b *RetryEnvelopeBuilder) WithOriginalEvent(e Event) *RetryEnvelopeBuilder {
	b.envelope.OriginalEvent = e
	b.envelope.Meta.URI = e.Meta.URI
	b.envelope.Meta.RequestID = e.Meta.RequestID
	b.envelope.Meta.Domain = e.Meta.Domain
	return b
}

func (b *RetryEnvelopeBuilder) WithNotBefore(t time.Time) *RetryEnvelopeBuilder {
	b.envelope.NotBefore = t
	return b
}

func (b *RetryEnvelopeBuilder) Build() RetryEnvelope {
	if b.envelope.ScheduledAt.IsZero() {
		b.envelope.ScheduledAt = time.Now()
	}
	return b.envelope
}

// RetryTopicName derives the per-rule retry topic name (spec.md §3, §6).
func RetryTopicName(ruleName string) string {
	return "change-prop.retry." + ruleName
}

// ErrorTopicName is the single, shared error topic (spec.md §6).
const ErrorTopicName = "change-prop.error"
