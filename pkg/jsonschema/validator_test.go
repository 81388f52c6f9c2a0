package jsonschema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/pkg/models"
)

func TestValidateRetryEnvelope(t *testing.T) {
	v := New()

	env := models.NewRetryEnvelopeBuilder().
		WithRuleName("update_wiki_page").
		WithTriggeredBy("update_wiki_page:/wiki/Foo").
		WithEmitterID("emitter-1").
		WithRetriesLeft(2).
		WithOriginalEvent(models.Event{Meta: models.EventMeta{URI: "/wiki/Foo", RequestID: "req-1", Topic: "page-changes"}}).
		WithNotBefore(time.Now().Add(time.Minute)).
		Build()

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateRetryEnvelope(data))
}

func TestValidateRetryEnvelopeRejectsMissingField(t *testing.T) {
	v := New()

	data := []byte(`{"meta": {"topic": "change-prop.retry.foo"}}`)
	err := v.ValidateRetryEnvelope(data)
	assert.Error(t, err)
}

func TestValidateErrorEnvelope(t *testing.T) {
	v := New()

	env := models.ErrorEnvelope{
		Meta:        models.EventMeta{Topic: models.ErrorTopicName, URI: "/wiki/Foo"},
		RuleName:    "update_wiki_page",
		TriggeredBy: "update_wiki_page:/wiki/Foo",
		Reason:      "retry_exhausted",
		Status:      503,
		Body:        "service unavailable",
		Event:       models.Event{Meta: models.EventMeta{URI: "/wiki/Foo", RequestID: "req-1", Topic: "page-changes"}},
		OccurredAt:  time.Now(),
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	assert.NoError(t, v.ValidateErrorEnvelope(data))
}

func TestValidateErrorEnvelopeRejectsMissingReason(t *testing.T) {
	v := New()

	data := []byte(`{
		"meta": {"topic": "change-prop.error"},
		"rule_name": "update_wiki_page",
		"triggered_by": "",
		"event": {},
		"occurred_at": "2026-01-01T00:00:00Z"
	}`)

	err := v.ValidateErrorEnvelope(data)
	assert.Error(t, err)
}
