package jsonschema

// RetryEnvelopeSchema validates the shape produced by
// models.RetryEnvelope before it is written to a
// change-prop.retry.<rule_name> topic.
const RetryEnvelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "change-prop retry envelope",
	"type": "object",
	"required": ["meta", "triggered_by", "emitter_id", "retries_left", "original_event", "scheduled_at", "not_before"],
	"properties": {
		"meta": {
			"type": "object",
			"required": ["topic"],
			"properties": {
				"topic": {"type": "string", "minLength": 1},
				"uri": {"type": "string"},
				"request_id": {"type": "string"},
				"domain": {"type": "string"}
			}
		},
		"triggered_by": {"type": "string"},
		"emitter_id": {"type": "string", "minLength": 1},
		"retries_left": {"type": "integer", "minimum": 0},
		"original_event": {"type": "object"},
		"scheduled_at": {"type": "string", "format": "date-time"},
		"not_before": {"type": "string", "format": "date-time"}
	}
}`

// ErrorEnvelopeSchema validates the shape produced by
// models.ErrorEnvelope before it is written to change-prop.error.
const ErrorEnvelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "change-prop error envelope",
	"type": "object",
	"required": ["meta", "rule_name", "triggered_by", "reason", "event", "occurred_at"],
	"properties": {
		"meta": {
			"type": "object",
			"required": ["topic"],
			"properties": {
				"topic": {"type": "string", "minLength": 1},
				"uri": {"type": "string"},
				"request_id": {"type": "string"},
				"domain": {"type": "string"}
			}
		},
		"rule_name": {"type": "string", "minLength": 1},
		"triggered_by": {"type": "string"},
		"reason": {"type": "string", "minLength": 1},
		"status": {"type": "integer"},
		"body": {"type": "string"},
		"event": {"type": "object"},
		"occurred_at": {"type": "string", "format": "date-time"}
	}
}`
