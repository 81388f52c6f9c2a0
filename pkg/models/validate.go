package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateEvent checks the required shape of an event (spec.md §3):
// meta.uri, meta.request_id and meta.topic must be present.
func ValidateEvent(e *Event) error {
	if e == nil {
		return &ValidationError{Field: "event", Message: "event cannot be nil"}
	}
	if e.Meta.URI == "" {
		return &ValidationError{Field: "meta.uri", Message: "uri is required"}
	}
	if e.Meta.RequestID == "" {
		return &ValidationError{Field: "meta.request_id", Message: "request_id is required"}
	}
	if e.Meta.Topic == "" {
		return &ValidationError{Field: "meta.topic", Message: "topic is required"}
	}
	return nil
}
