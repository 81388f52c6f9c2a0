package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and returns it as an error
// It captures the stack trace for debugging
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	// Include stack trace in error details
	stackTrace := string(debug.Stack())
	return ErrInternal.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", stackTrace).
		AsFatal() // Panics are always fatal
}

// RecoverPanicWithCallback recovers from a panic and calls a callback with the error
func RecoverPanicWithCallback(r interface{}, callback func(error)) error {
	err := RecoverPanic(r)
	if err != nil && callback != nil {
		callback(err)
	}
	return err
}

// RecoverPanicFromTopic is RecoverPanic with the source topic attached
// as a detail, used by the Kafka consume loop so a panic surfaced from
// a handler carries which topic's message triggered it.
func RecoverPanicFromTopic(r interface{}, topic string) error {
	err := RecoverPanic(r)
	if err == nil {
		return nil
	}
	var appErr *Error
	if ok := func() bool {
		ae, ok := err.(*Error)
		if ok {
			appErr = ae
		}
		return ok
	}(); ok {
		return appErr.WithDetail("topic", topic)
	}
	return err
}
