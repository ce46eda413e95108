package application

// EventParsingError reports a webhook payload that could not be classified
// or decoded, or an unexpected failure while handling one. Reconciler "not
// found" outcomes are not errors and never produce one.
type EventParsingError struct {
	msg   string
	cause error
}

func NewEventParsingError(msg string) *EventParsingError {
	return &EventParsingError{msg: msg}
}

func WrapEventParsingError(msg string, cause error) *EventParsingError {
	return &EventParsingError{msg: msg, cause: cause}
}

func (e *EventParsingError) Error() string { return e.msg }

func (e *EventParsingError) Unwrap() error { return e.cause }
