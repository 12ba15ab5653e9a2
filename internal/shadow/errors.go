package shadow

import "errors"

// Domain-specific errors for shadow synchronisation.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedEvent is returned when an inbound payload cannot be parsed
	// or lacks a field its kind requires. The event is dropped with no state change.
	ErrMalformedEvent = errors.New("shadow: malformed event")

	// ErrUnknownTopic is returned when a message arrives on a topic that is
	// not one of the thing's inbound shadow topics.
	ErrUnknownTopic = errors.New("shadow: unknown topic")

	// ErrInboxFull is returned when the inbound queue is at capacity.
	// The newest message is dropped.
	ErrInboxFull = errors.New("shadow: inbox full")
)
