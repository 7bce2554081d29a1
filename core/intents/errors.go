package intents

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure wraps every failure to obtain a reply from the
	// upstream service, timeouts included.
	ErrNetworkFailure = errors.New("upstream request failed")
	// ErrMalformedReply wraps every failure to turn an upstream reply into an
	// [Intent].
	ErrMalformedReply = errors.New("malformed upstream reply")

	ErrNoStructuredSpan = fmt.Errorf("%w: no structured span found", ErrMalformedReply)
	ErrInvalidJSON      = fmt.Errorf("%w: structured span is not valid JSON", ErrMalformedReply)
	ErrMissingField     = fmt.Errorf("%w: required field missing", ErrMalformedReply)
	ErrUnknownKind      = fmt.Errorf("%w: unknown intent kind", ErrMalformedReply)

	ErrEmptyUtterance = errors.New("utterance is empty")
)
