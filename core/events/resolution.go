package events

import "time"

const (
	// KindIntentResolved identifies a successful resolution of an utterance.
	KindIntentResolved Kind = "resolution.intent_resolved"
	// KindResolutionFailed identifies a failed resolution of an utterance.
	KindResolutionFailed Kind = "resolution.failed"
)

// IntentResolved carries the classified intent for the utterance of a turn.
// Intent is kept opaque here so the events package stays free of the
// resolver's types.
type IntentResolved struct {
	Base
	TurnID  uint64
	Intent  any
	Elapsed time.Duration
}

func NewIntentResolved(turnID uint64, intent any, elapsed time.Duration) IntentResolved {
	return IntentResolved{Base: NewBase(KindIntentResolved), TurnID: turnID, Intent: intent, Elapsed: elapsed}
}

// ResolutionFailed carries the error of a failed resolution.
type ResolutionFailed struct {
	Base
	TurnID  uint64
	Err     error
	Elapsed time.Duration
}

func NewResolutionFailed(turnID uint64, err error, elapsed time.Duration) ResolutionFailed {
	return ResolutionFailed{Base: NewBase(KindResolutionFailed), TurnID: turnID, Err: err, Elapsed: elapsed}
}
