package orchestration

import (
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

type callbacks struct {
	onStateChanged      func(from, to ConversationState)
	onDisplay           func(text string)
	onInterimTranscript func(transcript string)
	onResolution        func(intent intents.Intent, err error)
	onAction            func(action actions.Action)
	onRejection         func(text, reason string)
	onEvent             func(event events.Event)
}

// WithEventObserver is called with every event the conversation processes
// and every conversation.* event it produces.
func WithEventObserver(observer func(event events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onEvent = observer
	}
}

// newCallbackEventEmitter maps produced conversation events to the
// configured callbacks.
func newCallbackEventEmitter(cb callbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.StateChanged:
			if cb.onStateChanged != nil {
				cb.onStateChanged(ConversationState(typedEvent.From), ConversationState(typedEvent.To))
			}
		case events.DisplayUpdated:
			if cb.onDisplay != nil {
				cb.onDisplay(typedEvent.Text)
			}
		case events.InputRejected:
			if cb.onRejection != nil {
				cb.onRejection(typedEvent.Text, typedEvent.Reason)
			}
		}

		if cb.onEvent != nil {
			cb.onEvent(event)
		}
	}
}
