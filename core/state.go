package orchestration

// ConversationState is the state of the conversation machine. Only the
// orchestrator loop changes it.
type ConversationState string

const (
	StateIdle          ConversationState = "idle"
	StateListening     ConversationState = "listening"
	StateAwaitingReply ConversationState = "awaiting_reply"
	StateSpeaking      ConversationState = "speaking"
	StateManualEntry   ConversationState = "manual_entry"
)

func (s ConversationState) IsValid() bool {
	switch s {
	case StateIdle, StateListening, StateAwaitingReply, StateSpeaking, StateManualEntry:
		return true
	default:
		return false
	}
}

func (s ConversationState) String() string {
	return string(s)
}

// IsBusy reports whether a turn is in flight.
func (s ConversationState) IsBusy() bool {
	return s == StateAwaitingReply || s == StateSpeaking
}

func AllStates() []ConversationState {
	return []ConversationState{
		StateIdle,
		StateListening,
		StateAwaitingReply,
		StateSpeaking,
		StateManualEntry,
	}
}
