package events

const (
	KindListenRearmed  Kind = "conversation.listen_rearmed"
	KindStateChanged   Kind = "conversation.state_changed"
	KindDisplayUpdated Kind = "conversation.display_updated"
	KindInputRejected  Kind = "conversation.input_rejected"
)

// ListenRearmed is delivered when a scheduled re-entry into listening is due.
type ListenRearmed struct {
	Base
	Generation uint64
}

func NewListenRearmed(generation uint64) ListenRearmed {
	return ListenRearmed{Base: NewBase(KindListenRearmed), Generation: generation}
}

// StateChanged reports a transition of the conversation state machine.
type StateChanged struct {
	Base
	From string
	To   string
}

func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// DisplayUpdated carries the text the user interface should show.
type DisplayUpdated struct {
	Base
	Text string
}

func NewDisplayUpdated(text string) DisplayUpdated {
	return DisplayUpdated{Base: NewBase(KindDisplayUpdated), Text: text}
}

// InputRejected reports user input that arrived while a turn was in flight.
type InputRejected struct {
	Base
	Text   string
	Reason string
}

func NewInputRejected(text, reason string) InputRejected {
	return InputRejected{Base: NewBase(KindInputRejected), Text: text, Reason: reason}
}
