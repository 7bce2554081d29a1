package events

const (
	// KindUserTranscriptInterim identifies a mutable interim transcript snapshot.
	KindUserTranscriptInterim Kind = "user_input.transcript_interim"
	// KindUserTranscriptFinal identifies the terminal transcript of a capture session.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindManualTextEdited identifies a change of the manual entry field.
	KindManualTextEdited Kind = "user_input.manual_text_edited"
	// KindManualTextSubmitted identifies submission of the manual entry field.
	KindManualTextSubmitted Kind = "user_input.manual_text_submitted"
	// KindUserTextSubmitted identifies typed text submitted in one step.
	KindUserTextSubmitted Kind = "user_input.text_submitted"
	// KindListenRequested identifies an explicit request to start listening.
	KindListenRequested Kind = "user_input.listen_requested"
	// KindListenAbortRequested identifies an explicit request to stop listening.
	KindListenAbortRequested Kind = "user_input.listen_abort_requested"
)

// UserTranscriptInterim carries the interim transcript of a capture session.
type UserTranscriptInterim struct {
	Base
	Generation uint64
	Transcript string
}

// NewUserTranscriptInterim creates an interim transcript event.
func NewUserTranscriptInterim(generation uint64, transcript string) UserTranscriptInterim {
	return UserTranscriptInterim{Base: NewBase(KindUserTranscriptInterim), Generation: generation, Transcript: transcript}
}

// UserTranscriptFinal carries the final transcript of a capture session. The
// transcript may be empty when the recognizer heard nothing usable.
type UserTranscriptFinal struct {
	Base
	Generation uint64
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(generation uint64, transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Generation: generation, Transcript: transcript}
}

// ManualTextEdited carries the full content of the manual entry field.
type ManualTextEdited struct {
	Base
	Text string
}

// NewManualTextEdited creates a manual text edited event.
func NewManualTextEdited(text string) ManualTextEdited {
	return ManualTextEdited{Base: NewBase(KindManualTextEdited), Text: text}
}

// ManualTextSubmitted marks submission of the manual entry field.
type ManualTextSubmitted struct{ Base }

// NewManualTextSubmitted creates a manual text submitted event.
func NewManualTextSubmitted() ManualTextSubmitted {
	return ManualTextSubmitted{Base: NewBase(KindManualTextSubmitted)}
}

// UserTextSubmitted carries typed text that did not go through the manual
// entry field, such as a prompt sent over HTTP.
type UserTextSubmitted struct {
	Base
	Text string
}

// NewUserTextSubmitted creates a text submitted event.
func NewUserTextSubmitted(text string) UserTextSubmitted {
	return UserTextSubmitted{Base: NewBase(KindUserTextSubmitted), Text: text}
}

// ListenRequested marks an explicit request to start listening.
type ListenRequested struct{ Base }

// NewListenRequested creates a listen requested event.
func NewListenRequested() ListenRequested {
	return ListenRequested{Base: NewBase(KindListenRequested)}
}

// ListenAbortRequested marks an explicit request to abort the current
// capture session.
type ListenAbortRequested struct{ Base }

// NewListenAbortRequested creates a listen abort requested event.
func NewListenAbortRequested() ListenAbortRequested {
	return ListenAbortRequested{Base: NewBase(KindListenAbortRequested)}
}
