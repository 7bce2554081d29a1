package events

const (
	// KindAssistantPlaybackEnded identifies the end of playback for an utterance.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
	// KindAssistantPlaybackFailed identifies a playback error for an utterance.
	KindAssistantPlaybackFailed Kind = "assistant_playback.failed"
)

// AssistantPlaybackEnded marks that the spoken reply finished playing.
type AssistantPlaybackEnded struct {
	Base
	Generation uint64
	Transcript string
}

// NewAssistantPlaybackEnded creates a playback ended event.
func NewAssistantPlaybackEnded(generation uint64, transcript string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Generation: generation, Transcript: transcript}
}

// AssistantPlaybackFailed marks that the spoken reply could not be played.
type AssistantPlaybackFailed struct {
	Base
	Generation uint64
	Err        error
}

// NewAssistantPlaybackFailed creates a playback failed event.
func NewAssistantPlaybackFailed(generation uint64, err error) AssistantPlaybackFailed {
	return AssistantPlaybackFailed{Base: NewBase(KindAssistantPlaybackFailed), Generation: generation, Err: err}
}
