package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	// StopStream ends the current transcription. It must be a no-op when no
	// transcription is running.
	StopStream() error
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) {
		o.capture.stt = client
	}
}

type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// AudioInputWithEncoding is an [AudioInput] that reports the format of the
// audio it captures.
type AudioInputWithEncoding interface {
	AudioInput
	CaptureEncodingInfo() audio.EncodingInfo
}

// WithAudioInput sets the microphone. Without one, audio has to be pushed
// with [Orchestrator.SendAudio].
func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) {
		o.capture.input = client
		if withEncoding, ok := client.(AudioInputWithEncoding); ok {
			o.capture.encoding = withEncoding.CaptureEncodingInfo()
		}
	}
}

type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playback.tts = client
	}
}

type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
	// Mark calls callback once all the audio sent before it was played.
	Mark(name string, callback func(string)) error
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) {
		o.playback.output = client
	}
}

type IntentResolver interface {
	Resolve(ctx context.Context, utterance intents.Utterance) (intents.Intent, error)
}

func WithIntentResolver(resolver IntentResolver) OrchestratorOption {
	return func(o *Orchestrator) {
		o.resolver = resolver
	}
}

type ActionDispatcher interface {
	Dispatch(ctx context.Context, intent intents.Intent) (actions.Action, bool)
}

func WithActionDispatcher(dispatcher ActionDispatcher) OrchestratorOption {
	return func(o *Orchestrator) {
		o.dispatcher = dispatcher
	}
}

// WithRearmDelays overrides the pauses before listening resumes. Zero
// durations keep their defaults.
func WithRearmDelays(delays RearmDelays) OrchestratorOption {
	return func(o *Orchestrator) {
		defaults := &o.delays
		for _, pair := range []struct {
			target *time.Duration
			value  time.Duration
		}{
			{&defaults.Initial, delays.Initial},
			{&defaults.EmptyFinal, delays.EmptyFinal},
			{&defaults.CaptureEnded, delays.CaptureEnded},
			{&defaults.CaptureError, delays.CaptureError},
			{&defaults.ManualClear, delays.ManualClear},
		} {
			if pair.value > 0 {
				*pair.target = pair.value
			}
		}
	}
}

// WithNoSpeechTimeout sets how long a capture session may stay silent before
// it fails with no-speech.
func WithNoSpeechTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.capture.noSpeechTimeout = timeout
		}
	}
}

func WithStateChangedCallback(callback func(from, to ConversationState)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onStateChanged = callback
	}
}

func WithDisplayCallback(callback func(text string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onDisplay = callback
	}
}

func WithInterimTranscriptCallback(callback func(transcript string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onInterimTranscript = callback
	}
}

// WithResolutionCallback is called for every finished resolution with either
// the intent or the error.
func WithResolutionCallback(callback func(intent intents.Intent, err error)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onResolution = callback
	}
}

func WithActionCallback(callback func(action actions.Action)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onAction = callback
	}
}

func WithRejectionCallback(callback func(text, reason string)) OrchestratorOption {
	return func(o *Orchestrator) {
		o.callbacks.onRejection = callback
	}
}
