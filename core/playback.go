package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const playbackEndMark = "utterance-end"

// playbackChannel speaks one utterance at a time. Without a text-to-speech
// client or an audio output every utterance completes right away.
type playbackChannel struct {
	tts    TextToSpeech
	output AudioOutput

	emitEvent eventEmitter

	mu         sync.Mutex
	active     bool
	generation uint64
	generator  texttospeech.SpeechGenerator
	cancel     context.CancelFunc
}

func newPlaybackChannel() *playbackChannel {
	return &playbackChannel{emitEvent: noopEventEmitter}
}

func (p *playbackChannel) isConfigured() bool {
	return p != nil && p.tts != nil && p.output != nil
}

func (p *playbackChannel) SetEventEmitter(emitEvent eventEmitter) {
	if emitEvent != nil {
		p.emitEvent = emitEvent
	} else {
		p.emitEvent = noopEventEmitter
	}
}

func (p *playbackChannel) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Speak cancels the current utterance and speaks text, returning once the
// text is handed to the generator. The outcome is reported as an event tagged
// with generation.
func (p *playbackChannel) Speak(ctx context.Context, generation uint64, text string) {
	if utteranceCtx, ok := p.begin(ctx, generation, text); ok {
		p.generate(utteranceCtx, generation, text)
	}
}

// begin cancels the current utterance and claims the channel for generation.
// It reports false when there is nothing to generate because no client is
// configured, in which case the utterance has already completed.
func (p *playbackChannel) begin(ctx context.Context, generation uint64, text string) (context.Context, bool) {
	p.Cancel()

	utteranceCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.active = true
	p.generation = generation
	p.cancel = cancel
	p.mu.Unlock()

	if !p.isConfigured() {
		p.complete(generation, text)
		return nil, false
	}
	return utteranceCtx, true
}

// generate opens a speech generator for a begun utterance and sends it text.
// A generator opened after its utterance was cancelled is discarded.
func (p *playbackChannel) generate(ctx context.Context, generation uint64, text string) {
	ctx, span := tracer.Start(ctx, "speak reply", trace.WithAttributes(
		attribute.Int64("playback.generation", int64(generation)),
		attribute.Int("playback.text_length", len(text)),
	))
	defer span.End()

	generator, err := p.tts.NewSpeechGenerator(ctx,
		texttospeech.WithSpeechAudioCallback(func(audio []byte) { p.sendAudio(generation, audio) }),
		texttospeech.WithSpeechEndedCallback(func() { p.onGenerated(generation, text) }),
		texttospeech.WithErrorCallback(func(err error) { p.fail(generation, err) }),
		texttospeech.WithEncodingInfo(p.output.EncodingInfo()),
	)
	if err != nil {
		err = fmt.Errorf("failed to start speech generation: %w", err)
		span.RecordError(err)
		p.fail(generation, err)
		return
	}

	p.mu.Lock()
	if !p.active || p.generation != generation {
		p.mu.Unlock()
		_ = generator.Cancel()
		return
	}
	p.generator = generator
	p.mu.Unlock()

	if err := generator.SendText(text); err != nil {
		span.RecordError(err)
		p.fail(generation, fmt.Errorf("failed to send text to speech generator: %w", err))
		return
	}
	if err := generator.EndOfText(); err != nil {
		span.RecordError(err)
		p.fail(generation, fmt.Errorf("failed to end speech text: %w", err))
	}
}

// Cancel stops the current utterance without an event. Calling it while idle
// does nothing.
func (p *playbackChannel) Cancel() {
	if p == nil {
		return
	}

	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	generator := p.generator
	p.releaseLocked()
	p.mu.Unlock()

	if generator != nil {
		if err := generator.Cancel(); err != nil {
			logger.Warn("failed to cancel speech generator", "error", err)
		}
	}
	if p.output != nil {
		p.output.ClearBuffer()
	}
}

func (p *playbackChannel) isCurrent(generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active && p.generation == generation
}

func (p *playbackChannel) sendAudio(generation uint64, audio []byte) {
	if !p.isCurrent(generation) {
		return
	}
	if err := p.output.SendAudio(audio); err != nil {
		p.fail(generation, fmt.Errorf("failed to send audio to output: %w", err))
	}
}

// onGenerated waits for the output to play everything generated so far.
func (p *playbackChannel) onGenerated(generation uint64, text string) {
	if !p.isCurrent(generation) {
		return
	}
	if err := p.output.Mark(playbackEndMark, func(string) { p.complete(generation, text) }); err != nil {
		p.fail(generation, fmt.Errorf("failed to mark end of speech: %w", err))
	}
}

func (p *playbackChannel) complete(generation uint64, text string) {
	if !p.release(generation) {
		return
	}
	p.emitEvent(events.NewAssistantPlaybackEnded(generation, text))
}

func (p *playbackChannel) fail(generation uint64, err error) {
	generator, ok := p.releaseGenerator(generation)
	if !ok {
		return
	}
	if generator != nil {
		_ = generator.Cancel()
	}
	if p.output != nil {
		p.output.ClearBuffer()
	}
	logger.Warn("playback failed", "generation", generation, "error", err)
	p.emitEvent(events.NewAssistantPlaybackFailed(generation, err))
}

func (p *playbackChannel) release(generation uint64) bool {
	_, ok := p.releaseGenerator(generation)
	return ok
}

func (p *playbackChannel) releaseGenerator(generation uint64) (texttospeech.SpeechGenerator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.generation != generation {
		return nil, false
	}
	generator := p.generator
	p.releaseLocked()
	return generator, true
}

func (p *playbackChannel) releaseLocked() {
	p.active = false
	p.generator = nil
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
