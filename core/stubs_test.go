package orchestration

import (
	"context"
	"errors"
	"sync"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

type speechToTextStub struct {
	mu              sync.Mutex
	transcribeCalls int
	stopCalls       int
	sentAudio       int
	transcribeErr   error
	options         speechtotext.TranscriptionOptions
	started         chan struct{}
	// block holds Transcribe until it is closed or ctx is done.
	block        chan struct{}
	ignoreCancel bool
	// dialing is signalled when Transcribe starts waiting on block.
	dialing chan struct{}
}

func newSpeechToTextStub() *speechToTextStub {
	return &speechToTextStub{started: make(chan struct{}, 64)}
}

func (s *speechToTextStub) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	if s.block != nil {
		if s.dialing != nil {
			s.dialing <- struct{}{}
		}
		cancelled := ctx.Done()
		if s.ignoreCancel {
			cancelled = nil
		}
		select {
		case <-s.block:
		case <-cancelled:
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribeCalls++
	if s.transcribeErr != nil {
		return s.transcribeErr
	}
	s.options = speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&s.options)
	}
	select {
	case s.started <- struct{}{}:
	default:
	}
	return nil
}

func (s *speechToTextStub) SendAudio([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentAudio++
	return nil
}

func (s *speechToTextStub) StopStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return nil
}

func (s *speechToTextStub) callbacks() speechtotext.TranscriptionOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *speechToTextStub) counts() (transcribe, stop, sent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcribeCalls, s.stopCalls, s.sentAudio
}

type speechGeneratorStub struct {
	mu        sync.Mutex
	options   texttospeech.TextToSpeechOptions
	text      string
	cancelled bool
	log       *callLog
	name      string
	// autoFinish produces one audio chunk and ends speech on EndOfText.
	autoFinish bool
}

func (g *speechGeneratorStub) SendText(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.text += text
	return nil
}

func (g *speechGeneratorStub) Mark() error { return nil }

func (g *speechGeneratorStub) EndOfText() error {
	g.mu.Lock()
	finish := g.autoFinish
	text := g.text
	g.mu.Unlock()
	if finish {
		g.options.SpeechAudioCallback([]byte(text))
		g.options.SpeechEndedCallback()
	}
	return nil
}

func (g *speechGeneratorStub) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cancelled {
		g.cancelled = true
		g.log.add("cancel " + g.name)
	}
	return nil
}

func (g *speechGeneratorStub) Close() error { return nil }

func (g *speechGeneratorStub) isCancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

type textToSpeechStub struct {
	mu         sync.Mutex
	generators []*speechGeneratorStub
	autoFinish bool
	err        error
	log        *callLog
	// block holds NewSpeechGenerator until it is closed or ctx is done.
	block chan struct{}
}

func (s *textToSpeechStub) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	generator := &speechGeneratorStub{
		options:    texttospeech.Apply(opts...),
		log:        s.log,
		name:       string(rune('a' + len(s.generators))),
		autoFinish: s.autoFinish,
	}
	s.generators = append(s.generators, generator)
	s.log.add("start " + generator.name)
	return generator, nil
}

func (s *textToSpeechStub) generator(i int) *speechGeneratorStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.generators) {
		return nil
	}
	return s.generators[i]
}

type audioOutputStub struct {
	mu      sync.Mutex
	audio   [][]byte
	clears  int
	sendErr error
	// holdMarks keeps marks pending until release is called.
	holdMarks bool
	pending   []func(string)
}

func (o *audioOutputStub) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 24000, Format: audio.FormatLinear16}
}

func (o *audioOutputStub) SendAudio(chunk []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sendErr != nil {
		return o.sendErr
	}
	o.audio = append(o.audio, chunk)
	return nil
}

func (o *audioOutputStub) ClearBuffer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clears++
	o.pending = nil
}

func (o *audioOutputStub) Mark(name string, callback func(string)) error {
	o.mu.Lock()
	if o.holdMarks {
		o.pending = append(o.pending, callback)
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	callback(name)
	return nil
}

func (o *audioOutputStub) release() {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()
	for _, callback := range pending {
		callback(playbackEndMark)
	}
}

func (o *audioOutputStub) clearCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clears
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type resolverStub struct {
	mu       sync.Mutex
	calls    []intents.Utterance
	resolve  func(intents.Utterance) (intents.Intent, error)
	release  chan struct{}
	inFlight int
	maxConc  int
}

func (r *resolverStub) Resolve(ctx context.Context, utterance intents.Utterance) (intents.Intent, error) {
	r.mu.Lock()
	r.calls = append(r.calls, utterance)
	r.inFlight++
	if r.inFlight > r.maxConc {
		r.maxConc = r.inFlight
	}
	release := r.release
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return intents.Intent{}, ctx.Err()
		}
	}
	if r.resolve == nil {
		return intents.Intent{}, errors.New("no reply configured")
	}
	return r.resolve(utterance)
}

func (r *resolverStub) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *resolverStub) maxConcurrent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxConc
}

type openerStub struct {
	mu   sync.Mutex
	urls []string
}

func (o *openerStub) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *openerStub) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

var _ ActionDispatcher = (*actions.Dispatcher)(nil)

// eventRecorder collects emitted events.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	notify chan events.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan events.Event, 64)}
}

func (r *eventRecorder) emit(event events.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	select {
	case r.notify <- event:
	default:
	}
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}
