package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intents"
)

const testTimeout = 2 * time.Second

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

func waitForSignal(t *testing.T, description string, signal <-chan struct{}) {
	t.Helper()
	select {
	case <-signal:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", description)
	}
}

func fastDelays() RearmDelays {
	return RearmDelays{
		Initial:      10 * time.Millisecond,
		EmptyFinal:   10 * time.Millisecond,
		CaptureEnded: 10 * time.Millisecond,
		CaptureError: 10 * time.Millisecond,
		ManualClear:  10 * time.Millisecond,
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConversationState
}

func (r *stateRecorder) record(_, to ConversationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *stateRecorder) snapshot() []ConversationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConversationState(nil), r.states...)
}

type displayRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *displayRecorder) record(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *displayRecorder) seen(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, shown := range r.texts {
		if shown == text {
			return true
		}
	}
	return false
}

func containsSequence(states, sequence []ConversationState) bool {
	next := 0
	for _, state := range states {
		if next < len(sequence) && state == sequence[next] {
			next++
		}
	}
	return next == len(sequence)
}

func startOrchestrator(t *testing.T, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(opts...)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func TestOrchestratorVoiceSearchTurn(t *testing.T) {
	stt := newSpeechToTextStub()
	tts := &textToSpeechStub{autoFinish: true}
	opener := &openerStub{}
	resolver := &resolverStub{resolve: func(u intents.Utterance) (intents.Intent, error) {
		return intents.Intent{Kind: intents.KindGoogleSearch, UserInput: "golden retriever puppies", Reply: "Here are the results."}, nil
	}}
	states := &stateRecorder{}
	var (
		actionsMu sync.Mutex
		performed []actions.Action
	)

	o := startOrchestrator(t,
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(tts),
		WithAudioOutput(&audioOutputStub{}),
		WithIntentResolver(resolver),
		WithActionDispatcher(actions.NewDispatcher(opener)),
		WithRearmDelays(fastDelays()),
		WithStateChangedCallback(states.record),
		WithActionCallback(func(action actions.Action) {
			actionsMu.Lock()
			defer actionsMu.Unlock()
			performed = append(performed, action)
		}),
	)

	waitForSignal(t, "capture to start", stt.started)
	stt.callbacks().TranscriptionCallback("search golden retriever puppies on google")
	waitForSignal(t, "capture to restart after the reply", stt.started)

	expectedURL := "https://www.google.com/search?q=golden%20retriever%20puppies"
	if opened := opener.opened(); len(opened) != 1 || opened[0] != expectedURL {
		t.Fatalf("expected %q to be opened, got %v", expectedURL, opened)
	}
	actionsMu.Lock()
	if len(performed) != 1 || performed[0].URL != expectedURL {
		t.Fatalf("expected action callback for %q, got %+v", expectedURL, performed)
	}
	actionsMu.Unlock()

	if generator := tts.generator(0); generator == nil || generator.text != "Here are the results." {
		t.Fatalf("expected the reply to be spoken, got %+v", generator)
	}
	expected := []ConversationState{StateListening, StateAwaitingReply, StateSpeaking, StateListening}
	if got := states.snapshot(); !containsSequence(got, expected) {
		t.Fatalf("expected transitions %v, got %v", expected, got)
	}
	waitFor(t, "listening state", func() bool { return o.State() == StateListening })
	if resolver.callCount() != 1 {
		t.Fatalf("expected one resolution, got %d", resolver.callCount())
	}
}

func TestOrchestratorMalformedReplySpeaksApology(t *testing.T) {
	stt := newSpeechToTextStub()
	tts := &textToSpeechStub{autoFinish: true}
	resolver := &resolverStub{resolve: func(intents.Utterance) (intents.Intent, error) {
		return intents.Intent{}, intents.ErrNoStructuredSpan
	}}
	states := &stateRecorder{}
	var (
		resolutionMu  sync.Mutex
		resolutionErr error
	)

	startOrchestrator(t,
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(tts),
		WithAudioOutput(&audioOutputStub{}),
		WithIntentResolver(resolver),
		WithRearmDelays(fastDelays()),
		WithStateChangedCallback(states.record),
		WithResolutionCallback(func(_ intents.Intent, err error) {
			resolutionMu.Lock()
			defer resolutionMu.Unlock()
			resolutionErr = err
		}),
	)

	waitForSignal(t, "capture to start", stt.started)
	stt.callbacks().TranscriptionCallback("blah blah")
	waitForSignal(t, "capture to restart after the apology", stt.started)

	if generator := tts.generator(0); generator == nil || generator.text != ApologyMalformed {
		t.Fatalf("expected apology to be spoken, got %+v", generator)
	}
	resolutionMu.Lock()
	if !errors.Is(resolutionErr, intents.ErrMalformedReply) {
		t.Fatalf("expected malformed reply error, got %v", resolutionErr)
	}
	resolutionMu.Unlock()

	expected := []ConversationState{StateAwaitingReply, StateSpeaking, StateListening}
	if got := states.snapshot(); !containsSequence(got, expected) {
		t.Fatalf("expected transitions %v, got %v", expected, got)
	}
}

func TestOrchestratorManualEditInterruptsListening(t *testing.T) {
	stt := newSpeechToTextStub()
	o := startOrchestrator(t,
		WithSpeechToTextClient(stt),
		WithIntentResolver(&resolverStub{}),
		WithRearmDelays(fastDelays()),
	)

	waitForSignal(t, "capture to start", stt.started)
	waitFor(t, "listening state", func() bool { return o.State() == StateListening })

	if err := o.EditManualText("what"); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	if err := o.EditManualText("what time is it"); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	waitFor(t, "manual entry state", func() bool { return o.State() == StateManualEntry })

	// longer than every re-arm delay
	time.Sleep(50 * time.Millisecond)
	transcribe, stops, _ := stt.counts()
	if stops != 1 {
		t.Fatalf("expected capture to be stopped exactly once, got %d", stops)
	}
	if transcribe != 1 {
		t.Fatalf("expected listening to stay suspended, got %d transcriptions", transcribe)
	}
	if o.State() != StateManualEntry {
		t.Fatalf("expected manual entry, got %s", o.State())
	}

	if err := o.EditManualText(""); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	waitForSignal(t, "listening to resume after clearing", stt.started)
}

func TestOrchestratorRejectsSecondUtterance(t *testing.T) {
	release := make(chan struct{})
	resolver := &resolverStub{
		release: release,
		resolve: func(u intents.Utterance) (intents.Intent, error) {
			return intents.Intent{Kind: intents.KindGeneral, UserInput: u.Text, Reply: "Sure."}, nil
		},
	}
	rejected := make(chan string, 1)
	displays := &displayRecorder{}

	o := startOrchestrator(t,
		WithIntentResolver(resolver),
		WithDisplayCallback(displays.record),
		WithRejectionCallback(func(text, _ string) { rejected <- text }),
	)

	if err := o.SubmitText("first question"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}
	if err := o.SubmitText("second question"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}

	select {
	case text := <-rejected:
		if text != "second question" {
			t.Fatalf("expected second question to be rejected, got %q", text)
		}
	case <-time.After(testTimeout):
		t.Fatalf("expected a rejection")
	}

	close(release)
	waitFor(t, "turn to finish", func() bool { return displays.seen("Sure.") && o.State() == StateIdle })

	if resolver.callCount() != 1 {
		t.Fatalf("expected one resolution, got %d", resolver.callCount())
	}
	if resolver.maxConcurrent() != 1 {
		t.Fatalf("expected no overlapping resolutions, got %d", resolver.maxConcurrent())
	}
}

func TestOrchestratorWithoutVoiceUsesManualEntry(t *testing.T) {
	resolver := &resolverStub{resolve: func(u intents.Utterance) (intents.Intent, error) {
		if u.Source != intents.SourceManual {
			t.Errorf("expected manual source, got %q", u.Source)
		}
		return intents.Intent{Kind: intents.KindGetDay, UserInput: u.Text, Reply: "Today is Tuesday"}, nil
	}}
	displays := &displayRecorder{}

	o := startOrchestrator(t,
		WithIntentResolver(resolver),
		WithDisplayCallback(displays.record),
	)

	if err := o.EditManualText("what day is it"); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	if err := o.SubmitManualText(); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}

	waitFor(t, "reply display", func() bool { return displays.seen("Today is Tuesday") })
	waitFor(t, "idle state", func() bool { return o.State() == StateIdle && o.DisplayText() == DisplayIdle })

	if !displays.seen(DisplayNoVoice) {
		t.Fatalf("expected the missing voice input to be reported")
	}
}

func TestOrchestratorResolutionWithoutResolver(t *testing.T) {
	var (
		mu  sync.Mutex
		got error
	)
	displays := &displayRecorder{}
	o := startOrchestrator(t,
		WithDisplayCallback(displays.record),
		WithResolutionCallback(func(_ intents.Intent, err error) {
			mu.Lock()
			defer mu.Unlock()
			got = err
		}),
	)

	if err := o.SubmitText("hello"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}
	waitFor(t, "resolution failure", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(got, ErrNoIntentResolver) || !errors.Is(got, intents.ErrNetworkFailure) {
		t.Fatalf("expected missing resolver network failure, got %v", got)
	}
	waitFor(t, "apology display", func() bool { return displays.seen(ApologyNetwork) })
}

func TestOrchestratorCloseStopsEverything(t *testing.T) {
	stt := newSpeechToTextStub()
	o := NewOrchestrator(WithSpeechToTextClient(stt), WithRearmDelays(fastDelays()))

	if err := o.SubmitText("too early"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected %v, got %v", ErrNotStarted, err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if err := o.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
	waitForSignal(t, "capture to start", stt.started)
	waitFor(t, "listening state", func() bool { return o.State() == StateListening })

	o.Close()
	o.Close()

	if _, stops, _ := stt.counts(); stops != 1 {
		t.Fatalf("expected capture to be stopped once on close, got %d", stops)
	}
	if err := o.SubmitText("too late"); !errors.Is(err, ErrOrchestratorClosed) {
		t.Fatalf("expected %v, got %v", ErrOrchestratorClosed, err)
	}
}

func TestOrchestratorClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}

	cancel()
	waitFor(t, "orchestrator to close", func() bool {
		return errors.Is(o.StartListening(), ErrOrchestratorClosed)
	})
}

func TestOrchestratorKeepsHandlingEventsWhileSpeechGeneratorOpens(t *testing.T) {
	block := make(chan struct{})
	tts := &textToSpeechStub{autoFinish: true, block: block}
	resolver := &resolverStub{resolve: func(u intents.Utterance) (intents.Intent, error) {
		return intents.Intent{Kind: intents.KindGeneral, UserInput: u.Text, Reply: "Hi there."}, nil
	}}
	rejected := make(chan string, 1)

	o := startOrchestrator(t,
		WithTextToSpeechClient(tts),
		WithAudioOutput(&audioOutputStub{}),
		WithIntentResolver(resolver),
		WithRejectionCallback(func(text, _ string) { rejected <- text }),
	)

	if err := o.SubmitText("hello"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}
	waitFor(t, "speaking state", func() bool { return o.State() == StateSpeaking })

	if err := o.EditManualText("typed"); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	if err := o.SubmitText("another"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}
	select {
	case text := <-rejected:
		if text != "another" {
			t.Fatalf("expected another to be rejected, got %q", text)
		}
	case <-time.After(testTimeout):
		t.Fatalf("expected the loop to handle input while the generator opens")
	}

	close(block)
	waitFor(t, "manual entry after playback", func() bool { return o.State() == StateManualEntry })
	if generator := tts.generator(0); generator == nil || generator.text != "Hi there." {
		t.Fatalf("expected the reply to be spoken once the generator opened, got %+v", generator)
	}
}

func TestOrchestratorCloseCancelsOpeningSpeechGenerator(t *testing.T) {
	tts := &textToSpeechStub{block: make(chan struct{})}
	resolver := &resolverStub{resolve: func(u intents.Utterance) (intents.Intent, error) {
		return intents.Intent{Kind: intents.KindGeneral, UserInput: u.Text, Reply: "Hi there."}, nil
	}}
	o := NewOrchestrator(
		WithTextToSpeechClient(tts),
		WithAudioOutput(&audioOutputStub{}),
		WithIntentResolver(resolver),
	)
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("expected start to succeed, got %v", err)
	}
	if err := o.SubmitText("hello"); err != nil {
		t.Fatalf("expected submit to be queued, got %v", err)
	}
	waitFor(t, "speaking state", func() bool { return o.State() == StateSpeaking })

	closed := make(chan struct{})
	go func() {
		o.Close()
		close(closed)
	}()
	waitForSignal(t, "close to return", closed)

	if generator := tts.generator(0); generator != nil {
		t.Fatalf("expected no generator to be opened, got %+v", generator)
	}
}

func TestOrchestratorKeepsHandlingEventsWhileCaptureOpens(t *testing.T) {
	stt := newSpeechToTextStub()
	stt.block = make(chan struct{})
	o := startOrchestrator(t,
		WithSpeechToTextClient(stt),
		WithIntentResolver(&resolverStub{}),
		WithRearmDelays(fastDelays()),
	)

	waitFor(t, "listening state", func() bool { return o.State() == StateListening })
	if err := o.EditManualText("typed instead"); err != nil {
		t.Fatalf("expected edit to be queued, got %v", err)
	}
	waitFor(t, "manual entry state", func() bool { return o.State() == StateManualEntry })

	// longer than every re-arm delay
	time.Sleep(50 * time.Millisecond)
	if o.State() != StateManualEntry {
		t.Fatalf("expected manual entry, got %s", o.State())
	}
	if transcribe, stops, _ := stt.counts(); transcribe != 0 || stops != 0 {
		t.Fatalf("expected the abandoned stream to never open, got %d transcriptions and %d stops", transcribe, stops)
	}
}

func TestOrchestratorStopListeningAbortsAndRearms(t *testing.T) {
	stt := newSpeechToTextStub()
	states := &stateRecorder{}
	o := startOrchestrator(t,
		WithSpeechToTextClient(stt),
		WithIntentResolver(&resolverStub{}),
		WithRearmDelays(fastDelays()),
		WithStateChangedCallback(states.record),
	)

	waitForSignal(t, "capture to start", stt.started)
	waitFor(t, "listening state", func() bool { return o.State() == StateListening })

	if err := o.StopListening(); err != nil {
		t.Fatalf("expected stop to be queued, got %v", err)
	}
	waitForSignal(t, "listening to resume after the abort", stt.started)

	expected := []ConversationState{StateListening, StateIdle, StateListening}
	if got := states.snapshot(); !containsSequence(got, expected) {
		t.Fatalf("expected transitions %v, got %v", expected, got)
	}
	if transcribe, _, _ := stt.counts(); transcribe != 2 {
		t.Fatalf("expected two capture sessions, got %d", transcribe)
	}
}
