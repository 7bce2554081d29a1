// Package orchestration runs a voice assistant conversation: it listens for
// an utterance, resolves it into an intent, performs the intent's action,
// speaks the reply and listens again.
//
// All inputs (capture results, typed text, resolution results, playback
// completion, timers) are queued as events and handled one at a time by a
// single loop, which is the only place the conversation state changes.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrOrchestratorClosed = errors.New("orchestrator closed")
	ErrNotStarted         = errors.New("orchestrator not started")
	ErrNoIntentResolver   = errors.New("no intent resolver configured")
)

type Orchestrator struct {
	// machine is only touched by the loop goroutine.
	machine *machine
	delays  RearmDelays

	runtime  *conversationRuntime
	capture  *captureChannel
	playback *playbackChannel

	resolver   IntentResolver
	dispatcher ActionDispatcher

	callbacks callbacks
	emitEvent eventEmitter

	baseContext context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once

	snapshotMu sync.RWMutex
	state      ConversationState
	display    string

	rearmMu    sync.Mutex
	rearmTimer *time.Timer

	turnsCounter metric.Int64Counter
	background   sync.WaitGroup
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		delays:      DefaultRearmDelays(),
		runtime:     newConversationRuntime(),
		capture:     newCaptureChannel(),
		playback:    newPlaybackChannel(),
		baseContext: context.Background(),
		state:       StateIdle,
		display:     DisplayIdle,
		emitEvent:   noopEventEmitter,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.machine = newMachine(o.delays, o.capture.isConfigured())
	o.emitEvent = newCallbackEventEmitter(o.callbacks)
	o.capture.SetEventEmitter(o.runtime.post)
	o.playback.SetEventEmitter(o.runtime.post)

	var err error
	if o.turnsCounter, err = meter.Int64Counter("conversation.turns",
		metric.WithDescription("Number of conversation turns started")); err != nil {
		logger.Warn("failed to create turns counter", "error", err)
	}

	return o
}

// Start runs the conversation loop until ctx is done or Close is called.
// Listening starts on its own after the initial delay when speech-to-text is
// configured.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.runtime.isClosed() {
		return ErrOrchestratorClosed
	}

	if o.runtime.started.Load() {
		return fmt.Errorf("orchestrator already started")
	}
	o.baseContext, o.cancel = context.WithCancel(ctx)
	if started := o.runtime.start(o.processQueuedEvent); !started {
		o.cancel()
		return fmt.Errorf("orchestrator already started")
	}

	o.runOnLoop(func() []effect { return o.machine.start() })

	go func() {
		select {
		case <-ctx.Done():
			o.Close()
		case <-o.runtime.closeCh:
		}
	}()
	return nil
}

// runOnLoop runs produce on the loop goroutine and executes its effects.
func (o *Orchestrator) runOnLoop(produce func() []effect) {
	o.runtime.post(startEvent{Base: events.NewBase(kindSessionStarted), produce: produce})
}

const kindSessionStarted events.Kind = "conversation.session_started"

// startEvent carries the session start into the loop so the first effects
// run on the loop goroutine like all others.
type startEvent struct {
	events.Base
	produce func() []effect
}

// Close stops the loop, capture and playback. In-flight resolutions and
// channel start-ups are awaited but their results are dropped. Close must not be called from a
// callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()
		if o.cancel != nil {
			o.cancel()
		}
		o.runtime.waitUntilEnded()

		o.stopRearm()
		o.capture.Stop()
		o.playback.Cancel()
		o.background.Wait()
	})
}

// StartListening asks the conversation to start listening. It is ignored
// unless the conversation is idle with no manual text pending.
func (o *Orchestrator) StartListening() error {
	return o.enqueue(events.NewListenRequested())
}

// StopListening aborts the current capture session. Listening resumes after
// the capture error delay unless manual text is pending. It is ignored when
// the conversation is not listening.
func (o *Orchestrator) StopListening() error {
	return o.enqueue(events.NewListenAbortRequested())
}

// EditManualText replaces the content of the manual entry field.
func (o *Orchestrator) EditManualText(text string) error {
	return o.enqueue(events.NewManualTextEdited(text))
}

// SubmitManualText submits the manual entry field.
func (o *Orchestrator) SubmitManualText() error {
	return o.enqueue(events.NewManualTextSubmitted())
}

// SubmitText starts a turn from text that did not go through the manual
// entry field. It is rejected while a turn is in flight.
func (o *Orchestrator) SubmitText(text string) error {
	return o.enqueue(events.NewUserTextSubmitted(text))
}

// SendAudio passes captured audio to the current capture session. Audio sent
// while not listening is dropped.
func (o *Orchestrator) SendAudio(audio []byte) error {
	return o.capture.SendAudio(audio)
}

func (o *Orchestrator) State() ConversationState {
	o.snapshotMu.RLock()
	defer o.snapshotMu.RUnlock()
	return o.state
}

// DisplayText returns the text the user interface should currently show.
func (o *Orchestrator) DisplayText() string {
	o.snapshotMu.RLock()
	defer o.snapshotMu.RUnlock()
	return o.display
}

func (o *Orchestrator) enqueue(event events.Event) error {
	if o.runtime.isClosed() {
		return ErrOrchestratorClosed
	}
	if !o.runtime.started.Load() {
		return ErrNotStarted
	}
	if !o.runtime.enqueue(event) {
		return ErrOrchestratorClosed
	}
	return nil
}

func (o *Orchestrator) setState(state ConversationState) {
	o.snapshotMu.Lock()
	defer o.snapshotMu.Unlock()
	o.state = state
}

func (o *Orchestrator) setDisplay(text string) {
	o.snapshotMu.Lock()
	defer o.snapshotMu.Unlock()
	o.display = text
}

func (o *Orchestrator) observe(event events.Event) {
	if _, internal := event.(startEvent); internal {
		return
	}
	if o.callbacks.onEvent != nil {
		o.callbacks.onEvent(event)
	}
}

func (o *Orchestrator) runEffect(ctx context.Context, e effect) {
	switch typed := e.(type) {
	case startCaptureEffect:
		o.startCapture(typed.generation)
	case stopCaptureEffect:
		o.capture.Stop()
	case abortCaptureEffect:
		o.capture.Abort(typed.generation)
	case resolveEffect:
		o.startResolution(ctx, typed.turnID, typed.utterance)
	case dispatchEffect:
		if o.dispatcher == nil {
			return
		}
		if action, ok := o.dispatcher.Dispatch(ctx, typed.intent); ok && o.callbacks.onAction != nil {
			o.callbacks.onAction(action)
		}
	case speakEffect:
		o.speak(typed.generation, typed.text)
	case scheduleRearmEffect:
		o.scheduleRearm(typed.generation, typed.delay)
	case cancelRearmEffect:
		o.stopRearm()
	case displayEffect:
		o.setDisplay(typed.text)
		o.emitEvent(events.NewDisplayUpdated(typed.text))
	case interimEffect:
		if o.callbacks.onInterimTranscript != nil {
			o.callbacks.onInterimTranscript(typed.text)
		}
	case stateChangedEffect:
		logger.Debug("conversation state changed", "from", typed.from, "to", typed.to)
		o.emitEvent(events.NewStateChanged(typed.from.String(), typed.to.String()))
	case resolutionEffect:
		if o.callbacks.onResolution != nil {
			o.callbacks.onResolution(typed.intent, typed.err)
		}
	case rejectEffect:
		logger.Info("input rejected", "text", typed.text, "reason", typed.reason)
		o.emitEvent(events.NewInputRejected(typed.text, typed.reason))
	}
}

// startCapture claims the capture channel on the loop and opens the
// speech-to-text stream in the background. A failed start is reported as a
// capture failure of the same generation.
func (o *Orchestrator) startCapture(generation uint64) {
	sessionCtx, ok, err := o.capture.reserve(o.baseContext, generation)
	if err != nil {
		logger.Warn("voice input unavailable", "error", err)
		o.runtime.post(events.NewCaptureUnavailable(err))
		return
	}
	if !ok {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		if err := o.capture.open(sessionCtx, generation); err != nil {
			logger.Error("failed to start capture", "error", err)
			o.runtime.post(events.NewCaptureFailed(generation, events.CaptureFailureOther, err))
		}
	}()
}

// speak claims the playback channel on the loop and opens the speech
// generator in the background. Failures arrive as playback failed events.
func (o *Orchestrator) speak(generation uint64, text string) {
	utteranceCtx, ok := o.playback.begin(o.baseContext, generation, text)
	if !ok {
		return
	}

	o.background.Add(1)
	go func() {
		defer o.background.Done()
		o.playback.generate(utteranceCtx, generation, text)
	}()
}

// startResolution resolves the utterance off the loop and posts the outcome
// back into it.
func (o *Orchestrator) startResolution(ctx context.Context, turnID uint64, utterance intents.Utterance) {
	if o.turnsCounter != nil {
		o.turnsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("utterance.source", string(utterance.Source))))
	}

	if o.resolver == nil {
		o.runtime.post(events.NewResolutionFailed(turnID, fmt.Errorf("%w: %w", intents.ErrNetworkFailure, ErrNoIntentResolver), 0))
		return
	}

	// detached from the event span so the resolution is not cut short by it
	ctx = trace.ContextWithSpan(o.baseContext, trace.SpanFromContext(ctx))
	o.background.Add(1)
	go func() {
		defer o.background.Done()

		ctx, span := tracer.Start(ctx, "resolve utterance", trace.WithAttributes(
			attribute.Int64("conversation.turn_id", int64(turnID)),
			attribute.String("utterance.id", utterance.ID),
		))
		defer span.End()

		startedAt := time.Now()
		intent, err := o.resolve(ctx, utterance)
		elapsed := time.Since(startedAt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.runtime.post(events.NewResolutionFailed(turnID, err, elapsed))
			return
		}
		o.runtime.post(events.NewIntentResolved(turnID, intent, elapsed))
	}()
}

func (o *Orchestrator) resolve(ctx context.Context, utterance intents.Utterance) (intent intents.Intent, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: intent resolver panicked: %v", intents.ErrNetworkFailure, recovered)
		}
	}()
	return o.resolver.Resolve(ctx, utterance)
}

func (o *Orchestrator) scheduleRearm(generation uint64, delay time.Duration) {
	o.rearmMu.Lock()
	defer o.rearmMu.Unlock()

	if o.rearmTimer != nil {
		o.rearmTimer.Stop()
	}
	o.rearmTimer = time.AfterFunc(delay, func() {
		o.runtime.post(events.NewListenRearmed(generation))
	})
}

func (o *Orchestrator) stopRearm() {
	o.rearmMu.Lock()
	defer o.rearmMu.Unlock()

	if o.rearmTimer != nil {
		o.rearmTimer.Stop()
		o.rearmTimer = nil
	}
}
