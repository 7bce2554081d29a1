package orchestration

import (
	"strings"
	"time"

	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
)

// RearmDelays are the pauses before listening resumes after a turn that
// produced no utterance.
type RearmDelays struct {
	Initial      time.Duration
	EmptyFinal   time.Duration
	CaptureEnded time.Duration
	CaptureError time.Duration
	ManualClear  time.Duration
}

func DefaultRearmDelays() RearmDelays {
	return RearmDelays{
		Initial:      2 * time.Second,
		EmptyFinal:   500 * time.Millisecond,
		CaptureEnded: time.Second,
		CaptureError: 1500 * time.Millisecond,
		ManualClear:  800 * time.Millisecond,
	}
}

type effect interface{ isEffect() }

type (
	startCaptureEffect struct{ generation uint64 }
	stopCaptureEffect  struct{}
	abortCaptureEffect struct{ generation uint64 }
	resolveEffect      struct {
		turnID    uint64
		utterance intents.Utterance
	}
	dispatchEffect struct{ intent intents.Intent }
	speakEffect    struct {
		generation uint64
		text       string
	}
	scheduleRearmEffect struct {
		generation uint64
		delay      time.Duration
	}
	cancelRearmEffect  struct{}
	displayEffect      struct{ text string }
	interimEffect      struct{ text string }
	stateChangedEffect struct{ from, to ConversationState }
	resolutionEffect   struct {
		intent intents.Intent
		err    error
	}
	rejectEffect struct{ text, reason string }
)

func (startCaptureEffect) isEffect()  {}
func (stopCaptureEffect) isEffect()   {}
func (abortCaptureEffect) isEffect()  {}
func (resolveEffect) isEffect()       {}
func (dispatchEffect) isEffect()      {}
func (speakEffect) isEffect()         {}
func (scheduleRearmEffect) isEffect() {}
func (cancelRearmEffect) isEffect()   {}
func (displayEffect) isEffect()       {}
func (interimEffect) isEffect()       {}
func (stateChangedEffect) isEffect()  {}
func (resolutionEffect) isEffect()    {}
func (rejectEffect) isEffect()        {}

const rejectReasonTurnInFlight = "a reply is still pending"

// machine holds the conversation state and turns events into effects. It
// never performs I/O, so every transition can be tested directly.
type machine struct {
	state  ConversationState
	delays RearmDelays

	// manualText is the content of the manual entry field.
	manualText     string
	voiceAvailable bool
	capturing      bool

	captureGen  uint64
	playbackGen uint64
	rearmGen    uint64
	turnID      uint64
}

func newMachine(delays RearmDelays, voiceAvailable bool) *machine {
	return &machine{
		state:          StateIdle,
		delays:         delays,
		voiceAvailable: voiceAvailable,
	}
}

// start returns the effects of a freshly started session.
func (m *machine) start() []effect {
	effects := []effect{displayEffect{text: DisplayIdle}}
	if !m.voiceAvailable {
		return append(effects, displayEffect{text: DisplayNoVoice})
	}
	return append(effects, m.scheduleRearm(m.delays.Initial))
}

func (m *machine) handle(event events.Event) []effect {
	switch e := event.(type) {
	case events.ListenRequested:
		return m.listen()
	case events.ListenAbortRequested:
		if m.state != StateListening || !m.capturing {
			return nil
		}
		// the capture session reports the abort as its terminal event
		return []effect{abortCaptureEffect{generation: m.captureGen}}
	case events.ListenRearmed:
		if e.Generation != m.rearmGen {
			return nil
		}
		return m.listen()
	case events.UserTranscriptInterim:
		if !m.isCurrentCapture(e.Generation) {
			return nil
		}
		return []effect{interimEffect{text: e.Transcript}, displayEffect{text: e.Transcript}}
	case events.UserTranscriptFinal:
		return m.handleFinalTranscript(e)
	case events.CaptureEnded:
		if !m.isCurrentCapture(e.Generation) {
			return nil
		}
		m.capturing = false
		return m.idleAndRearm(m.delays.CaptureEnded, DisplayIdle)
	case events.CaptureFailed:
		if !m.isCurrentCapture(e.Generation) {
			return nil
		}
		m.capturing = false
		display := DisplayIdle
		if e.Reason == events.CaptureFailureOther {
			display = DisplaySpeechError
		}
		return m.idleAndRearm(m.delays.CaptureError, display)
	case events.CaptureUnavailable:
		return m.disableVoice()
	case events.ManualTextEdited:
		return m.handleManualEdit(e.Text)
	case events.ManualTextSubmitted:
		return m.handleManualSubmit()
	case events.UserTextSubmitted:
		return m.handleTextSubmit(e.Text)
	case events.IntentResolved:
		if m.state != StateAwaitingReply || e.TurnID != m.turnID {
			return nil
		}
		intent, ok := e.Intent.(intents.Intent)
		if !ok {
			return m.handleResolutionFailure(intents.ErrMalformedReply)
		}
		m.playbackGen++
		effects := m.transition(StateSpeaking)
		return append(effects,
			resolutionEffect{intent: intent},
			dispatchEffect{intent: intent},
			displayEffect{text: intent.Reply},
			speakEffect{generation: m.playbackGen, text: intent.Reply},
		)
	case events.ResolutionFailed:
		if m.state != StateAwaitingReply || e.TurnID != m.turnID {
			return nil
		}
		return m.handleResolutionFailure(e.Err)
	case events.AssistantPlaybackEnded:
		if m.state != StateSpeaking || e.Generation != m.playbackGen {
			return nil
		}
		return m.afterPlayback("")
	case events.AssistantPlaybackFailed:
		if m.state != StateSpeaking || e.Generation != m.playbackGen {
			return nil
		}
		return m.afterPlayback(DisplayPlaybackErr)
	}
	return nil
}

func (m *machine) isCurrentCapture(generation uint64) bool {
	return m.state == StateListening && m.capturing && generation == m.captureGen
}

func (m *machine) listen() []effect {
	if m.state != StateIdle || m.hasManualText() || !m.voiceAvailable {
		return nil
	}
	return append(m.startListening(), displayEffect{text: DisplayListening})
}

func (m *machine) startListening() []effect {
	m.captureGen++
	m.capturing = true
	effects := m.transition(StateListening)
	return append(effects, startCaptureEffect{generation: m.captureGen})
}

func (m *machine) stopCapture() []effect {
	if !m.capturing {
		return nil
	}
	m.capturing = false
	return []effect{stopCaptureEffect{}}
}

func (m *machine) handleFinalTranscript(e events.UserTranscriptFinal) []effect {
	if !m.isCurrentCapture(e.Generation) {
		return nil
	}
	m.capturing = false

	text := strings.TrimSpace(e.Transcript)
	if text == "" {
		return m.idleAndRearm(m.delays.EmptyFinal, DisplayIdle)
	}

	// the capture session already ended with its final transcript, the
	// stop only releases the device
	effects := []effect{stopCaptureEffect{}}
	return append(effects, m.beginTurn(intents.NewUtterance(text, intents.SourceVoice))...)
}

func (m *machine) beginTurn(utterance intents.Utterance) []effect {
	m.turnID++
	effects := m.transition(StateAwaitingReply)
	return append(effects,
		displayEffect{text: DisplayThinking},
		resolveEffect{turnID: m.turnID, utterance: utterance},
	)
}

func (m *machine) handleResolutionFailure(err error) []effect {
	apology := apologyFor(err)
	m.playbackGen++
	effects := m.transition(StateSpeaking)
	return append(effects,
		resolutionEffect{err: err},
		displayEffect{text: apology},
		speakEffect{generation: m.playbackGen, text: apology},
	)
}

// afterPlayback is the single point where continuous listening resumes. A
// non-empty display replaces the listening prompt.
func (m *machine) afterPlayback(display string) []effect {
	switch {
	case m.hasManualText():
		effects := m.transition(StateManualEntry)
		if display != "" {
			effects = append(effects, displayEffect{text: display})
		}
		return effects
	case m.voiceAvailable:
		if display == "" {
			display = DisplayListening
		}
		return append(m.startListening(), displayEffect{text: display})
	default:
		if display == "" {
			display = DisplayIdle
		}
		return append(m.transition(StateIdle), displayEffect{text: display})
	}
}

func (m *machine) idleAndRearm(delay time.Duration, display string) []effect {
	effects := m.transition(StateIdle)
	effects = append(effects, displayEffect{text: display})
	if m.hasManualText() || !m.voiceAvailable {
		return effects
	}
	return append(effects, m.scheduleRearm(delay))
}

func (m *machine) handleManualEdit(text string) []effect {
	m.manualText = text
	if m.state.IsBusy() {
		// applied once the turn ends
		return nil
	}

	if m.hasManualText() {
		effects := m.stopCapture()
		if m.state != StateManualEntry {
			effects = append(effects, m.cancelRearm())
		}
		return append(effects, m.transition(StateManualEntry)...)
	}

	switch m.state {
	case StateManualEntry, StateIdle:
		effects := m.transition(StateIdle)
		if !m.voiceAvailable {
			return effects
		}
		return append(effects, m.scheduleRearm(m.delays.ManualClear))
	}
	return nil
}

func (m *machine) handleManualSubmit() []effect {
	text := strings.TrimSpace(m.manualText)
	if text == "" {
		return nil
	}
	if m.state.IsBusy() {
		return []effect{rejectEffect{text: text, reason: rejectReasonTurnInFlight}}
	}

	m.manualText = ""
	effects := m.stopCapture()
	effects = append(effects, m.cancelRearm())
	return append(effects, m.beginTurn(intents.NewUtterance(text, intents.SourceManual))...)
}

// handleTextSubmit starts a turn from text typed outside the manual field.
// The field content is left as it is.
func (m *machine) handleTextSubmit(text string) []effect {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if m.state.IsBusy() {
		return []effect{rejectEffect{text: text, reason: rejectReasonTurnInFlight}}
	}

	effects := m.stopCapture()
	effects = append(effects, m.cancelRearm())
	return append(effects, m.beginTurn(intents.NewUtterance(text, intents.SourceManual))...)
}

func (m *machine) disableVoice() []effect {
	m.voiceAvailable = false
	effects := []effect{m.cancelRearm()}
	if m.state == StateListening {
		m.capturing = false
		effects = append(effects, m.transition(StateIdle)...)
	}
	return append(effects, displayEffect{text: DisplayNoVoice})
}

func (m *machine) scheduleRearm(delay time.Duration) effect {
	m.rearmGen++
	return scheduleRearmEffect{generation: m.rearmGen, delay: delay}
}

// cancelRearm invalidates any scheduled re-entry into listening.
func (m *machine) cancelRearm() effect {
	m.rearmGen++
	return cancelRearmEffect{}
}

func (m *machine) hasManualText() bool {
	return strings.TrimSpace(m.manualText) != ""
}

func (m *machine) transition(to ConversationState) []effect {
	if m.state == to {
		return nil
	}
	from := m.state
	m.state = to
	return []effect{stateChangedEffect{from: from, to: to}}
}
