package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
)

const feedCapacity = 64

type stateMsg struct {
	from, to orchestration.ConversationState
}

type displayMsg string

type interimMsg string

type actionMsg actions.Action

type rejectionMsg struct {
	text, reason string
}

type feedClosedMsg struct{}

// Feed carries orchestrator callbacks into the UI. Its methods match the
// orchestrator callback signatures and never block.
type Feed struct {
	updates   chan any
	done      chan struct{}
	closeOnce sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		updates: make(chan any, feedCapacity),
		done:    make(chan struct{}),
	}
}

// Close releases pending senders and ends the UI.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Options returns the orchestrator options that route callbacks into the
// feed.
func (f *Feed) Options() []orchestration.OrchestratorOption {
	return []orchestration.OrchestratorOption{
		orchestration.WithStateChangedCallback(f.OnStateChanged),
		orchestration.WithDisplayCallback(f.OnDisplay),
		orchestration.WithInterimTranscriptCallback(f.OnInterimTranscript),
		orchestration.WithActionCallback(f.OnAction),
		orchestration.WithRejectionCallback(f.OnRejection),
	}
}

func (f *Feed) OnStateChanged(from, to orchestration.ConversationState) {
	f.send(stateMsg{from: from, to: to})
}

func (f *Feed) OnDisplay(text string) {
	f.send(displayMsg(text))
}

func (f *Feed) OnInterimTranscript(text string) {
	f.send(interimMsg(text))
}

func (f *Feed) OnAction(action actions.Action) {
	f.send(actionMsg(action))
}

func (f *Feed) OnRejection(text, reason string) {
	f.send(rejectionMsg{text: text, reason: reason})
}

// send drops interim transcripts when the UI falls behind, everything else
// waits for room until the feed is closed.
func (f *Feed) send(msg any) {
	if _, interim := msg.(interimMsg); interim {
		select {
		case f.updates <- msg:
		case <-f.done:
		default:
		}
		return
	}
	select {
	case f.updates <- msg:
	case <-f.done:
	}
}

func (f *Feed) next() tea.Msg {
	select {
	case msg := <-f.updates:
		return msg
	case <-f.done:
		return feedClosedMsg{}
	}
}
