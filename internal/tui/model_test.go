package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intents"
)

type controllerStub struct {
	edits   []string
	submits int
	listens int
	stops   int
}

func (c *controllerStub) StartListening() error {
	c.listens++
	return nil
}

func (c *controllerStub) StopListening() error {
	c.stops++
	return nil
}

func (c *controllerStub) EditManualText(text string) error {
	c.edits = append(c.edits, text)
	return nil
}

func (c *controllerStub) SubmitManualText() error {
	c.submits++
	return nil
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return model
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestTypingForwardsEveryEdit(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")

	m = typeText(t, m, "hi")

	if len(controller.edits) != 2 || controller.edits[0] != "h" || controller.edits[1] != "hi" {
		t.Fatalf("expected edits [h hi], got %v", controller.edits)
	}
}

func TestEnterSubmitsAndClearsField(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")
	m = typeText(t, m, "open instagram")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if controller.submits != 1 {
		t.Fatalf("expected one submit, got %d", controller.submits)
	}
	if m.input.Value() != "" {
		t.Fatalf("expected field to be cleared, got %q", m.input.Value())
	}
}

func TestEnterWhileBusyKeepsField(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")
	m = update(t, m, stateMsg{from: orchestration.StateListening, to: orchestration.StateAwaitingReply})
	m = typeText(t, m, "again")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if controller.submits != 1 {
		t.Fatalf("expected submit to be forwarded, got %d", controller.submits)
	}
	if m.input.Value() != "again" {
		t.Fatalf("expected field to be kept, got %q", m.input.Value())
	}
}

func TestEnterOnEmptyFieldDoesNothing(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")

	update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if controller.submits != 0 {
		t.Fatalf("expected no submit, got %d", controller.submits)
	}
}

func TestCtrlLStartsListening(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")

	update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})

	if controller.listens != 1 {
		t.Fatalf("expected listen request, got %d", controller.listens)
	}
}

func TestCtrlXStopsListening(t *testing.T) {
	controller := &controllerStub{}
	m := NewModel(controller, NewFeed(), "Ema")
	m = update(t, m, stateMsg{from: orchestration.StateIdle, to: orchestration.StateListening})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})

	if controller.stops != 1 {
		t.Fatalf("expected stop request, got %d", controller.stops)
	}
	if len(controller.edits) != 0 {
		t.Fatalf("expected no edits, got %v", controller.edits)
	}
}

func TestFeedUpdatesView(t *testing.T) {
	m := NewModel(&controllerStub{}, NewFeed(), "Ema")

	m = update(t, m, stateMsg{from: orchestration.StateIdle, to: orchestration.StateListening})
	m = update(t, m, interimMsg("search golden"))
	if !strings.Contains(m.View(), "search golden") {
		t.Fatalf("expected interim transcript in view")
	}

	m = update(t, m, displayMsg("Here are the results."))
	m = update(t, m, actionMsg(actions.Action{Kind: intents.KindGoogleSearch, URL: "https://www.google.com/search?q=puppies"}))
	m = update(t, m, rejectionMsg{text: "again", reason: "a reply is still pending"})

	view := m.View()
	for _, expected := range []string{"Here are the results.", "listening", "https://www.google.com/search?q=puppies", "a reply is still pending"} {
		if !strings.Contains(view, expected) {
			t.Fatalf("expected view to contain %q, got:\n%s", expected, view)
		}
	}
	if strings.Contains(view, "search golden") {
		t.Fatalf("expected interim transcript to be replaced by the display")
	}
}

func TestActivityIsBounded(t *testing.T) {
	m := NewModel(&controllerStub{}, NewFeed(), "Ema")
	for i := 0; i < maxActivity+3; i++ {
		m = update(t, m, rejectionMsg{text: "x", reason: "busy"})
	}
	if len(m.activity) != maxActivity {
		t.Fatalf("expected %d activity lines, got %d", maxActivity, len(m.activity))
	}
}

func TestFeedCloseReleasesSenders(t *testing.T) {
	feed := NewFeed()
	for i := 0; i < feedCapacity; i++ {
		feed.OnDisplay("filler")
	}
	feed.Close()

	done := make(chan struct{})
	go func() {
		feed.OnDisplay("late")
		feed.OnInterimTranscript("late")
		close(done)
	}()
	<-done
}

func TestFeedClosedQuits(t *testing.T) {
	m := NewModel(&controllerStub{}, NewFeed(), "Ema")
	_, cmd := m.Update(feedClosedMsg{})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}
