// Package tui is the terminal front end of the assistant: the reply display,
// the conversation state and the manual entry field.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/muesli/reflow/wordwrap"
)

var (
	purple   = lipgloss.Color("#A855F7")
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#FBBF24")
	red      = lipgloss.Color("#EF4444")
	gray     = lipgloss.Color("#6B7280")
	white    = lipgloss.Color("#F9FAFB")
	darkGray = lipgloss.Color("#374151")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple)

	displayStyle = lipgloss.NewStyle().
			Foreground(white).
			MarginTop(1).
			MarginBottom(1)

	interimStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	actionStyle = lipgloss.NewStyle().
			Foreground(yellow)

	rejectionStyle = lipgloss.NewStyle().
			Foreground(red)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(darkGray).
			Padding(0, 1)

	inputBoxActiveStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(green).
				Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(gray)

	stateStyles = map[orchestration.ConversationState]lipgloss.Style{
		orchestration.StateIdle:          lipgloss.NewStyle().Foreground(gray),
		orchestration.StateListening:     lipgloss.NewStyle().Foreground(green).Bold(true),
		orchestration.StateAwaitingReply: lipgloss.NewStyle().Foreground(yellow),
		orchestration.StateSpeaking:      lipgloss.NewStyle().Foreground(purple).Bold(true),
		orchestration.StateManualEntry:   lipgloss.NewStyle().Foreground(white),
	}
)

const maxActivity = 5

// Controller is the part of the orchestrator the UI drives.
type Controller interface {
	StartListening() error
	StopListening() error
	EditManualText(text string) error
	SubmitManualText() error
}

// Model is the bubbletea model of the assistant UI.
type Model struct {
	input   textinput.Model
	spinner spinner.Model

	controller    Controller
	feed          *Feed
	assistantName string

	state    orchestration.ConversationState
	display  string
	interim  string
	activity []string
	err      error
	width    int
}

func NewModel(controller Controller, feed *Feed, assistantName string) Model {
	input := textinput.New()
	input.Placeholder = "Type your request..."
	input.CharLimit = 500
	input.Width = 60
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(purple)

	return Model{
		input:         input,
		spinner:       sp,
		controller:    controller,
		feed:          feed,
		assistantName: assistantName,
		state:         orchestration.StateIdle,
		display:       orchestration.DisplayIdle,
		width:         80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m Model) waitForUpdate() tea.Cmd {
	return m.feed.next
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			m.err = m.controller.SubmitManualText()
			if m.err == nil && !m.state.IsBusy() {
				m.input.Reset()
			}
			return m, nil

		case tea.KeyCtrlL:
			m.err = m.controller.StartListening()
			return m, nil

		case tea.KeyCtrlX:
			m.err = m.controller.StopListening()
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if after := m.input.Value(); after != before {
			m.err = m.controller.EditManualText(after)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 10)

	case stateMsg:
		m.state = msg.to
		if msg.to != orchestration.StateListening {
			m.interim = ""
		}
		cmds = append(cmds, m.waitForUpdate())

	case displayMsg:
		m.display = string(msg)
		m.interim = ""
		cmds = append(cmds, m.waitForUpdate())

	case interimMsg:
		m.interim = string(msg)
		cmds = append(cmds, m.waitForUpdate())

	case actionMsg:
		m.addActivity(actionStyle.Render("opened " + msg.URL))
		cmds = append(cmds, m.waitForUpdate())

	case rejectionMsg:
		m.addActivity(rejectionStyle.Render(fmt.Sprintf("ignored %q: %s", msg.text, msg.reason)))
		cmds = append(cmds, m.waitForUpdate())

	case feedClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) addActivity(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivity {
		m.activity = m.activity[len(m.activity)-maxActivity:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	stateStyle, ok := stateStyles[m.state]
	if !ok {
		stateStyle = helpStyle
	}
	status := stateStyle.Render(m.state.String())
	if m.state.IsBusy() {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(titleStyle.Render(m.assistantName) + "  " + status + "\n")
	b.WriteString(strings.Repeat("─", max(m.width-2, 1)) + "\n")

	wrapAt := max(m.width-4, 20)
	b.WriteString(displayStyle.Render(wordwrap.String(m.display, wrapAt)) + "\n")
	if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(m.interim, wrapAt)) + "\n")
	}
	for _, line := range m.activity {
		b.WriteString(line + "\n")
	}

	inputStyle := inputBoxStyle
	if m.state == orchestration.StateManualEntry {
		inputStyle = inputBoxActiveStyle
	}
	b.WriteString(inputStyle.Render(m.input.View()) + "\n")

	if m.err != nil {
		b.WriteString(rejectionStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("Enter to send • Ctrl+L to listen • Ctrl+X to stop listening • Esc to quit"))

	return b.String()
}

// Run starts the UI and blocks until the user quits.
func Run(controller Controller, feed *Feed, assistantName string) error {
	defer feed.Close()
	p := tea.NewProgram(NewModel(controller, feed, assistantName), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
