// Package tui renders the interactive document chat in the terminal.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabfab/docchat/chat"
)

// Engine is the TUI-facing subset of the conversational engine.
type Engine interface {
	Ask(ctx context.Context, question string) (chat.AnswerRecord, error)
	ClearMemory()
}

type exchange struct {
	question string
	answer   string
	sources  []string
}

// answerMsg delivers the result of an asynchronous Ask back into the
// update loop.
type answerMsg struct {
	question string
	record   chat.AnswerRecord
	err      error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	engine    Engine
	input     textinput.Model
	viewport  viewport.Model
	exchanges []exchange
	status    string
	ready     bool
	busy      bool
}

// New creates a chat model over the given engine. The header describes
// the indexed corpus, e.g. "3 documents, 128 chunks".
func New(engine Engine, corpus string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents"
	ti.Focus()
	ti.CharLimit = 0

	vp := viewport.New(0, 0)

	status := "Ready. Enter asks, ctrl+r clears the conversation, ctrl+c quits."
	if corpus != "" {
		status = corpus + " loaded. " + status
	}

	return Model{engine: engine, input: ti, viewport: vp, status: status}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := inputStyle.GetFrameSize()
		reserved := 2 + qh + th // header, status, frames
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.engine.ClearMemory()
			m.exchanges = nil
			m.status = "Conversation cleared."
			m.viewport.SetContent(m.renderTranscript())
			return m, nil
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			return m, askCmd(m.engine, question)
		}
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}

		m.exchanges = append(m.exchanges, exchange{
			question: msg.question,
			answer:   msg.record.Answer,
			sources:  msg.record.Sources,
		})
		m.status = fmt.Sprintf("%d turn(s) in this conversation.", len(m.exchanges))
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// askCmd runs the engine call off the update loop so the interface
// keeps rendering while the model thinks.
func askCmd(engine Engine, question string) tea.Cmd {
	return func() tea.Msg {
		record, err := engine.Ask(context.Background(), question)
		return answerMsg{question: question, record: record, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docchat")
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.exchanges) == 0 {
		return "No questions yet."
	}

	var sb strings.Builder
	for _, ex := range m.exchanges {
		sb.WriteString(questionStyle.Render("You: " + ex.question))
		sb.WriteString("\n")
		sb.WriteString(ex.answer)
		sb.WriteString("\n")
		if len(ex.sources) > 0 {
			names := make([]string, len(ex.sources))
			for i, source := range ex.sources {
				names[i] = filepath.Base(source)
			}
			sb.WriteString(sourceStyle.Render("Sources: " + strings.Join(names, ", ")))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
