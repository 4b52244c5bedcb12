package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Respond(ctx context.Context, sessionHandle, text string) (chatuc.Answer, error)
}

type speaker int

const (
	speakerUser speaker = iota
	speakerAssistant
	speakerSystem
)

type line struct {
	who  speaker
	text string
}

// replyMsg carries the outcome of an asynchronous Respond call.
type replyMsg struct {
	ans     chatuc.Answer
	err     error
	elapsed time.Duration
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	chat      ChatPort
	session   string
	assistant string
	timeout   time.Duration

	input    textinput.Model
	viewport viewport.Model
	lines    []line
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model bound to one session handle.
func New(chat ChatPort, session, assistant string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask " + assistant + " something and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		chat:      chat,
		session:   session,
		assistant: assistant,
		timeout:   timeout,
		input:     ti,
		viewport:  viewport.New(0, 0),
		status:    "Ready. Say bye to start a new conversation, Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		m.input.Focus()
		switch {
		case msg.err != nil:
			m.lines = append(m.lines, line{who: speakerSystem, text: msg.err.Error()})
			m.status = "Error"
		case msg.ans.Farewell:
			m.lines = append(m.lines,
				line{who: speakerAssistant, text: msg.ans.Reply},
				line{who: speakerSystem, text: "conversation ended"},
			)
			m.status = "A new conversation starts with your next message."
		default:
			m.lines = append(m.lines, line{who: speakerAssistant, text: chatuc.CleanReply(msg.ans.Reply)})
			m.status = fmt.Sprintf("Answered in %s (%d documents)", msg.elapsed.Round(time.Millisecond), msg.ans.Retrieved)
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			m.input.Blur()
			m.busy = true
			m.status = m.assistant + " is thinking..."
			m.lines = append(m.lines, line{who: speakerUser, text: q})
			m.refresh()
			return m, m.ask(q)
		}
	}

	if scrollsTranscript(msg) {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// scrollsTranscript reports whether msg belongs to the viewport rather than the input.
func scrollsTranscript(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case tea.MouseMsg:
		return true
	case tea.KeyMsg:
		return msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown
	}
	return false
}

// ask runs the pipeline off the update loop.
func (m Model) ask(q string) tea.Cmd {
	chat, session, timeout := m.chat, m.session, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		ans, err := chat.Respond(ctx, session, q)
		return replyMsg{ans: ans, err: err, elapsed: time.Since(start)}
	}
}

// View renders the transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.assistant + " chat") + " " + dimStyle.Render("session "+m.session)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.lines) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		switch l.who {
		case speakerUser:
			b.WriteString(userStyle.Render("You: ") + l.text)
		case speakerAssistant:
			b.WriteString(assistantStyle.Render(m.assistant+": ") + l.text)
		default:
			b.WriteString(dimStyle.Render("-- " + l.text + " --"))
		}
	}
	return b.String()
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle        = lipgloss.NewStyle().Bold(true)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
