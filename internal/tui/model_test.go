package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatuc "github.com/hfzizz/nao-llm/internal/usecase/chat"
)

type fakeChat struct {
	ans     chatuc.Answer
	err     error
	session string
	text    string
}

func (f *fakeChat) Respond(_ context.Context, sessionHandle, text string) (chatuc.Answer, error) {
	f.session, f.text = sessionHandle, text
	return f.ans, f.err
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func submit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_SubmitRoundTrip(t *testing.T) {
	chat := &fakeChat{ans: chatuc.Answer{Reply: "<|end_header_id|>We open at 8.", Retrieved: 2}}
	m := sized(t, New(chat, "terminal", "Nao", time.Second))

	m, cmd := submit(t, m, "  When do you open?  ")
	if cmd == nil {
		t.Fatal("expected async command")
	}
	if !m.busy {
		t.Error("expected busy while waiting for a reply")
	}
	if m.input.Value() != "" {
		t.Errorf("expected input cleared, got %q", m.input.Value())
	}

	msg := cmd()
	if chat.session != "terminal" || chat.text != "When do you open?" {
		t.Errorf("chat got session=%q text=%q", chat.session, chat.text)
	}

	next, _ := m.Update(msg)
	m = next.(Model)
	if m.busy {
		t.Error("expected busy cleared after reply")
	}
	if len(m.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(m.lines))
	}
	if m.lines[1].text != "We open at 8." {
		t.Errorf("expected cleaned reply, got %q", m.lines[1].text)
	}
	if !strings.Contains(m.View(), "We open at 8.") {
		t.Error("expected reply in view")
	}
}

func TestModel_IgnoresEmptyAndBusy(t *testing.T) {
	m := sized(t, New(&fakeChat{}, "s", "Nao", 0))

	m, cmd := submit(t, m, "   ")
	if cmd != nil || len(m.lines) != 0 {
		t.Error("empty input must not submit")
	}

	m, cmd = submit(t, m, "first")
	if cmd == nil {
		t.Fatal("expected command")
	}
	_, cmd = submit(t, m, "second")
	if cmd != nil {
		t.Error("must not submit while a reply is pending")
	}
}

func TestModel_Farewell(t *testing.T) {
	chat := &fakeChat{ans: chatuc.Answer{Reply: "Goodbye! Have a great day!", Farewell: true}}
	m := sized(t, New(chat, "s", "Nao", 0))

	m, cmd := submit(t, m, "bye")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if len(m.lines) != 3 {
		t.Fatalf("expected user, reply and marker lines, got %d", len(m.lines))
	}
	if m.lines[2].who != speakerSystem {
		t.Error("expected conversation end marker")
	}
}

func TestModel_Error(t *testing.T) {
	m := sized(t, New(&fakeChat{err: errors.New("empty query")}, "s", "Nao", 0))

	m, cmd := submit(t, m, "x")
	next, _ := m.Update(cmd())
	m = next.(Model)

	if m.status != "Error" {
		t.Errorf("expected error status, got %q", m.status)
	}
}

func TestModel_Quit(t *testing.T) {
	m := New(&fakeChat{}, "s", "Nao", 0)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	if got := New(&fakeChat{}, "s", "Nao", 0).View(); got != "Loading..." {
		t.Errorf("unexpected view %q", got)
	}
}

func TestScrollsTranscript(t *testing.T) {
	if !scrollsTranscript(tea.KeyMsg{Type: tea.KeyPgUp}) {
		t.Error("page up should scroll the transcript")
	}
	if scrollsTranscript(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}) {
		t.Error("typed runes belong to the input")
	}
}
