package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
)

type outcomeMsg struct {
	outcome conversation.Outcome
	err     error
}

type resetMsg struct {
	err error
}

const helpText = "Commands: /reset starts over, /engine rule|neural|hybrid|default picks the engine, /quit exits. " +
	"Use Up/Down and Enter on an empty line to pick an option."

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyUp:
			if m.choosing() {
				m.selected = (m.selected - 1 + len(m.pending.Options)) % len(m.pending.Options)
				return m, nil
			}
		case tea.KeyDown:
			if m.choosing() {
				m.selected = (m.selected + 1) % len(m.pending.Options)
				return m, nil
			}
		case tea.KeyEnter:
			return m.handleEnter()
		}

	case outcomeMsg:
		m.loading = false
		m.inFlight = ""
		switch {
		case errors.Is(msg.err, diagnosis.ErrEmptyQuery):
			m.status = "Please type a question first."
		case errors.Is(msg.err, conversation.ErrBusy):
			m.status = "Still waiting for the previous answer."
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = ""
			m.pending = msg.outcome.Clarification
			m.selected = 0
		}
		m.layout()
		m.refresh()
		return m, nil

	case resetMsg:
		m.pending = nil
		m.selected = 0
		m.status = "Conversation reset."
		if msg.err != nil {
			m.status = "Conversation reset locally; server reset failed: " + msg.err.Error()
		}
		m.layout()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)
	return m, tea.Batch(cmds...)
}

// choosing reports whether arrow keys move the option selection.
func (m Model) choosing() bool {
	return m.pending != nil && len(m.pending.Options) > 0 && strings.TrimSpace(m.textarea.Value()) == ""
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())

	if strings.HasPrefix(text, "/") {
		m.textarea.Reset()
		return m.runCommand(text)
	}

	if m.loading {
		m.status = "Still waiting for the previous answer."
		return m, nil
	}

	query := m.textarea.Value()
	if text == "" {
		if !m.choosing() {
			return m, nil
		}
		label, err := m.pending.Select(m.selected)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		query = label
	} else if m.pending != nil && !m.pending.FreeText {
		if err := m.pending.Accept(text); err != nil {
			m.status = "Pick one of the options with Up/Down and Enter, or /reset to start over."
			return m, nil
		}
		query = text
	}

	m.textarea.Reset()
	m.loading = true
	m.inFlight = query
	m.status = ""
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.submit(query))
}

func (m Model) submit(text string) tea.Cmd {
	conv, ctx, engine := m.conv, m.ctx, m.engine
	return func() tea.Msg {
		out, err := conv.SubmitWithEngine(ctx, text, engine)
		return outcomeMsg{outcome: out, err: err}
	}
}

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/reset":
		if m.loading {
			m.status = "Wait for the current answer before resetting."
			return m, nil
		}
		conv, ctx := m.conv, m.ctx
		return m, func() tea.Msg {
			return resetMsg{err: conv.Reset(ctx)}
		}

	case "/engine":
		if len(fields) < 2 {
			m.status = "Current engine: " + m.engine.String()
			return m, nil
		}
		e, err := diagnosis.ParseEngine(fields[1])
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.engine = e
		m.status = "Engine set to " + e.String() + "."
		return m, nil

	case "/help":
		m.status = helpText
		return m, nil
	}

	m.status = "Unknown command " + fields[0] + ". " + helpText
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true
	m.layout()
	m.textarea.SetWidth(max(m.viewport.Width-4, 1))
	m.newRenderer(m.viewport.Width - 4)
	m.refresh()
}

// layout sizes the viewport around the header, options and input.
func (m *Model) layout() {
	const headerHeight, inputHeight, footerHeight = 2, 4, 2
	optionsHeight := 0
	if m.pending != nil {
		optionsHeight = len(m.pending.Options) + 1
	}
	m.viewport.Width = max(m.width-2, 1)
	m.viewport.Height = max(m.height-headerHeight-inputHeight-footerHeight-optionsHeight, 1)
}

// refresh reloads the transcript and redraws the history.
func (m *Model) refresh() {
	m.entries = m.conv.Transcript().Entries()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}
