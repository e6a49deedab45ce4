package tui

import (
	"fmt"
	"strings"

	"github.com/kalambet/faultchat/internal/conversation"
)

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.Role {
		case conversation.RoleUser:
			sb.WriteString(m.styles.User.Render("You") + "\n")
			sb.WriteString(e.Content.Text)
			sb.WriteString("\n")
		default:
			sb.WriteString(m.styles.Assistant.Render("Diagnosis") + "\n")
			if e.Content.Failure != "" {
				sb.WriteString(m.styles.Failure.Render(e.Content.Text))
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(m.renderMarkdown(e.Content.Text))
		}
	}
	if m.inFlight != "" && !m.transcriptHasInFlight() {
		sb.WriteString(m.styles.User.Render("You") + "\n")
		sb.WriteString(m.inFlight)
		sb.WriteString("\n")
	}
	return sb.String()
}

// transcriptHasInFlight reports whether the in-flight query is already the
// last transcript entry.
func (m Model) transcriptHasInFlight() bool {
	if len(m.entries) == 0 {
		return false
	}
	last := m.entries[len(m.entries)-1]
	return last.Role == conversation.RoleUser && last.Content.Text == m.inFlight
}

func (m Model) renderOptions() string {
	if m.pending == nil {
		return ""
	}
	var sb strings.Builder
	for i, o := range m.pending.Options {
		if i == m.selected {
			sb.WriteString(m.styles.Selected.Render("> "+o) + "\n")
		} else {
			sb.WriteString(m.styles.Option.Render("  "+o) + "\n")
		}
	}
	if m.pending.FreeText || len(m.pending.Options) == 0 {
		sb.WriteString(m.styles.Muted.Render("  or type your own answer") + "\n")
	}
	return sb.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	header := m.styles.Title.Render("faultchat") + " " +
		m.styles.Muted.Render(fmt.Sprintf("engine: %s", m.engine))
	if m.conv.Context().DialogueOpen {
		header += m.styles.Muted.Render("  (answering a question)")
	}

	status := m.status
	if m.loading {
		status = m.spinner.View() + " Waiting for the diagnosis service..."
	}

	return strings.Join([]string{
		m.styles.Header.Render(header),
		m.viewport.View(),
		m.renderOptions(),
		m.styles.Input.Render(m.textarea.View()),
		m.styles.Status.Render(status),
	}, "\n")
}
