// Package tui is the interactive terminal chat front end.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/format"
)

const renderCacheSize = 256

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx    context.Context
	conv   *conversation.Conversation
	engine diagnosis.Engine
	styles Styles

	textarea textarea.Model
	spinner  spinner.Model
	viewport viewport.Model

	glamourStyle string
	renderer     *glamour.TermRenderer
	cache        *lru.Cache[string, string]

	entries  []conversation.Entry
	pending  *format.RenderedClarification
	selected int
	// inFlight is the text of the query awaiting an answer.
	inFlight string
	loading  bool
	status   string

	width, height int
	ready         bool
	quitting      bool
}

// Option configures a Model.
type Option func(*Model)

// WithEngine sets the engine sent with each query until /engine changes it.
// Without it the conversation's current engine is used.
func WithEngine(e diagnosis.Engine) Option {
	return func(m *Model) { m.engine = e }
}

// WithNoColor renders without colors or terminal-dependent markdown styles.
func WithNoColor() Option {
	return func(m *Model) {
		m.styles = PlainStyles()
		m.glamourStyle = "notty"
	}
}

// New builds the chat model around conv. ctx bounds remote resets.
func New(ctx context.Context, conv *conversation.Conversation, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = "Describe the fault, or /help"
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.CharLimit = 4000
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, string](renderCacheSize)

	m := Model{
		ctx:      ctx,
		conv:     conv,
		styles:   DefaultStyles(),
		textarea: ta,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		cache:    cache,
		entries:  conv.Transcript().Entries(),
		engine:   conv.Context().Engine,
	}
	for _, o := range opts {
		o(&m)
	}
	m.restorePending()
	return m
}

func (m *Model) restorePending() {
	if p := m.conv.Context().Pending; p != nil {
		m.pending = p
		m.selected = 0
	}
}

func (m *Model) newRenderer(wrap int) {
	if wrap < 20 {
		wrap = 20
	}
	style := glamour.WithAutoStyle()
	if m.glamourStyle != "" {
		style = glamour.WithStandardStyle(m.glamourStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
	m.cache.Purge()
}

// renderMarkdown renders through glamour, caching by width, and falls back to
// the raw text if glamour fails or panics.
func (m Model) renderMarkdown(content string) (out string) {
	if m.renderer == nil || content == "" {
		return content
	}
	key := fmt.Sprintf("%d\x00%s", m.viewport.Width, content)
	if v, ok := m.cache.Get(key); ok {
		return v
	}
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	m.cache.Add(key, rendered)
	return rendered
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}
