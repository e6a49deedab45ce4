// Package conversation drives one diagnosis dialogue: it validates input,
// keeps a single request in flight, and records every exchange in a
// Transcript.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/format"
)

// ErrBusy is returned by Submit while another request is in flight.
var ErrBusy = errors.New("a request is already in flight")

// Gateway is the remote diagnosis service.
type Gateway interface {
	Diagnose(ctx context.Context, q diagnosis.Query, session string) (diagnosis.Response, error)
	ResetSession(ctx context.Context, session string) error
}

// Archive persists queries and transcript entries. Failures are logged and
// never affect the dialogue.
type Archive interface {
	RecordQuery(ctx context.Context, dialogueID string, q diagnosis.Query, at time.Time) error
	RecordEntry(ctx context.Context, dialogueID string, e Entry) error
}

// Context is the client-held state linking successive turns.
type Context struct {
	DialogueID string           `json:"dialogue_id"`
	Engine     diagnosis.Engine `json:"engine"`
	Session    string           `json:"session,omitempty"`
	// DialogueOpen is true when the last resolved exchange was a
	// clarification.
	DialogueOpen bool `json:"dialogue_open"`
	// Pending is the clarification awaiting an answer, if DialogueOpen.
	Pending *format.RenderedClarification `json:"pending,omitempty"`
}

// OutcomeKind discriminates Outcome.
type OutcomeKind int

const (
	OutcomeDiagnosis OutcomeKind = iota
	OutcomeClarification
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDiagnosis:
		return "diagnosis"
	case OutcomeClarification:
		return "clarification"
	case OutcomeFailure:
		return "failure"
	}
	return "unknown"
}

// Outcome is the terminal result of one Submit.
type Outcome struct {
	Kind          OutcomeKind
	Diagnosis     *format.RenderedDiagnosis
	Clarification *format.RenderedClarification
	Err           error
	// Entry is the assistant entry recorded for this outcome.
	Entry Entry
}

// Conversation is safe for concurrent use; at most one Submit runs at a time.
type Conversation struct {
	gw         Gateway
	transcript *Transcript
	taxonomy   format.Taxonomy
	archive    Archive
	logger     *slog.Logger
	engine     diagnosis.Engine

	inflight *semaphore.Weighted
	busy     atomic.Bool

	mu    sync.Mutex
	state Context
	// gen changes on every reset so late outcomes leave the new context alone.
	gen uint64
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithEngine sets the initial engine selector, restored on reset.
func WithEngine(e diagnosis.Engine) Option {
	return func(c *Conversation) { c.engine = e }
}

// WithTaxonomy sets the clarification option sets.
func WithTaxonomy(t format.Taxonomy) Option {
	return func(c *Conversation) { c.taxonomy = t }
}

// WithArchive records queries and entries to a.
func WithArchive(a Archive) Option {
	return func(c *Conversation) { c.archive = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conversation) { c.logger = l }
}

// WithTranscript uses t as the transcript sink.
func WithTranscript(t *Transcript) Option {
	return func(c *Conversation) { c.transcript = t }
}

// New creates an idle conversation backed by gw.
func New(gw Gateway, opts ...Option) *Conversation {
	c := &Conversation{
		gw:       gw,
		taxonomy: format.DefaultTaxonomy(),
		logger:   slog.Default(),
		inflight: semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.transcript == nil {
		c.transcript = NewTranscript()
	}
	c.state = c.initialState()
	return c
}

func (c *Conversation) initialState() Context {
	return Context{DialogueID: uuid.NewString(), Engine: c.engine}
}

// Transcript returns the transcript sink.
func (c *Conversation) Transcript() *Transcript { return c.transcript }

// Context returns a snapshot of the conversation context.
func (c *Conversation) Context() Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a request is in flight.
func (c *Conversation) Busy() bool { return c.busy.Load() }

// Submit sends text to the diagnosis service. Blank text returns
// diagnosis.ErrEmptyQuery and a concurrent call returns ErrBusy; neither
// records anything. Otherwise one user entry is appended before the request
// and one assistant entry after it, and the error is nil: service failures
// are reported as an OutcomeFailure.
//
// An unset engine reuses the engine of the previous turn; use
// SubmitWithEngine to go back to the service default. The request is not
// cancelled with ctx; once sent it always yields an outcome.
func (c *Conversation) Submit(ctx context.Context, text string, engine diagnosis.Engine) (Outcome, error) {
	if engine == diagnosis.EngineDefault {
		return c.submit(ctx, text, nil)
	}
	return c.submit(ctx, text, &engine)
}

// SubmitWithEngine is Submit with an explicit engine choice, which may be
// diagnosis.EngineDefault. The choice sticks for later turns.
func (c *Conversation) SubmitWithEngine(ctx context.Context, text string, engine diagnosis.Engine) (Outcome, error) {
	return c.submit(ctx, text, &engine)
}

// submit uses the engine of the previous turn when choice is nil.
func (c *Conversation) submit(ctx context.Context, text string, choice *diagnosis.Engine) (Outcome, error) {
	if _, err := diagnosis.NewQuery(text, diagnosis.EngineDefault); err != nil {
		return Outcome{}, err
	}
	if !c.inflight.TryAcquire(1) {
		return Outcome{}, ErrBusy
	}
	c.busy.Store(true)
	defer func() {
		c.busy.Store(false)
		c.inflight.Release(1)
	}()

	c.mu.Lock()
	if choice != nil {
		c.state.Engine = *choice
	}
	engine := c.state.Engine
	session := c.state.Session
	dialogue := c.state.DialogueID
	gen := c.gen
	c.mu.Unlock()

	q := diagnosis.Query{Text: text, Engine: engine}
	user := c.transcript.Append(RoleUser, Content{Text: text})
	c.archiveQuery(ctx, dialogue, q, user)

	start := time.Now()
	resp, err := c.gw.Diagnose(context.WithoutCancel(ctx), q, session)
	out := c.outcome(resp, err)
	c.logger.Info("diagnosis exchange",
		"dialogue", dialogue,
		"engine", engine.String(),
		"outcome", out.Kind.String(),
		"latency", time.Since(start),
	)
	if out.Err != nil {
		c.logger.Warn("diagnosis request failed", "dialogue", dialogue, "error", out.Err)
	}

	out.Entry = c.transcript.Append(RoleAssistant, c.content(out))
	c.archiveEntry(ctx, dialogue, out.Entry)

	c.mu.Lock()
	if c.gen == gen {
		if err == nil && resp.Session != "" {
			c.state.Session = resp.Session
		}
		c.state.DialogueOpen = out.Kind == OutcomeClarification
		c.state.Pending = out.Clarification
	}
	c.mu.Unlock()

	return out, nil
}

func (c *Conversation) outcome(resp diagnosis.Response, err error) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeFailure, Err: err}
	}
	switch resp.Kind {
	case diagnosis.KindClarification:
		if resp.Clarification != nil {
			r := c.taxonomy.Format(resp.Clarification.Awaiting, resp.Clarification.Message)
			if !r.Recognized {
				c.logger.Warn("unrecognized clarification kind", "awaiting", string(r.Awaiting))
			}
			return Outcome{Kind: OutcomeClarification, Clarification: &r}
		}
	case diagnosis.KindDiagnosis:
		var d diagnosis.Diagnosis
		if resp.Diagnosis != nil {
			d = *resp.Diagnosis
		}
		r := format.FormatDiagnosis(d)
		return Outcome{Kind: OutcomeDiagnosis, Diagnosis: &r}
	}
	return Outcome{Kind: OutcomeFailure, Err: fmt.Errorf("unexpected response kind %v", resp.Kind)}
}

func (c *Conversation) content(out Outcome) Content {
	switch out.Kind {
	case OutcomeDiagnosis:
		return Content{Text: format.Markdown(*out.Diagnosis), Diagnosis: out.Diagnosis}
	case OutcomeClarification:
		return Content{Text: format.ClarificationMarkdown(*out.Clarification), Clarification: out.Clarification}
	}
	msg := out.Err.Error()
	return Content{Text: "Request failed: " + msg, Failure: msg}
}

// Reset asks the service to forget the session, then clears the transcript
// and context together. The local reset always happens; a remote failure is
// returned for display.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	session := c.state.Session
	old := c.state.DialogueID
	c.mu.Unlock()

	remoteErr := c.gw.ResetSession(ctx, session)
	if remoteErr != nil {
		c.logger.Warn("remote session reset failed", "dialogue", old, "error", remoteErr)
	}

	c.mu.Lock()
	c.gen++
	c.state = c.initialState()
	c.transcript.Clear()
	c.mu.Unlock()

	c.logger.Info("conversation reset", "previous", old)
	if remoteErr != nil {
		return fmt.Errorf("resetting remote session: %w", remoteErr)
	}
	return nil
}

// ResetIfIdle is Reset for callers that must not drop an answer still on
// its way: it returns ErrBusy without touching anything while a request is
// in flight, and holds off new submissions until the reset is done.
func (c *Conversation) ResetIfIdle(ctx context.Context) error {
	if !c.inflight.TryAcquire(1) {
		return ErrBusy
	}
	defer c.inflight.Release(1)
	return c.Reset(ctx)
}

func (c *Conversation) archiveQuery(ctx context.Context, dialogue string, q diagnosis.Query, user Entry) {
	if c.archive == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := c.archive.RecordQuery(ctx, dialogue, q, user.At); err != nil {
		c.logger.Warn("archiving query failed", "dialogue", dialogue, "error", err)
	}
	c.archiveEntry(ctx, dialogue, user)
}

func (c *Conversation) archiveEntry(ctx context.Context, dialogue string, e Entry) {
	if c.archive == nil {
		return
	}
	if err := c.archive.RecordEntry(context.WithoutCancel(ctx), dialogue, e); err != nil {
		c.logger.Warn("archiving entry failed", "dialogue", dialogue, "seq", e.Seq, "error", err)
	}
}
