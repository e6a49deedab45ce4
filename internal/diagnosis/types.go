// Package diagnosis holds the client-side model of the remote fault diagnosis
// service: queries, engine selection, and the normalized response variants.
package diagnosis

import (
	"fmt"
	"strings"
)

// Engine selects the diagnosis strategy used by the remote service.
// The zero value leaves the choice to the server.
type Engine string

const (
	EngineDefault Engine = ""
	EngineRule    Engine = "rule"
	EngineNeural  Engine = "neural"
	EngineHybrid  Engine = "hybrid"
)

// Engines lists the selectable engines in display order.
var Engines = []Engine{EngineRule, EngineNeural, EngineHybrid}

// ParseEngine maps user input to an Engine. "default", "auto" and the empty
// string select the server default.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "auto":
		return EngineDefault, nil
	case "rule":
		return EngineRule, nil
	case "neural":
		return EngineNeural, nil
	case "hybrid":
		return EngineHybrid, nil
	}
	return EngineDefault, fmt.Errorf("unknown engine %q (want rule, neural or hybrid)", s)
}

func (e Engine) String() string {
	if e == EngineDefault {
		return "default"
	}
	return string(e)
}

// Query is a single user utterance sent to the service.
type Query struct {
	Text   string
	Engine Engine
}

// NewQuery validates text and returns a Query. Whitespace-only text is rejected
// with ErrEmptyQuery; the text itself is sent exactly as typed.
func NewQuery(text string, engine Engine) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, ErrEmptyQuery
	}
	return Query{Text: text, Engine: engine}, nil
}

// Cause is one candidate root cause of a fault.
type Cause struct {
	Name        string   `json:"name"`
	Probability float64  `json:"probability"`
	Checks      []string `json:"checks"`
	Actions     []string `json:"actions"`
}

// Fault is one diagnosed fault record as returned by the service.
type Fault struct {
	Fault         string   `json:"fault"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Causes        []Cause  `json:"causes"`
	OriginalQuery string   `json:"original_query,omitempty"`
	EnhancedQuery string   `json:"enhanced_query,omitempty"`
	Source        string   `json:"source,omitempty"`
	Symptoms      []string `json:"symptoms,omitempty"`
}

// Notice is the server's warning that a query mentions equipment the fault
// database may not cover.
type Notice struct {
	Message      string   `json:"message"`
	MissingTerms []string `json:"missing_terms,omitempty"`
	Suggestion   string   `json:"suggestion,omitempty"`
}

// Diagnosis is a terminal reply. Candidates keep the server's order, which is
// descending confidence; the first one is the primary fault.
type Diagnosis struct {
	Candidates []Fault `json:"candidates"`
	Notice     *Notice `json:"notice,omitempty"`
}

// Primary returns the first candidate, or false when there is none.
func (d Diagnosis) Primary() (Fault, bool) {
	if len(d.Candidates) == 0 {
		return Fault{}, false
	}
	return d.Candidates[0], true
}

// Empty reports whether the diagnosis names no fault at all.
func (d Diagnosis) Empty() bool {
	p, ok := d.Primary()
	return !ok || strings.TrimSpace(p.Fault) == ""
}

// Awaiting names the piece of information a clarification asks for.
type Awaiting string

const (
	AwaitingEngine    Awaiting = "engine"
	AwaitingComponent Awaiting = "component"
	AwaitingProblem   Awaiting = "problem"
)

// Known reports whether a is part of the enumerated clarification kinds.
func (a Awaiting) Known() bool {
	switch a {
	case AwaitingEngine, AwaitingComponent, AwaitingProblem:
		return true
	}
	return false
}

// Clarification is a non-terminal reply: one more input is needed.
type Clarification struct {
	Awaiting Awaiting `json:"awaiting"`
	Message  string   `json:"message"`
}

// Kind discriminates Response.
type Kind int

const (
	KindDiagnosis Kind = iota
	KindClarification
)

func (k Kind) String() string {
	switch k {
	case KindDiagnosis:
		return "diagnosis"
	case KindClarification:
		return "clarification"
	}
	return "unknown"
}

// Response is the normalized gateway reply. Exactly one of Diagnosis or
// Clarification is set, matching Kind.
type Response struct {
	Kind          Kind
	Diagnosis     *Diagnosis
	Clarification *Clarification
	// Session is the continuation token echoed by the server, if any.
	Session string
}

// NewDiagnosisResponse wraps d as a Response.
func NewDiagnosisResponse(d Diagnosis) Response {
	return Response{Kind: KindDiagnosis, Diagnosis: &d}
}

// NewClarificationResponse wraps c as a Response.
func NewClarificationResponse(c Clarification) Response {
	return Response{Kind: KindClarification, Clarification: &c}
}
