package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
)

// stubGateway replays queued replies in order and then returns an empty
// diagnosis.
type stubGateway struct {
	mu       sync.Mutex
	replies  []stubReply
	queries  []diagnosis.Query
	sessions []string
	resetErr error
	// gate, when set, blocks Diagnose until closed.
	gate    chan struct{}
	started chan struct{}
}

type stubReply struct {
	resp diagnosis.Response
	err  error
}

func (g *stubGateway) push(resp diagnosis.Response, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, stubReply{resp, err})
}

func (g *stubGateway) Diagnose(ctx context.Context, q diagnosis.Query, session string) (diagnosis.Response, error) {
	g.mu.Lock()
	g.queries = append(g.queries, q)
	g.sessions = append(g.sessions, session)
	var r stubReply
	if len(g.replies) > 0 {
		r, g.replies = g.replies[0], g.replies[1:]
	} else {
		r.resp = diagnosis.NewDiagnosisResponse(diagnosis.Diagnosis{})
	}
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.gate != nil {
		<-g.gate
	}
	return r.resp, r.err
}

func (g *stubGateway) ResetSession(ctx context.Context, session string) error {
	return g.resetErr
}

func (g *stubGateway) lastQuery() diagnosis.Query {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries[len(g.queries)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConversation(t *testing.T) (*conversation.Conversation, *stubGateway) {
	t.Helper()
	gw := &stubGateway{}
	return conversation.New(gw, conversation.WithLogger(quietLogger())), gw
}

func overheating() diagnosis.Response {
	conf := 0.9
	return diagnosis.NewDiagnosisResponse(diagnosis.Diagnosis{Candidates: []diagnosis.Fault{{
		Fault:      "Overheating",
		Confidence: &conf,
		Causes: []diagnosis.Cause{
			{Name: "Low coolant", Probability: 0.42},
			{Name: "Blocked filter", Probability: 0.85},
		},
	}}})
}

func componentQuestion() diagnosis.Response {
	resp := diagnosis.NewClarificationResponse(diagnosis.Clarification{
		Awaiting: diagnosis.AwaitingComponent,
		Message:  "Which component?",
	})
	resp.Session = "s-1"
	return resp
}

var errOffline = &diagnosis.TransportError{Op: "diagnose", StatusCode: 502, Err: errors.New("engine offline")}

func engineQuestion() diagnosis.Response {
	return diagnosis.NewClarificationResponse(diagnosis.Clarification{
		Awaiting: diagnosis.AwaitingEngine,
		Message:  "Which engine?",
	})
}
