// Package api exposes a conversation over HTTP, a websocket transcript
// stream and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/format"
	"github.com/kalambet/faultchat/internal/storage"
)

const maxRequestBodySize = 1 << 20

// Deps holds what the HTTP handler serves.
type Deps struct {
	Conv *conversation.Conversation
	// Store enables /v1/history when set.
	Store *storage.Store
	// Token, when set, is required as a bearer token on /v1 routes.
	Token          string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewHandler returns the HTTP API for d.Conv.
func NewHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(d.Token))
		r.Post("/messages", handleMessage(d))
		r.Get("/transcript", handleTranscript(d))
		r.Get("/transcript/stream", handleStream(d))
		r.Post("/reset", handleReset(d))
		if d.Store != nil {
			r.Get("/history", handleHistory(d))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type messageRequest struct {
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
	// Option answers the pending clarification with the option at this
	// zero-based index instead of Text.
	Option *int `json:"option,omitempty"`
}

type outcomeResponse struct {
	Kind          string                        `json:"kind"`
	Diagnosis     *format.RenderedDiagnosis     `json:"diagnosis,omitempty"`
	Clarification *format.RenderedClarification `json:"clarification,omitempty"`
	Error         string                        `json:"error,omitempty"`
	Entry         conversation.Entry            `json:"entry"`
	Context       conversation.Context          `json:"context"`
}

func newOutcomeResponse(out conversation.Outcome, cc conversation.Context) outcomeResponse {
	resp := outcomeResponse{
		Kind:          out.Kind.String(),
		Diagnosis:     out.Diagnosis,
		Clarification: out.Clarification,
		Entry:         out.Entry,
		Context:       cc,
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	return resp
}

func handleMessage(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
			return
		}

		engine, err := diagnosis.ParseEngine(req.Engine)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		text := req.Text
		pending := d.Conv.Context().Pending
		switch {
		case req.Option != nil:
			if pending == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", errNoPending)
				return
			}
			text, err = pending.Select(*req.Option)
		case pending != nil && strings.TrimSpace(text) != "":
			err = pending.Accept(text)
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		// An omitted engine keeps the current one; "default" selects the
		// service default.
		submit := d.Conv.Submit
		if strings.TrimSpace(req.Engine) != "" {
			submit = d.Conv.SubmitWithEngine
		}
		out, err := submit(r.Context(), text, engine)
		switch {
		case errors.Is(err, diagnosis.ErrEmptyQuery):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		case errors.Is(err, conversation.ErrBusy):
			httpError(w, http.StatusConflict, "busy_error", "%v", err)
			return
		case err != nil:
			d.Logger.Error("submit failed", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, newOutcomeResponse(out, d.Conv.Context()))
	}
}

var errNoPending = errors.New("no clarification is pending")

type transcriptResponse struct {
	Entries []conversation.Entry `json:"entries"`
	Context conversation.Context `json:"context"`
	Busy    bool                 `json:"busy"`
}

func handleTranscript(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, transcriptResponse{
			Entries: d.Conv.Transcript().Entries(),
			Context: d.Conv.Context(),
			Busy:    d.Conv.Busy(),
		})
	}
}

type resetResponse struct {
	Status      string               `json:"status"`
	RemoteError string               `json:"remote_error,omitempty"`
	Context     conversation.Context `json:"context"`
}

// handleReset clears the local dialogue unless a request is in flight. A
// failed remote reset is reported in the body, not as an error status.
func handleReset(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := resetResponse{Status: "reset"}
		err := d.Conv.ResetIfIdle(r.Context())
		if errors.Is(err, conversation.ErrBusy) {
			httpError(w, http.StatusConflict, "busy_error", "%v", err)
			return
		}
		if err != nil {
			resp.RemoteError = err.Error()
		}
		resp.Context = d.Conv.Context()
		writeJSON(w, http.StatusOK, resp)
	}
}

type dialogueSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Turns      int       `json:"turns"`
	FirstQuery string    `json:"first_query"`
}

func handleHistory(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = n
		}

		dialogues, err := d.Store.ListDialogues(r.Context(), limit)
		if err != nil {
			d.Logger.Error("listing dialogues", "error", err)
			httpError(w, http.StatusInternalServerError, "server_error", "listing dialogues: %v", err)
			return
		}
		out := make([]dialogueSummary, len(dialogues))
		for i, dl := range dialogues {
			out[i] = dialogueSummary{
				ID:         dl.ID,
				StartedAt:  dl.StartedAt,
				UpdatedAt:  dl.UpdatedAt,
				Turns:      dl.Turns,
				FirstQuery: dl.FirstQuery,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"dialogues": out})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
