package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/faultchat/internal/diagnosis"
	"github.com/kalambet/faultchat/internal/storage"
)

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	conv, _ := newTestConversation(t)
	w := get(t, NewHandler(Deps{Conv: conv, Token: "secret"}), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMessage_Diagnosis(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.push(overheating(), nil)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	w := post(t, h, "/v1/messages", `{"text":"engine hot","engine":"hybrid"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[outcomeResponse](t, w)
	assert.Equal(t, "diagnosis", resp.Kind)
	require.NotNil(t, resp.Diagnosis)
	assert.Equal(t, "Overheating", resp.Diagnosis.Fault)
	require.Len(t, resp.Diagnosis.Causes, 2)
	assert.Equal(t, "Blocked filter", resp.Diagnosis.Causes[0].Name)
	assert.Equal(t, 85, resp.Diagnosis.Causes[0].Percent)
	assert.Equal(t, "high", resp.Diagnosis.Causes[0].TierLabel)
	assert.Equal(t, 2, resp.Entry.Seq)
	assert.Equal(t, diagnosis.EngineHybrid, gw.lastQuery().Engine)
	assert.False(t, resp.Context.DialogueOpen)
}

func TestMessage_Failure(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.push(diagnosis.Response{}, errOffline)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	w := post(t, h, "/v1/messages", `{"text":"leak"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[outcomeResponse](t, w)
	assert.Equal(t, "failure", resp.Kind)
	assert.Contains(t, resp.Error, "engine offline")
	assert.True(t, strings.HasPrefix(resp.Entry.Content.Text, "Request failed: "))
}

func TestMessage_Validation(t *testing.T) {
	conv, _ := newTestConversation(t)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	tests := []struct {
		name string
		body string
	}{
		{"blank text", `{"text":"   "}`},
		{"bad json", `{"text":`},
		{"unknown engine", `{"text":"noise","engine":"quantum"}`},
		{"option without pending clarification", `{"option":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/v1/messages", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_request_error", decode[errorBody](t, w).Error.Type)
		})
	}
	assert.Zero(t, conv.Transcript().Len(), "rejected requests must not be recorded")
}

func TestMessage_ClarificationOption(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.push(componentQuestion(), nil)
	gw.push(overheating(), nil)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	w := post(t, h, "/v1/messages", `{"text":"engine"}`)
	resp := decode[outcomeResponse](t, w)
	require.Equal(t, "clarification", resp.Kind)
	assert.True(t, resp.Context.DialogueOpen)
	assert.Equal(t, "s-1", resp.Context.Session)
	require.NotNil(t, resp.Clarification)
	assert.Equal(t, "Vibration", resp.Clarification.Options[2])

	w = post(t, h, "/v1/messages", `{"option":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, h, "/v1/messages", `{"option":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Vibration", gw.lastQuery().Text)
	assert.False(t, decode[outcomeResponse](t, w).Context.DialogueOpen)
}

func TestMessage_Busy(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.gate = make(chan struct{})
	gw.started = make(chan struct{}, 1)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(t, h, "/v1/messages", `{"text":"first"}`) }()
	<-gw.started

	w := post(t, h, "/v1/messages", `{"text":"second"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "busy_error", decode[errorBody](t, w).Error.Type)

	tr := decode[transcriptResponse](t, get(t, h, "/v1/transcript"))
	assert.True(t, tr.Busy)

	close(gw.gate)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

func TestMessage_ExplicitDefaultEngine(t *testing.T) {
	conv, gw := newTestConversation(t)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	post(t, h, "/v1/messages", `{"text":"leak","engine":"rule"}`)
	post(t, h, "/v1/messages", `{"text":"still leaking"}`)
	assert.Equal(t, diagnosis.EngineRule, gw.lastQuery().Engine, "omitted engine keeps the choice")

	w := post(t, h, "/v1/messages", `{"text":"noise","engine":"default"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, diagnosis.EngineDefault, gw.lastQuery().Engine)
	assert.Equal(t, diagnosis.EngineDefault, decode[outcomeResponse](t, w).Context.Engine)
}

func TestMessage_EngineQuestionNeedsOption(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.push(engineQuestion(), nil)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	post(t, h, "/v1/messages", `{"text":"overheating"}`)
	w := post(t, h, "/v1/messages", `{"text":"banana"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request_error", decode[errorBody](t, w).Error.Type)
	assert.Equal(t, 2, conv.Transcript().Len())

	w = post(t, h, "/v1/messages", `{"text":"Main Engine"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Main Engine", gw.lastQuery().Text)
}

func TestReset_BusyConflict(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.gate = make(chan struct{})
	gw.started = make(chan struct{}, 1)
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(t, h, "/v1/messages", `{"text":"first"}`) }()
	<-gw.started

	w := post(t, h, "/v1/reset", ``)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "busy_error", decode[errorBody](t, w).Error.Type)

	close(gw.gate)
	require.Equal(t, http.StatusOK, (<-done).Code)
	tr := decode[transcriptResponse](t, get(t, h, "/v1/transcript"))
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, "first", tr.Entries[0].Content.Text)
}

func TestTranscriptAndReset(t *testing.T) {
	conv, gw := newTestConversation(t)
	gw.push(componentQuestion(), nil)
	gw.resetErr = errOffline
	h := NewHandler(Deps{Conv: conv, Logger: quietLogger()})

	post(t, h, "/v1/messages", `{"text":"engine"}`)
	tr := decode[transcriptResponse](t, get(t, h, "/v1/transcript"))
	require.Len(t, tr.Entries, 2)
	assert.Equal(t, "engine", tr.Entries[0].Content.Text)
	assert.NotNil(t, tr.Entries[1].Content.Clarification)
	oldDialogue := tr.Context.DialogueID

	w := post(t, h, "/v1/reset", ``)
	require.Equal(t, http.StatusOK, w.Code)
	rr := decode[resetResponse](t, w)
	assert.Equal(t, "reset", rr.Status)
	assert.Contains(t, rr.RemoteError, "engine offline")
	assert.NotEqual(t, oldDialogue, rr.Context.DialogueID)
	assert.Empty(t, rr.Context.Session)

	tr = decode[transcriptResponse](t, get(t, h, "/v1/transcript"))
	assert.Empty(t, tr.Entries)
	assert.False(t, tr.Context.DialogueOpen)
}

func TestBearerAuth(t *testing.T) {
	conv, _ := newTestConversation(t)
	h := NewHandler(Deps{Conv: conv, Token: "secret", Logger: quietLogger()})

	w := get(t, h, "/v1/transcript")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication_error", decode[errorBody](t, w).Error.Type)

	req := httptest.NewRequest(http.MethodGet, "/v1/transcript", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/transcript", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// A query token only counts on websocket upgrades.
	w = get(t, h, "/v1/transcript?access_token=secret")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	conv, _ := newTestConversation(t)
	h := NewHandler(Deps{Conv: conv, Token: "secret", AllowedOrigins: []string{"https://console.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/messages", nil)
	req.Header.Set("Origin", "https://console.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "https://console.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHistory(t *testing.T) {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = store.SaveQuery(ctx, storage.Query{DialogueID: "d-1", Text: "engine hot", CreatedAt: at})
	require.NoError(t, err)
	require.NoError(t, store.SaveTurn(ctx, storage.Turn{DialogueID: "d-1", Seq: 1, Role: "user", Text: "engine hot", CreatedAt: at}))

	conv, _ := newTestConversation(t)
	h := NewHandler(Deps{Conv: conv, Store: store, Logger: quietLogger()})

	w := get(t, h, "/v1/history?limit=5")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Dialogues []dialogueSummary `json:"dialogues"`
	}](t, w)
	require.Len(t, body.Dialogues, 1)
	assert.Equal(t, "d-1", body.Dialogues[0].ID)
	assert.Equal(t, "engine hot", body.Dialogues[0].FirstQuery)
	assert.Equal(t, 1, body.Dialogues[0].Turns)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/history?limit=zero").Code)

	noStore := NewHandler(Deps{Conv: conv})
	assert.Equal(t, http.StatusNotFound, get(t, noStore, "/v1/history").Code)
}
