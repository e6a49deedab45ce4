package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/faultchat/internal/diagnosis"
)

// --- helpers ---

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func newTestMCPDeps(t *testing.T) (MCPDeps, *stubGateway) {
	t.Helper()
	conv, gw := newTestConversation(t)
	return MCPDeps{Conv: conv, Version: "test"}, gw
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_DiagnoseFault(t *testing.T) {
	deps, gw := newTestMCPDeps(t)
	gw.push(overheating(), nil)
	handler := mcpDiagnose(deps)

	result, err := handler(context.Background(), makeCallToolRequest("diagnose_fault", map[string]interface{}{
		"query":  "engine hot",
		"engine": "rule",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	text := toolText(t, result)
	if !strings.Contains(text, "## Overheating") {
		t.Errorf("expected fault heading, got %q", text)
	}
	if strings.Index(text, "Blocked filter") > strings.Index(text, "Low coolant") {
		t.Errorf("causes not sorted by probability:\n%s", text)
	}
	if got := gw.lastQuery().Engine; got != diagnosis.EngineRule {
		t.Errorf("engine = %q, want rule", got)
	}
}

func TestMCPTool_DiagnoseFault_Clarification(t *testing.T) {
	deps, gw := newTestMCPDeps(t)
	gw.push(componentQuestion(), nil)

	result, err := mcpDiagnose(deps)(context.Background(), makeCallToolRequest("diagnose_fault", map[string]interface{}{
		"query": "engine",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, "Which component?") || !strings.Contains(text, "3. Vibration") {
		t.Errorf("expected numbered options, got %q", text)
	}
}

func TestMCPTool_DiagnoseFault_Errors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing query", map[string]interface{}{}, "query is required"},
		{"blank query", map[string]interface{}{"query": "  "}, "query is required"},
		{"bad engine", map[string]interface{}{"query": "noise", "engine": "quantum"}, "unknown engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newTestMCPDeps(t)
			result, err := mcpDiagnose(deps)(context.Background(), makeCallToolRequest("diagnose_fault", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected tool error")
			}
			if text := toolText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestMCPTool_DiagnoseFault_TransportFailure(t *testing.T) {
	deps, gw := newTestMCPDeps(t)
	gw.push(diagnosis.Response{}, errOffline)

	result, err := mcpDiagnose(deps)(context.Background(), makeCallToolRequest("diagnose_fault", map[string]interface{}{
		"query": "leak",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for transport failure")
	}
	if text := toolText(t, result); !strings.HasPrefix(text, "Request failed: ") {
		t.Errorf("text = %q", text)
	}
	if n := deps.Conv.Transcript().Len(); n != 2 {
		t.Errorf("transcript len = %d, want 2", n)
	}
}

func TestMCPTool_ResetConversation(t *testing.T) {
	deps, gw := newTestMCPDeps(t)
	gw.push(componentQuestion(), nil)
	mcpDiagnose(deps)(context.Background(), makeCallToolRequest("diagnose_fault", map[string]interface{}{"query": "engine"}))

	result, err := mcpReset(deps)(context.Background(), makeCallToolRequest("reset_conversation", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "Conversation reset." {
		t.Errorf("text = %q", got)
	}
	if deps.Conv.Transcript().Len() != 0 || deps.Conv.Context().DialogueOpen {
		t.Error("reset should clear transcript and context")
	}

	gw.resetErr = errOffline
	result, _ = mcpReset(deps)(context.Background(), makeCallToolRequest("reset_conversation", nil))
	if result.IsError || !strings.Contains(toolText(t, result), "engine offline") {
		t.Errorf("remote failure should be reported as text, got %q", toolText(t, result))
	}
}

func TestMCPResource_Transcript(t *testing.T) {
	deps, gw := newTestMCPDeps(t)
	gw.push(componentQuestion(), nil)
	mcpDiagnose(deps)(context.Background(), makeCallToolRequest("diagnose_fault", map[string]interface{}{"query": "engine"}))

	contents, err := mcpResourceTranscript(deps)(context.Background(), makeReadResourceRequest(TranscriptURI))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != TranscriptURI || tc.MIMEType != "application/json" {
		t.Errorf("unexpected resource metadata: %s %s", tc.URI, tc.MIMEType)
	}

	var body transcriptResponse
	if err := json.Unmarshal([]byte(tc.Text), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Entries) != 2 || !body.Context.DialogueOpen || body.Context.Session != "s-1" {
		t.Errorf("unexpected transcript: %+v", body)
	}
}
