package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/diagnosis"
)

// TranscriptURI is the MCP resource holding the current transcript.
const TranscriptURI = "transcript://current"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Conv    *conversation.Conversation
	Version string
}

// NewMCPServer creates an MCP server exposing the conversation as tools and
// the transcript as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"faultchat",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("faultchat diagnoses machinery faults. Describe a symptom with diagnose_fault; answer clarification questions with further diagnose_fault calls."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("diagnose_fault",
			mcp.WithDescription("Describe a machinery symptom, or answer the pending clarification question, and get ranked fault causes."),
			mcp.WithString("query", mcp.Description("Symptom description or clarification answer"), mcp.Required()),
			mcp.WithString("engine", mcp.Description("Diagnosis engine: rule, neural, hybrid or default; omitted keeps the current choice")),
		),
		mcpDiagnose(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_conversation",
			mcp.WithDescription("Forget the current dialogue and start over."),
		),
		mcpReset(deps),
	)

	s.AddResource(
		mcp.NewResource(
			TranscriptURI,
			"Current Transcript",
			mcp.WithResourceDescription("Entries and context of the current dialogue as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTranscript(deps),
	)

	return s
}

func mcpDiagnose(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		engineArg := req.GetString("engine", "")
		engine, err := diagnosis.ParseEngine(engineArg)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if p := deps.Conv.Context().Pending; p != nil && strings.TrimSpace(query) != "" {
			if err := p.Accept(query); err != nil {
				return mcpError(fmt.Sprintf("%v: %s", err, strings.Join(p.Options, ", "))), nil
			}
		}

		submit := deps.Conv.Submit
		if strings.TrimSpace(engineArg) != "" {
			submit = deps.Conv.SubmitWithEngine
		}
		out, err := submit(ctx, query, engine)
		switch {
		case errors.Is(err, diagnosis.ErrEmptyQuery):
			return mcpError("query is required"), nil
		case errors.Is(err, conversation.ErrBusy):
			return mcpError("another diagnosis is in progress; try again shortly"), nil
		case err != nil:
			return mcpError(fmt.Sprintf("diagnosis failed: %v", err)), nil
		}

		if out.Kind == conversation.OutcomeFailure {
			return mcpError(out.Entry.Content.Text), nil
		}
		return mcpText(out.Entry.Content.Text), nil
	}
}

func mcpReset(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		err := deps.Conv.ResetIfIdle(ctx)
		if errors.Is(err, conversation.ErrBusy) {
			return mcpError("a diagnosis is in progress; reset once it has answered"), nil
		}
		if err != nil {
			return mcpText(fmt.Sprintf("Conversation reset locally; the service reported: %v", err)), nil
		}
		return mcpText("Conversation reset."), nil
	}
}

func mcpResourceTranscript(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(transcriptResponse{
			Entries: deps.Conv.Transcript().Entries(),
			Context: deps.Conv.Context(),
			Busy:    deps.Conv.Busy(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transcript: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
