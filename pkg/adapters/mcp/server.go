// Package mcp exposes the workflow bridge as an MCP server so agent tooling
// can start runs, answer approvals and inspect sessions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docweave/docweave"
	"github.com/docweave/docweave/pkg/bridge"
	"github.com/docweave/docweave/pkg/domain"
)

// StartResponse is the structured result of the start_workflow tool.
type StartResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"ID of the opened workflow session"`
}

// StatusResponse is the structured result of the workflow_status tool.
type StatusResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status" jsonschema_description:"Lifecycle state of the session"`
	DocumentURI string `json:"document_uri,omitempty"`
	Pending     int    `json:"pending_approvals" jsonschema_description:"Number of unanswered approval requests"`
}

// Server wraps the workflow bridge and exposes it as an MCP server.
type Server struct {
	bridge    *bridge.Bridge
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server over the given bridge.
func NewServer(b *bridge.Bridge) *Server {
	s := &Server{
		bridge:    b,
		mcpServer: server.NewMCPServer("docweave-mcp", strings.TrimSpace(docweave.Version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_workflow",
		mcp.WithDescription("Start a document review workflow for the given document."),
		mcp.WithString("document_uri", mcp.Required(), mcp.Description("Locator of the document to process")),
		mcp.WithString("document_title", mcp.Description("Display title of the document (optional)")),
		mcp.WithOutputSchema[StartResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	approvalTool := mcp.NewTool("submit_approval",
		mcp.WithDescription("Answer a pending approval request of a running workflow."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("ID of the approval request to answer")),
		mcp.WithBoolean("approved", mcp.Required(), mcp.Description("Whether the request is approved")),
		mcp.WithString("comment", mcp.Description("Reviewer comment (optional)")),
	)
	s.mcpServer.AddTool(approvalTool, s.handleApproval)

	statusTool := mcp.NewTool("workflow_status",
		mcp.WithDescription("Get the lifecycle state of a workflow session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session to inspect")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StartResponse, error) {
	uri, _ := args["document_uri"].(string)
	if uri == "" {
		return StartResponse{}, fmt.Errorf("document_uri is required")
	}
	title, _ := args["document_title"].(string)

	sessionID, err := s.bridge.OpenSession(ctx, domain.DocInput{
		DocumentURI:   uri,
		DocumentTitle: title,
	})
	if err != nil {
		return StartResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return StartResponse{SessionID: sessionID}, nil
}

func (s *Server) handleApproval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID, err := request.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	approved, err := request.RequireBool("approved")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comment := request.GetString("comment", "")

	sessionID, ok := s.bridge.ResolveRequest(requestID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no pending approval request %q", requestID)), nil
	}

	if err := s.bridge.SubmitAnswer(sessionID, domain.ApprovalDecision{
		RequestID: requestID,
		Approved:  approved,
		Comment:   comment,
	}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
	}

	out, _ := json.Marshal(map[string]any{"status": "accepted", "session_id": sessionID})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StatusResponse, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return StatusResponse{}, fmt.Errorf("session_id is required")
	}

	status, err := s.bridge.Status(sessionID)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("status failed: %w", err)
	}
	return StatusResponse{
		SessionID:   status.SessionID,
		Status:      string(status.State),
		DocumentURI: status.DocumentURI,
		Pending:     status.Pending,
	}, nil
}
