// Package mcp exposes the dialogue engine as an MCP server so that
// agent hosts can drive conversations as tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	soni "github.com/jmorenobl/soni-sub003"
	"github.com/jmorenobl/soni-sub003/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TurnResponse is the structured result of the turn tools.
type TurnResponse struct {
	Reply   string              `json:"reply" jsonschema_description:"What the engine says back to the user"`
	Pending *domain.PendingTask `json:"pending,omitempty" jsonschema_description:"The question the engine is waiting on, if any"`
}

// Engine is the part of the facade the MCP surface needs.
type Engine interface {
	ProcessTurn(ctx context.Context, sessionID, userText string) (string, error)
	State(ctx context.Context, sessionID string) (*domain.State, error)
	EndSession(ctx context.Context, sessionID string) error
	Flows() []string
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers its tools.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("soni-mcp", soni.Version),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	turnTool := mcp.NewTool("process_turn",
		mcp.WithDescription("Send a user message to a conversation session and get the engine's reply."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(turnTool, mcp.NewStructuredToolHandler(s.handleProcessTurn))

	stateTool := mcp.NewTool("get_session",
		mcp.WithDescription("Inspect the current state of a conversation session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
	)
	s.mcpServer.AddTool(stateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, err := s.engine.State(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	endTool := mcp.NewTool("end_session",
		mcp.WithDescription("Delete a conversation session and its saved state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session identifier")),
	)
	s.mcpServer.AddTool(endTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := request.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.engine.EndSession(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcp.NewToolResultText("session ended"), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the flows this engine can run."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.engine.Flows())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleProcessTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	sessionID, _ := args["session_id"].(string)
	text, _ := args["text"].(string)
	if sessionID == "" {
		return TurnResponse{}, fmt.Errorf("session_id is required")
	}

	reply, err := s.engine.ProcessTurn(ctx, sessionID, text)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}

	resp := TurnResponse{Reply: reply}
	if state, err := s.engine.State(ctx, sessionID); err == nil {
		resp.Pending = state.Pending
	}
	return resp, nil
}
