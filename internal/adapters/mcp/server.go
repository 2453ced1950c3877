package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/core/ports"
)

const (
	ServerName    = "research-search"
	ServerVersion = "1.0.0"
	userID        = "mcp"
)

// Server exposes search, similar and feedback as MCP tools.
type Server struct {
	mcp      *server.MCPServer
	search   ports.SearchService
	similar  ports.SimilarService
	feedback ports.FeedbackService
}

func NewServer(search ports.SearchService, similar ports.SimilarService, feedback ports.FeedbackService) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		search:   search,
		similar:  similar,
		feedback: feedback,
	}
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(similarTool(), s.handleSimilar)
	s.mcp.AddTool(feedbackTool(), s.handleFeedback)
	return s
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req domain.SearchRequest
	if err := bindArguments(request, &req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.UserID = userID

	resp, err := s.search.Search(ctx, req)
	if err != nil {
		return toolError(ctx, toolSearch, err), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var req domain.SimilarRequest
	if err := bindArguments(request, &req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.similar.Similar(ctx, req)
	if err != nil {
		return toolError(ctx, toolSimilar, err), nil
	}
	return jsonResult(resp)
}

type feedbackArgs struct {
	FeedbackID     string                     `json:"feedback_id"`
	UserID         string                     `json:"user_id"`
	GlobalFeedback domain.OptionalLabel       `json:"global_feedback"`
	GlobalReason   domain.OptionalString      `json:"global_reason"`
	Item           *domain.ItemFeedbackUpdate `json:"item"`
	Query          string                     `json:"query"`
	Filters        domain.FilterSpec          `json:"filters"`
}

func (s *Server) handleFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args feedbackArgs
	if err := bindArguments(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	user := strings.TrimSpace(args.UserID)
	if user == "" {
		user = userID
	}

	result, err := s.feedback.Apply(ctx, domain.FeedbackUpdate{
		FeedbackID:     strings.TrimSpace(args.FeedbackID),
		UserID:         user,
		GlobalFeedback: args.GlobalFeedback,
		GlobalReason:   args.GlobalReason,
		Item:           args.Item,
		Query:          args.Query,
		Filters:        args.Filters,
	})
	if err != nil {
		return toolError(ctx, toolFeedback, err), nil
	}
	return jsonResult(result)
}

// bindArguments decodes tool arguments through the same JSON rules the HTTP API uses.
func bindArguments(request mcp.CallToolRequest, out any) error {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrFallbackCreate):
		return mcp.NewToolResultError("query is required when feedback_id is unknown")
	case domain.IsKind(err, domain.ErrInvalidInput):
		if vErr, ok := domain.AsValidationError(err); ok {
			return mcp.NewToolResultError(vErr.Error())
		}
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrNotFound):
		return mcp.NewToolResultError("not found")
	default:
		slog.ErrorContext(ctx, "mcp_tool_failed", "tool", tool, "error", err.Error())
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}
