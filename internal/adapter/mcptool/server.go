// Package mcptool exposes the memory service's five operations as MCP
// tools over stdio, the way the donor project registers its own
// agent-facing tools: argument unmarshalling, tool registration, and
// result encoding live here and never leak into memoryservice.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"memoryvault/internal/domain"
	"memoryvault/internal/usecase/memoryservice"
	"memoryvault/internal/usecase/scorer"
)

// Server wraps the memory service as an MCP tool server.
type Server struct {
	svc    *memoryservice.Service
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New builds an MCP server exposing store_memory, search_memory,
// list_memories, delete_memory, and get_memory.
func New(svc *memoryservice.Service, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		mcp:    server.NewMCPServer(name, version),
		logger: logger,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks, serving MCP requests over stdin/stdout until the
// transport closes or the process receives a shutdown signal.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("store_memory",
		mcp.WithDescription("Store a new memory, deduplicating against existing content"),
		mcp.WithString("content", mcp.Required(), mcp.Description("the text to remember")),
		mcp.WithString("priority", mcp.Description("CORE, HIGH, NORMAL, or LOW (default NORMAL)")),
		mcp.WithString("category", mcp.Description("free-form classification label")),
		mcp.WithArray("tags", mcp.Description("tags for filtering later searches")),
		mcp.WithString("project_id", mcp.Description("project scope for this memory")),
		mcp.WithString("source", mcp.Description("where this memory came from")),
	), s.handleStoreMemory)

	s.mcp.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Search memories by semantic similarity, ranked by a composite score"),
		mcp.WithString("query", mcp.Required(), mcp.Description("natural-language search text")),
		mcp.WithNumber("limit", mcp.Description("maximum results to return (default 10, max 100)")),
		mcp.WithString("priority", mcp.Description("filter to an exact priority")),
		mcp.WithArray("tags", mcp.Description("filter to memories matching any of these tags")),
		mcp.WithString("project_id", mcp.Description("filter to a project scope")),
		mcp.WithString("date_start", mcp.Description("RFC3339 lower bound on created_at (inclusive)")),
		mcp.WithString("date_end", mcp.Description("RFC3339 upper bound on created_at (inclusive)")),
	), s.handleSearchMemory)

	s.mcp.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List memories without scoring, optionally filtered"),
		mcp.WithNumber("limit", mcp.Description("page size (default 50)")),
		mcp.WithNumber("offset", mcp.Description("rows to skip")),
		mcp.WithString("priority", mcp.Description("filter to an exact priority")),
		mcp.WithArray("tags", mcp.Description("filter to memories matching any of these tags")),
		mcp.WithString("project_id", mcp.Description("filter to a project scope")),
		mcp.WithString("date_start", mcp.Description("RFC3339 lower bound on created_at (inclusive)")),
		mcp.WithString("date_end", mcp.Description("RFC3339 upper bound on created_at (inclusive)")),
		mcp.WithString("sort_by", mcp.Description("column to sort by (default created_at)")),
		mcp.WithString("sort_order", mcp.Description("ASC or DESC (default DESC)")),
	), s.handleListMemories)

	s.mcp.AddTool(mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory by id or content hash"),
		mcp.WithNumber("memory_id", mcp.Description("id of the memory to delete")),
		mcp.WithString("content_hash", mcp.Description("sha256 content hash of the memory to delete")),
	), s.handleDeleteMemory)

	s.mcp.AddTool(mcp.NewTool("get_memory",
		mcp.WithDescription("Fetch a single memory by id, bumping its access count"),
		mcp.WithNumber("memory_id", mcp.Required(), mcp.Description("id of the memory to fetch")),
	), s.handleGetMemory)
}

func (s *Server) handleStoreMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	content, _ := args["content"].(string)
	priority, ok := domain.NormalizePriority(getString(args, "priority"))
	if !ok {
		return mcp.NewToolResultError("invalid priority"), nil
	}

	result, err := s.svc.StoreMemory(ctx, content, memoryservice.StoreMeta{
		Priority:  priority,
		Category:  getString(args, "category"),
		Tags:      getStringSlice(args, "tags"),
		ProjectID: getString(args, "project_id"),
		Source:    getString(args, "source"),
	})
	if err != nil {
		return toolError("store_memory", err), nil
	}

	return jsonResult(storeResponse{
		Success:       true,
		MemoryID:      result.MemoryID,
		Duplicate:     result.Duplicate,
		NearDuplicate: result.NearDuplicate,
	})
}

func (s *Server) handleSearchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	query, _ := args["query"].(string)
	limit := getInt(args, "limit", 10)

	var filters domain.Filters
	if p := getString(args, "priority"); p != "" {
		priority, ok := domain.NormalizePriority(p)
		if !ok {
			return mcp.NewToolResultError("invalid priority filter"), nil
		}
		filters.Priority = priority
	}
	filters.Tags = getStringSlice(args, "tags")
	filters.ProjectID = getString(args, "project_id")
	dateRange, err := getDateRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filters.DateRange = dateRange

	result, err := s.svc.SearchMemory(ctx, query, limit, filters)
	if err != nil {
		return toolError("search_memory", err), nil
	}

	matches := make([]searchMatch, len(result.Memories))
	for i, r := range result.Memories {
		matches[i] = searchMatch{Memory: r.Memory, Score: r.Score}
	}

	return jsonResult(searchResponse{Success: true, Matches: matches, Total: result.Total, Limit: result.Limit})
}

func (s *Server) handleListMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var filters domain.Filters
	if p := getString(args, "priority"); p != "" {
		priority, ok := domain.NormalizePriority(p)
		if !ok {
			return mcp.NewToolResultError("invalid priority filter"), nil
		}
		filters.Priority = priority
	}
	filters.Tags = getStringSlice(args, "tags")
	filters.ProjectID = getString(args, "project_id")
	dateRange, err := getDateRange(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filters.DateRange = dateRange

	result, err := s.svc.ListMemories(ctx, domain.ListOptions{
		Filters:   filters,
		SortBy:    getString(args, "sort_by"),
		SortOrder: domain.SortOrder(getString(args, "sort_order")),
		Limit:     getInt(args, "limit", 50),
		Offset:    getInt(args, "offset", 0),
	})
	if err != nil {
		return toolError("list_memories", err), nil
	}

	return jsonResult(listResponse{
		Success:  true,
		Memories: result.Memories,
		Total:    result.Total,
		Limit:    result.Limit,
		Offset:   result.Offset,
		HasMore:  result.HasMore,
	})
}

func (s *Server) handleDeleteMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var memoryID *int64
	if v, ok := args["memory_id"].(float64); ok {
		id := int64(v)
		memoryID = &id
	}
	var contentHash *string
	if h := getString(args, "content_hash"); h != "" {
		contentHash = &h
	}

	result, err := s.svc.DeleteMemory(ctx, memoryID, contentHash)
	if err != nil {
		return toolError("delete_memory", err), nil
	}

	return jsonResult(deleteResponse{Success: result.Success, MemoryID: result.MemoryID})
}

func (s *Server) handleGetMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	id, ok := args["memory_id"].(float64)
	if !ok {
		return mcp.NewToolResultError("memory_id is required"), nil
	}

	m, err := s.svc.GetMemory(ctx, int64(id))
	if err != nil {
		return toolError("get_memory", err), nil
	}
	if m == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no memory with id %d", int64(id))), nil
	}

	return jsonResult(m)
}

func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s [%s]", op, err.Error(), domain.ErrorCodeOf(err)))
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func getString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getInt(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

// getDateRange parses optional RFC3339 date_start/date_end arguments into a
// domain.DateRange. Returns (nil, nil) if neither is present.
func getDateRange(args map[string]interface{}) (*domain.DateRange, error) {
	startStr := getString(args, "date_start")
	endStr := getString(args, "date_end")
	if startStr == "" && endStr == "" {
		return nil, nil
	}

	var dr domain.DateRange
	if startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date_start: %w", err)
		}
		dr.Start = t
	}
	if endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date_end: %w", err)
		}
		dr.End = t
	}
	return &dr, nil
}

type storeResponse struct {
	Success       bool                  `json:"success"`
	MemoryID      int64                 `json:"memory_id"`
	Duplicate     bool                  `json:"duplicate"`
	NearDuplicate *domain.NearDuplicate `json:"near_duplicate,omitempty"`
}

type searchMatch struct {
	Memory domain.Memory    `json:"memory"`
	Score  scorer.Breakdown `json:"score"`
}

type searchResponse struct {
	Success bool          `json:"success"`
	Matches []searchMatch `json:"memories"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
}

type listResponse struct {
	Success  bool            `json:"success"`
	Memories []domain.Memory `json:"memories"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
	HasMore  bool            `json:"has_more"`
}

type deleteResponse struct {
	Success  bool   `json:"success"`
	MemoryID *int64 `json:"memory_id,omitempty"`
}
