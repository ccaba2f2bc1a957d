package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pario-ai/sift/pkg/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type userArgs struct {
	UserID string `json:"user_id"`
}

type historyArgs struct {
	UserID string `json:"user_id"`
	Query  string `json:"q"`
	From   string `json:"from"`
	To     string `json:"to"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// toolHandler handles one tools/call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"sift_history":      handleHistory,
	"sift_user_stats":   handleUserStats,
	"sift_system_stats": handleSystemStats,
	"sift_cache_sweep":  handleCacheSweep,
}

func userIDSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "The user whose history to read",
	}
}

var allTools = []ToolDefinition{
	{
		Name:        "sift_history",
		Description: "List a user's search history, newest first, with optional text and date filters.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"user_id"},
			"properties": map[string]any{
				"user_id": userIDSchema(),
				"q": map[string]any{
					"type":        "string",
					"description": "Case-insensitive substring of the query (optional)",
				},
				"from": map[string]any{
					"type":        "string",
					"description": "Earliest day in YYYY-MM-DD format (optional)",
				},
				"to": map[string]any{
					"type":        "string",
					"description": "Latest day in YYYY-MM-DD format, inclusive (optional)",
				},
				"page":  map[string]any{"type": "integer", "minimum": 1},
				"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": maxHistoryLimit},
			},
		},
	},
	{
		Name:        "sift_user_stats",
		Description: "Show a user's search statistics: totals, unique queries and cache hit ratio.",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []string{"user_id"},
			"properties": map[string]any{"user_id": userIDSchema()},
		},
	},
	{
		Name:        "sift_system_stats",
		Description: "Show result cache and history totals across all users.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "sift_cache_sweep",
		Description: "Remove expired entries from the result cache.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args historyArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult("Invalid arguments: " + err.Error())
		}
	}
	if args.UserID == "" {
		return errorResult("user_id is required")
	}
	if args.Page < 1 {
		args.Page = 1
	}
	if args.Limit < 1 {
		args.Limit = defaultHistoryLimit
	}
	if args.Limit > maxHistoryLimit {
		args.Limit = maxHistoryLimit
	}

	filter := models.HistoryFilter{SearchTerm: args.Query}
	if args.From != "" {
		t, err := time.Parse(models.DateLayout, args.From)
		if err != nil {
			return errorResult("Invalid from date (use YYYY-MM-DD): " + err.Error())
		}
		filter.From = t
	}
	if args.To != "" {
		t, err := time.Parse(models.DateLayout, args.To)
		if err != nil {
			return errorResult("Invalid to date (use YYYY-MM-DD): " + err.Error())
		}
		filter.To = t.Add(24*time.Hour - time.Millisecond)
	}

	page, err := s.ledger.List(ctx, args.UserID, filter, args.Page, args.Limit)
	if err != nil {
		return errorResult("Error fetching history: " + err.Error())
	}
	return textResult(formatHistory(page))
}

func handleUserStats(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args userArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.UserID == "" {
		return errorResult("user_id is required")
	}
	st, err := s.stats.UserStats(ctx, args.UserID)
	if err != nil {
		return errorResult("Error fetching user stats: " + err.Error())
	}
	return textResult(formatUserStats(st))
}

func handleSystemStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	st, err := s.stats.SystemStats(ctx)
	if err != nil {
		return errorResult("Error fetching system stats: " + err.Error())
	}
	return textResult(formatSystemStats(st))
}

func handleCacheSweep(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.sweeper == nil {
		return textResult("Cache is not configured.")
	}
	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		return errorResult("Error sweeping cache: " + err.Error())
	}
	return textResult(formatSweep(n))
}
