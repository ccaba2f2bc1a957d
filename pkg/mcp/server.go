// Package mcp serves search history and cache statistics to MCP clients over
// stdio using JSON-RPC 2.0.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
)

// StatsSource computes the statistics the stats tools report.
type StatsSource interface {
	UserStats(ctx context.Context, userID string) (models.UserStats, error)
	SystemStats(ctx context.Context) (models.SystemStats, error)
}

// Sweeper removes expired cache entries on demand.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Server is a minimal MCP server.
type Server struct {
	ledger  history.Ledger
	stats   StatsSource
	sweeper Sweeper
	version string
}

// New creates a Server. sweeper may be nil when caching is disabled.
func New(ledger history.Ledger, stats StatsSource, sweeper Sweeper, version string) *Server {
	return &Server{
		ledger:  ledger,
		stats:   stats,
		sweeper: sweeper,
		version: version,
	}
}

// Run reads one JSON-RPC request per line from r and writes responses to w.
// It returns when r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, errorFor(nil, CodeParseError, "parse error"))
			continue
		}
		if req.JSONRPC != jsonRPCVersion {
			s.writeResponse(w, errorFor(req.ID, CodeInvalidRequest, "jsonrpc must be 2.0"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.writeResponse(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultFor(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "sift", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return resultFor(req.ID, map[string]any{})
	case "tools/list":
		return resultFor(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return errorFor(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorFor(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultFor(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	return resultFor(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) writeResponse(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("mcp: marshal response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		logger.Error("mcp: write response", "error", err)
	}
}
