// CLAUDE:SUMMARY MCP tools: domfinder_extract, domfinder_resolve_title, domfinder_run, domfinder_history.
package domfinder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domfinder/kit"
)

// RegisterMCP registers all domfinder tools on an MCP server. Runs started
// over MCP share one session.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	sess := s.sessions.Get("")
	s.registerExtract(srv)
	s.registerResolveTitle(srv)
	s.registerRun(srv, sess)
	s.registerHistory(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// register wraps endpoint with call logging and JSON argument decoding into T.
func register[T any](s *Service, srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *T) (any, error)) {
	ep := kit.Chain(kit.Logging(s.logger, tool.Name))(func(ctx context.Context, r any) (any, error) {
		return endpoint(ctx, r.(*T))
	})
	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p T
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}
	kit.RegisterMCPTool(srv, tool, ep, decode)
}

func (s *Service) registerExtract(srv *mcp.Server) {
	type req struct {
		Text string `json:"text"`
	}
	tool := &mcp.Tool{
		Name:        "domfinder_extract",
		Description: "Find domain names and URLs in free text. Returns sorted unique URLs and hostnames; nothing is fetched or stored.",
		InputSchema: inputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text to scan"},
		}, []string{"text"}),
	}
	register(s, srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.ExtractDomains(p.Text), nil
	})
}

func (s *Service) registerResolveTitle(srv *mcp.Server) {
	type req struct {
		URL string `json:"url"`
	}
	tool := &mcp.Tool{
		Name:        "domfinder_resolve_title",
		Description: "Fetch one URL and return its page title and final URL after redirects",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "URL to fetch; https:// is assumed when the scheme is missing"},
		}, []string{"url"}),
	}
	register(s, srv, tool, func(ctx context.Context, p *req) (any, error) {
		u := strings.TrimSpace(p.URL)
		if u == "" {
			return nil, fmt.Errorf("%w: url is required", ErrEmptyInput)
		}
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		return s.ResolveTitle(ctx, u), nil
	})
}

func (s *Service) registerRun(srv *mcp.Server, sess *Session) {
	type req struct {
		Text   string `json:"text"`
		Reload bool   `json:"reload"`
	}
	type resp struct {
		RunID        string   `json:"run_id"`
		Hostnames    []string `json:"hostnames"`
		Records      []Record `json:"records"`
		ExistingRows int      `json:"existing_rows"`
		StoredRows   int      `json:"stored_rows"`
		StoragePath  string   `json:"storage_path"`
	}
	tool := &mcp.Tool{
		Name:        "domfinder_run",
		Description: "Extract domains from text, fetch every title in order and append the results to the CSV storage file",
		InputSchema: inputSchema(map[string]any{
			"text":   map[string]any{"type": "string", "description": "Text to scan"},
			"reload": map[string]any{"type": "boolean", "description": "Load the existing storage file into the session first"},
		}, []string{"text"}),
	}
	register(s, srv, tool, func(ctx context.Context, p *req) (any, error) {
		if strings.TrimSpace(p.Text) == "" {
			return nil, ErrEmptyInput
		}
		run, err := s.Extract(kit.WithSessionID(ctx, sess.ID), sess, p.Text, p.Reload)
		if err != nil {
			return nil, err
		}
		return resp{
			RunID:        run.ID,
			Hostnames:    run.Hostnames,
			Records:      run.Records,
			ExistingRows: run.ExistingRows,
			StoredRows:   run.StoredRows,
			StoragePath:  s.StoragePath(),
		}, nil
	})
}

func (s *Service) registerHistory(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}
	tool := &mcp.Tool{
		Name:        "domfinder_history",
		Description: "List recent extraction runs and title resolutions, newest first",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max events (default 50)"},
		}, nil),
	}
	register(s, srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.History(ctx, p.Limit)
	})
}
