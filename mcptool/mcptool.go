// CLAUDE:SUMMARY Registers the skuprobe MCP tools — collect, products, product detail with history, attempts.
// Package mcptool exposes skuprobe over MCP so agent runtimes can
// trigger collections and read collected product data.
package mcptool

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skuwatch/skuprobe/store"
)

// CollectFunc runs a full page collection. Wired to
// collector.CollectPage in production; nil disables the collect tool.
type CollectFunc func(ctx context.Context, pageURL string) (*store.Product, error)

// Service backs the skuprobe MCP tools.
type Service struct {
	store   *store.Store
	collect CollectFunc
	logger  *slog.Logger
}

// New creates the MCP tool service.
func New(st *store.Store, collect CollectFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, collect: collect, logger: logger}
}

// RegisterMCP registers the skuprobe tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	if s.collect != nil {
		s.registerCollectTool(srv)
	}
	s.registerListProductsTool(srv)
	s.registerGetProductTool(srv)
	s.registerAttemptsTool(srv)
}

// --- collect ---

type collectRequest struct {
	URL string `json:"url"`
}

func (s *Service) registerCollectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "skuprobe_collect",
		Description: "Collect a product page now: primary capture plus instrumented analytics extraction. Returns the persisted record.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Product page URL"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*collectRequest)
		return s.collect(ctx, r.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*decodeResult, error) {
		var r collectRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &decodeResult{Request: &r}, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

// --- products ---

func (s *Service) registerListProductsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "skuprobe_products",
		Description: "List collected products, newest first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max results (default 100)"},
		}, nil),
	}

	type listReq struct {
		Limit int `json:"limit"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listReq)
		return s.store.ListProducts(ctx, r.Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*decodeResult, error) {
		var r listReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &decodeResult{Request: &r}, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

// --- product ---

type getProductRequest struct {
	GoodsID        string `json:"goods_id"`
	IncludeHistory bool   `json:"include_history"`
}

func (s *Service) registerGetProductTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "skuprobe_product",
		Description: "Get one collected product by goods ID, optionally with its price history.",
		InputSchema: inputSchema(map[string]any{
			"goods_id":        map[string]any{"type": "string", "description": "Goods ID"},
			"include_history": map[string]any{"type": "boolean", "description": "Attach observed price changes"},
		}, []string{"goods_id"}),
	}

	type productResponse struct {
		Product *store.Product      `json:"product"`
		History []*store.PricePoint `json:"history,omitempty"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getProductRequest)
		p, err := s.store.GetProduct(ctx, r.GoodsID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return map[string]string{"error": "product not found"}, nil
		}
		resp := &productResponse{Product: p}
		if r.IncludeHistory {
			hist, err := s.store.PriceHistory(ctx, r.GoodsID, 0)
			if err != nil {
				return nil, err
			}
			resp.History = hist
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (*decodeResult, error) {
		var r getProductRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &decodeResult{Request: &r}, nil
	}

	registerTool(srv, tool, endpoint, decode)
}

// --- attempts ---

func (s *Service) registerAttemptsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "skuprobe_attempts",
		Description: "List recent extraction attempts for diagnostics: strategy, success, field and sample counts.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max results (default 50)"},
		}, nil),
	}

	type attemptsReq struct {
		Limit int `json:"limit"`
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*attemptsReq)
		return s.store.RecentAttempts(ctx, r.Limit)
	}

	decode := func(req *mcp.CallToolRequest) (*decodeResult, error) {
		var r attemptsReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &decodeResult{Request: &r}, nil
	}

	registerTool(srv, tool, endpoint, decode)
}
