package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skuwatch/skuprobe/store"
	_ "modernc.org/sqlite"
)

var testImpl = &mcp.Implementation{Name: "skuprobe-test", Version: "0.1.0"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func float64p(v float64) *float64 { return &v }

// mcpSession registers the tools on an in-memory server and returns a
// connected client session plus the backing store.
func mcpSession(t *testing.T, collect CollectFunc) (*store.Store, *mcp.ClientSession) {
	t.Helper()
	st := store.OpenMemory(t)

	srv := mcp.NewServer(testImpl, nil)
	New(st, collect, quietLogger()).RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return st, session
}

// callTool invokes a tool and returns the JSON text from the first
// TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func seed(t *testing.T, st *store.Store, goodsID string, price float64) {
	t.Helper()
	err := st.UpsertProduct(context.Background(), &store.Product{
		GoodsID: goodsID,
		PageURL: "https://www.example.com/" + goodsID + ".html",
		Title:   "Product " + goodsID,
		Price:   float64p(price),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMCP_Products(t *testing.T) {
	st, session := mcpSession(t, nil)
	seed(t, st, "1", 10)
	seed(t, st, "2", 20)

	text := callTool(t, session, "skuprobe_products", map[string]any{})
	var products []*store.Product
	if err := json.Unmarshal([]byte(text), &products); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("products: got %d, want 2", len(products))
	}
}

func TestMCP_Products_InvalidArguments(t *testing.T) {
	_, session := mcpSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "skuprobe_products",
		Arguments: map[string]any{"limit": "twenty"},
	})
	if err == nil && !result.IsError {
		t.Fatal("expected an error for a non-integer limit, got success")
	}
}

func TestMCP_Attempts_InvalidArguments(t *testing.T) {
	_, session := mcpSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "skuprobe_attempts",
		Arguments: map[string]any{"limit": "five"},
	})
	if err == nil && !result.IsError {
		t.Fatal("expected an error for a non-integer limit, got success")
	}
}

func TestMCP_Product_WithHistory(t *testing.T) {
	st, session := mcpSession(t, nil)
	seed(t, st, "g1", 10)
	seed(t, st, "g1", 12.5)

	text := callTool(t, session, "skuprobe_product", map[string]any{
		"goods_id":        "g1",
		"include_history": true,
	})

	var resp struct {
		Product *store.Product      `json:"product"`
		History []*store.PricePoint `json:"history"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Product == nil || resp.Product.GoodsID != "g1" {
		t.Fatalf("product: got %+v", resp.Product)
	}
	if len(resp.History) != 2 {
		t.Errorf("history: got %d points, want 2", len(resp.History))
	}
}

func TestMCP_Product_NotFound(t *testing.T) {
	_, session := mcpSession(t, nil)

	text := callTool(t, session, "skuprobe_product", map[string]any{"goods_id": "nope"})
	var resp map[string]string
	json.Unmarshal([]byte(text), &resp)
	if resp["error"] != "product not found" {
		t.Errorf("error: got %q, want product not found", resp["error"])
	}
}

func TestMCP_Collect(t *testing.T) {
	collect := func(ctx context.Context, pageURL string) (*store.Product, error) {
		return &store.Product{GoodsID: "77", PageURL: pageURL}, nil
	}
	_, session := mcpSession(t, collect)

	text := callTool(t, session, "skuprobe_collect", map[string]any{
		"url": "https://www.example.com/77.html",
	})
	var p store.Product
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.GoodsID != "77" {
		t.Errorf("goods_id: got %q, want 77", p.GoodsID)
	}
}

func TestMCP_Collect_ErrorReported(t *testing.T) {
	collect := func(ctx context.Context, pageURL string) (*store.Product, error) {
		return nil, errors.New("browser gone")
	}
	_, session := mcpSession(t, collect)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "skuprobe_collect",
		Arguments: map[string]any{"url": "https://x/1.html"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error, got success")
	}
}

func TestMCP_Collect_NotRegisteredWithoutFunc(t *testing.T) {
	_, session := mcpSession(t, nil)

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "skuprobe_collect",
		Arguments: map[string]any{"url": "https://x/1.html"},
	})
	if err == nil {
		t.Fatal("expected unknown-tool error")
	}
}

func TestMCP_Attempts(t *testing.T) {
	st, session := mcpSession(t, nil)
	err := st.InsertAttempt(context.Background(), &store.Attempt{
		ID: "a1", PageURL: "https://x/1.html", Attempt: 1, Strategy: "search", Success: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "skuprobe_attempts", map[string]any{"limit": 5})
	var attempts []*store.Attempt
	if err := json.Unmarshal([]byte(text), &attempts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Strategy != "search" {
		t.Errorf("attempts: got %+v", attempts)
	}
}
