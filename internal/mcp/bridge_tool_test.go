package mcp

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func TestInputSchemaToMap(t *testing.T) {
	schema := mcpgo.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		Required: []string{"query"},
	}

	m := inputSchemaToMap(schema)

	if m["type"] != "object" {
		t.Errorf("expected type=object, got %v", m["type"])
	}

	props, ok := m["properties"].(map[string]any)
	if !ok || props == nil {
		t.Fatal("expected properties map")
	}
	if _, ok := props["query"]; !ok {
		t.Error("expected 'query' in properties")
	}

	req, ok := m["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "query" {
		t.Errorf("expected required=[query], got %v", m["required"])
	}
}

func TestInputSchemaToMap_EmptyType(t *testing.T) {
	schema := mcpgo.ToolInputSchema{}
	m := inputSchemaToMap(schema)

	if m["type"] != "object" {
		t.Errorf("expected default type=object, got %v", m["type"])
	}
}

func TestExtractTextContent(t *testing.T) {
	result := &mcpgo.CallToolResult{
		Content: []mcpgo.Content{
			mcpgo.TextContent{Type: "text", Text: "hello"},
			mcpgo.TextContent{Type: "text", Text: "world"},
		},
	}

	got := extractTextContent(result)
	if got != "hello\nworld" {
		t.Errorf("expected 'hello\\nworld', got %q", got)
	}
}

func TestExtractTextContent_Nil(t *testing.T) {
	if got := extractTextContent(nil); got != "" {
		t.Errorf("expected empty for nil, got %q", got)
	}

	result := &mcpgo.CallToolResult{}
	if got := extractTextContent(result); got != "" {
		t.Errorf("expected empty for no content, got %q", got)
	}
}

func TestBridgeToolNaming(t *testing.T) {
	mcpTool := mcpgo.Tool{
		Name:        "query",
		Description: "Run a query",
		InputSchema: mcpgo.ToolInputSchema{Type: "object"},
	}

	bt := NewBridgeTool("pg", mcpTool, nil, 30, nil)
	if bt.Name() != "pg__query" {
		t.Errorf("expected name=pg__query, got %s", bt.Name())
	}
	if bt.ServerName() != "pg" {
		t.Errorf("expected serverName=pg, got %s", bt.ServerName())
	}
	if bt.OriginalName() != "query" {
		t.Errorf("expected originalName=query, got %s", bt.OriginalName())
	}

	// Default timeout
	bt2 := NewBridgeTool("pg", mcpTool, nil, 0, nil)
	if bt2.timeoutSec != 60 {
		t.Errorf("expected default timeout=60, got %d", bt2.timeoutSec)
	}
}

func TestRegisteredName(t *testing.T) {
	tests := []struct {
		server, tool, want string
	}{
		{"", "query", "query"},
		{"pg", "query", "pg__query"},
		{"my server", "read.file", "my_server__read_file"},
	}
	for _, tt := range tests {
		if got := RegisteredName(tt.server, tt.tool); got != tt.want {
			t.Errorf("RegisteredName(%q, %q) = %q, want %q", tt.server, tt.tool, got, tt.want)
		}
	}
}

func TestBridgeTool_Disconnected(t *testing.T) {
	var connected atomic.Bool
	bt := NewBridgeTool("pg", mcpgo.Tool{Name: "query"}, nil, 0, &connected)

	res := bt.Execute(context.Background(), nil)
	if !res.IsError || !strings.Contains(res.ForLLM, "disconnected") {
		t.Errorf("result = %+v", res)
	}
}
