package mcp

import (
	"context"
	"strings"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newInProcessServer(t *testing.T) *Server {
	t.Helper()

	srv := server.NewMCPServer("notes", "1.0.0")
	srv.AddTool(
		mcpgo.NewTool("echo",
			mcpgo.WithDescription("Echo text back"),
			mcpgo.WithString("text", mcpgo.Required(), mcpgo.Description("Text to echo")),
		),
		func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			text, _ := req.GetArguments()["text"].(string)
			if text == "" {
				return mcpgo.NewToolResultError("text is required"), nil
			}
			return mcpgo.NewToolResultText("echo: " + text), nil
		},
	)

	c, err := mcpclient.NewInProcessClient(srv)
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s, err := Attach(ctx, "notes", c, 5, "test")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestServer_ToolsAndExecute(t *testing.T) {
	s := newInProcessServer(t)
	ctx := context.Background()

	list, err := s.Tools(ctx)
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(list))
	}
	echo := list[0]
	if echo.Name() != "notes__echo" || echo.Description() != "Echo text back" {
		t.Errorf("tool = %s / %s", echo.Name(), echo.Description())
	}
	if _, ok := echo.Parameters()["properties"]; !ok {
		t.Errorf("parameters missing properties: %v", echo.Parameters())
	}

	res := echo.Execute(ctx, map[string]any{"text": "hi"})
	if res.IsError || res.ForLLM != "echo: hi" {
		t.Errorf("result = %+v", res)
	}

	res = echo.Execute(ctx, map[string]any{})
	if !res.IsError || !strings.Contains(res.ForLLM, "text is required") {
		t.Errorf("error result = %+v", res)
	}
}

func TestServer_CloseDisconnectsTools(t *testing.T) {
	s := newInProcessServer(t)
	ctx := context.Background()

	list, err := s.Tools(ctx)
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	res := list[0].Execute(ctx, map[string]any{"text": "hi"})
	if !res.IsError || !strings.Contains(res.ForLLM, "disconnected") {
		t.Errorf("result after close = %+v", res)
	}
}

func TestConnect_InvalidConfig(t *testing.T) {
	ctx := context.Background()
	tests := []ServerConfig{
		{Name: "a", Transport: TransportStdio},
		{Name: "b", Transport: TransportSSE},
		{Name: "c", Transport: TransportHTTP},
		{Name: "d", Transport: "carrier-pigeon", URL: "http://x"},
	}
	for _, cfg := range tests {
		if _, err := Connect(ctx, cfg, "test"); err == nil {
			t.Errorf("Connect(%+v) should fail", cfg)
		}
	}
}

func TestEnvList(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	if strings.Join(got, ",") != "A=1,B=2" {
		t.Errorf("envList = %v", got)
	}
}

func TestCommandLine(t *testing.T) {
	cmd, args, err := CommandLine(ServerConfig{Command: `npx -y "@scope/files server"`})
	if err != nil {
		t.Fatalf("CommandLine: %v", err)
	}
	if cmd != "npx" || len(args) != 2 || args[1] != "@scope/files server" {
		t.Errorf("got %q %q", cmd, args)
	}

	cmd, args, _ = CommandLine(ServerConfig{Command: "/opt/my server", Args: []string{"--stdio"}})
	if cmd != "/opt/my server" || len(args) != 1 {
		t.Errorf("explicit args: got %q %q", cmd, args)
	}

	if _, _, err := CommandLine(ServerConfig{Command: "  "}); err == nil {
		t.Error("expected error for empty command")
	}
	if _, _, err := CommandLine(ServerConfig{Command: `npx "unterminated`}); err == nil {
		t.Error("expected error for unbalanced quotes")
	}
}
