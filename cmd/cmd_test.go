package cmd

import (
	"log/slog"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/hitlchat/internal/arcade"
	"github.com/nextlevelbuilder/hitlchat/internal/config"
	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	old := cfgFile
	defer func() { cfgFile = old }()

	cfgFile = ""
	t.Setenv(envConfigPath, "")
	if got := resolveConfigPath(); got != defaultConfigPath {
		t.Errorf("default path = %q", got)
	}

	t.Setenv(envConfigPath, "/etc/hitlchat.yaml")
	if got := resolveConfigPath(); got != "/etc/hitlchat.yaml" {
		t.Errorf("env path = %q", got)
	}

	cfgFile = "local.json5"
	if got := resolveConfigPath(); got != "local.json5" {
		t.Errorf("flag path = %q", got)
	}
}

func TestChatOptionsApply(t *testing.T) {
	cfg := config.Default()
	chatOptions{user: "me@example.com", model: "gpt-4o-mini", thread: "My Work"}.apply(cfg)
	if cfg.UserID != "me@example.com" || cfg.Provider.Model != "gpt-4o-mini" || cfg.ThreadID != "my-work" {
		t.Errorf("cfg = %+v", cfg)
	}

	cfg = config.Default()
	chatOptions{newThread: true, thread: "ignored"}.apply(cfg)
	if cfg.ThreadID == "ignored" || cfg.ThreadID == config.DefaultThreadID || len(cfg.ThreadID) != 36 {
		t.Errorf("new thread id = %q", cfg.ThreadID)
	}
}

func TestMCPServers(t *testing.T) {
	off := false
	cfg := config.Default()
	cfg.MCP.Servers = map[string]config.MCPServerConfig{
		"notes":    {Command: "notes-mcp"},
		"disabled": {Command: "x", Enabled: &off},
		"calendar": {Transport: "sse", URL: "http://localhost:9000/sse"},
	}

	got := mcpServers(cfg)
	if len(got) != 2 || got[0].Name != "calendar" || got[1].Name != "notes" {
		t.Fatalf("servers = %+v", got)
	}
	if got[0].Transport != mcp.TransportSSE || got[1].Command != "notes-mcp" {
		t.Errorf("servers = %+v", got)
	}
}

func TestNewFetcher(t *testing.T) {
	cfg := config.Default()
	if f := newFetcher(cfg, nil); len(f) != 0 {
		t.Errorf("expected no fetchers, got %d", len(f))
	}

	cfg.MCP.Servers = map[string]config.MCPServerConfig{"notes": {Command: "notes-mcp"}}
	client := arcade.NewClient(arcade.ClientConfig{UserID: "u"})
	if f := newFetcher(cfg, client); len(f) != 2 {
		t.Errorf("expected 2 fetchers, got %d", len(f))
	}
}

func TestToolEntry(t *testing.T) {
	client := arcade.NewClient(arcade.ClientConfig{UserID: "u"})
	at := arcade.NewTool(client, providers.ToolDefinition{
		Type:     "function",
		Function: providers.ToolFunctionSchema{Name: "Gmail_SendEmail", Description: "Send an email"},
	})
	e := toolEntry(at)
	if e.Source != "arcade" || !e.Authorizable || e.Name != "Gmail_SendEmail" {
		t.Errorf("arcade entry = %+v", e)
	}

	bt := mcp.NewBridgeTool("notes", mcpgo.Tool{Name: "search"}, nil, 0, nil)
	e = toolEntry(bt)
	if e.Source != "mcp:notes" || e.Authorizable || e.Name != "notes__search" {
		t.Errorf("mcp entry = %+v", e)
	}
}

func TestNewGraph(t *testing.T) {
	cfg := config.Default()
	cfg.UserID = "u"
	cfg.Provider.Model = "gpt-4o"
	if _, err := newGraph(cfg, newRegistry(cfg), nil); err != nil {
		t.Fatalf("newGraph: %v", err)
	}

	cfg.Agent.InjectionAction = "explode"
	if _, err := newGraph(cfg, newRegistry(cfg), nil); err == nil {
		t.Error("expected error for bad injection action")
	}

	cfg.Agent.InjectionAction = "warn"
	cfg.Approval.Expression = "tool +"
	if _, err := newGraph(cfg, newRegistry(cfg), nil); err == nil {
		t.Error("expected error for bad approval expression")
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"short":               "*****",
		"sk-1234567890abcdef": "sk-1***********cdef",
	}
	for in, want := range tests {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateAll(t *testing.T) {
	cfg := config.Default()
	cfg.Approval.Expression = "tool +"
	cfg.Agent.InjectionAction = "explode"

	err := validateAll(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"ARCADE_USER_ID", "OPENAI_MODEL", "approval", "injection action"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}

	cfg = config.Default()
	cfg.UserID = "u"
	cfg.Provider.Model = "gpt-4o"
	if err := validateAll(cfg); err != nil {
		t.Errorf("valid config: %v", err)
	}
}

func TestApplyOnboard(t *testing.T) {
	cfg := config.Default()
	applyOnboard(cfg, onboardAnswers{
		UserID:   "me@example.com",
		Model:    "gpt-4o-mini",
		Toolkits: []string{"Gmail"},
		Approval: approvalNone,
		Driver:   "redis",
		DSN:      "localhost:6379",
	})
	if cfg.UserID != "me@example.com" || cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("identity = %q / %q", cfg.UserID, cfg.Provider.Model)
	}
	if !cfg.Approval.Disabled {
		t.Error("approval should be disabled")
	}
	if cfg.Checkpoint.Driver != "redis" || cfg.Checkpoint.Addr != "localhost:6379" || cfg.Checkpoint.DSN != "" {
		t.Errorf("checkpoint = %+v", cfg.Checkpoint)
	}

	applyOnboard(cfg, onboardAnswers{Approval: approvalAll, Driver: "sqlite", DSN: "/tmp/x.db"})
	if cfg.Approval.Disabled || strings.Join(cfg.Approval.Tools, ",") != "*" {
		t.Errorf("approval = %+v", cfg.Approval)
	}
	if cfg.Checkpoint.DSN != "/tmp/x.db" || cfg.Checkpoint.Addr != "" {
		t.Errorf("checkpoint = %+v", cfg.Checkpoint)
	}
}
