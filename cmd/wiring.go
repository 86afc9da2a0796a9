package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/arcade"
	"github.com/nextlevelbuilder/hitlchat/internal/catalog"
	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/config"
	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

// loadConfig loads the effective config and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ResolveSecrets()
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

// newArcadeClient returns nil when no Arcade API key is configured.
func newArcadeClient(cfg *config.Config) *arcade.Client {
	if cfg.Arcade.APIKey == "" {
		slog.Warn("ARCADE_API_KEY not set, Arcade tools disabled")
		return nil
	}
	return arcade.NewClient(arcade.ClientConfig{
		APIKey:      cfg.Arcade.APIKey,
		BaseURL:     cfg.Arcade.BaseURL,
		UserID:      cfg.UserID,
		AuthTimeout: time.Duration(cfg.Arcade.AuthTimeoutSeconds) * time.Second,
	})
}

func mcpServers(cfg *config.Config) []mcp.ServerConfig {
	var out []mcp.ServerConfig
	for name, s := range cfg.MCP.Servers {
		if !s.IsEnabled() {
			continue
		}
		out = append(out, mcp.ServerConfig{
			Name:      name,
			Transport: s.Transport,
			Command:   s.Command,
			Args:      s.Args,
			Env:       s.Env,
			URL:       s.URL,
			Headers:   s.Headers,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func newFetcher(cfg *config.Config, client *arcade.Client) catalog.Multi {
	var m catalog.Multi
	if client != nil {
		m = append(m, catalog.NewArcadeFetcher(client))
	}
	if servers := mcpServers(cfg); len(servers) > 0 {
		m = append(m, catalog.NewMCPFetcher(servers, func(ctx context.Context, sc mcp.ServerConfig) (*mcp.Server, error) {
			return mcp.Connect(ctx, sc, Version)
		}))
	}
	return m
}

func catalogOptions(cfg *config.Config) catalog.Options {
	return catalog.Options{
		Toolkits: cfg.Arcade.Toolkits,
		Tools:    cfg.Arcade.Tools,
		UserID:   cfg.UserID,
		Limit:    cfg.Arcade.Limit,
	}
}

func newRegistry(cfg *config.Config) *tools.Registry {
	reg := tools.NewRegistry()
	reg.SetScrubbing(cfg.Tools.ScrubEnabled())
	if rl := tools.NewRateLimiter(cfg.Tools.RateLimitPerHour); rl != nil {
		reg.SetRateLimiter(rl)
	}
	return reg
}

func newGraph(cfg *config.Config, reg *tools.Registry, store checkpoint.Store) (*agent.Graph, error) {
	policy, err := agent.NewApprovalPolicy(cfg.Approval)
	if err != nil {
		return nil, fmt.Errorf("approval policy: %w", err)
	}
	action, err := agent.ParseGuardAction(cfg.Agent.InjectionAction)
	if err != nil {
		return nil, err
	}

	prompt := cfg.Agent.SystemPrompt
	if prompt == "" {
		prompt = config.DefaultSystemPrompt
	}

	return agent.NewGraph(agent.GraphConfig{
		Provider:      providers.NewOpenAIProvider(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model),
		Model:         cfg.Provider.Model,
		SystemPrompt:  prompt,
		Temperature:   cfg.Agent.Temperature,
		Tools:         reg,
		Store:         store,
		Approval:      policy,
		Guard:         agent.NewInputGuard(action),
		Prune:         cfg.Agent.Prune,
		MaxIterations: cfg.Agent.MaxIterations,
		RateKey:       cfg.UserID,
	})
}

// watchApproval swaps the graph's approval policy when the config file
// changes. An invalid policy keeps the current one.
func watchApproval(ctx context.Context, path string, g *agent.Graph) {
	err := config.Watch(ctx, path, func(next *config.Config) {
		p, err := agent.NewApprovalPolicy(next.Approval)
		if err != nil {
			slog.Warn("approval policy reload rejected", "error", err)
			return
		}
		g.SetApprovalPolicy(p)
		slog.Info("approval policy reloaded", "tools", next.Approval.Tools, "expression", next.Approval.Expression != "")
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "path", path, "error", err)
	}
}
