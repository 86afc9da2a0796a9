package catalog

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

// ConnectFunc opens one MCP server.
type ConnectFunc func(ctx context.Context, cfg mcp.ServerConfig) (*mcp.Server, error)

// MCPFetcher connects configured MCP servers and exposes their tools. When
// Options.Toolkits names any configured server only those are used;
// otherwise every server is. A server that fails to connect is skipped.
type MCPFetcher struct {
	servers []mcp.ServerConfig
	connect ConnectFunc

	mu     sync.Mutex
	opened []*mcp.Server
}

func NewMCPFetcher(servers []mcp.ServerConfig, connect ConnectFunc) *MCPFetcher {
	sorted := slices.Clone(servers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &MCPFetcher{servers: sorted, connect: connect}
}

func (f *MCPFetcher) selected(toolkits []string) []mcp.ServerConfig {
	var named []mcp.ServerConfig
	for _, s := range f.servers {
		if slices.ContainsFunc(toolkits, func(tk string) bool { return strings.EqualFold(tk, s.Name) }) {
			named = append(named, s)
		}
	}
	if len(named) > 0 {
		return named
	}
	return f.servers
}

func (f *MCPFetcher) Fetch(ctx context.Context, opts Options) ([]tools.Tool, error) {
	servers := f.selected(opts.Toolkits)
	slots := make([][]*mcp.BridgeTool, len(servers))

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, cfg := range servers {
		g.Go(func() error {
			srv, err := f.connect(ctx, cfg)
			if err != nil {
				slog.Warn("catalog: mcp server unavailable", "server", cfg.Name, "error", err)
				return nil
			}
			f.track(srv)

			list, err := srv.Tools(ctx)
			if err != nil {
				slog.Warn("catalog: mcp list tools failed", "server", cfg.Name, "error", err)
				return nil
			}
			slots[i] = list
			return nil
		})
	}
	g.Wait()

	var out []tools.Tool
	for _, list := range slots {
		for _, t := range list {
			out = append(out, t)
		}
	}
	out = dedupe(out)
	slog.Info("catalog: mcp tools loaded", "servers", len(servers), "count", len(out))
	return out, nil
}

func (f *MCPFetcher) track(s *mcp.Server) {
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
}

// Close disconnects every server opened by Fetch.
func (f *MCPFetcher) Close() error {
	f.mu.Lock()
	opened := f.opened
	f.opened = nil
	f.mu.Unlock()

	for _, s := range opened {
		if err := s.Close(); err != nil {
			slog.Warn("catalog: mcp close failed", "server", s.Name(), "error", err)
		}
	}
	return nil
}
