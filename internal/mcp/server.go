// Package mcp connects Model Context Protocol tool servers and exposes their
// tools to the agent.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mattn/go-shellwords"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "streamable-http"

	clientName = "hitlchat"
)

// ServerConfig describes how to reach one MCP server.
type ServerConfig struct {
	Name       string
	Transport  string // stdio (default when Command is set), sse, streamable-http
	Command    string
	Args       []string
	Env        map[string]string
	URL        string
	Headers    map[string]string
	TimeoutSec int
}

// Server is an initialized connection to an MCP server.
type Server struct {
	name       string
	client     *mcpclient.Client
	timeoutSec int
	connected  atomic.Bool
}

// Connect opens the transport named by cfg and performs the MCP handshake.
func Connect(ctx context.Context, cfg ServerConfig, version string) (*Server, error) {
	c, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: %w", cfg.Name, err)
	}
	s, err := Attach(ctx, cfg.Name, c, cfg.TimeoutSec, version)
	if err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

// CommandLine returns the program and arguments of a stdio server. A
// command given without args is split with shell quoting rules, so
// "npx -y @scope/server" works as a single string.
func CommandLine(cfg ServerConfig) (string, []string, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return "", nil, fmt.Errorf("stdio transport requires a command")
	}
	if len(cfg.Args) > 0 {
		return cfg.Command, cfg.Args, nil
	}
	words, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return "", nil, fmt.Errorf("parse command %q: %w", cfg.Command, err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("stdio transport requires a command")
	}
	return words[0], words[1:], nil
}

func newClient(ctx context.Context, cfg ServerConfig) (*mcpclient.Client, error) {
	kind := cfg.Transport
	if kind == "" {
		if cfg.Command != "" {
			kind = TransportStdio
		} else {
			kind = TransportHTTP
		}
	}

	switch kind {
	case TransportStdio:
		command, args, err := CommandLine(cfg)
		if err != nil {
			return nil, err
		}
		// The stdio client spawns the process itself.
		return mcpclient.NewStdioMCPClient(command, envList(cfg.Env), args...)
	case TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		c, err := mcpclient.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("start sse: %w", err)
		}
		return c, nil
	case TransportHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("streamable-http transport requires a url")
		}
		c, err := mcpclient.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("start streamable-http: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// Attach initializes an already started client.
func Attach(ctx context.Context, name string, c *mcpclient.Client, timeoutSec int, version string) (*Server, error) {
	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: clientName, Version: version}

	res, err := c.Initialize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: initialize: %w", name, err)
	}

	s := &Server{name: name, client: c, timeoutSec: timeoutSec}
	s.connected.Store(true)
	slog.Info("mcp: server connected", "server", name, "remote", res.ServerInfo.Name, "protocol", res.ProtocolVersion)
	return s, nil
}

func (s *Server) Name() string { return s.name }

// Tools lists the server's tools wrapped as BridgeTools.
func (s *Server) Tools(ctx context.Context) ([]*BridgeTool, error) {
	res, err := s.client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: list tools: %w", s.name, err)
	}
	out := make([]*BridgeTool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, NewBridgeTool(s.name, t, s.client, s.timeoutSec, &s.connected))
	}
	return out, nil
}

// Close disconnects; bridge tools of this server fail afterwards.
func (s *Server) Close() error {
	if !s.connected.Swap(false) {
		return nil
	}
	return s.client.Close()
}
