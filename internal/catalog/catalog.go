// Package catalog assembles the tools offered to the model from Arcade
// toolkits and MCP servers.
package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

// Options selects which tools to fetch.
type Options struct {
	// Toolkits are fetched whole (Arcade toolkit names or MCP server names).
	Toolkits []string
	// Tools are fetched individually.
	Tools  []string
	UserID string
	// Limit caps the number of tools per toolkit and overall; 0 means no cap.
	Limit int
}

// Fetcher retrieves a tool catalog.
type Fetcher interface {
	Fetch(ctx context.Context, opts Options) ([]tools.Tool, error)
}

// Multi concatenates the catalogs of several fetchers. The first tool with
// a given name wins.
type Multi []Fetcher

func (m Multi) Fetch(ctx context.Context, opts Options) ([]tools.Tool, error) {
	var out []tools.Tool
	for _, f := range m {
		list, err := f.Fetch(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return dedupe(out), nil
}

// Close closes every fetcher that holds connections.
func (m Multi) Close() error {
	var errs []error
	for _, f := range m {
		if c, ok := f.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func dedupe(list []tools.Tool) []tools.Tool {
	seen := make(map[string]bool, len(list))
	out := list[:0:0]
	for _, t := range list {
		if seen[t.Name()] {
			slog.Debug("catalog: duplicate tool skipped", "tool", t.Name())
			continue
		}
		seen[t.Name()] = true
		out = append(out, t)
	}
	return out
}

// Register adds every tool to the registry and returns how many were added.
func Register(reg *tools.Registry, list []tools.Tool) int {
	for _, t := range list {
		reg.Register(t)
	}
	return len(list)
}
