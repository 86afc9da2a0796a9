package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/hitlchat/internal/arcade"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

const fetchConcurrency = 4

// ArcadeFetcher loads hosted tools bound to the client's user.
type ArcadeFetcher struct {
	client *arcade.Client
}

func NewArcadeFetcher(client *arcade.Client) *ArcadeFetcher {
	return &ArcadeFetcher{client: client}
}

// Fetch requests every toolkit and every isolated tool concurrently. Results
// keep option order: toolkits first, then tools.
func (f *ArcadeFetcher) Fetch(ctx context.Context, opts Options) ([]tools.Tool, error) {
	if opts.UserID != "" && opts.UserID != f.client.UserID() {
		return nil, fmt.Errorf("catalog: user %q does not match the arcade client user %q", opts.UserID, f.client.UserID())
	}

	slots := make([][]providers.ToolDefinition, len(opts.Toolkits)+len(opts.Tools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, toolkit := range opts.Toolkits {
		g.Go(func() error {
			defs, err := f.client.ListTools(gctx, toolkit, opts.Limit)
			if err != nil {
				return err
			}
			slots[i] = defs
			return nil
		})
	}
	for j, name := range opts.Tools {
		i := len(opts.Toolkits) + j
		g.Go(func() error {
			def, err := f.client.GetTool(gctx, name)
			if err != nil {
				return err
			}
			slots[i] = []providers.ToolDefinition{def}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var out []tools.Tool
	for _, defs := range slots {
		for _, def := range defs {
			if def.Function.Name == "" {
				continue
			}
			out = append(out, arcade.NewTool(f.client, def))
		}
	}
	out = dedupe(out)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	slog.Info("catalog: arcade tools loaded", "count", len(out), "toolkits", opts.Toolkits, "tools", opts.Tools)
	return out, nil
}
