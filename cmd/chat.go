package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hitlchat/internal/catalog"
	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/config"
	"github.com/nextlevelbuilder/hitlchat/internal/console"
	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/session"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

type chatOptions struct {
	thread    string
	model     string
	user      string
	newThread bool
}

func addChatFlags(cmd *cobra.Command, opts *chatOptions) {
	cmd.Flags().StringVarP(&opts.thread, "thread", "t", "", "conversation thread id (default from config)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "chat model (overrides OPENAI_MODEL)")
	cmd.Flags().StringVarP(&opts.user, "user", "u", "", "Arcade user id (overrides ARCADE_USER_ID)")
	cmd.Flags().BoolVar(&opts.newThread, "new", false, "start a fresh thread with a random id")
}

func chatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		Long: `Start the interactive chat. Type a message and press Enter; type exit to quit.

Examples:
  hitlchat chat
  hitlchat chat --thread work
  hitlchat chat --new --model gpt-4o-mini`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}
	addChatFlags(cmd, &opts)
	return cmd
}

func (o chatOptions) apply(cfg *config.Config) {
	if o.user != "" {
		cfg.UserID = o.user
	}
	if o.model != "" {
		cfg.Provider.Model = o.model
	}
	switch {
	case o.newThread:
		cfg.ThreadID = uuid.NewString()
	case o.thread != "":
		cfg.ThreadID = config.NormalizeThreadID(o.thread)
	}
}

func runChat(ctx context.Context, opts chatOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdown, err := tracing.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	store, err := checkpoint.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return err
	}
	defer store.Close()

	client := newArcadeClient(cfg)
	fetcher := newFetcher(cfg, client)
	defer fetcher.Close()

	list, err := fetcher.Fetch(ctx, catalogOptions(cfg))
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}
	reg := newRegistry(cfg)
	n := catalog.Register(reg, list)
	slog.Info("tools ready", "count", n, "thread", cfg.ThreadID, "model", cfg.Provider.Model)

	graph, err := newGraph(cfg, reg, store)
	if err != nil {
		return err
	}
	watchApproval(ctx, resolveConfigPath(), graph)

	con := console.New(os.Stdin, os.Stdout, os.Stderr)

	var confirm interrupt.Confirmer = con
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		confirm = huhConfirmer{}
	}
	var auth interrupt.Authorizer
	if client != nil {
		auth = client
	}
	gate := interrupt.NewGate(auth, confirm, con)

	return session.NewLoop(graph, gate, con, con, cfg.ThreadID).Run(ctx)
}
