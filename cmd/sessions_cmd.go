package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/config"
	"github.com/nextlevelbuilder/hitlchat/internal/console"
)

const lastMessageWidth = 50

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "View and manage conversation threads",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsResetCmd())
	return cmd
}

func openStore(ctx context.Context) (checkpoint.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return checkpoint.Open(ctx, cfg.Checkpoint)
}

type sessionEntry struct {
	ThreadID    string    `json:"thread_id"`
	Step        int       `json:"step"`
	Messages    int       `json:"messages"`
	Pending     int       `json:"pending"`
	LastMessage string    `json:"last_message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func sessionsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checkpointed threads, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			cps, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]sessionEntry, 0, len(cps))
			for _, cp := range cps {
				e := sessionEntry{ThreadID: cp.ThreadID, Step: cp.Step, UpdatedAt: cp.UpdatedAt}
				if sum, err := agent.Summarize(cp); err == nil {
					e.Messages, e.Pending, e.LastMessage = sum.Messages, sum.Interrupts, sum.LastUser
				}
				entries = append(entries, e)
			}
			printSessionEntries(entries, jsonOutput)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printSessionEntries(entries []sessionEntry, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(entries) == 0 {
		fmt.Println("No sessions found.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "THREAD\tMESSAGES\tPENDING\tUPDATED\tLAST MESSAGE\n")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			e.ThreadID, e.Messages, e.Pending,
			e.UpdatedAt.Local().Format("2006-01-02 15:04"),
			console.Truncate(e.LastMessage, lastMessageWidth))
	}
	tw.Flush()
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [thread]",
		Short: "Print a thread's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			threadID := config.NormalizeThreadID(args[0])
			cp, err := store.Get(cmd.Context(), threadID)
			if errors.Is(err, checkpoint.ErrNotFound) {
				return fmt.Errorf("no session %q", threadID)
			}
			if err != nil {
				return err
			}
			history, err := agent.History(*cp)
			if err != nil {
				return err
			}
			for _, m := range history {
				fmt.Println(agent.FormatMessage(m))
			}
			return nil
		},
	}
}

func sessionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [thread]",
		Short: "Delete a thread's checkpoint, including pending tool calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			threadID := config.NormalizeThreadID(args[0])
			if err := store.Delete(cmd.Context(), threadID); err != nil {
				if errors.Is(err, checkpoint.ErrNotFound) {
					return fmt.Errorf("no session %q", threadID)
				}
				return err
			}
			fmt.Printf("Reset session: %s\n", threadID)
			return nil
		},
	}
}
