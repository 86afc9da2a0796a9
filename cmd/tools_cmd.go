package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hitlchat/internal/console"
	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

const descriptionWidth = 60

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools offered to the agent",
	}
	cmd.AddCommand(toolsListCmd())
	return cmd
}

type toolListEntry struct {
	Name         string `json:"name"`
	Source       string `json:"source"`
	Authorizable bool   `json:"authorizable"`
	Description  string `json:"description,omitempty"`
}

func toolsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch and list the tool catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fetcher := newFetcher(cfg, newArcadeClient(cfg))
			defer fetcher.Close()
			list, err := fetcher.Fetch(cmd.Context(), catalogOptions(cfg))
			if err != nil {
				return err
			}

			entries := make([]toolListEntry, 0, len(list))
			for _, t := range list {
				entries = append(entries, toolEntry(t))
			}
			printToolEntries(entries, jsonOutput)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func toolEntry(t tools.Tool) toolListEntry {
	e := toolListEntry{Name: t.Name(), Source: "arcade", Description: t.Description()}
	if bt, ok := t.(*mcp.BridgeTool); ok {
		e.Source = "mcp:" + bt.ServerName()
	}
	_, e.Authorizable = t.(tools.Authorizable)
	return e
}

func printToolEntries(entries []toolListEntry, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}
	if len(entries) == 0 {
		fmt.Println("No tools available.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tSOURCE\tAUTH\tDESCRIPTION\n")
	for _, e := range entries {
		auth := "-"
		if e.Authorizable {
			auth = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Source, auth, console.Truncate(e.Description, descriptionWidth))
	}
	tw.Flush()
}
