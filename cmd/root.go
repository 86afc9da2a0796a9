// Package cmd implements the hitlchat command line.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

const (
	envConfigPath     = "HITLCHAT_CONFIG"
	defaultConfigPath = "hitlchat.json5"
)

var (
	cfgFile string
	verbose bool
)

func rootCmd() *cobra.Command {
	var opts chatOptions
	root := &cobra.Command{
		Use:   "hitlchat",
		Short: "Terminal chat agent that asks before it acts",
		Long: `hitlchat chats with an LLM agent that can call hosted tools on your behalf.
Tools that need your account are authorized in the browser first, and every
sensitive tool call waits for your approval.

Running hitlchat with no subcommand starts the chat.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging("")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (JSON5 or YAML; env "+envConfigPath+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	addChatFlags(root, &opts)

	root.AddCommand(chatCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(authCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(onboardCmd())
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	return defaultConfigPath
}

// setupLogging installs a text handler on stderr. --verbose wins over level.
func setupLogging(level string) {
	lvl := parseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

