package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hitlchat/internal/config"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store API keys in the OS keyring",
		Long: `Store API keys in the OS keyring. Keys from the config file or the
environment (OPENAI_API_KEY, ARCADE_API_KEY) take precedence.`,
	}
	cmd.AddCommand(authSetCmd())
	cmd.AddCommand(authClearCmd())
	return cmd
}

func authSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set [openai|arcade]",
		Short:     "Save an API key",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.SecretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var (
				value string
				err   error
			)
			if isatty.IsTerminal(os.Stdin.Fd()) {
				value, err = promptPassword(cmd.Context(), fmt.Sprintf("%s API key", name), "Stored in the OS keyring")
			} else {
				value, err = bufio.NewReader(os.Stdin).ReadString('\n')
				if value != "" {
					err = nil
				}
			}
			if err != nil {
				return err
			}

			value = strings.TrimSpace(value)
			if value == "" {
				return fmt.Errorf("empty %s API key", name)
			}
			if err := config.SetSecret(name, value); err != nil {
				return err
			}
			fmt.Printf("Saved %s API key.\n", name)
			return nil
		},
	}
}

func authClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [openai|arcade]",
		Short:     "Remove a stored API key",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: config.SecretNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteSecret(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s API key.\n", args[0])
			return nil
		},
	}
}
