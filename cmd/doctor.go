package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) {
	fmt.Println("hitlchat doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults and environment)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := validateAll(cfg); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  Problem:  %s\n", line)
		}
	}

	fmt.Println()
	fmt.Println("  Identity:")
	checkValue("User", cfg.UserID)
	checkValue("Model", cfg.Provider.Model)
	checkValue("Thread", cfg.ThreadID)

	fmt.Println()
	fmt.Println("  API keys:")
	checkKey("OpenAI", cfg.Provider.APIKey)
	checkKey("Arcade", cfg.Arcade.APIKey)

	fmt.Println()
	fmt.Printf("  Checkpoints: %s", cfg.Checkpoint.Driver)
	if store, err := checkpoint.Open(cmd.Context(), cfg.Checkpoint); err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
	} else {
		if cps, err := store.List(cmd.Context()); err != nil {
			fmt.Printf(" (ERROR: %s)\n", err)
		} else {
			fmt.Printf(" (OK, %d threads)\n", len(cps))
		}
		store.Close()
	}

	if len(cfg.MCP.Servers) > 0 {
		fmt.Println()
		fmt.Println("  MCP servers:")
		for _, s := range mcpServers(cfg) {
			checkMCPServer(s)
		}
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkValue(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	fmt.Printf("    %-12s %s\n", name+":", value)
}

func checkKey(name, apiKey string) {
	if apiKey == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	fmt.Printf("    %-12s %s\n", name+":", maskKey(apiKey))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func checkMCPServer(s mcp.ServerConfig) {
	name := s.Name
	if s.Command == "" {
		fmt.Printf("    %-12s %s\n", name+":", s.URL)
		return
	}
	command, _, err := mcp.CommandLine(s)
	if err != nil {
		fmt.Printf("    %-12s %v\n", name+":", err)
		return
	}
	path, err := exec.LookPath(command)
	if err != nil {
		fmt.Printf("    %-12s %s NOT FOUND\n", name+":", command)
		return
	}
	fmt.Printf("    %-12s %s\n", name+":", path)
}
