// Package config loads hitlchat settings from a JSON5 or YAML file, the
// environment and the OS keyring, in that order of precedence (last wins).
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/hitlchat/internal/agent"
	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

var (
	ErrMissingUserID = errors.New("missing ARCADE_USER_ID: set it in the environment or user_id in the config file")
	ErrMissingModel  = errors.New("missing OPENAI_MODEL: set it in the environment or provider.model in the config file")
)

const (
	DefaultToolLimit = 100
	maskedSecret     = "********"
)

// DefaultSystemPrompt is used when agent.system_prompt is empty.
const DefaultSystemPrompt = `You are a helpful assistant that completes tasks for the user with the tools you are given.
Think step by step. Ask a short clarifying question when the request is ambiguous.
Before any action that publishes, sends or changes something on the user's behalf, show exactly what you will do and ask for confirmation.
If a tool call is denied or fails, explain what happened and offer alternatives.`

// Config is the full hitlchat configuration.
type Config struct {
	// UserID identifies who authorizes each tool service.
	UserID   string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`

	Provider   ProviderConfig       `json:"provider" yaml:"provider"`
	Agent      AgentConfig          `json:"agent" yaml:"agent"`
	Approval   agent.ApprovalConfig `json:"approval" yaml:"approval"`
	Arcade     ArcadeConfig         `json:"arcade" yaml:"arcade"`
	MCP        MCPConfig            `json:"mcp" yaml:"mcp"`
	Tools      ToolsConfig          `json:"tools" yaml:"tools"`
	Checkpoint checkpoint.Config    `json:"checkpoint" yaml:"checkpoint"`
	Telemetry  tracing.Config       `json:"telemetry" yaml:"telemetry"`
	Log        LogConfig            `json:"log" yaml:"log"`
}

// ProviderConfig points at an OpenAI-compatible chat completion API.
type ProviderConfig struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIBase string `json:"api_base,omitempty" yaml:"api_base,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
}

type AgentConfig struct {
	SystemPrompt    string            `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxIterations   int               `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	InjectionAction string            `json:"injection_action,omitempty" yaml:"injection_action,omitempty"` // log, warn, block, off
	Prune           agent.PruneConfig `json:"prune" yaml:"prune"`
}

// ArcadeConfig selects the hosted tools offered to the model.
type ArcadeConfig struct {
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Toolkits []string `json:"toolkits,omitempty" yaml:"toolkits,omitempty"`
	Tools    []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Limit    int      `json:"limit,omitempty" yaml:"limit,omitempty"`
	// AuthTimeoutSeconds bounds the wait for a browser authorization.
	AuthTimeoutSeconds int `json:"auth_timeout_seconds,omitempty" yaml:"auth_timeout_seconds,omitempty"`
}

// MCPServerConfig describes one MCP tool server.
type MCPServerConfig struct {
	Transport string            `json:"transport,omitempty" yaml:"transport,omitempty"` // stdio (default), sse, streamable-http
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Enabled   *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the server should be connected. Default true.
func (s MCPServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type MCPConfig struct {
	Servers map[string]MCPServerConfig `json:"servers,omitempty" yaml:"servers,omitempty"`
}

type ToolsConfig struct {
	// RateLimitPerHour caps tool executions per user; 0 disables the cap.
	RateLimitPerHour int   `json:"rate_limit_per_hour,omitempty" yaml:"rate_limit_per_hour,omitempty"`
	Scrub            *bool `json:"scrub,omitempty" yaml:"scrub,omitempty"`
}

// ScrubEnabled reports whether tool output is scrubbed. Default true.
func (t ToolsConfig) ScrubEnabled() bool {
	return t.Scrub == nil || *t.Scrub
}

type LogConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"` // debug, info, warn, error
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		ThreadID: DefaultThreadID,
		Provider: ProviderConfig{Name: "openai"},
		Agent: AgentConfig{
			SystemPrompt:    DefaultSystemPrompt,
			MaxIterations:   10,
			InjectionAction: "warn",
		},
		Arcade: ArcadeConfig{
			Toolkits:           []string{"Linkedin"},
			Limit:              DefaultToolLimit,
			AuthTimeoutSeconds: 600,
		},
		Checkpoint: checkpoint.Config{Driver: "memory"},
		Log:        LogConfig{Level: "info"},
	}
}

// Load builds the effective config: defaults, then the file at path (if
// path is non-empty and exists), then environment overrides. Secrets from the
// keyring are applied separately by ResolveSecrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// no file: defaults + env
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.ThreadID = NormalizeThreadID(cfg.ThreadID)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json5.Unmarshal(data, cfg)
	}
}

// ApplyEnvOverrides copies well-known environment variables over the
// config. Empty variables are ignored.
func (c *Config) ApplyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	envStr("ARCADE_USER_ID", &c.UserID)
	envStr("ARCADE_API_KEY", &c.Arcade.APIKey)
	envStr("ARCADE_BASE_URL", &c.Arcade.BaseURL)
	envStr("OPENAI_MODEL", &c.Provider.Model)
	envStr("OPENAI_API_KEY", &c.Provider.APIKey)
	envStr("OPENAI_BASE_URL", &c.Provider.APIBase)
	envStr("HITLCHAT_THREAD_ID", &c.ThreadID)
	envStr("HITLCHAT_CHECKPOINT_DRIVER", &c.Checkpoint.Driver)
	envStr("HITLCHAT_CHECKPOINT_DSN", &c.Checkpoint.DSN)
	envStr("HITLCHAT_CHECKPOINT_KEY", &c.Checkpoint.EncryptionKey)
	envStr("HITLCHAT_LOG_LEVEL", &c.Log.Level)
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, ErrMissingUserID)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		errs = append(errs, ErrMissingModel)
	}
	if c.Arcade.Limit < 0 {
		errs = append(errs, fmt.Errorf("arcade.limit must not be negative, got %d", c.Arcade.Limit))
	}
	return errors.Join(errs...)
}

// MaskedCopy returns a copy with secrets replaced, safe to print.
func (c *Config) MaskedCopy() *Config {
	cp := *c
	if cp.Provider.APIKey != "" {
		cp.Provider.APIKey = maskedSecret
	}
	if cp.Arcade.APIKey != "" {
		cp.Arcade.APIKey = maskedSecret
	}
	if cp.Checkpoint.Password != "" {
		cp.Checkpoint.Password = maskedSecret
	}
	if cp.Checkpoint.EncryptionKey != "" {
		cp.Checkpoint.EncryptionKey = maskedSecret
	}
	return &cp
}

// Hash fingerprints the effective config, secrets excluded.
func (c *Config) Hash() string {
	data, _ := json.Marshal(c.MaskedCopy())
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
