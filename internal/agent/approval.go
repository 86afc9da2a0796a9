package agent

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/google/cel-go/cel"
)

// ApprovalConfig decides which tool calls need a human yes/no before running.
type ApprovalConfig struct {
	// Tools are glob patterns over tool names. Empty means every tool.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Expression is an optional CEL boolean over `tool` (string) and
	// `input` (map). When set, a call matching Tools needs approval only if
	// it evaluates to true.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
	// Disabled turns approval off entirely.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ApprovalPolicy is a compiled ApprovalConfig.
type ApprovalPolicy struct {
	patterns []string
	program  cel.Program
	disabled bool
}

// NewApprovalPolicy validates patterns and compiles the expression.
func NewApprovalPolicy(cfg ApprovalConfig) (*ApprovalPolicy, error) {
	patterns := cfg.Tools
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("approval pattern %q: %w", p, err)
		}
	}

	policy := &ApprovalPolicy{patterns: patterns, disabled: cfg.Disabled}
	if cfg.Expression == "" {
		return policy, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("approval env: %w", err)
	}
	ast, iss := env.Compile(cfg.Expression)
	if iss.Err() != nil {
		return nil, fmt.Errorf("approval expression: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("approval expression must be boolean, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("approval program: %w", err)
	}
	policy.program = prg
	return policy, nil
}

// Requires reports whether a call to toolName with input needs approval.
// An expression that fails to evaluate requires approval.
func (p *ApprovalPolicy) Requires(toolName string, input map[string]any) bool {
	if p == nil || p.disabled {
		return false
	}
	if !p.matches(toolName) {
		return false
	}
	if p.program == nil {
		return true
	}

	if input == nil {
		input = map[string]any{}
	}
	out, _, err := p.program.Eval(map[string]any{"tool": toolName, "input": input})
	if err != nil {
		slog.Warn("approval expression failed, requiring approval", "tool", toolName, "error", err)
		return true
	}
	b, ok := out.Value().(bool)
	return !ok || b
}

func (p *ApprovalPolicy) matches(name string) bool {
	for _, pat := range p.patterns {
		if ok, _ := path.Match(pat, name); ok {
			return true
		}
	}
	return false
}
