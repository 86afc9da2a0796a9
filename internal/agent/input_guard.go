package agent

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// GuardAction is what the input guard does when a message matches.
// Configured via agent.injection_action:
//   - "log":   info-level logging (quiet)
//   - "warn":  warning-level logging (default)
//   - "block": reject the message with ErrInputBlocked
//   - "off":   disable scanning entirely
type GuardAction string

const (
	GuardLog   GuardAction = "log"
	GuardWarn  GuardAction = "warn"
	GuardBlock GuardAction = "block"
	GuardOff   GuardAction = "off"
)

// ParseGuardAction maps a config value to an action. Empty means warn.
func ParseGuardAction(s string) (GuardAction, error) {
	switch a := GuardAction(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return GuardWarn, nil
	case GuardLog, GuardWarn, GuardBlock, GuardOff:
		return a, nil
	default:
		return "", fmt.Errorf("unknown injection action %q", s)
	}
}

// guardPattern pairs a human-readable name with a compiled regex.
type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// InputGuard scans user input for known prompt injection patterns.
type InputGuard struct {
	patterns []guardPattern
	action   GuardAction
}

// NewInputGuard creates an InputGuard with the default set of injection detection patterns.
func NewInputGuard(action GuardAction) *InputGuard {
	if action == "" {
		action = GuardWarn
	}
	return &InputGuard{
		patterns: defaultGuardPatterns(),
		action:   action,
	}
}

// Check applies the configured action to message. Only GuardBlock returns an
// error; the other actions log and let the message through.
func (g *InputGuard) Check(threadID, message string) error {
	if g == nil || g.action == GuardOff {
		return nil
	}
	matches := g.Scan(message)
	if len(matches) == 0 {
		return nil
	}

	switch g.action {
	case GuardLog:
		slog.Info("security.injection_detected", "thread", threadID, "patterns", matches)
	case GuardBlock:
		slog.Warn("security.injection_blocked", "thread", threadID, "patterns", matches)
		return fmt.Errorf("%w: %s", ErrInputBlocked, strings.Join(matches, ", "))
	default:
		slog.Warn("security.injection_detected", "thread", threadID, "patterns", matches)
	}
	return nil
}

// Scan checks a message against all known injection patterns.
// Returns the names of matched patterns (empty slice = no matches).
func (g *InputGuard) Scan(message string) []string {
	if message == "" {
		return nil
	}
	var matches []string
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(message) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

// defaultGuardPatterns returns the built-in set of injection detection patterns.
func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are|imagine you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "null_bytes",
			pattern: regexp.MustCompile(`\x00`),
		},
		{
			name:    "delimiter_escape",
			pattern: regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`),
		},
	}
}

// HasPatterns returns true if the guard has any patterns configured.
func (g *InputGuard) HasPatterns() bool {
	return len(g.patterns) > 0
}

// PatternNames returns the names of all configured patterns.
func (g *InputGuard) PatternNames() []string {
	names := make([]string, len(g.patterns))
	for i, gp := range g.patterns {
		names[i] = gp.name
	}
	return names
}

// ContainsNullBytes is a fast check for null bytes without regex overhead.
func ContainsNullBytes(s string) bool {
	return strings.ContainsRune(s, 0)
}
