package agent

import (
	"fmt"
	"unicode/utf8"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

const (
	defaultKeepLastAssistants = 3
	defaultToolResultMaxChars = 4000
	defaultTrimHeadChars      = 1500
	defaultTrimTailChars      = 1500
)

// PruneConfig bounds how much old tool output is replayed to the model.
// Tool results that precede the last KeepLastAssistants assistant messages
// and exceed MaxChars keep only their head and tail.
type PruneConfig struct {
	KeepLastAssistants int `json:"keep_last_assistants,omitempty" yaml:"keep_last_assistants,omitempty"`
	MaxChars           int `json:"max_chars,omitempty" yaml:"max_chars,omitempty"`
	HeadChars          int `json:"head_chars,omitempty" yaml:"head_chars,omitempty"`
	TailChars          int `json:"tail_chars,omitempty" yaml:"tail_chars,omitempty"`
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.KeepLastAssistants <= 0 {
		c.KeepLastAssistants = defaultKeepLastAssistants
	}
	if c.MaxChars <= 0 {
		c.MaxChars = defaultToolResultMaxChars
	}
	if c.HeadChars <= 0 {
		c.HeadChars = defaultTrimHeadChars
	}
	if c.TailChars <= 0 {
		c.TailChars = defaultTrimTailChars
	}
	return c
}

// pruneToolResults returns msgs with old oversized tool results trimmed.
// The stored history is never modified; a copy is made on first change.
func pruneToolResults(msgs []providers.Message, cfg PruneConfig) []providers.Message {
	cfg = cfg.withDefaults()

	cutoff := findAssistantCutoff(msgs, cfg.KeepLastAssistants)
	if cutoff < 0 {
		return msgs
	}

	var result []providers.Message
	for i := 0; i < cutoff; i++ {
		msg := msgs[i]
		if msg.Role != providers.RoleTool {
			continue
		}
		n := utf8.RuneCountInString(msg.Content)
		if n <= cfg.MaxChars {
			continue
		}

		if result == nil {
			result = make([]providers.Message, len(msgs))
			copy(result, msgs)
		}
		trimmed := fmt.Sprintf("%s\n...\n%s\n\n[Tool result trimmed: kept first %d chars and last %d chars of %d chars.]",
			takeHead(msg.Content, cfg.HeadChars), takeTail(msg.Content, cfg.TailChars), cfg.HeadChars, cfg.TailChars, n)
		result[i].Content = trimmed
	}

	if result == nil {
		return msgs
	}
	return result
}

// findAssistantCutoff returns the index of the Nth-from-last assistant message.
// Messages at or after this index are protected from pruning.
// Returns -1 if not enough assistant messages exist.
func findAssistantCutoff(msgs []providers.Message, keepLast int) int {
	remaining := keepLast
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == providers.RoleAssistant {
			remaining--
			if remaining == 0 {
				return i
			}
		}
	}
	return -1
}

// takeHead returns the first n runes of s.
func takeHead(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// takeTail returns the last n runes of s.
func takeTail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
