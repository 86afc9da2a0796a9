package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

const headerWidth = 80

var roleTitles = map[string]string{
	providers.RoleSystem:    "System Message",
	providers.RoleUser:      "Human Message",
	providers.RoleAssistant: "Ai Message",
	providers.RoleTool:      "Tool Message",
}

// FormatMessage renders a message for the terminal: a centered role banner,
// the content, and any tool calls with their arguments.
func FormatMessage(m providers.Message) string {
	title, ok := roleTitles[m.Role]
	if !ok {
		title = "Message"
	}

	var b strings.Builder
	b.WriteString(banner(title))
	b.WriteString("\n")
	if m.Role == providers.RoleTool && m.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", m.Name)
	}
	if m.Content != "" {
		b.WriteString("\n")
		b.WriteString(m.Content)
	}

	if len(m.ToolCalls) > 0 {
		b.WriteString("\nTool Calls:")
		for _, tc := range m.ToolCalls {
			fmt.Fprintf(&b, "\n  %s (%s)", tc.Name, tc.ID)
			fmt.Fprintf(&b, "\n Call ID: %s", tc.ID)
			b.WriteString("\n  Args:")
			keys := make([]string, 0, len(tc.Arguments))
			for k := range tc.Arguments {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "\n    %s: %s", k, formatArg(tc.Arguments[k]))
			}
		}
	}
	return b.String()
}

func banner(title string) string {
	t := " " + title + " "
	pad := headerWidth - len(t)
	if pad < 2 {
		return t
	}
	left := pad / 2
	return strings.Repeat("=", left) + t + strings.Repeat("=", pad-left)
}

func formatArg(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
