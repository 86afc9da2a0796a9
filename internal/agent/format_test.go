package agent

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

func TestFormatMessage(t *testing.T) {
	out := FormatMessage(providers.Message{
		Role:    providers.RoleAssistant,
		Content: "Drafting your post.",
		ToolCalls: []providers.ToolCall{{
			ID:        "call_1",
			Name:      "Linkedin_CreateTextPost",
			Arguments: map[string]any{"text": "Hello", "visibility": 1},
		}},
	})

	lines := strings.Split(out, "\n")
	if len(lines[0]) != headerWidth || !strings.Contains(lines[0], " Ai Message ") {
		t.Errorf("bad banner %q", lines[0])
	}
	for _, want := range []string{"Drafting your post.", "Linkedin_CreateTextPost (call_1)", "text: Hello", "visibility: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatMessage_Tool(t *testing.T) {
	out := FormatMessage(providers.Message{Role: providers.RoleTool, Name: "Gmail_ListEmails", Content: "[]"})
	if !strings.Contains(out, "Tool Message") || !strings.Contains(out, "Name: Gmail_ListEmails") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
