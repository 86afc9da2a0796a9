package arcade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

// Tool exposes one hosted Arcade tool as a tools.Authorizable.
type Tool struct {
	client *Client
	def    providers.ToolFunctionSchema
}

func NewTool(client *Client, def providers.ToolDefinition) *Tool {
	return &Tool{client: client, def: def.Function}
}

func (t *Tool) Name() string        { return t.def.Name }
func (t *Tool) Description() string { return t.def.Description }

func (t *Tool) Parameters() map[string]any {
	if t.def.Parameters == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return t.def.Parameters
}

func (t *Tool) Authorize(ctx context.Context) (*tools.Authorization, error) {
	return t.client.Authorize(ctx, t.def.Name)
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) *tools.Result {
	res, err := t.client.Execute(ctx, t.def.Name, args)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("Arcade tool %s failed: %v", t.def.Name, err)).WithError(err)
	}
	if msg := res.ErrorMessage(); msg != "" {
		return tools.ErrorResult(fmt.Sprintf("Arcade tool %s returned an error: %s", t.def.Name, msg))
	}
	return tools.NewResult(formatValue(res.Output.Value))
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
