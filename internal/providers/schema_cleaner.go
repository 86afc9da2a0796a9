package providers

import "strings"

// Gemini's OpenAI-compatible endpoint rejects these JSON Schema keys.
var geminiUnsupportedKeys = []string{"$ref", "$defs", "additionalProperties", "examples", "default"}

// CleanToolSchemas returns a copy of tools with schema fields the target
// model family rejects removed. The input slice is returned unchanged when no
// cleaning is needed.
func CleanToolSchemas(model string, tools []ToolDefinition) []ToolDefinition {
	removeKeys := unsupportedKeysForModel(model)
	if removeKeys == nil || len(tools) == 0 {
		return tools
	}

	cleaned := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		cleaned[i] = ToolDefinition{
			Type: t.Type,
			Function: ToolFunctionSchema{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  cleanSchema(t.Function.Parameters, removeKeys),
			},
		}
	}
	return cleaned
}

func unsupportedKeysForModel(model string) []string {
	m := strings.ToLower(model)
	if i := strings.LastIndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	if strings.HasPrefix(m, "gemini") {
		return geminiUnsupportedKeys
	}
	return nil
}

// cleanSchema recursively removes keys from a JSON Schema map.
func cleanSchema(schema map[string]any, removeKeys []string) map[string]any {
	if schema == nil {
		return nil
	}

	result := make(map[string]any, len(schema))
	for k, v := range schema {
		if shouldRemoveKey(k, removeKeys) {
			continue
		}

		switch val := v.(type) {
		case map[string]any:
			result[k] = cleanSchema(val, removeKeys)
		case []any:
			result[k] = cleanSchemaSlice(val, removeKeys)
		default:
			result[k] = v
		}
	}
	return result
}

// cleanSchemaSlice recurses into arrays ("anyOf", "oneOf", "allOf").
func cleanSchemaSlice(items []any, removeKeys []string) []any {
	result := make([]any, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]any); ok {
			result[i] = cleanSchema(m, removeKeys)
		} else {
			result[i] = item
		}
	}
	return result
}

func shouldRemoveKey(key string, removeKeys []string) bool {
	for _, rk := range removeKeys {
		if key == rk {
			return true
		}
	}
	return false
}
