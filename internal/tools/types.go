package tools

import (
	"context"

	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

// Tool is the interface every invocable action implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}

// Authorization is the state of a tool's out-of-band authorization for the
// current user.
type Authorization struct {
	ID     string
	URL    string
	Status string
}

// Completed reports whether the user has already granted access.
func (a *Authorization) Completed() bool {
	return a != nil && a.Status == "completed"
}

// Authorizable tools need the user to grant access before they execute.
type Authorizable interface {
	Tool
	Authorize(ctx context.Context) (*Authorization, error)
}

// ToDefinition converts a Tool to a providers.ToolDefinition for LLM APIs.
func ToDefinition(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
