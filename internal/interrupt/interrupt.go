// Package interrupt models the pause points an agent run raises before a
// sensitive tool call, and the gate that turns each one into a decision.
package interrupt

import (
	"encoding/json"
	"fmt"
)

// Kind is the resolved discriminant of an interrupt payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindHumanApproval
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization_required"
	case KindHumanApproval:
		return "hitl_required"
	default:
		return "unknown"
	}
}

// AuthorizationResponse is the handle of a pending out-of-band authorization.
type AuthorizationResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status,omitempty"`
}

// Payload is the wire-level value carried by an interrupt. Which flag is set
// decides how the gate handles it.
type Payload struct {
	AuthorizationRequired bool                   `json:"authorization_required,omitempty"`
	HITLRequired          bool                   `json:"hitl_required,omitempty"`
	ToolName              string                 `json:"tool_name,omitempty"`
	AuthorizationResponse *AuthorizationResponse `json:"authorization_response,omitempty"`
	Input                 map[string]any         `json:"input,omitempty"`
}

// Kind resolves the payload discriminant. Authorization wins when both flags
// are set; a payload with neither flag is KindUnknown.
func (p Payload) Kind() Kind {
	switch {
	case p.AuthorizationRequired:
		return KindAuthorization
	case p.HITLRequired:
		return KindHumanApproval
	default:
		return KindUnknown
	}
}

// Interrupt is one suspension point inside an agent invocation.
type Interrupt struct {
	ID    string  `json:"id,omitempty"`
	Value Payload `json:"value"`
}

// Authorization builds an authorization_required interrupt.
func Authorization(id, toolName string, handle AuthorizationResponse) Interrupt {
	return Interrupt{
		ID: id,
		Value: Payload{
			AuthorizationRequired: true,
			ToolName:              toolName,
			AuthorizationResponse: &handle,
		},
	}
}

// HumanApproval builds a hitl_required interrupt.
func HumanApproval(id, toolName string, input map[string]any) Interrupt {
	return Interrupt{
		ID: id,
		Value: Payload{
			HITLRequired: true,
			ToolName:     toolName,
			Input:        input,
		},
	}
}

// Parse decodes a raw interrupt value into an Interrupt.
func Parse(id string, raw []byte) (Interrupt, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Interrupt{}, fmt.Errorf("decode interrupt %q: %w", id, err)
	}
	return Interrupt{ID: id, Value: p}, nil
}

// Decision is the outcome for exactly one interrupt.
type Decision struct {
	Authorized bool `json:"authorized"`
}

var (
	Approved = Decision{Authorized: true}
	Denied   = Decision{Authorized: false}
)
