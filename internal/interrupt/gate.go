package interrupt

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/hitlchat/internal/tools"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

const approvalQuestion = "Do you approve this tool call?"

// Authorizer blocks until the authorization identified by id completes
// out-of-band. A non-nil error means it was rejected or timed out.
type Authorizer interface {
	WaitForCompletion(ctx context.Context, id string) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Notifier receives the user-facing lines the gate prints.
type Notifier interface {
	System(format string, args ...any)
	Error(format string, args ...any)
}

// Gate classifies one interrupt and produces one decision.
type Gate struct {
	auth    Authorizer
	confirm Confirmer
	out     Notifier
}

// NewGate wires a gate. auth may be nil when no tool needs out-of-band
// authorization; authorization interrupts are then denied.
func NewGate(auth Authorizer, confirm Confirmer, out Notifier) *Gate {
	return &Gate{auth: auth, confirm: confirm, out: out}
}

// Decide returns the decision for in. Only a failed confirmation prompt
// produces an error; every other failure is a denial.
func (g *Gate) Decide(ctx context.Context, in Interrupt) (Decision, error) {
	kind := in.Value.Kind()

	ctx, span := tracing.Tracer().Start(ctx, "interrupt.decide")
	defer span.End()
	span.SetAttributes(
		attribute.String("interrupt.kind", kind.String()),
		attribute.String("interrupt.tool", in.Value.ToolName),
	)

	var (
		d   Decision
		err error
	)
	switch kind {
	case KindAuthorization:
		d = g.authorize(ctx, in.Value)
	case KindHumanApproval:
		d, err = g.approve(ctx, in.Value)
	default:
		slog.Warn("interrupt: unknown kind, denying", "id", in.ID, "tool", in.Value.ToolName)
		d = Denied
	}
	if err != nil {
		tracing.RecordError(span, err)
		return Denied, err
	}

	span.SetAttributes(attribute.Bool("interrupt.authorized", d.Authorized))
	return d, nil
}

func (g *Gate) authorize(ctx context.Context, p Payload) Decision {
	handle := p.AuthorizationResponse
	if handle == nil || handle.ID == "" {
		slog.Warn("interrupt: authorization without handle, denying", "tool", p.ToolName)
		return Denied
	}

	g.out.System("Authorization required for tool call %s", p.ToolName)
	g.out.System("Please authorize in your browser %s", handle.URL)
	g.out.System("Waiting for you to complete authorization...")

	if g.auth == nil {
		g.out.Error("Error waiting for authorization to complete: no authorizer configured")
		return Denied
	}
	if err := g.auth.WaitForCompletion(ctx, handle.ID); err != nil {
		slog.Error("interrupt: authorization wait failed", "tool", p.ToolName, "id", handle.ID, "error", err)
		g.out.Error("Error waiting for authorization to complete: %v", err)
		return Denied
	}

	g.out.System("Authorization granted. Resuming execution...")
	return Approved
}

func (g *Gate) approve(ctx context.Context, p Payload) (Decision, error) {
	g.out.System("Human in the loop required for tool call %s", p.ToolName)
	g.out.System("Please approve the tool call %s", formatInput(p.Input))

	ok, err := g.confirm.Confirm(ctx, approvalQuestion)
	if err != nil {
		return Denied, err
	}
	return Decision{Authorized: ok}, nil
}

func formatInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "(unprintable input)"
	}
	return tools.ScrubCredentials(string(data))
}
