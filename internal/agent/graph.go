package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
	"github.com/nextlevelbuilder/hitlchat/internal/tracing"
)

const (
	defaultMaxIterations = 10

	NodeAgent = "agent"
	NodeTools = "tools"
)

// GraphConfig wires a Graph.
type GraphConfig struct {
	Provider     providers.Provider
	Model        string
	SystemPrompt string
	Temperature  *float64

	Tools    *tools.Registry
	Store    checkpoint.Store
	Approval *ApprovalPolicy
	Guard    *InputGuard
	Prune    PruneConfig

	// MaxIterations bounds model calls per invocation.
	MaxIterations int
	// RateKey is the rate-limit key for tool executions, usually the user id.
	RateKey string
}

// Graph is a ReAct agent: model, then tools, then model again until the
// model stops calling tools. Tool calls that need authorization or approval
// suspend the run; the next invocation resumes it from a decision list.
type Graph struct {
	cfg GraphConfig

	mu       sync.RWMutex
	approval *ApprovalPolicy
}

func NewGraph(cfg GraphConfig) (*Graph, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if cfg.Store == nil {
		cfg.Store = checkpoint.NewMemoryStore()
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Provider.DefaultModel()
	}
	return &Graph{cfg: cfg, approval: cfg.Approval}, nil
}

// SetApprovalPolicy swaps the approval policy. Calls already suspended keep
// the interrupt they raised.
func (g *Graph) SetApprovalPolicy(p *ApprovalPolicy) {
	g.mu.Lock()
	g.approval = p
	g.mu.Unlock()
}

func (g *Graph) approvalPolicy() *ApprovalPolicy {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.approval
}

// Stream starts one invocation on rc.ThreadID.
func (g *Graph) Stream(ctx context.Context, in Input, rc RunConfig) (Stream, error) {
	if rc.ThreadID == "" {
		return nil, fmt.Errorf("agent: thread id is required")
	}
	if rc.Mode != "" && rc.Mode != ModeUpdates {
		return nil, fmt.Errorf("agent: unsupported stream mode %q", rc.Mode)
	}
	if in.IsResume() && in.Resume.Len() == 0 {
		return nil, fmt.Errorf("%w: empty resume command", ErrDecisionMismatch)
	}

	return runStream(ctx, func(ctx context.Context, emit func(Chunk) error) error {
		ctx, span := tracing.Tracer().Start(ctx, "agent.invoke")
		defer span.End()
		span.SetAttributes(
			attribute.String("agent.thread", rc.ThreadID),
			attribute.Bool("agent.resume", in.IsResume()),
		)

		err := g.run(ctx, in, rc.ThreadID, emit)
		tracing.RecordError(span, err)
		return err
	}), nil
}

func (g *Graph) run(ctx context.Context, in Input, threadID string, emit func(Chunk) error) error {
	st, err := loadState(ctx, g.cfg.Store, threadID)
	if err != nil {
		return err
	}

	if in.IsResume() {
		if err := g.applyDecisions(ctx, st, in.Resume.Decisions()); err != nil {
			return err
		}
	} else {
		if err := g.cfg.Guard.Check(threadID, in.Text); err != nil {
			return err
		}
		g.cancelPending(threadID, st)
		st.Messages = append(st.Messages, providers.Message{Role: providers.RoleUser, Content: in.Text})
	}

	return g.loop(ctx, st, threadID, emit)
}

func (g *Graph) loop(ctx context.Context, st *threadState, threadID string, emit func(Chunk) error) error {
	for iteration := 0; ; iteration++ {
		if len(st.Pending) > 0 {
			if batch := st.interrupts(); len(batch) > 0 {
				if err := saveState(ctx, g.cfg.Store, threadID, st); err != nil {
					return err
				}
				slog.Debug("agent suspended", "thread", threadID, "interrupts", len(batch))
				return emit(Chunk{Kind: ChunkInterrupt, Interrupts: batch})
			}

			results := g.flush(st)
			if err := saveState(ctx, g.cfg.Store, threadID, st); err != nil {
				return err
			}
			if err := emit(Chunk{Kind: ChunkUpdates, Updates: []NodeUpdate{{Node: NodeTools, Messages: results}}}); err != nil {
				return err
			}
		}

		if iteration >= g.cfg.MaxIterations {
			if err := saveState(ctx, g.cfg.Store, threadID, st); err != nil {
				return err
			}
			return fmt.Errorf("%w (%d)", ErrMaxIterations, g.cfg.MaxIterations)
		}

		msg, err := g.callModel(ctx, st)
		if err != nil {
			return err
		}
		st.Messages = append(st.Messages, msg)
		if err := emit(Chunk{Kind: ChunkUpdates, Updates: []NodeUpdate{{Node: NodeAgent, Messages: []providers.Message{msg}}}}); err != nil {
			return err
		}

		if len(msg.ToolCalls) == 0 {
			return saveState(ctx, g.cfg.Store, threadID, st)
		}

		st.Pending = make([]*pendingCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			p := &pendingCall{Call: tc}
			g.evaluate(ctx, p)
			st.Pending[i] = p
		}
	}
}

func (g *Graph) callModel(ctx context.Context, st *threadState) (providers.Message, error) {
	ctx, span := tracing.Tracer().Start(ctx, "agent.llm")
	defer span.End()

	msgs := make([]providers.Message, 0, len(st.Messages)+1)
	if g.cfg.SystemPrompt != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: g.cfg.SystemPrompt})
	}
	msgs = append(msgs, pruneToolResults(st.Messages, g.cfg.Prune)...)

	resp, err := g.cfg.Provider.Chat(ctx, providers.ChatRequest{
		Model:       g.cfg.Model,
		Messages:    msgs,
		Tools:       g.cfg.Tools.Definitions(),
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		tracing.RecordError(span, err)
		return providers.Message{}, fmt.Errorf("model call: %w", err)
	}

	msg := resp.Message
	msg.Role = providers.RoleAssistant
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	span.SetAttributes(
		attribute.String("agent.model", g.cfg.Model),
		attribute.Int("agent.tool_calls", len(msg.ToolCalls)),
	)
	return msg, nil
}

// evaluate decides what happens to a tool call: authorization interrupt,
// approval interrupt, or immediate execution.
func (g *Graph) evaluate(ctx context.Context, p *pendingCall) {
	name := p.Call.Name
	tool, ok := g.cfg.Tools.Get(name)
	if !ok {
		p.Result = toolMessage(p.Call, "Error: unknown tool "+name)
		return
	}

	if !p.AuthChecked {
		if a, ok := tool.(tools.Authorizable); ok {
			auth, err := a.Authorize(ctx)
			if err != nil {
				slog.Error("tool authorization check failed", "tool", name, "error", err)
				p.Result = toolMessage(p.Call, fmt.Sprintf("Error: could not check authorization for %s: %v", name, err))
				return
			}
			if !auth.Completed() {
				in := interrupt.Authorization(uuid.NewString(), name, interrupt.AuthorizationResponse{
					ID:     auth.ID,
					URL:    auth.URL,
					Status: auth.Status,
				})
				p.Interrupt = &in
				return
			}
		}
		p.AuthChecked = true
	}

	if !p.Approved && g.approvalPolicy().Requires(name, p.Call.Arguments) {
		in := interrupt.HumanApproval(uuid.NewString(), name, p.Call.Arguments)
		p.Interrupt = &in
		return
	}

	g.execute(ctx, p)
}

func (g *Graph) execute(ctx context.Context, p *pendingCall) {
	ctx, span := tracing.Tracer().Start(ctx, "agent.tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", p.Call.Name))

	res := g.cfg.Tools.ExecuteFor(ctx, g.cfg.RateKey, p.Call.Name, p.Call.Arguments)
	if res.Err != nil {
		tracing.RecordError(span, res.Err)
	}
	span.SetAttributes(attribute.Bool("tool.is_error", res.IsError))
	p.Result = toolMessage(p.Call, res.ForLLM)
}

// applyDecisions matches decisions positionally to the outstanding interrupts.
func (g *Graph) applyDecisions(ctx context.Context, st *threadState, decisions []interrupt.Decision) error {
	outstanding := st.outstanding()
	if len(outstanding) == 0 {
		return ErrNothingToResume
	}
	if len(decisions) != len(outstanding) {
		return fmt.Errorf("%w: got %d, want %d", ErrDecisionMismatch, len(decisions), len(outstanding))
	}

	for i, p := range outstanding {
		kind := p.Interrupt.Value.Kind()
		p.Interrupt = nil

		if !decisions[i].Authorized {
			slog.Info("tool call denied", "tool", p.Call.Name, "kind", kind.String())
			p.Result = toolMessage(p.Call, deniedMessage(kind, p.Call.Name))
			continue
		}

		switch kind {
		case interrupt.KindAuthorization:
			p.AuthChecked = true
			g.evaluate(ctx, p)
		case interrupt.KindHumanApproval:
			p.Approved = true
			g.execute(ctx, p)
		default:
			p.Result = toolMessage(p.Call, deniedMessage(kind, p.Call.Name))
		}
	}
	return nil
}

// cancelPending closes calls left undecided when the user moved on, so the
// history stays a valid tool-call transcript.
func (g *Graph) cancelPending(threadID string, st *threadState) {
	if len(st.Pending) == 0 {
		return
	}
	cancelled := 0
	for _, p := range st.Pending {
		if p.Result == nil {
			p.Interrupt = nil
			p.Result = toolMessage(p.Call, "Tool call cancelled: the user sent a new message before it was decided.")
			cancelled++
		}
	}
	slog.Info("agent: cancelled undecided tool calls", "thread", threadID, "count", cancelled)
	g.flush(st)
}

// flush appends held results in call order and clears the batch.
func (g *Graph) flush(st *threadState) []providers.Message {
	results := make([]providers.Message, 0, len(st.Pending))
	for _, p := range st.Pending {
		results = append(results, *p.Result)
	}
	st.Messages = append(st.Messages, results...)
	st.Pending = nil
	return results
}

func toolMessage(call providers.ToolCall, content string) *providers.Message {
	return &providers.Message{
		Role:       providers.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

func deniedMessage(kind interrupt.Kind, toolName string) string {
	if kind == interrupt.KindAuthorization {
		return fmt.Sprintf("Authorization for %s was not granted, so the tool call was not executed.", toolName)
	}
	return fmt.Sprintf("The user did not approve the %s tool call, so it was not executed.", toolName)
}
