package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/hitlchat/internal/checkpoint"
	"github.com/nextlevelbuilder/hitlchat/internal/interrupt"
	"github.com/nextlevelbuilder/hitlchat/internal/providers"
)

// threadState is what Graph checkpoints per thread.
type threadState struct {
	Messages []providers.Message `json:"messages"`
	// Pending holds the tool calls of the last assistant message until every
	// one of them has a result.
	Pending []*pendingCall `json:"pending,omitempty"`

	step int
}

type pendingCall struct {
	Call        providers.ToolCall   `json:"call"`
	AuthChecked bool                 `json:"auth_checked,omitempty"`
	Approved    bool                 `json:"approved,omitempty"`
	Interrupt   *interrupt.Interrupt `json:"interrupt,omitempty"`
	Result      *providers.Message   `json:"result,omitempty"`
}

func (s *threadState) outstanding() []*pendingCall {
	var out []*pendingCall
	for _, p := range s.Pending {
		if p.Interrupt != nil {
			out = append(out, p)
		}
	}
	return out
}

func (s *threadState) interrupts() []interrupt.Interrupt {
	var out []interrupt.Interrupt
	for _, p := range s.Pending {
		if p.Interrupt != nil {
			out = append(out, *p.Interrupt)
		}
	}
	return out
}

func loadState(ctx context.Context, store checkpoint.Store, threadID string) (*threadState, error) {
	cp, err := store.Get(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return &threadState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %q: %w", threadID, err)
	}

	st, err := decodeState(*cp)
	if err != nil {
		return nil, err
	}
	st.step = cp.Step
	return st, nil
}

func saveState(ctx context.Context, store checkpoint.Store, threadID string, st *threadState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode thread %q: %w", threadID, err)
	}
	st.step++
	if err := store.Put(ctx, &checkpoint.Checkpoint{ThreadID: threadID, Step: st.step, State: data}); err != nil {
		return fmt.Errorf("save thread %q: %w", threadID, err)
	}
	return nil
}

// ThreadSummary describes a checkpointed thread without exposing its state
// layout.
type ThreadSummary struct {
	Messages   int
	Interrupts int
	LastUser   string
}

func decodeState(cp checkpoint.Checkpoint) (*threadState, error) {
	var st threadState
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return nil, fmt.Errorf("decode thread %q: %w", cp.ThreadID, err)
	}
	return &st, nil
}

// Summarize decodes a checkpoint written by Graph.
func Summarize(cp checkpoint.Checkpoint) (ThreadSummary, error) {
	st, err := decodeState(cp)
	if err != nil {
		return ThreadSummary{}, err
	}
	sum := ThreadSummary{Messages: len(st.Messages), Interrupts: len(st.outstanding())}
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == providers.RoleUser {
			sum.LastUser = st.Messages[i].Content
			break
		}
	}
	return sum, nil
}

// History returns the conversation stored in a checkpoint written by Graph.
func History(cp checkpoint.Checkpoint) ([]providers.Message, error) {
	st, err := decodeState(cp)
	if err != nil {
		return nil, err
	}
	return st.Messages, nil
}
